package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newTestServer(t *testing.T, handler http.HandlerFunc) *testServer {
	t.Helper()
	server := &testServer{}
	server.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestGateway(t *testing.T, server *testServer) *OpenRouter {
	return NewOpenRouter(&Opts{APIHost: server.URL, RequestTimeout: 5 * time.Second}, zaptest.NewLogger(t))
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func TestCompleteSendsSystemPromptAndHistory(t *testing.T) {
	var received struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	var authorization string
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		authorization = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusOK, `{
			"id": "gen-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hello!", "reasoning_content": "greet back"}, "finish_reason": "stop"}]
		}`)
	})

	completion, err := newTestGateway(t, server).Complete(context.Background(), &CompletionRequest{
		APIKey:       "sk-or-test",
		Model:        "anthropic/claude-3.5-sonnet",
		SystemPrompt: "be nice",
		Temperature:  0.5,
		Messages: []Message{
			{Role: RoleUser, Content: "hi"},
			{Role: RoleAssistant, Content: "hey"},
			{Role: RoleUser, Content: "how are you?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", completion.Text)
	assert.Equal(t, "greet back", completion.Reasoning)

	assert.Equal(t, "Bearer sk-or-test", authorization)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", received.Model)
	assert.Equal(t, 0.5, received.Temperature)
	require.Len(t, received.Messages, 4)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "be nice", received.Messages[0].Content)
	assert.Equal(t, "how are you?", received.Messages[3].Content)
}

func TestCompleteSendsZeroTemperature(t *testing.T) {
	var body map[string]json.RawMessage
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, `{"choices": [{"index": 0, "message": {"role": "assistant", "content": "42"}}]}`)
	})

	_, err := newTestGateway(t, server).Complete(context.Background(), &CompletionRequest{
		APIKey:   "sk-or-test",
		Model:    "openai/gpt-4o",
		Messages: []Message{{Role: RoleUser, Content: "answer"}},
	})
	require.NoError(t, err)
	raw, ok := body["temperature"]
	require.True(t, ok, "temperature is sent")
	var temperature float64
	require.NoError(t, json.Unmarshal(raw, &temperature))
	assert.InDelta(t, 0, temperature, 1e-9)
}

func TestCompleteConfigurationErrors(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})
	gateway := newTestGateway(t, server)

	tests := []struct {
		name    string
		request *CompletionRequest
		field   string
	}{
		{name: "missing key", request: &CompletionRequest{Model: "m"}, field: "api key"},
		{name: "missing model", request: &CompletionRequest{APIKey: "k"}, field: "model"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gateway.Complete(context.Background(), tt.request)
			configurationErr := &ConfigurationError{}
			require.True(t, errors.As(err, &configurationErr))
			assert.Equal(t, tt.field, configurationErr.Field)
		})
	}
	assert.Zero(t, server.hits.Load(), "no network attempt")
}

func TestCompleteProviderErrors(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantStatus   int
		wantMessage  string
		unauthorized bool
	}{
		{
			name:        "server error",
			status:      http.StatusInternalServerError,
			body:        `{"error": {"message": "upstream exploded", "code": 500}}`,
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "upstream exploded",
		},
		{
			name:         "unauthorized",
			status:       http.StatusUnauthorized,
			body:         `{"error": {"message": "No auth credentials found", "code": 401}}`,
			wantStatus:   http.StatusUnauthorized,
			wantMessage:  "No auth credentials found",
			unauthorized: true,
		},
		{
			name:        "empty choices",
			status:      http.StatusOK,
			body:        `{"id": "gen-1", "choices": []}`,
			wantMessage: "provider returned no choice",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := newTestGateway(t, server).Complete(context.Background(), &CompletionRequest{APIKey: "k", Model: "m"})
			gatewayErr := &GatewayError{}
			require.True(t, errors.As(err, &gatewayErr), "got %v", err)
			assert.Equal(t, tt.wantStatus, gatewayErr.StatusCode)
			assert.Equal(t, tt.wantMessage, gatewayErr.Message)
			assert.Equal(t, tt.unauthorized, errors.Is(err, ErrUnauthorized))
		})
	}
}

func TestCompleteCancelled(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestGateway(t, server).Complete(ctx, &CompletionRequest{APIKey: "k", Model: "m"})
	gatewayErr := &GatewayError{}
	require.True(t, errors.As(err, &gatewayErr))
	assert.True(t, errors.Is(err, context.Canceled))
}

const modelsPayload = `{"data": [
	{
		"id": "anthropic/claude-3.5-sonnet",
		"name": "Anthropic: Claude 3.5 Sonnet",
		"description": "Fast and smart.",
		"context_length": 200000,
		"pricing": {"prompt": "0.000003", "completion": "0.000015"}
	},
	{"id": "openai/gpt-4o", "name": "OpenAI: GPT-4o", "context_length": 128000, "pricing": {"prompt": "0.0000025", "completion": "0.00001"}},
	{"name": "no id"}
]}`

func TestListModels(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, modelsPayload)
	})
	gateway := newTestGateway(t, server)

	models, err := gateway.ListModels(context.Background(), "k")
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, &ModelInfo{
		ID:            "anthropic/claude-3.5-sonnet",
		Name:          "Anthropic: Claude 3.5 Sonnet",
		Description:   "Fast and smart.",
		ContextLength: 200000,
		Pricing:       Pricing{Prompt: "0.000003", Completion: "0.000015"},
	}, models[0])
	assert.Equal(t, "openai/gpt-4o", models[1].ID)

	// Cached for the same key.
	_, err = gateway.ListModels(context.Background(), "k")
	require.NoError(t, err)
	assert.EqualValues(t, 1, server.hits.Load())
}

func TestListModelsMissingKey(t *testing.T) {
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := newTestGateway(t, server).ListModels(context.Background(), "")
	configurationErr := &ConfigurationError{}
	require.True(t, errors.As(err, &configurationErr))
	assert.Zero(t, server.hits.Load())
}

func TestListModelsErrors(t *testing.T) {
	longBody := strings.Repeat("x", 150)
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     error
		wantStatus  int
		wantMessage string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error": {"message": "nope"}}`, wantErr: ErrUnauthorized, wantStatus: http.StatusUnauthorized, wantMessage: "invalid api key: nope"},
		{name: "nested message", status: http.StatusBadGateway, body: `{"error": {"message": "bad upstream"}}`, wantStatus: http.StatusBadGateway, wantMessage: "bad upstream"},
		{name: "top level message", status: http.StatusTooManyRequests, body: `{"message": "slow down"}`, wantStatus: http.StatusTooManyRequests, wantMessage: "slow down"},
		{name: "plain text", status: http.StatusServiceUnavailable, body: longBody, wantStatus: http.StatusServiceUnavailable, wantMessage: longBody[:100]},
		{name: "multibyte text", status: http.StatusServiceUnavailable, body: strings.Repeat("é", 150), wantStatus: http.StatusServiceUnavailable, wantMessage: strings.Repeat("é", 100)},
		{name: "empty body", status: http.StatusInternalServerError, wantStatus: http.StatusInternalServerError, wantMessage: "Internal Server Error"},
		{name: "no data array", status: http.StatusOK, body: `{"data": {"id": "x"}}`, wantErr: ErrMalformedResponse},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrMalformedResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			_, err := newTestGateway(t, server).ListModels(context.Background(), "k")
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantStatus != 0 {
				gatewayErr := &GatewayError{}
				require.True(t, errors.As(err, &gatewayErr), "got %v", err)
				assert.Equal(t, tt.wantStatus, gatewayErr.StatusCode)
				assert.Equal(t, tt.wantMessage, gatewayErr.Message)
			}
		})
	}
}

func TestListModelsSharedFetchSurvivesCallerCancellation(t *testing.T) {
	release := make(chan struct{})
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, modelsPayload)
	})
	defer func() {
		select {
		case <-release:
		default:
			close(release)
		}
	}()
	gateway := newTestGateway(t, server)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := gateway.ListModels(ctx, "k")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return server.hits.Load() == 1 }, 5*time.Second, time.Millisecond)

	secondModels := make(chan []*ModelInfo, 1)
	secondErr := make(chan error, 1)
	go func() {
		models, err := gateway.ListModels(context.Background(), "k")
		secondModels <- models
		secondErr <- err
	}()

	cancel()
	err := <-firstErr
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)

	close(release)
	require.NoError(t, <-secondErr)
	assert.Len(t, <-secondModels, 2)
	assert.Equal(t, int32(1), server.hits.Load())
}

func TestListModelsFailuresAreNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	server := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			writeJSON(w, http.StatusInternalServerError, `{"message": "down"}`)
			return
		}
		writeJSON(w, http.StatusOK, modelsPayload)
	})
	gateway := newTestGateway(t, server)

	_, err := gateway.ListModels(context.Background(), "k")
	require.Error(t, err)
	fail.Store(false)
	models, err := gateway.ListModels(context.Background(), "k")
	require.NoError(t, err)
	assert.Len(t, models, 2)
}
