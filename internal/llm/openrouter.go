package llm

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultAPIHost of OpenRouter.
	DefaultAPIHost = "https://openrouter.ai/api/v1"

	defaultModelCacheTTL = 10 * time.Minute
)

// Opts for the OpenRouter gateway.
type Opts struct {
	APIHost string
	// RequestTimeout bounds every provider call. Zero means no timeout.
	RequestTimeout time.Duration
	// ModelCacheTTL is how long a model list is reused.
	ModelCacheTTL time.Duration
}

// OpenRouter implements Gateway over the OpenRouter OpenAI compatible API.
type OpenRouter struct {
	opts       *Opts
	logger     *zap.Logger
	httpClient *http.Client

	models *cache.Cache
	group  singleflight.Group
}

// NewOpenRouter instantiates and returns a new gateway. Accepts an optional *http.Client.
func NewOpenRouter(opts *Opts, logger *zap.Logger, options ...any) *OpenRouter {
	if opts.APIHost == "" {
		opts.APIHost = DefaultAPIHost
	}
	if opts.ModelCacheTTL <= 0 {
		opts.ModelCacheTTL = defaultModelCacheTTL
	}
	httpClient := &http.Client{}
	for _, option := range options {
		switch t := option.(type) {
		case *http.Client:
			httpClient = t
		default:
			panic(fmt.Errorf("unknown option type %T", option))
		}
	}
	return &OpenRouter{
		opts:       opts,
		logger:     logger,
		httpClient: httpClient,
		models:     cache.New(opts.ModelCacheTTL, 2*opts.ModelCacheTTL),
	}
}

// Complete implements Gateway.
func (c *OpenRouter) Complete(ctx context.Context, request *CompletionRequest) (*Completion, error) {
	if err := validate(request); err != nil {
		return nil, err
	}
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	config := openai.DefaultConfig(request.APIKey)
	config.BaseURL = c.opts.APIHost
	config.HTTPClient = c.httpClient
	client := openai.NewClientWithConfig(config)

	messages := make([]openai.ChatCompletionMessage, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: roleSystem, Content: request.SystemPrompt})
	}
	for _, message := range request.Messages {
		messages = append(messages, openai.ChatCompletionMessage{Role: message.Role, Content: message.Content})
	}

	logger := c.logger.With(zap.String("model", request.Model), zap.Int("messages", len(request.Messages)))
	start := time.Now()
	response, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       request.Model,
		Messages:    messages,
		Temperature: requestTemperature(request.Temperature),
	})
	if err != nil {
		err = toGatewayError(err)
		logger.Warn("completion failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return nil, err
	}
	if len(response.Choices) == 0 {
		logger.Warn("completion returned no choice", zap.String("id", response.ID))
		return nil, &GatewayError{Message: "provider returned no choice"}
	}
	message := response.Choices[0].Message
	logger.Debug(
		"completion",
		zap.Duration("duration", time.Since(start)),
		zap.Int("prompt_tokens", response.Usage.PromptTokens),
		zap.Int("completion_tokens", response.Usage.CompletionTokens),
	)
	return &Completion{Text: message.Content, Reasoning: message.ReasoningContent}, nil
}

// requestTemperature converts t for go-openai, which omits a zero temperature
// from the request body.
func requestTemperature(t float64) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}

func toGatewayError(err error) error {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		gatewayErr := &GatewayError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message, cause: err}
		if apiErr.HTTPStatusCode == http.StatusUnauthorized {
			gatewayErr.cause = errors.Wrap(ErrUnauthorized, apiErr.Message)
		}
		return gatewayErr
	}
	requestErr := &openai.RequestError{}
	if errors.As(err, &requestErr) {
		gatewayErr := &GatewayError{StatusCode: requestErr.HTTPStatusCode, Message: requestErr.Error(), cause: err}
		if requestErr.HTTPStatusCode == http.StatusUnauthorized {
			gatewayErr.cause = errors.Wrap(ErrUnauthorized, requestErr.Error())
		}
		return gatewayErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Message: "request timed out", cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &GatewayError{Message: "request cancelled", cause: err}
	}
	return &GatewayError{Message: err.Error(), cause: err}
}
