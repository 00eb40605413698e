package llm

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

const (
	// RoleUser author of a prompt.
	RoleUser = "user"
	// RoleAssistant author of a completion.
	RoleAssistant = "assistant"
	roleSystem    = "system"
)

var (
	// ErrUnauthorized is returned when the provider rejects the api key.
	ErrUnauthorized = errors.New("invalid api key")
	// ErrMalformedResponse is returned when the provider payload has an unexpected shape.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Message of a completion request.
type Message struct {
	Role    string
	Content string
}

// CompletionRequest is a single non-streaming chat completion.
type CompletionRequest struct {
	APIKey       string
	Model        string
	Messages     []Message
	SystemPrompt string
	Temperature  float64
}

// Completion returned by the provider.
type Completion struct {
	Text string
	// Reasoning is set when the model exposed its reasoning separately from the answer.
	Reasoning string
}

// Pricing per token, as reported by the provider.
type Pricing struct {
	Prompt     string
	Completion string
}

// ModelInfo describes a model offered by the provider.
type ModelInfo struct {
	ID            string
	Name          string
	Description   string
	ContextLength int64
	Pricing       Pricing
}

// Gateway to an LLM provider.
type Gateway interface {
	Complete(ctx context.Context, request *CompletionRequest) (*Completion, error)
	ListModels(ctx context.Context, apiKey string) ([]*ModelInfo, error)
}

// ConfigurationError is returned before any network attempt when a required setting is missing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing %s: configure it in the settings", e.Field)
}

// GatewayError is a provider or transport failure.
type GatewayError struct {
	// StatusCode is the HTTP status returned by the provider, 0 on transport failures.
	StatusCode int
	Message    string
	cause      error
}

func (e *GatewayError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error (%d): %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *GatewayError) Unwrap() error { return e.cause }

func validate(request *CompletionRequest) error {
	if request.APIKey == "" {
		return &ConfigurationError{Field: "api key"}
	}
	if request.Model == "" {
		return &ConfigurationError{Field: "model"}
	}
	return nil
}
