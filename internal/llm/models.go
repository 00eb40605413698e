package llm

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const providerMessageMaxLength = 100

// ListModels implements Gateway. Results are cached per api key and
// concurrent calls for the same key share a single request.
// The returned models must not be modified.
func (c *OpenRouter) ListModels(ctx context.Context, apiKey string) ([]*ModelInfo, error) {
	if apiKey == "" {
		return nil, &ConfigurationError{Field: "api key"}
	}
	if cached, ok := c.models.Get(apiKey); ok {
		return cached.([]*ModelInfo), nil
	}
	// The fetch is shared, so it must outlive any single caller.
	fetchCtx := context.WithoutCancel(ctx)
	resultCh := c.group.DoChan(apiKey, func() (any, error) {
		models, err := c.fetchModels(fetchCtx, apiKey)
		if err != nil {
			return nil, err
		}
		c.models.SetDefault(apiKey, models)
		return models, nil
	})
	select {
	case <-ctx.Done():
		return nil, toGatewayError(ctx.Err())
	case result := <-resultCh:
		if result.Err != nil {
			return nil, result.Err
		}
		models := result.Val.([]*ModelInfo)
		c.logger.Debug("listed models", zap.Int("models", len(models)), zap.Bool("shared", result.Shared))
		return models, nil
	}
}

func (c *OpenRouter) fetchModels(ctx context.Context, apiKey string) ([]*ModelInfo, error) {
	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSuffix(c.opts.APIHost, "/")+"/models", nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating models request")
	}
	request.Header.Set("Authorization", "Bearer "+apiKey)

	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, toGatewayError(err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &GatewayError{StatusCode: response.StatusCode, Message: "reading models response", cause: err}
	}
	c.logger.Debug("fetched models", zap.Int("status", response.StatusCode), zap.Duration("duration", time.Since(start)))

	if response.StatusCode < 200 || response.StatusCode > 299 {
		message := providerMessage(response.StatusCode, body)
		if response.StatusCode == http.StatusUnauthorized {
			return nil, &GatewayError{
				StatusCode: response.StatusCode,
				Message:    ErrUnauthorized.Error() + ": " + message,
				cause:      ErrUnauthorized,
			}
		}
		return nil, &GatewayError{StatusCode: response.StatusCode, Message: message}
	}
	return parseModels(body)
}

// providerMessage extracts a human readable message from an error payload.
func providerMessage(statusCode int, body []byte) string {
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "message"} {
			if result := gjson.GetBytes(body, path); result.Type == gjson.String && result.String() != "" {
				return result.String()
			}
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return http.StatusText(statusCode)
	}
	if runes := []rune(text); len(runes) > providerMessageMaxLength {
		text = string(runes[:providerMessageMaxLength])
	}
	return text
}

func parseModels(body []byte) ([]*ModelInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.Wrap(ErrMalformedResponse, "models payload is not json")
	}
	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, errors.Wrap(ErrMalformedResponse, "models payload has no data array")
	}
	models := []*ModelInfo{}
	for _, item := range data.Array() {
		id := item.Get("id").String()
		if id == "" {
			continue
		}
		models = append(models, &ModelInfo{
			ID:            id,
			Name:          item.Get("name").String(),
			Description:   item.Get("description").String(),
			ContextLength: item.Get("context_length").Int(),
			Pricing: Pricing{
				Prompt:     item.Get("pricing.prompt").String(),
				Completion: item.Get("pricing.completion").String(),
			},
		})
	}
	return models, nil
}
