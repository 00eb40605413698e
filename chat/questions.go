package chat

import (
	"context"

	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/prompt"
	"github.com/malonaz/inquirex/store"
)

const recommendedQuestionCount = 6

// QuestionGenerator provides the questions suggested on an empty conversation.
type QuestionGenerator struct {
	store   *store.Store
	gateway llm.Gateway
	logger  *zap.Logger
}

// NewQuestionGenerator instantiates and returns a new question generator.
func NewQuestionGenerator(s *store.Store, gateway llm.Gateway, logger *zap.Logger) *QuestionGenerator {
	return &QuestionGenerator{store: s, gateway: gateway, logger: logger}
}

// Questions returns the configured questions, or the AI generated ones when
// enabled. An empty cache is filled on first use if an api key is set.
func (g *QuestionGenerator) Questions(ctx context.Context) []string {
	settings := g.store.Settings()
	if !settings.EnableAIGeneratedQuestions {
		return settings.RecommendedQuestions
	}
	if cached := g.store.CachedQuestions(); len(cached) > 0 {
		return cached
	}
	if settings.APIKey == "" {
		return settings.RecommendedQuestions
	}
	questions, _ := g.Refresh(ctx)
	return questions
}

// Refresh generates and caches new questions. On failure the previous
// questions are returned along with the error and the cache is left untouched.
func (g *QuestionGenerator) Refresh(ctx context.Context) ([]string, error) {
	settings := g.store.Settings()
	previous := g.store.CachedQuestions()
	if len(previous) == 0 {
		previous = settings.RecommendedQuestions
	}

	userPrompt, err := prompt.RecommendedQuestions(settings.RecommendedQuestions, recommendedQuestionCount)
	if err != nil {
		return previous, err
	}
	completion, err := g.gateway.Complete(ctx, &llm.CompletionRequest{
		APIKey:      settings.APIKey,
		Model:       settings.Model,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: userPrompt}},
		Temperature: questionTemperature,
	})
	if err != nil {
		g.logger.Warn("generating recommended questions", zap.Error(err))
		return previous, errors.Wrap(err, "generating recommended questions")
	}

	seen := strset.New()
	questions := []string{}
	for _, question := range ParseQuestions(completion.Text, 0, true) {
		if seen.Has(question) {
			continue
		}
		seen.Add(question)
		questions = append(questions, question)
		if len(questions) == recommendedQuestionCount {
			break
		}
	}
	if len(questions) == 0 {
		g.logger.Warn("model returned no recommended question")
		return previous, errors.Wrap(llm.ErrMalformedResponse, "no question in model output")
	}
	g.store.SetCachedQuestions(questions)
	g.logger.Debug("refreshed recommended questions", zap.Int("questions", len(questions)))
	return questions, nil
}
