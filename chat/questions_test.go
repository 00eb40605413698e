package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

func newTestQuestionGenerator(t *testing.T, s *store.Store, respond respondFn) (*QuestionGenerator, *fakeGateway) {
	gateway := &fakeGateway{respond: respond}
	return NewQuestionGenerator(s, gateway, zaptest.NewLogger(t)), gateway
}

func respondWith(text string) respondFn {
	return func(context.Context, *llm.CompletionRequest) (*llm.Completion, error) {
		return &llm.Completion{Text: text}, nil
	}
}

func TestQuestionsDisabledReturnsSettings(t *testing.T) {
	s := newTestStore(t)
	generator, gateway := newTestQuestionGenerator(t, s, respondWith("Q"))
	assert.Equal(t, types.DefaultRecommendedQuestions, generator.Questions(context.Background()))
	assert.Zero(t, gateway.count())
}

func TestQuestionsWithoutAPIKeyReturnsSettings(t *testing.T) {
	s := newTestStore(t)
	s.UpdateSettings(store.SettingsPatch{APIKey: ptr(""), EnableAIGeneratedQuestions: ptr(true)})
	generator, gateway := newTestQuestionGenerator(t, s, respondWith("Q"))
	assert.Equal(t, types.DefaultRecommendedQuestions, generator.Questions(context.Background()))
	assert.Zero(t, gateway.count())
}

func TestQuestionsGeneratesAndCaches(t *testing.T) {
	s := newTestStore(t)
	s.UpdateSettings(store.SettingsPatch{EnableAIGeneratedQuestions: ptr(true)})
	output := "Here are your questions\n1. numbered\nWhy?\nHow?\nWhy?\n\nWhat?\nWho?\nWhen?\nWhere?\nWhich?"
	generator, gateway := newTestQuestionGenerator(t, s, respondWith(output))

	want := []string{"Here are your questions", "Why?", "How?", "What?", "Who?", "When?"}
	assert.Equal(t, want, generator.Questions(context.Background()))
	assert.Equal(t, want, s.CachedQuestions())

	// Served from the cache afterwards.
	assert.Equal(t, want, generator.Questions(context.Background()))
	require.Equal(t, 1, gateway.count())

	request := gateway.requests[0]
	assert.Equal(t, 1.0, request.Temperature)
	assert.Empty(t, request.SystemPrompt)
	require.Len(t, request.Messages, 1)
	assert.Contains(t, request.Messages[0].Content, "1. "+types.DefaultRecommendedQuestions[0])
}

func TestRefreshFailureKeepsCache(t *testing.T) {
	s := newTestStore(t)
	s.SetCachedQuestions([]string{"Cached?"})
	generator, _ := newTestQuestionGenerator(t, s, func(context.Context, *llm.CompletionRequest) (*llm.Completion, error) {
		return nil, &llm.GatewayError{Message: "boom"}
	})

	questions, err := generator.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"Cached?"}, questions)
	assert.Equal(t, []string{"Cached?"}, s.CachedQuestions())
}

func TestRefreshEmptyOutputKeepsCache(t *testing.T) {
	s := newTestStore(t)
	generator, _ := newTestQuestionGenerator(t, s, respondWith("1. only\n2. numbered"))

	questions, err := generator.Refresh(context.Background())
	require.ErrorIs(t, err, llm.ErrMalformedResponse)
	assert.Equal(t, types.DefaultRecommendedQuestions, questions)
	assert.Empty(t, s.CachedQuestions())
}
