package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/prompt"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

func currentMessages(t *testing.T, s *store.Store) []types.Message {
	t.Helper()
	conversation, ok := s.CurrentConversation()
	require.True(t, ok)
	return conversation.Messages
}

func TestSendMessageThreePhase(t *testing.T) {
	s := newTestStore(t)
	recorder := recordPhases(t, s)
	var o *Orchestrator
	o, gateway := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		if phase := phaseOf(request); phase != followUpCall {
			// While the turn is in flight the message is never complete.
			assert.True(t, o.IsStreaming())
			assert.Equal(t, phase, o.CurrentPhase())
			messages := currentMessages(t, s)
			assert.Equal(t, phase, messages[len(messages)-1].ThinkingPhase)
		}
		return respondByPhase(ctx, request)
	})

	require.NoError(t, o.SendMessage(context.Background(), "hi"))
	o.Wait()

	messages := currentMessages(t, s)
	require.Len(t, messages, 2)
	assert.Equal(t, types.RoleUser, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, types.RoleAssistant, messages[1].Role)
	assert.Equal(t, "final", messages[1].Content)
	assert.Equal(t, types.PhaseComplete, messages[1].ThinkingPhase)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, messages[1].FollowUpQuestions)

	assert.Equal(t, []types.Phase{types.PhaseDrafting, types.PhaseQuestioning, types.PhasePolishing, types.PhaseComplete}, recorder.get())
	assert.False(t, o.IsStreaming())
	assert.Empty(t, o.CurrentPhase())
	assert.Empty(t, o.StreamingContent())
	assert.Empty(t, o.LastError())

	history := []llm.Message{{Role: llm.RoleUser, Content: "hi"}}
	drafting := gateway.requestsFor(types.PhaseDrafting)
	require.Len(t, drafting, 1)
	assert.Equal(t, history, drafting[0].Messages)
	assert.Equal(t, "sk-or-test", drafting[0].APIKey)
	assert.Equal(t, types.DefaultModel, drafting[0].Model)
	assert.Equal(t, types.DefaultTemperature, drafting[0].Temperature)

	questioning := gateway.requestsFor(types.PhaseQuestioning)
	require.Len(t, questioning, 1)
	assert.Equal(t, append(history,
		llm.Message{Role: llm.RoleAssistant, Content: "draft"},
		llm.Message{Role: llm.RoleUser, Content: prompt.PhaseInstruction(types.PhaseQuestioning)},
	), questioning[0].Messages)

	polishing := gateway.requestsFor(types.PhasePolishing)
	require.Len(t, polishing, 1)
	assert.Equal(t, append(history,
		llm.Message{Role: llm.RoleAssistant, Content: "draft" + PhaseSeparator + "critique"},
		llm.Message{Role: llm.RoleUser, Content: prompt.PhaseInstruction(types.PhasePolishing)},
	), polishing[0].Messages)

	followUps := gateway.requestsFor(followUpCall)
	require.Len(t, followUps, 1)
	assert.Equal(t, 1.0, followUps[0].Temperature)
	require.Len(t, followUps[0].Messages, 1)
	assert.Contains(t, followUps[0].Messages[0].Content, "User: hi\n\nAI: final")
}

func TestSendMessageSinglePhase(t *testing.T) {
	s := newTestStore(t)
	s.UpdateSettings(store.SettingsPatch{EnableThreePhase: ptr(false), Temperature: ptr(0.3)})
	recorder := recordPhases(t, s)
	o, gateway := newTestOrchestrator(t, s, respondByPhase)

	require.NoError(t, o.SendMessage(context.Background(), "hi"))
	o.Wait()

	messages := currentMessages(t, s)
	require.Len(t, messages, 2)
	assert.Equal(t, "final", messages[1].Content)
	assert.Equal(t, types.PhaseComplete, messages[1].ThinkingPhase)
	assert.Equal(t, []types.Phase{types.PhasePolishing, types.PhaseComplete}, recorder.get())

	polishing := gateway.requestsFor(types.PhasePolishing)
	require.Len(t, polishing, 1)
	assert.Equal(t, []llm.Message{{Role: llm.RoleUser, Content: "hi"}}, polishing[0].Messages)
	assert.Equal(t, 0.3, polishing[0].Temperature)
	assert.Empty(t, gateway.requestsFor(types.PhaseDrafting))
}

func TestSendMessageUsesConversationHistory(t *testing.T) {
	s := newTestStore(t)
	conversationID := s.CreateConversation()
	_, err := s.AddMessage(conversationID, store.NewMessage{Role: types.RoleUser, Content: "A"})
	require.NoError(t, err)
	_, err = s.AddMessage(conversationID, store.NewMessage{Role: types.RoleAssistant, Content: "B", ThinkingPhase: types.PhaseComplete})
	require.NoError(t, err)
	o, gateway := newTestOrchestrator(t, s, respondByPhase)

	require.NoError(t, o.SendMessage(context.Background(), "C"))
	o.Wait()

	drafting := gateway.requestsFor(types.PhaseDrafting)
	require.Len(t, drafting, 1)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "A"},
		{Role: llm.RoleAssistant, Content: "B"},
		{Role: llm.RoleUser, Content: "C"},
	}, drafting[0].Messages)
	assert.Len(t, currentMessages(t, s), 4)
	assert.Len(t, s.Snapshot().Conversations, 1)
}

func TestSendMessageThinkingOverlay(t *testing.T) {
	s := newTestStore(t)
	recorder := recordPhases(t, s)
	o, _ := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		completion, err := respondByPhase(ctx, request)
		if phase := phaseOf(request); phase == types.PhaseDrafting || phase == types.PhasePolishing {
			completion.Reasoning = "let me think"
		}
		return completion, err
	})

	require.NoError(t, o.SendMessage(context.Background(), "hi"))
	o.Wait()

	assert.Equal(t, []types.Phase{
		types.PhaseDrafting, types.PhaseThinking, types.PhaseDrafting,
		types.PhaseQuestioning,
		types.PhasePolishing, types.PhaseThinking, types.PhasePolishing,
		types.PhaseComplete,
	}, recorder.get())
	messages := currentMessages(t, s)
	assert.Equal(t, "final", messages[1].Content)
}

func TestSendMessageGatewayFailure(t *testing.T) {
	s := newTestStore(t)
	o, gateway := newTestOrchestrator(t, s, func(context.Context, *llm.CompletionRequest) (*llm.Completion, error) {
		return nil, &llm.GatewayError{StatusCode: 502, Message: "upstream unavailable"}
	})

	err := o.SendMessage(context.Background(), "hi")
	gatewayErr := &llm.GatewayError{}
	require.True(t, errors.As(err, &gatewayErr))
	o.Wait()

	messages := currentMessages(t, s)
	require.Len(t, messages, 2)
	assert.Equal(t, FallbackContent, messages[1].Content)
	assert.Equal(t, types.PhaseComplete, messages[1].ThinkingPhase)
	assert.Nil(t, messages[1].FollowUpQuestions)
	assert.Contains(t, o.LastError(), "upstream unavailable")
	assert.False(t, o.IsStreaming())
	assert.Empty(t, o.CurrentPhase())
	// Aborted at drafting, not retried, no follow-ups.
	assert.Equal(t, 1, gateway.count())
}

func TestSendMessageClearsLastError(t *testing.T) {
	s := newTestStore(t)
	var fail sync.Mutex
	failing := true
	o, _ := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		fail.Lock()
		defer fail.Unlock()
		if failing {
			return nil, &llm.GatewayError{Message: "boom"}
		}
		return respondByPhase(ctx, request)
	})

	require.Error(t, o.SendMessage(context.Background(), "hi"))
	require.NotEmpty(t, o.LastError())
	fail.Lock()
	failing = false
	fail.Unlock()
	require.NoError(t, o.SendMessage(context.Background(), "again"))
	o.Wait()
	assert.Empty(t, o.LastError())
}

func TestSendMessageMissingAPIKey(t *testing.T) {
	s := newTestStore(t)
	s.UpdateSettings(store.SettingsPatch{APIKey: ptr("")})
	o, gateway := newTestOrchestrator(t, s, respondByPhase)

	err := o.SendMessage(context.Background(), "hi")
	configurationErr := &llm.ConfigurationError{}
	require.True(t, errors.As(err, &configurationErr))
	assert.NotEmpty(t, o.LastError())
	assert.Empty(t, s.Snapshot().Conversations)
	assert.Zero(t, gateway.count())
	assert.False(t, o.IsStreaming())
}

func TestSendMessageEmpty(t *testing.T) {
	s := newTestStore(t)
	o, gateway := newTestOrchestrator(t, s, respondByPhase)
	require.ErrorIs(t, o.SendMessage(context.Background(), "  \n"), ErrEmptyMessage)
	assert.Zero(t, gateway.count())
	assert.Empty(t, s.Snapshot().Conversations)
}

func TestSendMessageCancelled(t *testing.T) {
	s := newTestStore(t)
	o, _ := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return respondByPhase(ctx, request)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := o.SendMessage(ctx, "hi")
	require.ErrorIs(t, err, context.Canceled)

	messages := currentMessages(t, s)
	require.Len(t, messages, 2)
	assert.Equal(t, FallbackContent, messages[1].Content)
	assert.Equal(t, types.PhaseComplete, messages[1].ThinkingPhase)
	assert.False(t, o.IsStreaming())
}

func TestConcurrentTurnIsRejected(t *testing.T) {
	s := newTestStore(t)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	o, _ := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		once.Do(func() { close(started) })
		<-release
		return respondByPhase(ctx, request)
	})

	errs := make(chan error, 1)
	go func() { errs <- o.SendMessage(context.Background(), "first") }()
	<-started

	assert.True(t, o.IsStreaming())
	assert.Equal(t, types.PhaseDrafting, o.CurrentPhase())
	before := s.Snapshot()
	require.ErrorIs(t, o.SendMessage(context.Background(), "second"), ErrTurnInFlight)
	require.ErrorIs(t, o.RegenerateMessage(context.Background(), "msg_x"), ErrTurnInFlight)
	assert.Equal(t, before, s.Snapshot())

	close(release)
	require.NoError(t, <-errs)
	o.Wait()

	messages := currentMessages(t, s)
	require.Len(t, messages, 2)
	assert.Equal(t, "first", messages[0].Content)
	assert.False(t, o.IsStreaming())
}

func TestFollowUpFailureIsSwallowed(t *testing.T) {
	s := newTestStore(t)
	o, gateway := newTestOrchestrator(t, s, func(ctx context.Context, request *llm.CompletionRequest) (*llm.Completion, error) {
		if phaseOf(request) == followUpCall {
			return nil, &llm.GatewayError{Message: "rate limited"}
		}
		return respondByPhase(ctx, request)
	})

	require.NoError(t, o.SendMessage(context.Background(), "hi"))
	o.Wait()

	messages := currentMessages(t, s)
	assert.Equal(t, "final", messages[1].Content)
	assert.Nil(t, messages[1].FollowUpQuestions)
	assert.Empty(t, o.LastError())
	assert.Len(t, gateway.requestsFor(followUpCall), 1)
}

func TestFollowUpContext(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: "one"},
		{Role: types.RoleAssistant, Content: "two"},
		{Role: types.RoleUser, Content: "three"},
		{Role: types.RoleAssistant, Content: "four"},
		{Role: types.RoleUser, Content: "five"},
	}
	assert.Equal(t, "AI: two\n\nUser: three\n\nAI: four\n\nUser: five", FollowUpContext(messages))
	assert.Equal(t, "User: one", FollowUpContext(messages[:1]))
	assert.Empty(t, FollowUpContext(nil))
}
