package chat

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/prompt"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

const (
	// FallbackContent replaces the content of an assistant message whose turn failed.
	FallbackContent = "Sorry, the request failed. Please check your network connection and API key settings."
	// PhaseSeparator joins the outputs of successive phases fed back to the model.
	PhaseSeparator = "\n\n---\n\n"

	defaultFollowUpTimeout = 30 * time.Second
)

var (
	// ErrTurnInFlight is returned when a turn is started while another one is running.
	ErrTurnInFlight = errors.New("a turn is already in flight")
	// ErrEmptyMessage is returned when sending a blank message.
	ErrEmptyMessage = errors.New("message is empty")
)

// Opts for the orchestrator.
type Opts struct {
	// FollowUpTimeout bounds follow-up question generation.
	FollowUpTimeout time.Duration
}

// Orchestrator drives assistant turns: it writes every phase transition of
// the assistant message to the store and calls the gateway once per phase.
// One turn runs at a time.
type Orchestrator struct {
	opts    *Opts
	store   *store.Store
	gateway llm.Gateway
	logger  *zap.Logger
	now     func() time.Time

	inFlight atomic.Bool

	mu               sync.RWMutex
	currentPhase     types.Phase
	streamingContent string
	lastError        string

	// Background work outliving a turn.
	ctx        context.Context
	cancel     context.CancelFunc
	background sync.WaitGroup
}

// New instantiates and returns a new orchestrator.
func New(opts *Opts, s *store.Store, gateway llm.Gateway, logger *zap.Logger) *Orchestrator {
	if opts.FollowUpTimeout <= 0 {
		opts.FollowUpTimeout = defaultFollowUpTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		opts:    opts,
		store:   s,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// IsStreaming returns true while a turn is in flight.
func (o *Orchestrator) IsStreaming() bool { return o.inFlight.Load() }

// CurrentPhase of the turn in flight, empty when idle.
func (o *Orchestrator) CurrentPhase() types.Phase {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.currentPhase
}

// StreamingContent is the visible content produced so far by the turn in flight.
func (o *Orchestrator) StreamingContent() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.streamingContent
}

// LastError is the message of the last turn blocking failure. It is cleared
// at the start of every turn attempt.
func (o *Orchestrator) LastError() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastError
}

// Wait blocks until background follow-up generation has finished.
func (o *Orchestrator) Wait() { o.background.Wait() }

// Close cancels background work and waits for it to return.
func (o *Orchestrator) Close() {
	o.cancel()
	o.background.Wait()
}

// SendMessage appends a user message to the current conversation, creating
// one if needed, and runs an assistant turn answering it.
func (o *Orchestrator) SendMessage(ctx context.Context, content string) error {
	if !o.inFlight.CompareAndSwap(false, true) {
		return ErrTurnInFlight
	}
	defer o.cleanup()

	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	settings := o.store.Settings()
	if err := validateSettings(settings); err != nil {
		o.setLastError(err.Error())
		return err
	}
	o.setLastError("")

	conversation, ok := o.store.CurrentConversation()
	if !ok {
		id := o.store.CreateConversation()
		if conversation, ok = o.store.Conversation(id); !ok {
			return errors.Wrapf(store.ErrConversationNotFound, "conversation (%s)", id)
		}
	}
	history := toLLMMessages(conversation.Messages)
	history = append(history, llm.Message{Role: llm.RoleUser, Content: content})

	if _, err := o.store.AddMessage(conversation.ID, store.NewMessage{Role: types.RoleUser, Content: content}); err != nil {
		return errors.Wrap(err, "adding user message")
	}
	messageID, err := o.addPlaceholder(conversation.ID, settings)
	if err != nil {
		return err
	}
	return o.runTurn(ctx, settings, conversation.ID, messageID, history)
}

func (o *Orchestrator) addPlaceholder(conversationID string, settings types.Settings) (string, error) {
	phase := types.PhasePolishing
	if settings.EnableThreePhase {
		phase = types.PhaseDrafting
	}
	messageID, err := o.store.AddMessage(conversationID, store.NewMessage{Role: types.RoleAssistant, ThinkingPhase: phase})
	if err != nil {
		return "", errors.Wrap(err, "adding assistant placeholder")
	}
	o.setCurrentPhase(phase)
	return messageID, nil
}

// runTurn fills the placeholder message. On failure the message is
// completed with the fallback content and the error is surfaced.
func (o *Orchestrator) runTurn(ctx context.Context, settings types.Settings, conversationID, messageID string, history []llm.Message) error {
	logger := o.logger.With(zap.String("conversation_id", conversationID), zap.String("message_id", messageID))
	logger.Info("turn started", zap.Bool("three_phase", settings.EnableThreePhase), zap.Int("history", len(history)))
	start := o.now()

	var err error
	if settings.EnableThreePhase {
		err = o.runThreePhase(ctx, settings, conversationID, messageID, history)
	} else {
		err = o.runSinglePhase(ctx, settings, conversationID, messageID, history)
	}
	if err != nil {
		logger.Warn("turn failed", zap.Error(err))
		o.setLastError(err.Error())
		content, phase := FallbackContent, types.PhaseComplete
		o.store.UpdateMessage(conversationID, messageID, store.MessagePatch{Content: &content, ThinkingPhase: &phase})
		return err
	}
	logger.Info("turn completed", zap.Duration("duration", o.now().Sub(start)))
	o.startFollowUp(settings, conversationID, messageID)
	return nil
}

func (o *Orchestrator) runThreePhase(ctx context.Context, settings types.Settings, conversationID, messageID string, history []llm.Message) error {
	var accumulated, final string
	for _, phase := range types.Pipeline {
		messages := history
		if phase != types.PhaseDrafting {
			messages = make([]llm.Message, 0, len(history)+2)
			messages = append(messages, history...)
			messages = append(messages,
				llm.Message{Role: llm.RoleAssistant, Content: accumulated},
				llm.Message{Role: llm.RoleUser, Content: prompt.PhaseInstruction(phase)},
			)
		}
		text, err := o.runPhase(ctx, settings, conversationID, messageID, phase, messages, phase == types.PhasePolishing)
		if err != nil {
			return errors.Wrapf(err, "%s phase", phase)
		}
		if accumulated != "" {
			accumulated += PhaseSeparator
		}
		accumulated += text
		if phase == types.PhasePolishing {
			final = text
		}
	}
	o.complete(conversationID, messageID, final)
	return nil
}

func (o *Orchestrator) runSinglePhase(ctx context.Context, settings types.Settings, conversationID, messageID string, history []llm.Message) error {
	text, err := o.runPhase(ctx, settings, conversationID, messageID, types.PhasePolishing, history, true)
	if err != nil {
		return err
	}
	o.complete(conversationID, messageID, text)
	return nil
}

// runPhase records phase on the message, calls the gateway and returns its text.
// Visible phases write the text to the message content.
func (o *Orchestrator) runPhase(
	ctx context.Context, settings types.Settings, conversationID, messageID string,
	phase types.Phase, messages []llm.Message, visible bool,
) (string, error) {
	o.setPhase(conversationID, messageID, phase)
	systemPrompt, err := prompt.SystemPrompt(settings, phase, o.now())
	if err != nil {
		return "", err
	}
	completion, err := o.gateway.Complete(ctx, &llm.CompletionRequest{
		APIKey:       settings.APIKey,
		Model:        settings.Model,
		Messages:     messages,
		SystemPrompt: systemPrompt,
		Temperature:  settings.Temperature,
	})
	if err != nil {
		return "", err
	}

	// The reasoning arrived before the answer: overlay thinking, then let the
	// answer restore the enclosing phase.
	reasoning := completion.Reasoning != ""
	if reasoning {
		o.setPhase(conversationID, messageID, types.PhaseThinking)
	}
	patch := store.MessagePatch{}
	if reasoning {
		patch.ThinkingPhase = &phase
	}
	if visible {
		patch.Content = &completion.Text
		o.mu.Lock()
		o.streamingContent = completion.Text
		o.mu.Unlock()
	}
	o.setCurrentPhase(phase)
	if patch.Content != nil || patch.ThinkingPhase != nil {
		o.store.UpdateMessage(conversationID, messageID, patch)
	}
	return completion.Text, nil
}

func (o *Orchestrator) complete(conversationID, messageID, content string) {
	phase := types.PhaseComplete
	o.store.UpdateMessage(conversationID, messageID, store.MessagePatch{Content: &content, ThinkingPhase: &phase})
}

func (o *Orchestrator) setPhase(conversationID, messageID string, phase types.Phase) {
	o.setCurrentPhase(phase)
	o.store.UpdateMessage(conversationID, messageID, store.MessagePatch{ThinkingPhase: &phase})
}

func (o *Orchestrator) setCurrentPhase(phase types.Phase) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.currentPhase = phase
}

func (o *Orchestrator) setLastError(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastError = message
}

// cleanup runs at the end of every turn attempt.
func (o *Orchestrator) cleanup() {
	o.mu.Lock()
	o.currentPhase = ""
	o.streamingContent = ""
	o.mu.Unlock()
	o.inFlight.Store(false)
}

func validateSettings(settings types.Settings) error {
	if settings.APIKey == "" {
		return &llm.ConfigurationError{Field: "api key"}
	}
	if settings.Model == "" {
		return &llm.ConfigurationError{Field: "model"}
	}
	return nil
}

func toLLMMessages(messages []types.Message) []llm.Message {
	result := make([]llm.Message, 0, len(messages)+1)
	for _, message := range messages {
		result = append(result, llm.Message{Role: string(message.Role), Content: message.Content})
	}
	return result
}
