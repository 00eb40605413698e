package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/prompt"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

const (
	followUpQuestionCount   = 3
	followUpContextMessages = 4
	// Question generation always samples at this temperature.
	questionTemperature = 1.0
)

// startFollowUp generates follow-up questions for a completed message in the background.
// Failures are logged and otherwise ignored.
func (o *Orchestrator) startFollowUp(settings types.Settings, conversationID, messageID string) {
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		ctx, cancel := context.WithTimeout(o.ctx, o.opts.FollowUpTimeout)
		defer cancel()
		if err := o.generateFollowUp(ctx, settings, conversationID, messageID); err != nil {
			o.logger.Warn("generating follow-up questions", zap.String("message_id", messageID), zap.Error(err))
		}
	}()
}

func (o *Orchestrator) generateFollowUp(ctx context.Context, settings types.Settings, conversationID, messageID string) error {
	conversation, ok := o.store.Conversation(conversationID)
	if !ok {
		return nil
	}
	userPrompt, err := prompt.FollowUp(FollowUpContext(conversation.Messages), followUpQuestionCount)
	if err != nil {
		return err
	}
	completion, err := o.gateway.Complete(ctx, &llm.CompletionRequest{
		APIKey:       settings.APIKey,
		Model:        settings.Model,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: userPrompt}},
		SystemPrompt: settings.FollowUpPrompt,
		Temperature:  questionTemperature,
	})
	if err != nil {
		return errors.Wrap(err, "calling gateway")
	}
	questions := ParseQuestions(completion.Text, followUpQuestionCount, false)
	if len(questions) == 0 {
		return nil
	}
	o.store.UpdateMessage(conversationID, messageID, store.MessagePatch{FollowUpQuestions: questions})
	return nil
}

// FollowUpContext renders the last messages of a conversation as a transcript.
func FollowUpContext(messages []types.Message) string {
	if len(messages) > followUpContextMessages {
		messages = messages[len(messages)-followUpContextMessages:]
	}
	lines := make([]string, 0, len(messages))
	for _, message := range messages {
		label := "AI"
		if message.Role == types.RoleUser {
			label = "User"
		}
		lines = append(lines, label+": "+message.Content)
	}
	return strings.Join(lines, "\n\n")
}
