package chat

import (
	"context"

	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/types"
)

// RegenerateMessage replaces an assistant message of the current conversation
// with a new answer. The new turn sees every message strictly before the
// replaced one. Unknown messages and messages without a preceding user
// message are ignored.
func (o *Orchestrator) RegenerateMessage(ctx context.Context, messageID string) error {
	if !o.inFlight.CompareAndSwap(false, true) {
		return ErrTurnInFlight
	}
	defer o.cleanup()

	settings := o.store.Settings()
	if err := validateSettings(settings); err != nil {
		o.setLastError(err.Error())
		return err
	}
	conversation, ok := o.store.CurrentConversation()
	if !ok {
		return nil
	}
	index := conversation.FindMessage(messageID)
	if index < 0 || conversation.Messages[index].Role != types.RoleAssistant {
		o.logger.Debug("nothing to regenerate", zap.String("message_id", messageID))
		return nil
	}
	userIndex := index - 1
	for userIndex >= 0 && conversation.Messages[userIndex].Role != types.RoleUser {
		userIndex--
	}
	if userIndex < 0 {
		o.logger.Debug("no user message to answer", zap.String("message_id", messageID))
		return nil
	}

	o.store.DeleteMessage(conversation.ID, messageID)
	o.setLastError("")
	history := toLLMMessages(conversation.Messages[:index])
	newMessageID, err := o.addPlaceholder(conversation.ID, settings)
	if err != nil {
		return err
	}
	o.logger.Debug("regenerating message", zap.String("message_id", messageID), zap.String("new_message_id", newMessageID))
	return o.runTurn(ctx, settings, conversation.ID, newMessageID, history)
}
