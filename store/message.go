package store

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/malonaz/inquirex/internal/types"
)

// NewMessage holds the caller provided fields of a message.
type NewMessage struct {
	Role              types.Role
	Content           string
	ThinkingPhase     types.Phase
	FollowUpQuestions []string
}

// MessagePatch holds the fields to merge into a message. Nil fields are left untouched.
type MessagePatch struct {
	Content           *string
	ThinkingPhase     *types.Phase
	FollowUpQuestions []string
}

func (p MessagePatch) apply(message types.Message) types.Message {
	if p.Content != nil {
		message.Content = *p.Content
	}
	if p.ThinkingPhase != nil {
		message.ThinkingPhase = *p.ThinkingPhase
	}
	if p.FollowUpQuestions != nil {
		message.FollowUpQuestions = slices.Clone(p.FollowUpQuestions)
	}
	return message
}

// AddMessage appends a message to a conversation and returns its id.
// The first user message of a conversation sets its title.
func (s *Store) AddMessage(conversationID string, newMessage NewMessage) (string, error) {
	if newMessage.Role != types.RoleUser && newMessage.Role != types.RoleAssistant {
		return "", errors.Wrapf(ErrInvalidRole, "role (%s)", newMessage.Role)
	}

	var id string
	ok := s.update(func(state *State) bool {
		i := findConversation(state.Conversations, conversationID)
		if i < 0 {
			return false
		}
		now := s.now()
		id = newMessageID(newMessage.Role, now)
		message := types.Message{
			ID:                id,
			Role:              newMessage.Role,
			Content:           newMessage.Content,
			Timestamp:         now.UnixMilli(),
			ThinkingPhase:     newMessage.ThinkingPhase,
			FollowUpQuestions: slices.Clone(newMessage.FollowUpQuestions),
		}

		conversation := state.Conversations[i]
		if message.Role == types.RoleUser && !hasUserMessage(conversation.Messages) {
			conversation.Title = conversationTitle(message.Content)
		}
		messages := make([]types.Message, 0, len(conversation.Messages)+1)
		messages = append(messages, conversation.Messages...)
		conversation.Messages = append(messages, message)
		conversation.UpdatedAt = now.UnixMilli()
		state.Conversations = replaceConversation(state.Conversations, i, conversation)
		return true
	})
	if !ok {
		return "", errors.Wrapf(ErrConversationNotFound, "conversation (%s)", conversationID)
	}
	return id, nil
}

// UpdateMessage merges patch into a message. It is a no-op returning false if
// the conversation or the message no longer exists.
func (s *Store) UpdateMessage(conversationID, messageID string, patch MessagePatch) bool {
	return s.update(func(state *State) bool {
		i := findConversation(state.Conversations, conversationID)
		if i < 0 {
			return false
		}
		conversation := state.Conversations[i]
		j := conversation.FindMessage(messageID)
		if j < 0 {
			return false
		}
		messages := slices.Clone(conversation.Messages)
		messages[j] = patch.apply(messages[j])
		conversation.Messages = messages
		conversation.UpdatedAt = s.now().UnixMilli()
		state.Conversations = replaceConversation(state.Conversations, i, conversation)
		return true
	})
}

// DeleteMessage removes a message. Unknown ids are ignored.
func (s *Store) DeleteMessage(conversationID, messageID string) bool {
	return s.update(func(state *State) bool {
		i := findConversation(state.Conversations, conversationID)
		if i < 0 {
			return false
		}
		conversation := state.Conversations[i]
		j := conversation.FindMessage(messageID)
		if j < 0 {
			return false
		}
		messages := make([]types.Message, 0, len(conversation.Messages)-1)
		messages = append(messages, conversation.Messages[:j]...)
		conversation.Messages = append(messages, conversation.Messages[j+1:]...)
		conversation.UpdatedAt = s.now().UnixMilli()
		state.Conversations = replaceConversation(state.Conversations, i, conversation)
		return true
	})
}
