package store

import (
	"go.uber.org/zap"

	"github.com/malonaz/inquirex/internal/types"
)

// CreateConversation prepends an empty conversation, makes it current and returns its id.
func (s *Store) CreateConversation() string {
	var id string
	s.update(func(state *State) bool {
		now := s.now()
		id = newConversationID(now)
		conversation := types.Conversation{
			ID:        id,
			Title:     DefaultTitle,
			Messages:  []types.Message{},
			CreatedAt: now.UnixMilli(),
			UpdatedAt: now.UnixMilli(),
		}
		conversations := make([]types.Conversation, 0, len(state.Conversations)+1)
		conversations = append(conversations, conversation)
		state.Conversations = append(conversations, state.Conversations...)
		state.CurrentConversationID = id
		return true
	})
	s.logger.Debug("created conversation", zap.String("conversation_id", id))
	return id
}

// DeleteConversation removes a conversation. Unknown ids are ignored.
// Deleting the current conversation leaves no current conversation.
func (s *Store) DeleteConversation(id string) bool {
	return s.update(func(state *State) bool {
		i := findConversation(state.Conversations, id)
		if i < 0 {
			return false
		}
		conversations := make([]types.Conversation, 0, len(state.Conversations)-1)
		conversations = append(conversations, state.Conversations[:i]...)
		state.Conversations = append(conversations, state.Conversations[i+1:]...)
		if state.CurrentConversationID == id {
			state.CurrentConversationID = ""
		}
		return true
	})
}

// ClearAllConversations removes every conversation.
func (s *Store) ClearAllConversations() {
	s.update(func(state *State) bool {
		state.Conversations = []types.Conversation{}
		state.CurrentConversationID = ""
		return true
	})
}

// SetCurrentConversation selects a conversation. An empty id selects none.
// Unknown ids are ignored.
func (s *Store) SetCurrentConversation(id string) bool {
	return s.update(func(state *State) bool {
		if id != "" && findConversation(state.Conversations, id) < 0 {
			return false
		}
		if state.CurrentConversationID == id {
			return false
		}
		state.CurrentConversationID = id
		return true
	})
}
