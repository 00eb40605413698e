package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/malonaz/inquirex/internal/types"
)

const (
	// DefaultTitle of a conversation without user messages.
	DefaultTitle   = "New chat"
	titleMaxLength = 20
	titleEllipsis  = "..."
)

// conversationTitle derives a title from the first user message.
func conversationTitle(content string) string {
	runes := []rune(content)
	if len(runes) <= titleMaxLength {
		return content
	}
	return string(runes[:titleMaxLength]) + titleEllipsis
}

func randomSuffix(length int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:length]
}

// newConversationID returns a time based, collision resistant conversation id.
func newConversationID(now time.Time) string {
	return fmt.Sprintf("conv_%d_%s", now.UnixMilli(), randomSuffix(8))
}

// newMessageID returns a role tagged, time based, collision resistant message id.
func newMessageID(role types.Role, now time.Time) string {
	return fmt.Sprintf("msg_%d_%s_%s", now.UnixMilli(), randomSuffix(9), role)
}

func findConversation(conversations []types.Conversation, id string) int {
	for i := range conversations {
		if conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// replaceConversation returns a copy of conversations with the one at index i replaced.
func replaceConversation(conversations []types.Conversation, i int, conversation types.Conversation) []types.Conversation {
	copied := make([]types.Conversation, len(conversations))
	copy(copied, conversations)
	copied[i] = conversation
	return copied
}

func hasUserMessage(messages []types.Message) bool {
	for _, message := range messages {
		if message.Role == types.RoleUser {
			return true
		}
	}
	return false
}
