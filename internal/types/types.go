package types

import "slices"

// Role of a message author.
type Role string

const (
	// RoleUser is a message typed by the user.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the model.
	RoleAssistant Role = "assistant"
)

// Phase of an assistant message while its turn is being orchestrated.
type Phase string

const (
	// PhaseDrafting is the first stage of the three-phase pipeline.
	PhaseDrafting Phase = "drafting"
	// PhaseThinking is a transient overlay set while the model returned reasoning content.
	PhaseThinking Phase = "thinking"
	// PhaseQuestioning is the self-critique stage.
	PhaseQuestioning Phase = "questioning"
	// PhasePolishing is the final stage, and the only stage of single-phase mode.
	PhasePolishing Phase = "polishing"
	// PhaseComplete marks a message whose turn has fully finished.
	PhaseComplete Phase = "complete"
)

// Pipeline is the fixed order of the three-phase mode.
var Pipeline = []Phase{PhaseDrafting, PhaseQuestioning, PhasePolishing}

// Valid returns true if p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseDrafting, PhaseThinking, PhaseQuestioning, PhasePolishing, PhaseComplete:
		return true
	}
	return false
}

// Message of a conversation.
type Message struct {
	// ID of this message, unique across conversations.
	ID string `json:"id"`
	// Role of the author.
	Role Role `json:"role"`
	// Content visible to the user.
	Content string `json:"content"`
	// Unix milliseconds at creation.
	Timestamp int64 `json:"timestamp"`
	// Only set on assistant messages.
	ThinkingPhase Phase `json:"thinkingPhase,omitempty"`
	// Suggested questions attached once the turn completed.
	FollowUpQuestions []string `json:"followUpQuestions,omitempty"`
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	m.FollowUpQuestions = slices.Clone(m.FollowUpQuestions)
	return m
}

// Conversation holds an ordered list of messages.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt int64     `json:"createdAt"`
	UpdatedAt int64     `json:"updatedAt"`
}

// FindMessage returns the index of the message with the given id, or -1.
func (c *Conversation) FindMessage(messageID string) int {
	return slices.IndexFunc(c.Messages, func(m Message) bool { return m.ID == messageID })
}

// Clone returns a deep copy of the conversation.
func (c Conversation) Clone() Conversation {
	messages := make([]Message, len(c.Messages))
	for i, message := range c.Messages {
		messages[i] = message.Clone()
	}
	c.Messages = messages
	return c
}
