package types

import "slices"

const (
	// DefaultModel used until the user picks one.
	DefaultModel = "anthropic/claude-3.5-sonnet"
	// DefaultTemperature used for turns.
	DefaultTemperature = 1.0
)

// DefaultSystemPrompt is the base prompt of every turn. `{username}` is substituted.
const DefaultSystemPrompt = `You are Inquire, a thoughtful assistant for {username}.
Answer with depth and precision. Prefer concrete examples over generic advice.
Use Markdown for structure when it helps readability, and keep answers focused.`

// DefaultFollowUpPrompt is the system prompt of follow-up generation.
const DefaultFollowUpPrompt = `You suggest follow-up questions a curious user could ask next.
Each question must be short, specific to the conversation, and written from the user's point of view.
Output exactly one question per line, without numbering, bullets or any other text.`

// DefaultRecommendedQuestions shown on an empty conversation.
var DefaultRecommendedQuestions = []string{
	"Why do we dream?",
	"How would you explain entropy to a ten year old?",
	"What makes a good habit stick?",
	"What did the Romans eat for breakfast?",
	"How does a compiler turn code into something a CPU runs?",
	"What is the most counterintuitive fact in probability?",
}

// StreamSpeed of the presentation layer.
type StreamSpeed string

const (
	StreamSpeedSlow   StreamSpeed = "slow"
	StreamSpeedMedium StreamSpeed = "medium"
	StreamSpeedFast   StreamSpeed = "fast"
)

// MarkdownSafetyLevel of the presentation layer.
type MarkdownSafetyLevel string

const (
	MarkdownSafetyStrict MarkdownSafetyLevel = "strict"
	MarkdownSafetyNormal MarkdownSafetyLevel = "normal"
	MarkdownSafetyLoose  MarkdownSafetyLevel = "loose"
)

// Settings of the application, owned by the store.
type Settings struct {
	Username                   string              `json:"username"`
	APIKey                     string              `json:"apiKey"`
	Model                      string              `json:"model"`
	SystemPrompt               string              `json:"systemPrompt"`
	FollowUpPrompt             string              `json:"followUpPrompt"`
	RecommendedQuestions       []string            `json:"recommendedQuestions"`
	EnableThreePhase           bool                `json:"enableThreePhase"`
	EnableAIGeneratedQuestions bool                `json:"enableAIGeneratedQuestions"`
	StreamSpeed                StreamSpeed         `json:"streamSpeed"`
	MarkdownSafetyLevel        MarkdownSafetyLevel `json:"markdownSafetyLevel"`
	Temperature                float64             `json:"temperature"`
}

// DefaultSettings returns a fresh copy of the default settings.
func DefaultSettings() Settings {
	return Settings{
		Model:                DefaultModel,
		SystemPrompt:         DefaultSystemPrompt,
		FollowUpPrompt:       DefaultFollowUpPrompt,
		RecommendedQuestions: slices.Clone(DefaultRecommendedQuestions),
		EnableThreePhase:     true,
		StreamSpeed:          StreamSpeedMedium,
		MarkdownSafetyLevel:  MarkdownSafetyNormal,
		Temperature:          DefaultTemperature,
	}
}

// Clone returns a deep copy of the settings.
func (s Settings) Clone() Settings {
	s.RecommendedQuestions = slices.Clone(s.RecommendedQuestions)
	return s
}
