package store

import (
	"slices"

	"github.com/malonaz/inquirex/internal/types"
)

// SettingsPatch holds the settings to merge. Nil fields are left untouched.
type SettingsPatch struct {
	Username                   *string
	APIKey                     *string
	Model                      *string
	SystemPrompt               *string
	FollowUpPrompt             *string
	RecommendedQuestions       []string
	EnableThreePhase           *bool
	EnableAIGeneratedQuestions *bool
	StreamSpeed                *types.StreamSpeed
	MarkdownSafetyLevel        *types.MarkdownSafetyLevel
	Temperature                *float64
}

func (p SettingsPatch) apply(settings types.Settings) types.Settings {
	if p.Username != nil {
		settings.Username = *p.Username
	}
	if p.APIKey != nil {
		settings.APIKey = *p.APIKey
	}
	if p.Model != nil {
		settings.Model = *p.Model
	}
	if p.SystemPrompt != nil {
		settings.SystemPrompt = *p.SystemPrompt
	}
	if p.FollowUpPrompt != nil {
		settings.FollowUpPrompt = *p.FollowUpPrompt
	}
	if p.RecommendedQuestions != nil {
		settings.RecommendedQuestions = slices.Clone(p.RecommendedQuestions)
	}
	if p.EnableThreePhase != nil {
		settings.EnableThreePhase = *p.EnableThreePhase
	}
	if p.EnableAIGeneratedQuestions != nil {
		settings.EnableAIGeneratedQuestions = *p.EnableAIGeneratedQuestions
	}
	if p.StreamSpeed != nil {
		settings.StreamSpeed = *p.StreamSpeed
	}
	if p.MarkdownSafetyLevel != nil {
		settings.MarkdownSafetyLevel = *p.MarkdownSafetyLevel
	}
	if p.Temperature != nil {
		settings.Temperature = *p.Temperature
	}
	return settings
}

// UpdateSettings merges patch into the settings.
func (s *Store) UpdateSettings(patch SettingsPatch) {
	s.update(func(state *State) bool {
		state.Settings = patch.apply(state.Settings)
		return true
	})
}

// ResetSettings restores the default settings.
func (s *Store) ResetSettings() {
	s.update(func(state *State) bool {
		state.Settings = types.DefaultSettings()
		return true
	})
}
