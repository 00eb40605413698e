package settings

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

// NewCmd instantiates and returns the settings command.
func NewCmd(s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and edit the settings",
	}
	cmd.AddCommand(newShowCmd(s), newSetCmd(s), newResetCmd(s))
	return cmd
}

func newShowCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli.Title("INQUIREX SETTINGS")
			for _, line := range describe(s.Settings()) {
				cli.AIOutput(line + "\n")
			}
		},
	}
}

func newSetCmd(s *store.Store) *cobra.Command {
	var opts struct {
		Username                   string
		APIKey                     string
		Model                      string
		SystemPrompt               string
		FollowUpPrompt             string
		RecommendedQuestions       []string
		EnableThreePhase           bool
		EnableAIGeneratedQuestions bool
		StreamSpeed                string
		MarkdownSafetyLevel        string
		Temperature                float64
	}
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the given settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			patch := store.SettingsPatch{}
			if flags.Changed("username") {
				patch.Username = &opts.Username
			}
			if flags.Changed("api-key") {
				patch.APIKey = &opts.APIKey
			}
			if flags.Changed("model") {
				patch.Model = &opts.Model
			}
			if flags.Changed("system-prompt") {
				patch.SystemPrompt = &opts.SystemPrompt
			}
			if flags.Changed("follow-up-prompt") {
				patch.FollowUpPrompt = &opts.FollowUpPrompt
			}
			if flags.Changed("recommended-question") {
				patch.RecommendedQuestions = opts.RecommendedQuestions
			}
			if flags.Changed("three-phase") {
				patch.EnableThreePhase = &opts.EnableThreePhase
			}
			if flags.Changed("ai-questions") {
				patch.EnableAIGeneratedQuestions = &opts.EnableAIGeneratedQuestions
			}
			if flags.Changed("stream-speed") {
				speed, err := parseStreamSpeed(opts.StreamSpeed)
				if err != nil {
					return err
				}
				patch.StreamSpeed = &speed
			}
			if flags.Changed("markdown-safety") {
				level, err := parseMarkdownSafetyLevel(opts.MarkdownSafetyLevel)
				if err != nil {
					return err
				}
				patch.MarkdownSafetyLevel = &level
			}
			if flags.Changed("temperature") {
				if opts.Temperature < 0 || opts.Temperature > 2 {
					return errors.Errorf("temperature (%v) must be within [0, 2]", opts.Temperature)
				}
				patch.Temperature = &opts.Temperature
			}
			s.UpdateSettings(patch)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.Username, "username", "", "name the assistant calls you")
	flags.StringVar(&opts.APIKey, "api-key", "", "OpenRouter api key")
	flags.StringVar(&opts.Model, "model", "", "model id, see `inquirex models`")
	flags.StringVar(&opts.SystemPrompt, "system-prompt", "", "base system prompt, {username} is substituted")
	flags.StringVar(&opts.FollowUpPrompt, "follow-up-prompt", "", "system prompt of follow-up generation")
	flags.StringArrayVar(&opts.RecommendedQuestions, "recommended-question", nil, "recommended question, repeat for several")
	flags.BoolVar(&opts.EnableThreePhase, "three-phase", true, "draft, question and polish every answer")
	flags.BoolVar(&opts.EnableAIGeneratedQuestions, "ai-questions", false, "generate the recommended questions")
	flags.StringVar(&opts.StreamSpeed, "stream-speed", "", "slow, medium or fast")
	flags.StringVar(&opts.MarkdownSafetyLevel, "markdown-safety", "", "strict, normal or loose")
	flags.Float64Var(&opts.Temperature, "temperature", types.DefaultTemperature, "sampling temperature")
	return cmd
}

func newResetCmd(s *store.Store) *cobra.Command {
	var opts struct {
		Yes bool
	}
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Restore the default settings",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !opts.Yes && !cli.QueryUser("Restore the default settings? This also clears the api key.") {
				return
			}
			s.ResetSettings()
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func parseStreamSpeed(value string) (types.StreamSpeed, error) {
	switch speed := types.StreamSpeed(value); speed {
	case types.StreamSpeedSlow, types.StreamSpeedMedium, types.StreamSpeedFast:
		return speed, nil
	}
	return "", errors.Errorf("unknown stream speed (%s)", value)
}

func parseMarkdownSafetyLevel(value string) (types.MarkdownSafetyLevel, error) {
	switch level := types.MarkdownSafetyLevel(value); level {
	case types.MarkdownSafetyStrict, types.MarkdownSafetyNormal, types.MarkdownSafetyLoose:
		return level, nil
	}
	return "", errors.Errorf("unknown markdown safety level (%s)", value)
}

// maskKey keeps the last 4 characters of an api key.
func maskKey(key string) string {
	if key == "" {
		return "(not set)"
	}
	runes := []rune(key)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}

func describe(settings types.Settings) []string {
	lines := []string{
		fmt.Sprintf("username:             %s", settings.Username),
		fmt.Sprintf("api key:              %s", maskKey(settings.APIKey)),
		fmt.Sprintf("model:                %s", settings.Model),
		fmt.Sprintf("three phase:          %t", settings.EnableThreePhase),
		fmt.Sprintf("ai questions:         %t", settings.EnableAIGeneratedQuestions),
		fmt.Sprintf("stream speed:         %s", settings.StreamSpeed),
		fmt.Sprintf("markdown safety:      %s", settings.MarkdownSafetyLevel),
		fmt.Sprintf("temperature:          %v", settings.Temperature),
		"system prompt:",
		settings.SystemPrompt,
		"follow-up prompt:",
		settings.FollowUpPrompt,
		"recommended questions:",
	}
	for _, question := range settings.RecommendedQuestions {
		lines = append(lines, "  - "+question)
	}
	return lines
}
