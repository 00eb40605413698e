package questions

import (
	"github.com/spf13/cobra"

	"github.com/malonaz/inquirex/chat"
	"github.com/malonaz/inquirex/internal/cli"
)

// NewCmd instantiates and returns the questions command.
func NewCmd(generator *chat.QuestionGenerator) *cobra.Command {
	var opts struct {
		Refresh bool
	}
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Print the recommended questions",
		Long:  "Print the recommended questions. With --refresh, asks the model for new ones.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			var questions []string
			if opts.Refresh {
				var err error
				if questions, err = generator.Refresh(ctx); err != nil {
					cli.Error("%v\n", err)
				}
			} else {
				questions = generator.Questions(ctx)
			}
			cli.Title("RECOMMENDED QUESTIONS")
			for _, question := range questions {
				cli.UserInput("- %s\n", question)
			}
		},
	}
	cmd.Flags().BoolVarP(&opts.Refresh, "refresh", "r", false, "generate new questions")
	return cmd
}
