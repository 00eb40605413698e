package repl

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/malonaz/inquirex/chat"
	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/configuration"
	"github.com/malonaz/inquirex/internal/markdown"
	"github.com/malonaz/inquirex/store"
)

// NewCmd instantiates and returns the chat command.
func NewCmd(config *configuration.Config, s *store.Store, orchestrator *chat.Orchestrator) *cobra.Command {
	var opts struct {
		ConversationID string
		New            bool
	}
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant",
		Long:  "Chat with the assistant. With a message, answers it and exits. Without, starts an interactive session.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			switch {
			case opts.New:
				s.CreateConversation()
			case opts.ConversationID != "":
				if _, ok := s.Conversation(opts.ConversationID); !ok {
					return errors.Errorf("unknown conversation (%s)", opts.ConversationID)
				}
				s.SetCurrentConversation(opts.ConversationID)
			}

			settings := s.Settings()
			renderer, err := markdown.NewRenderer(cli.Width(), settings.MarkdownSafetyLevel)
			if err != nil {
				return errors.Wrap(err, "creating markdown renderer")
			}
			session := &session{
				store:        s,
				orchestrator: orchestrator,
				renderer:     renderer,
				historyFile:  config.HistoryFile,
				lineDelay:    lineDelay(settings.StreamSpeed),
			}
			if len(args) == 1 {
				err := session.send(ctx, args[0])
				if isReported(err) {
					cmd.SilenceErrors = true
				}
				return err
			}
			return session.loop(ctx)
		},
	}
	cmd.Flags().StringVarP(&opts.ConversationID, "conversation", "c", "", "continue the given conversation")
	cmd.Flags().BoolVarP(&opts.New, "new", "n", false, "start a new conversation")
	cmd.MarkFlagsMutuallyExclusive("conversation", "new")
	return cmd
}
