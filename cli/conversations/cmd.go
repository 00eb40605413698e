package conversations

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

const previewMessages = 3

// NewCmd instantiates and returns the conversations command.
func NewCmd(s *store.Store) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv"},
		Short:   "Manage conversations",
	}
	cmd.AddCommand(newListCmd(s), newShowCmd(s), newUseCmd(s), newDeleteCmd(s), newClearCmd(s))
	return cmd
}

func newListCmd(s *store.Store) *cobra.Command {
	var opts struct {
		Limit int
	}
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations, most recent first",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cli.Title("INQUIREX CONVERSATIONS")
			conversations := s.Snapshot().Conversations
			if opts.Limit > 0 && len(conversations) > opts.Limit {
				conversations = conversations[:opts.Limit]
			}
			for _, conversation := range conversations {
				cli.AIOutput(describe(conversation) + "\n")
				shown := 0
				for _, message := range conversation.Messages {
					if shown == previewMessages {
						break
					}
					if message.Role == types.RoleUser {
						cli.UserInput("> %s\n", message.Content)
						shown++
					}
				}
			}
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "l", 50, "maximum number of conversations listed")
	return cmd
}

func newShowCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversation, ok := s.Conversation(args[0])
			if !ok {
				return errors.Errorf("unknown conversation (%s)", args[0])
			}
			cli.Title("%s", conversation.Title)
			for _, message := range conversation.Messages {
				if message.Role == types.RoleUser {
					cli.UserInput("> %s\n", message.Content)
					continue
				}
				cli.Separator()
				cli.AIOutput(message.Content + "\n")
				for _, question := range message.FollowUpQuestions {
					cli.AIThought("  ? %s\n", question)
				}
				cli.Separator()
			}
			return nil
		},
	}
}

func newUseCmd(s *store.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id>",
		Short: "Make a conversation the current one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !s.SetCurrentConversation(args[0]) {
				return errors.Errorf("unknown conversation (%s)", args[0])
			}
			return nil
		},
	}
}

func newDeleteCmd(s *store.Store) *cobra.Command {
	var opts struct {
		Yes bool
	}
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversation, ok := s.Conversation(args[0])
			if !ok {
				return errors.Errorf("unknown conversation (%s)", args[0])
			}
			if !opts.Yes && !cli.QueryUser("Delete \""+conversation.Title+"\"?") {
				return nil
			}
			s.DeleteConversation(conversation.ID)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func newClearCmd(s *store.Store) *cobra.Command {
	var opts struct {
		Yes bool
	}
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			if !opts.Yes && !cli.QueryUser("Delete all conversations?") {
				return
			}
			s.ClearAllConversations()
		},
	}
	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation")
	return cmd
}

func describe(conversation types.Conversation) string {
	updatedAt := time.UnixMilli(conversation.UpdatedAt).Format(time.DateTime)
	return conversation.ID + " - " + conversation.Title + " (" + updatedAt + ")"
}
