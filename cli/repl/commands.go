package repl

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.design/x/clipboard"

	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/markdown"
)

var (
	clipboardOnce sync.Once
	clipboardErr  error
)

// command executes a slash command. It returns true if the session should end.
func (s *session) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name, args := fields[0], fields[1:]
	switch name {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		s.help()
	case "/new":
		s.store.CreateConversation()
		s.printHeader()
	case "/regen":
		return false, s.regenerate(ctx)
	case "/copy":
		return false, s.copy(len(args) > 0 && args[0] == "code")
	case "/follow":
		if len(args) != 1 {
			return false, errors.New("usage: /follow N")
		}
		question, err := s.followUp(args[0])
		if err != nil {
			return false, err
		}
		cli.UserInput("> %s\n", question)
		return false, s.send(ctx, question)
	default:
		return false, errors.Errorf("unknown command (%s), type /help", name)
	}
	return false, nil
}

// followUp returns the follow-up question at the given 1-based position.
func (s *session) followUp(position string) (string, error) {
	index, err := strconv.Atoi(position)
	if err != nil {
		return "", errors.Wrapf(err, "parsing position (%s)", position)
	}
	message, ok := s.lastAssistantMessage()
	if !ok || index < 1 || index > len(message.FollowUpQuestions) {
		return "", errors.Errorf("no follow-up question #%d", index)
	}
	return message.FollowUpQuestions[index-1], nil
}

// copy writes the last answer, or its last code block, to the clipboard.
func (s *session) copy(code bool) error {
	message, ok := s.lastAssistantMessage()
	if !ok {
		return errors.New("nothing to copy")
	}
	content := message.Content
	if code {
		blocks := markdown.CodeBlocks(content)
		if len(blocks) == 0 {
			return errors.New("the last answer has no code block")
		}
		content = blocks[len(blocks)-1].Content
	}
	clipboardOnce.Do(func() { clipboardErr = clipboard.Init() })
	if clipboardErr != nil {
		return errors.Wrap(clipboardErr, "initializing clipboard")
	}
	clipboard.Write(clipboard.FmtText, []byte(content))
	cli.UserCommand("copied %d characters\n", len([]rune(content)))
	return nil
}
