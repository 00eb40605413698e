package repl

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/malonaz/inquirex/chat"
	"github.com/malonaz/inquirex/internal/cli"
	"github.com/malonaz/inquirex/internal/llm"
	"github.com/malonaz/inquirex/internal/markdown"
	"github.com/malonaz/inquirex/internal/types"
	"github.com/malonaz/inquirex/store"
)

var phaseLabels = map[types.Phase]string{
	types.PhaseDrafting:    "drafting",
	types.PhaseThinking:    "thinking",
	types.PhaseQuestioning: "questioning the draft",
	types.PhasePolishing:   "polishing",
}

// lineDelay paces the printing of answers.
func lineDelay(speed types.StreamSpeed) time.Duration {
	switch speed {
	case types.StreamSpeedSlow:
		return 40 * time.Millisecond
	case types.StreamSpeedFast:
		return 0
	default:
		return 10 * time.Millisecond
	}
}

type session struct {
	store        *store.Store
	orchestrator *chat.Orchestrator
	renderer     *markdown.Renderer
	historyFile  string
	lineDelay    time.Duration
}

func (s *session) loop(ctx context.Context) error {
	s.printHeader()
	for {
		input, err := cli.PromptUser(s.historyFile)
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "reading input")
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "/") {
			quit, err := s.command(ctx, input)
			if err != nil && !isReported(err) {
				cli.Error("%v\n", err)
			}
			if quit {
				return nil
			}
			continue
		}
		if err := s.send(ctx, input); err != nil && !isReported(err) {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (s *session) printHeader() {
	settings := s.store.Settings()
	title := store.DefaultTitle
	if conversation, ok := s.store.CurrentConversation(); ok {
		title = conversation.Title
	}
	cli.Title("INQUIREX [%s] %s", settings.Model, title)
	cli.UserCommand("type /help for commands\n")
}

// send runs a turn answering content and prints its outcome.
func (s *session) send(ctx context.Context, content string) error {
	return s.run(func() error { return s.orchestrator.SendMessage(ctx, content) })
}

// regenerate reruns the turn of the last assistant message.
func (s *session) regenerate(ctx context.Context) error {
	message, ok := s.lastAssistantMessage()
	if !ok {
		return errors.New("nothing to regenerate")
	}
	return s.run(func() error { return s.orchestrator.RegenerateMessage(ctx, message.ID) })
}

// run executes a turn while printing its phase transitions.
func (s *session) run(turn func() error) error {
	unsubscribe := s.store.Subscribe(s.phasePrinter())
	err := turn()
	unsubscribe()
	if err != nil {
		return s.report(err)
	}
	s.printLastAnswer()
	s.orchestrator.Wait()
	s.printFollowUps()
	return nil
}

// phasePrinter returns a listener printing the phases of the answer being built.
func (s *session) phasePrinter() store.Listener {
	var last types.Phase
	return func(state store.State) {
		message, ok := lastAssistantMessage(state)
		if !ok || message.ThinkingPhase == last {
			return
		}
		last = message.ThinkingPhase
		if label, ok := phaseLabels[last]; ok {
			cli.AIThought("… %s\n", label)
		}
	}
}

func (s *session) printLastAnswer() {
	message, ok := s.lastAssistantMessage()
	if !ok {
		return
	}
	cli.Separator()
	for _, line := range strings.Split(s.renderer.Render(message.Content), "\n") {
		cli.AIOutput(line + "\n")
		if s.lineDelay > 0 {
			time.Sleep(s.lineDelay)
		}
	}
	cli.Separator()
}

func (s *session) printFollowUps() {
	message, ok := s.lastAssistantMessage()
	if !ok || len(message.FollowUpQuestions) == 0 {
		return
	}
	for i, question := range message.FollowUpQuestions {
		cli.UserCommand("/follow %d", i+1)
		cli.UserInput("  %s\n", question)
	}
}

// reportedError is an error already shown to the user.
type reportedError struct{ error }

func isReported(err error) bool {
	reported := reportedError{}
	return errors.As(err, &reported)
}

func (s *session) report(err error) error {
	configurationErr := &llm.ConfigurationError{}
	switch {
	case errors.Is(err, chat.ErrTurnInFlight), errors.Is(err, chat.ErrEmptyMessage):
		cli.Error("%v\n", err)
	case errors.As(err, &configurationErr):
		cli.Error("%v\nrun `inquirex settings set --%s ...` first\n", err, strings.ReplaceAll(configurationErr.Field, " ", "-"))
	default:
		s.printLastAnswer()
		cli.Error("%s\n", s.orchestrator.LastError())
	}
	return reportedError{err}
}

func (s *session) lastAssistantMessage() (types.Message, bool) {
	return lastAssistantMessage(s.store.Snapshot())
}

func lastAssistantMessage(state store.State) (types.Message, bool) {
	for _, conversation := range state.Conversations {
		if conversation.ID != state.CurrentConversationID {
			continue
		}
		for i := len(conversation.Messages) - 1; i >= 0; i-- {
			if conversation.Messages[i].Role == types.RoleAssistant {
				return conversation.Messages[i], true
			}
		}
	}
	return types.Message{}, false
}

func (s *session) help() {
	for _, line := range []string{
		"/regen          regenerate the last answer",
		"/new            start a new conversation",
		"/copy [code]    copy the last answer, or its last code block",
		"/follow N       ask the Nth suggested follow-up question",
		"/quit           exit",
	} {
		cli.UserCommand("%s\n", line)
	}
}
