package cli

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/buger/goterm"
	"github.com/chzyer/readline"
	"github.com/fatih/color"
)

var (
	userInputColor   = color.New(color.FgWhite)
	userCommandColor = color.New(color.FgGreen)
	aiOutputColor    = color.New(color.FgCyan)
	aiThoughtColor   = color.New(color.FgHiYellow)
	titleColor       = color.New(color.FgMagenta, color.Bold)
	separatorColor   = color.New(color.FgHiBlack)
	errorColor       = color.New(color.FgRed)
	promptColor      = color.New(color.FgHiBlue)

	width = goterm.Width()
)

// Width of the terminal.
func Width() int {
	if width <= 0 {
		return 80
	}
	return width
}

// Separator printed to cli.
func Separator() {
	separatorColor.Println(strings.Repeat("-", Width()))
}

// Title printed to cli.
func Title(text string, args ...any) {
	titleColor.Println(centered(fmt.Sprintf(text, args...), Width()))
}

func centered(text string, width int) string {
	title := "      " + text + "      "
	if len(title) >= width {
		return title
	}
	leftWidth := (width - len(title)) / 2
	return strings.Repeat("-", leftWidth) + title + strings.Repeat("-", width-len(title)-leftWidth)
}

// UserInput printed to cli.
func UserInput(text string, args ...any) {
	userInputColor.Printf(text, args...)
}

// UserCommand printed to cli.
func UserCommand(text string, args ...any) {
	if len(args) == 0 {
		userCommandColor.Print(text)
		return
	}
	userCommandColor.Printf(text, args...)
}

// AIOutput printed to cli. The text is printed verbatim.
func AIOutput(text string) {
	aiOutputColor.Print(text)
}

// AIThought printed to cli.
func AIThought(text string, args ...any) {
	aiThoughtColor.Printf(text, args...)
}

// Error printed to cli.
func Error(text string, args ...any) {
	errorColor.Printf(text, args...)
}

// PromptUser for input. A line ending with a backslash continues on the next line.
func PromptUser(historyFile string) (string, error) {
	config := &readline.Config{
		Prompt:            promptColor.Sprint("> "),
		InterruptPrompt:   "^C",
		HistoryFile:       historyFile,
		HistorySearchFold: true,
	}

	rl, err := readline.NewEx(config)
	if err != nil {
		return "", err
	}
	defer rl.Close()
	var lines []string
	for {
		line, err := rl.Readline()
		if err != nil {
			return "", err
		}
		continued, ok := strings.CutSuffix(line, "\\")
		lines = append(lines, continued)
		if !ok {
			break
		}
		rl.SetPrompt("")
	}
	return strings.Join(lines, "\n"), nil
}

// QueryUser a yes/no question.
func QueryUser(question string) bool {
	surveyQuestion := &survey.Confirm{
		Message: question,
	}
	confirm := false
	survey.AskOne(surveyQuestion, &confirm)
	return confirm
}
