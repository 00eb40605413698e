package prompt

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
	"github.com/pkg/errors"

	"github.com/malonaz/inquirex/internal/types"
)

const (
	usernamePlaceholder = "{username}"
	// usernameFallback replaces the placeholder when no username is configured.
	usernameFallback = "the user"
)

var (
	//go:embed system_prompt.tmpl
	systemPromptTemplate string
	//go:embed follow_up.tmpl
	followUpTemplate string
	//go:embed recommended_questions.tmpl
	recommendedQuestionsTemplate string
)

// SystemPromptData for rendering the system prompt.
type SystemPromptData struct {
	Now            time.Time
	Username       string
	BasePrompt     string
	PhaseDirective string
}

// SystemPrompt renders the system prompt of a phase from the settings.
// The `{username}` placeholder of the base prompt is substituted.
func SystemPrompt(settings types.Settings, phase types.Phase, now time.Time) (string, error) {
	username := strings.TrimSpace(settings.Username)
	replacement := username
	if replacement == "" {
		replacement = usernameFallback
	}
	data := SystemPromptData{
		Now:            now,
		Username:       username,
		BasePrompt:     strings.ReplaceAll(settings.SystemPrompt, usernamePlaceholder, replacement),
		PhaseDirective: PhaseDirective(phase),
	}
	rendered, err := render("system_prompt", systemPromptTemplate, data)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(rendered), nil
}

// FollowUp renders the user prompt asking for follow-up questions on a conversation excerpt.
func FollowUp(context string, count int) (string, error) {
	return render("follow_up", followUpTemplate, map[string]any{"Context": context, "Count": count})
}

// RecommendedQuestions renders the prompt asking for new questions styled on references.
func RecommendedQuestions(references []string, count int) (string, error) {
	return render("recommended_questions", recommendedQuestionsTemplate, map[string]any{"References": references, "Count": count})
}

func render(name, text string, data any) (string, error) {
	tmpl, err := template.New(name).Funcs(sprig.FuncMap()).Parse(text)
	if err != nil {
		return "", errors.Wrapf(err, "parsing %s template", name)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "executing %s template", name)
	}
	return buf.String(), nil
}
