package markdown

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"

	"github.com/malonaz/inquirex/internal/types"
)

// Renderer renders assistant messages for the terminal.
type Renderer struct {
	glamour *glamour.TermRenderer
	safety  types.MarkdownSafetyLevel
}

// NewRenderer creates a new markdown renderer. The strict safety level prints
// content verbatim, the loose one also expands emoji shortcodes.
func NewRenderer(width int, safety types.MarkdownSafetyLevel) (*Renderer, error) {
	options := []glamour.TermRendererOption{
		glamour.WithStyles(customStyle()),
		glamour.WithWordWrap(width),
	}
	if safety == types.MarkdownSafetyLoose {
		options = append(options, glamour.WithEmoji())
	}
	gr, err := glamour.NewTermRenderer(options...)
	if err != nil {
		return nil, err
	}
	return &Renderer{glamour: gr, safety: safety}, nil
}

// Render markdown content. Content that fails to render is returned as is.
func (r *Renderer) Render(content string) string {
	if r.safety == types.MarkdownSafetyStrict {
		return content
	}
	rendered, err := r.glamour.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(rendered, "\n")
}

// customStyle returns a modified glamour style for cleaner output.
func customStyle() ansi.StyleConfig {
	style := styles.DraculaStyleConfig
	zero := uint(0)
	style.Document.Margin = &zero
	style.CodeBlock.Margin = &zero
	style.Code.Prefix = ""
	style.Code.Suffix = ""
	style.Paragraph.BlockPrefix = ""
	style.Paragraph.BlockSuffix = ""
	return style
}
