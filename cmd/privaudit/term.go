package privaudit

import (
	"bytes"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/privaudit/privaudit/internal/metrics"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	badStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// colorOn reports whether w is a terminal and color was not disabled.
func (a *app) colorOn(w io.Writer) bool {
	if a.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (a *app) paint(w io.Writer, st lipgloss.Style, s string) string {
	if !a.colorOn(w) {
		return s
	}
	return st.Render(s)
}

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case metrics.OutcomeRecorded:
		return okStyle
	case metrics.OutcomeRedactedUnaudited, metrics.OutcomeFailed:
		return badStyle
	case metrics.OutcomeSkipped, metrics.OutcomeDryRun:
		return dimStyle
	}
	return warnStyle
}

// highlightDiff colors a unified diff for the terminal. It returns the
// input unchanged when color is off or highlighting fails.
func (a *app) highlightDiff(w io.Writer, diff string) string {
	if diff == "" || !a.colorOn(w) {
		return diff
	}
	lexer := lexers.Get("diff")
	if lexer == nil {
		return diff
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get("monokai")
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return diff
	}
	iterator, err := lexer.Tokenise(nil, diff)
	if err != nil {
		return diff
	}
	var buf bytes.Buffer
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return diff
	}
	out := buf.String()
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}
