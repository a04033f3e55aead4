package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorHeader = lipgloss.Color("#AF87FF")
	colorGood   = lipgloss.Color("#5FD787")
	colorAlert  = lipgloss.Color("#FF5F5F")
)

// Reporter prints the human-readable progress of a run: one line per step,
// finished by [done] or [failed].
type Reporter struct {
	w     io.Writer
	color bool

	styleStep lipgloss.Style
	styleGood lipgloss.Style
	styleBad  lipgloss.Style
}

func New(w io.Writer, color bool) *Reporter {
	r := lipgloss.NewRenderer(w)
	return &Reporter{
		w:         w,
		color:     color,
		styleStep: r.NewStyle().Foreground(colorHeader),
		styleGood: r.NewStyle().Foreground(colorGood).Bold(true),
		styleBad:  r.NewStyle().Foreground(colorAlert).Bold(true),
	}
}

// Step starts a line.
func (r *Reporter) Step(msg string) {
	fmt.Fprint(r.w, r.paint(r.styleStep, msg), " ")
}

// Done ends the current line, with an optional detail such as a count.
func (r *Reporter) Done(detail string) {
	text := "[done]"
	if detail != "" {
		text = detail + " " + text
	}
	fmt.Fprintln(r.w, r.paint(r.styleGood, text))
}

func (r *Reporter) Failed() {
	fmt.Fprintln(r.w, r.paint(r.styleBad, "[failed]"))
}

func (r *Reporter) paint(s lipgloss.Style, text string) string {
	if !r.color {
		return text
	}
	return s.Render(text)
}
