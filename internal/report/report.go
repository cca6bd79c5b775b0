// Package report renders analysis results for the terminal. Severity
// coloring degrades to plain text when the output is not a TTY.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"

	"github.com/0x4d5352/regaudit/internal/ast"
)

// Level grades a report line.
type Level int

// Report line levels
const (
	Info Level = iota
	Warning
	Error
	Fatal
)

// Line is one finding inside a section.
type Line struct {
	Level Level
	Text  string
	Pos   *ast.Position
	Hint  string
}

// Section is the renderable result of one analysis run.
type Section struct {
	Title    string
	Summary  string
	Lines    []Line
	Verbatim string // extra output such as the optimized pattern
}

// Renderer writes sections to a terminal or plain writer.
type Renderer struct {
	out     io.Writer
	profile termenv.Profile
}

// NewRenderer builds a renderer. color selects ANSI output; pass false when
// the destination is not a terminal.
func NewRenderer(out io.Writer, color bool) *Renderer {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	return &Renderer{out: out, profile: profile}
}

// levelColor blends green to red across the level scale.
func levelColor(l Level) string {
	low, _ := colorful.Hex("#2e9e4f")
	high, _ := colorful.Hex("#d92626")
	t := float64(l) / float64(Fatal)
	return low.BlendLuv(high, t).Hex()
}

func (r *Renderer) styled(l Level, s string) string {
	return r.profile.String(s).Foreground(r.profile.Color(levelColor(l))).Bold().String()
}

// Render writes one section. source is the original pattern text used for
// the caret position display.
func (r *Renderer) Render(source string, s Section) {
	fmt.Fprintf(r.out, "%s\n", r.profile.String(s.Title).Bold().String())
	if s.Summary != "" {
		fmt.Fprintf(r.out, "  %s\n", s.Summary)
	}
	for _, line := range s.Lines {
		r.renderLine(source, line)
	}
	if s.Verbatim != "" {
		fmt.Fprintf(r.out, "  %s\n", s.Verbatim)
	}
	fmt.Fprintln(r.out)
}

func (r *Renderer) renderLine(source string, line Line) {
	fmt.Fprintf(r.out, "  %s %s\n", r.styled(line.Level, badge(line.Level)), line.Text)
	if line.Pos != nil {
		r.renderCaret(source, *line.Pos)
	}
	if line.Hint != "" {
		fmt.Fprintf(r.out, "      hint: %s\n", line.Hint)
	}
}

// renderCaret prints the pattern with a marker under the offending range.
func (r *Renderer) renderCaret(source string, pos ast.Position) {
	if source == "" || pos.Start < 0 || pos.Start >= len(source) {
		return
	}
	width := pos.End - pos.Start
	if width < 1 || pos.End > len(source) {
		width = 1
	}
	fmt.Fprintf(r.out, "      %s\n", source)
	fmt.Fprintf(r.out, "      %s%s\n", strings.Repeat(" ", pos.Start), strings.Repeat("^", width))
}

func badge(l Level) string {
	switch l {
	case Info:
		return "info:"
	case Warning:
		return "warn:"
	case Error:
		return "error:"
	case Fatal:
		return "fatal:"
	}
	return "?"
}
