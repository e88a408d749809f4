package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	successColor = lipgloss.Color("#8BC34A")
	failureColor = lipgloss.Color("#e53935")
	warningColor = lipgloss.Color("#FFC107")
	infoColor    = lipgloss.Color("#2196F3")
	mutedColor   = lipgloss.Color("#7a8599")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(infoColor)
	successStyle = lipgloss.NewStyle().Foreground(successColor)
	failureStyle = lipgloss.NewStyle().Foreground(failureColor).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warningColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	codeStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)
)

// printer writes command output, styled only when w is a terminal. Writes
// are serialized so event handlers can print alongside progress lines.
type printer struct {
	w      io.Writer
	styled bool
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(b []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(b)
}

func newPrinter(w io.Writer) *printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &printer{w: &lockedWriter{w: w}, styled: styled}
}

func (p *printer) render(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) title(text string) {
	fmt.Fprintln(p.w, p.render(titleStyle, text))
}

func (p *printer) ok(text string) {
	fmt.Fprintln(p.w, p.render(successStyle, text))
}

func (p *printer) fail(text string) {
	fmt.Fprintln(p.w, p.render(failureStyle, text))
}

func (p *printer) muted(text string) {
	fmt.Fprintln(p.w, p.render(mutedStyle, text))
}

func (p *printer) code(src string) {
	if !p.styled {
		fmt.Fprintln(p.w, src)
		return
	}
	fmt.Fprintln(p.w, codeStyle.Render(strings.TrimRight(src, "\n")))
}

// markdown renders md with glamour on a terminal and prints it raw
// otherwise.
func (p *printer) markdown(md string) {
	if p.styled {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
		if err == nil {
			if out, err := r.Render(md); err == nil {
				fmt.Fprint(p.w, out)
				return
			}
		}
	}
	fmt.Fprint(p.w, md)
	if !strings.HasSuffix(md, "\n") {
		fmt.Fprintln(p.w)
	}
}

// progress prints one orchestrator line, colouring it by its marker.
func (p *printer) progress(line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "❌"):
		fmt.Fprintln(p.w, p.render(failureStyle, line))
	case strings.HasPrefix(trimmed, "✅"), strings.HasPrefix(trimmed, "✓"):
		fmt.Fprintln(p.w, p.render(successStyle, line))
	case strings.HasPrefix(trimmed, "⚠️"), strings.HasPrefix(trimmed, "🔧"):
		fmt.Fprintln(p.w, p.render(warningStyle, line))
	case strings.HasPrefix(trimmed, "📋"), strings.HasPrefix(trimmed, "▶️"):
		fmt.Fprintln(p.w, p.render(titleStyle, line))
	default:
		fmt.Fprintln(p.w, line)
	}
}
