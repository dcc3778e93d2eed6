// Package ui renders sections, status and projects for the terminal and
// hosts the interactive add-task form.
package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Palette. Adaptive colors pick a shade for light or dark backgrounds.
var (
	ColorAccent  = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7571F9"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#6C6C6C"}
	ColorPass    = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#86B300"}
	ColorWarn    = lipgloss.AdaptiveColor{Light: "#B8860B", Dark: "#FFB454"}
	ColorFail    = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#F07178"}
	ColorProject = lipgloss.AdaptiveColor{Light: "#00838F", Dark: "#59C2FF"}
)

// Styles is the set of styles one Printer renders with.
type Styles struct {
	Date     lipgloss.Style
	List     lipgloss.Style
	Done     lipgloss.Style
	Muted    lipgloss.Style
	Project  lipgloss.Style
	Assignee lipgloss.Style
	Due      lipgloss.Style
	Overdue  lipgloss.Style
	P1       lipgloss.Style
	P2       lipgloss.Style
	P3       lipgloss.Style
	Label    lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
}

// NewStyles builds the styles on r.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Date:     r.NewStyle().Bold(true).Foreground(ColorAccent),
		List:     r.NewStyle().Bold(true),
		Done:     r.NewStyle().Faint(true).Strikethrough(true),
		Muted:    r.NewStyle().Foreground(ColorMuted),
		Project:  r.NewStyle().Foreground(ColorProject),
		Assignee: r.NewStyle().Italic(true),
		Due:      r.NewStyle().Foreground(ColorWarn),
		Overdue:  r.NewStyle().Bold(true).Foreground(ColorFail),
		P1:       r.NewStyle().Bold(true).Foreground(ColorFail),
		P2:       r.NewStyle().Foreground(ColorWarn),
		P3:       r.NewStyle().Foreground(ColorMuted),
		Label:    r.NewStyle().Foreground(ColorMuted).Width(12),
		Good:     r.NewStyle().Foreground(ColorPass),
		Bad:      r.NewStyle().Foreground(ColorFail),
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// ShouldUseColor decides whether output to w gets ANSI styling. NO_COLOR
// and non-terminal writers disable it.
func ShouldUseColor(w io.Writer) bool {
	if termenv.EnvNoColor() {
		return false
	}
	f, ok := w.(*os.File)
	return ok && IsTerminal(f)
}

// newRenderer returns a renderer for w, forced to plain text when color
// is false.
func newRenderer(w io.Writer, color bool) *lipgloss.Renderer {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.EnvColorProfile())
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return r
}
