package ui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

const (
	colorAccent = "#7D56F4"
	colorOK     = "#04B575"
	colorErr    = "#FF0000"
	colorWarn   = "#FFA500"
	colorMuted  = "#626262"
)

var styles = NewPalette(colorAccent, colorOK, colorErr, colorWarn, colorMuted)

// Palette holds the named [lipgloss.Style] values used by every view.
type Palette struct {
	title    lipgloss.Style
	ok       lipgloss.Style
	err      lipgloss.Style
	warn     lipgloss.Style
	help     lipgloss.Style
	selected lipgloss.Style
}

// NewPalette builds a Palette from accent, success, error, warning and muted colors.
func NewPalette(accent, ok, failed, warn, muted string) *Palette {
	return &Palette{
		title:    NewBold(accent).MarginBottom(1),
		ok:       NewBold(ok),
		err:      NewBold(failed),
		warn:     NewStyle(warn),
		help:     NewStyle(muted).Italic(true),
		selected: NewBold(accent),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

// newProgressBar returns a bar shaded from the accent to the success color.
func newProgressBar(width int) progress.Model {
	return progress.New(progress.WithGradient(colorAccent, colorOK), progress.WithWidth(width))
}
