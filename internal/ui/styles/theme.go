// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
	ThemePlain = "plain"
)

// Theme holds all the styled components for one output.
type Theme struct {
	Name string

	// Terminal capabilities
	IsDark       bool
	Plain        bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	renderer *lipgloss.Renderer

	// ==========================================================================
	// CHROME
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style
	StatusBar      lipgloss.Style
	StatusMuted    lipgloss.Style
	StatusOK       lipgloss.Style
	StatusError    lipgloss.Style
	Spinner        lipgloss.Style
	InputPrompt    lipgloss.Style
	Help           lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel       lipgloss.Style
	AssistantLabel  lipgloss.Style
	UserBubble      lipgloss.Style
	AssistantBubble lipgloss.Style
	FailedBubble    lipgloss.Style

	// ==========================================================================
	// FORMATTED BLOCKS
	// ==========================================================================

	TopicHeader lipgloss.Style
	Bullet      lipgloss.Style
	TagChip     lipgloss.Style
	Paragraph   lipgloss.Style
	Bold        lipgloss.Style
	Code        lipgloss.Style
	Link        lipgloss.Style
}

// NewTheme creates a theme for output written to w. Unknown names behave
// like "auto". Color is dropped for "plain" and whenever ColorsEnabled(w)
// says no.
func NewTheme(name string, w io.Writer) *Theme {
	if w == nil {
		w = os.Stdout
	}
	r := lipgloss.NewRenderer(w)

	switch name {
	case ThemePlain:
		r.SetColorProfile(termenv.Ascii)
	case ThemeDark:
		r.SetHasDarkBackground(true)
	case ThemeLight:
		r.SetHasDarkBackground(false)
	default:
		name = ThemeAuto
	}
	switch {
	case !ColorsEnabled(w):
		r.SetColorProfile(termenv.Ascii)
	case name != ThemePlain && !IsTerminal(w):
		// FORCE_COLOR into a pipe: termenv would detect Ascii.
		r.SetColorProfile(termenv.ANSI256)
	}

	t := &Theme{
		Name:         name,
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.Plain = t.ColorProfile == termenv.Ascii
	t.initStyles()
	return t
}

// NewStyle returns an empty style bound to the theme's renderer.
func (t *Theme) NewStyle() lipgloss.Style {
	return t.renderer.NewStyle()
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	s := t.NewStyle

	t.Header = s().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = s().Bold(true).Foreground(Purple)
	t.HeaderSubtitle = s().Foreground(TextSecondary).Italic(true)

	t.StatusBar = s().Foreground(TextSecondary).Background(SurfaceDim).Padding(0, 1)
	t.StatusMuted = s().Foreground(TextMuted)
	t.StatusOK = s().Foreground(Emerald).Bold(true)
	t.StatusError = s().Foreground(Rose).Bold(true)
	t.Spinner = s().Foreground(Purple)
	t.InputPrompt = s().Foreground(Cyan).Bold(true)
	t.Help = s().Foreground(TextMuted)

	t.UserLabel = s().Foreground(Cyan).Bold(true)
	t.AssistantLabel = s().Foreground(Purple).Bold(true)
	t.UserBubble = s().
		Foreground(UserBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1)
	t.AssistantBubble = s().
		Foreground(AssistantBubbleFg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(AssistantBubbleBorder).
		Padding(0, 1)
	t.FailedBubble = t.AssistantBubble.BorderForeground(Rose)

	t.TopicHeader = s().Bold(true).Foreground(Purple).Underline(true)
	t.Bullet = s().Foreground(Cyan)
	t.TagChip = s().Foreground(Amber).Background(AmberDeep).Padding(0, 1)
	t.Paragraph = s().Foreground(TextPrimary)
	t.Bold = s().Bold(true)
	t.Code = s().Foreground(Amber).Background(SurfaceBright)
	t.Link = s().Foreground(LinkColor).Underline(true)

	if t.Plain {
		// Chips need visible delimiters once color is gone.
		t.TagChip = s().Padding(0)
	}
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)

// =============================================================================
// SPINNER ANIMATIONS
// =============================================================================

// SpinnerConfig holds the configuration for a spinner animation.
type SpinnerConfig struct {
	Frames []string
	FPS    int
}

// Duration returns the duration for each frame.
func (s SpinnerConfig) Duration() time.Duration {
	return time.Second / time.Duration(s.FPS)
}

// DotsSpinner - Classic three-dot animation, shown while waiting for the
// first chunk.
var DotsSpinner = SpinnerConfig{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    6,
}

// LineSpinner - Simple line rotation, shown while streaming.
var LineSpinner = SpinnerConfig{
	Frames: []string{"|", "/", "-", "\\"},
	FPS:    10,
}
