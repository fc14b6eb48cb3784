// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"bytes"
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

func TestNewTheme_PlainWhenNotATerminal(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "")

	theme := NewTheme(ThemeAuto, &bytes.Buffer{})
	if !theme.Plain {
		t.Fatal("a buffer is not a terminal, theme should be plain")
	}
	if got := theme.TopicHeader.Render("Arrays"); strings.Contains(got, "\x1b[3") {
		t.Errorf("plain theme emitted color: %q", got)
	}
}

func TestNewTheme_ForceColor(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "1")

	theme := NewTheme(ThemeDark, &bytes.Buffer{})
	if theme.Plain {
		t.Fatal("FORCE_COLOR should keep colors")
	}
	if !theme.IsDark {
		t.Error("dark theme should report a dark background")
	}
	if theme.Name != ThemeDark {
		t.Errorf("Name = %q, want %q", theme.Name, ThemeDark)
	}

	light := NewTheme(ThemeLight, &bytes.Buffer{})
	if light.IsDark {
		t.Error("light theme should report a light background")
	}
}

func TestNewTheme_PlainNameWins(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("FORCE_COLOR", "1")

	theme := NewTheme(ThemePlain, &bytes.Buffer{})
	if theme.ColorProfile != termenv.Ascii {
		t.Errorf("ColorProfile = %v, want Ascii", theme.ColorProfile)
	}
}

func TestNewTheme_UnknownNameIsAuto(t *testing.T) {
	if got := NewTheme("neon", &bytes.Buffer{}).Name; got != ThemeAuto {
		t.Errorf("Name = %q, want %q", got, ThemeAuto)
	}
}

func TestColorsEnabled_NoColorWins(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("FORCE_COLOR", "1")
	if ColorsEnabled(&bytes.Buffer{}) {
		t.Error("NO_COLOR must disable colors")
	}
}

func TestTerminalWidth_NonTerminal(t *testing.T) {
	if got := TerminalWidth(&bytes.Buffer{}); got != DefaultTerminalWidth {
		t.Errorf("TerminalWidth = %d, want %d", got, DefaultTerminalWidth)
	}
	if IsTerminal(&bytes.Buffer{}) {
		t.Error("a buffer is not a terminal")
	}
}

func TestThemeGetLayoutMode(t *testing.T) {
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	theme := NewTheme(ThemePlain, &bytes.Buffer{})
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: GetLayoutMode() = %v, want %v", tt.width, got, tt.want)
		}
	}
}

func TestSpinnerDuration(t *testing.T) {
	if d := LineSpinner.Duration(); d <= 0 {
		t.Errorf("Duration() = %v, want positive", d)
	}
}

func TestRenderStatusHelpers(t *testing.T) {
	if !strings.Contains(RenderError("boom"), StatusIndicators.Error) {
		t.Error("RenderError should include the error indicator")
	}
	if !strings.Contains(RenderSuccess("ok"), StatusIndicators.Success) {
		t.Error("RenderSuccess should include the success indicator")
	}
}
