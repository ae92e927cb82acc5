// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestNewTheme(t *testing.T) {
	theme := NewTheme()
	if theme == nil {
		t.Fatal("NewTheme() returned nil")
	}
	if theme.HasTrueColor != (theme.ColorProfile == termenv.TrueColor) {
		t.Error("HasTrueColor must match the detected profile")
	}
}

func TestThemeStylesRenderText(t *testing.T) {
	theme := NewTheme()

	styles := []struct {
		name  string
		style lipgloss.Style
	}{
		{"Header", theme.Header},
		{"OwnBubble", theme.OwnBubble},
		{"PeerBubble", theme.PeerBubble},
		{"PeerLabel", theme.PeerLabel},
		{"SystemLine", theme.SystemLine},
		{"OfferButton", theme.OfferButton},
		{"OfferButtonFocused", theme.OfferButtonFocused},
		{"Modal", theme.Modal},
		{"ModalError", theme.ModalError},
	}

	for _, s := range styles {
		rendered := s.style.Render("hello")
		if !strings.Contains(rendered, "hello") {
			t.Errorf("%s style lost its content: %q", s.name, rendered)
		}
	}
}

func TestBubblesHaveBorders(t *testing.T) {
	theme := NewTheme()
	for name, style := range map[string]lipgloss.Style{
		"OwnBubble":  theme.OwnBubble,
		"PeerBubble": theme.PeerBubble,
	} {
		if lipgloss.Height(style.Render("x")) != 3 {
			t.Errorf("%s should render a one-line bubble with top and bottom borders", name)
		}
	}
}
