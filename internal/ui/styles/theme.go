// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header     lipgloss.Style
	HeaderName lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	OwnBubble  lipgloss.Style
	PeerBubble lipgloss.Style
	PeerLabel  lipgloss.Style
	SystemLine lipgloss.Style

	// ==========================================================================
	// FILE OFFER STYLES
	// ==========================================================================

	OfferButton        lipgloss.Style
	OfferButtonFocused lipgloss.Style

	// ==========================================================================
	// INPUT AND PROMPT STYLES
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Hint           lipgloss.Style
	Label          lipgloss.Style
	LabelFocused   lipgloss.Style

	// ==========================================================================
	// MODAL STYLES
	// ==========================================================================

	Modal       lipgloss.Style
	ModalError  lipgloss.Style
	ModalTitle  lipgloss.Style
	ModalButton lipgloss.Style
	ErrorText   lipgloss.Style
	SuccessText lipgloss.Style
}

// NewTheme creates a new theme with all styles configured.
func NewTheme() *Theme {
	colorProfile := termenv.ColorProfile()
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderName = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple)

	// Messages
	t.OwnBubble = lipgloss.NewStyle().
		Foreground(OwnBubbleFg).
		Background(OwnBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(OwnBubbleBorder).
		Padding(0, 1)

	t.PeerBubble = lipgloss.NewStyle().
		Foreground(PeerBubbleFg).
		Background(PeerBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(PeerBubbleBorder).
		Padding(0, 1)

	t.PeerLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.SystemLine = lipgloss.NewStyle().
		Foreground(SystemFg).
		Italic(true)

	// File offers
	t.OfferButton = lipgloss.NewStyle().
		Foreground(Amber).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Amber).
		Padding(0, 1)

	t.OfferButtonFocused = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Purple).
		Bold(true).
		BorderStyle(lipgloss.ThickBorder()).
		BorderForeground(Purple).
		Padding(0, 1)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.Hint = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Label = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(10)

	t.LabelFocused = t.Label.
		Foreground(Cyan).
		Bold(true)

	// Modals
	t.Modal = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Emerald).
		Padding(1, 2)

	t.ModalError = t.Modal.
		BorderForeground(Rose)

	t.ModalTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextPrimary)

	t.ModalButton = lipgloss.NewStyle().
		Foreground(TextInverse).
		Background(Cyan).
		Padding(0, 2)

	t.ErrorText = lipgloss.NewStyle().
		Foreground(Rose)

	t.SuccessText = lipgloss.NewStyle().
		Foreground(Emerald)
}
