// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat screen.
type KeyMap struct {
	Submit         key.Binding
	NextOffer      key.Binding
	PrevOffer      key.Binding
	SendFile       key.Binding
	CancelTransfer key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	Cancel         key.Binding
	Quit           key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat screen.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send / download"),
		),
		NextOffer: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next file"),
		),
		PrevOffer: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "previous file"),
		),
		SendFile: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "send file"),
		),
		CancelTransfer: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "cancel send"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "close"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NextOffer, k.SendFile, k.Quit}
}

// FullHelp returns every binding, grouped by purpose.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.SendFile, k.CancelTransfer},
		{k.NextOffer, k.PrevOffer},
		{k.PageUp, k.PageDown},
		{k.Cancel, k.Quit},
	}
}
