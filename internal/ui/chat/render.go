// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/opentalk-tui/internal/event"
	"github.com/jeranaias/opentalk-tui/internal/transfer"
	"github.com/jeranaias/opentalk-tui/internal/util"
)

// =============================================================================
// MAIN RENDER
// =============================================================================

func (m Model) render() string {
	switch m.mode {
	case ModePicker:
		return m.renderOverlay(m.renderPicker())
	case ModePrompt:
		return m.renderOverlay(m.renderPrompt())
	case ModeModal:
		return m.renderOverlay(m.renderModal())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderHelp(),
	)
}

func (m Model) renderOverlay(box string) string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	name := util.TruncateWidth(m.sess.Name(), max(m.width/2, 8))
	line := "Connected as: " + m.theme.HeaderName.Render(name)
	if m.stopped {
		line += m.theme.ErrorText.Render("  (disconnected)")
	}
	if status := m.transferStatus(); status != "" {
		line += "  " + m.theme.Hint.Render(util.TruncateWidth(status, max(m.width/2, 12)))
	}
	return m.theme.Header.Width(m.width).Render(line) + "\n"
}

// transferStatus names the newest running transfer and its progress, e.g.
// "Sending notes.txt 42% (+1 more)".
func (m Model) transferStatus() string {
	running := m.runningTransfers()
	if len(running) == 0 {
		return ""
	}
	t := running[len(running)-1]
	status := fmt.Sprintf("Sending %s %d%%", filepath.Base(t.Path), t.GetProgress())
	if more := len(running) - 1; more > 0 {
		status += fmt.Sprintf(" (+%d more)", more)
	}
	return status
}

// =============================================================================
// HISTORY
// =============================================================================

// renderRows joins every row and reports the first line of each. A row is
// only re-rendered when the width or its focus changed since last time.
func (m *Model) renderRows() (string, []int) {
	width := m.viewport.Width
	var sb strings.Builder
	lines := make([]int, len(m.rows))
	line := 0
	offerPos := 0
	for i := range m.rows {
		r := &m.rows[i]
		focused := false
		if r.offer != "" {
			focused = offerPos == m.focus
			offerPos++
		}
		if !r.cached || r.viewWidth != width || r.viewFocused != focused {
			r.view = m.renderRow(*r, focused)
			r.viewHeight = lipgloss.Height(r.view)
			r.viewWidth = width
			r.viewFocused = focused
			r.cached = true
		}
		if i > 0 {
			sb.WriteByte('\n')
		}
		lines[i] = line
		sb.WriteString(r.view)
		line += r.viewHeight
	}
	return sb.String(), lines
}

func (m Model) renderRow(r row, focused bool) string {
	width := m.viewport.Width

	if r.offer != "" {
		style := m.theme.OfferButton
		if focused {
			style = m.theme.OfferButtonFocused
		}
		label := util.TruncateWidth(transfer.OfferLabel(r.offer), max(width-4, 8))
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, style.Render(label))
	}

	switch r.bucket {
	case event.BucketSystem:
		text := m.theme.SystemLine.Render(r.text)
		return lipgloss.PlaceHorizontal(width, lipgloss.Center, text)

	case event.BucketOwn:
		bubble := m.bubble(m.theme.OwnBubble, r.text)
		return lipgloss.PlaceHorizontal(width, lipgloss.Right, bubble)

	default:
		label := m.theme.PeerLabel.Render(util.TruncateWidth(r.sender, max(width-2, 4)))
		bubble := m.bubble(m.theme.PeerBubble, r.text)
		return lipgloss.JoinVertical(lipgloss.Left, label, bubble)
	}
}

// bubble wraps long text at two thirds of the viewport.
func (m Model) bubble(style lipgloss.Style, text string) string {
	limit := m.viewport.Width * 2 / 3
	if limit < 20 {
		limit = 20
	}
	if lipgloss.Width(text)+style.GetHorizontalFrameSize() > limit {
		style = style.Width(limit - style.GetHorizontalBorderSize())
	}
	return style.Render(text)
}

// =============================================================================
// INPUT
// =============================================================================

func (m Model) renderInput() string {
	return m.theme.InputContainer.Width(m.width).Render(m.input.View())
}

func (m Model) renderHelp() string {
	return m.theme.Hint.Render(m.help.View(m.keys))
}

// =============================================================================
// OVERLAYS
// =============================================================================

func (m Model) renderPrompt() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.ModalTitle.Render("Download "+m.pending),
		"",
		m.dest.View(),
		"",
		m.theme.Hint.Render("Enter to save, Esc to cancel"),
	)
	return m.theme.Modal.Render(body)
}

func (m Model) renderPicker() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.theme.ModalTitle.Render("Send a file"),
		m.theme.Hint.Render(m.picker.CurrentDirectory),
		"",
		m.picker.View(),
		"",
		m.theme.Hint.Render("Enter to send, Esc to cancel"),
	)
	return m.theme.Modal.Render(body)
}

func (m Model) renderModal() string {
	style := m.theme.Modal
	text := m.theme.SuccessText.Render(m.modalText)
	if m.modalFailed {
		style = m.theme.ModalError
		text = m.theme.ErrorText.Render(m.modalText)
	}
	limit := m.width - 8
	if limit < 20 {
		limit = 20
	}
	if lipgloss.Width(text) > limit {
		text = lipgloss.NewStyle().Width(limit).Render(text)
	}
	body := lipgloss.JoinVertical(lipgloss.Center,
		text,
		"",
		m.theme.ModalButton.Render("OK"),
	)
	return style.Render(body)
}
