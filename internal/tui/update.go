package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/ideaflow/internal/store"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.popup != popupNone {
			return m.handlePopupKey(msg)
		}
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vw := m.width - 4
		vh := m.height - 6
		if vw < 20 {
			vw = 20
		}
		if vh < 6 {
			vh = 6
		}
		m.viewport.Width = vw
		m.viewport.Height = vh
		if m.detail != nil {
			m.viewport.SetContent(renderDetail(m.detail, m.events, vw))
		}
		return m, nil

	case itemsLoadedMsg:
		m.refreshing = false
		if msg.err != nil {
			m.setStatus("Failed to load items: " + msg.err.Error())
			return m, nil
		}
		m.items = msg.items
		m.stats = msg.stats
		m.rebuildColumns()
		return m, nil

	case detailLoadedMsg:
		if msg.err != nil {
			m.setStatus("Error loading item: " + msg.err.Error())
			return m, nil
		}
		m.detail = msg.item
		m.events = msg.events
		m.viewport.SetContent(renderDetail(m.detail, m.events, m.viewport.Width))
		if m.screen != screenDetail {
			m.viewport.GotoTop()
		}
		m.screen = screenDetail
		return m, nil

	case resetDoneMsg:
		if msg.err != nil {
			m.setStatus("Reset failed: " + msg.err.Error())
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Reset #%d: back to routing", msg.id))
		cmds := []tea.Cmd{m.loadItems()}
		if m.screen == screenDetail && m.detail != nil && m.detail.ID == msg.id {
			cmds = append(cmds, m.loadDetail(msg.id))
		}
		return m, tea.Batch(cmds...)

	case capturedMsg:
		if msg.err != nil {
			m.setStatus("Error: " + msg.err.Error())
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Captured #%d", msg.item.ID))
		return m, m.loadItems()

	case tickMsg:
		cmds := []tea.Cmd{tickCmd()}
		if m.statusMsg != "" && time.Since(m.statusTime) > 5*time.Second {
			m.statusMsg = ""
		}
		if !m.refreshing {
			m.refreshing = true
			cmds = append(cmds, m.loadItems())
		}
		return m, tea.Batch(cmds...)
	}

	if m.screen == screenDetail {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "q":
		if m.screen == screenBoard {
			m.quitting = true
			return m, tea.Quit
		}
		return m.goBack()
	case "esc", "backspace":
		return m.goBack()
	}

	switch m.screen {
	case screenBoard:
		return m.handleBoardKey(msg)
	case screenDetail:
		return m.handleDetailKey(msg)
	}
	return m, nil
}

func (m Model) goBack() (tea.Model, tea.Cmd) {
	if m.screen == screenDetail {
		m.screen = screenBoard
		m.detail = nil
		m.events = nil
		return m, m.loadItems()
	}
	return m, nil
}

func (m Model) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.cursorRow++
		m.clampCursor()
	case "k", "up":
		m.cursorRow--
		m.clampCursor()
	case "h", "left":
		m.cursorCol--
		m.clampCursor()
	case "l", "right":
		m.cursorCol++
		m.clampCursor()

	case "enter", " ":
		if it := m.selectedItem(); it != nil {
			return m, m.loadDetail(it.ID)
		}

	case "x":
		if it := m.selectedItem(); it != nil {
			return m.confirmReset(it.ID, it.Status)
		}

	case "c", "ctrl+n":
		m.popup = popupCapture
		m.captureInput.Reset()
		m.captureInput.Focus()
		return m, textinput.Blink

	case "R":
		return m, m.loadItems()
	}
	return m, nil
}

func (m Model) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.detail == nil {
		m.screen = screenBoard
		return m, nil
	}
	switch msg.String() {
	case "x":
		return m.confirmReset(m.detail.ID, m.detail.Status)
	case "R":
		return m, m.loadDetail(m.detail.ID)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) confirmReset(id int64, status store.Status) (tea.Model, tea.Cmd) {
	if !resettable(status) {
		m.setStatus(fmt.Sprintf("#%d is %s: only failed or blocked items can be reset", id, status))
		return m, nil
	}
	m.popupItemID = id
	m.popup = popupConfirmReset
	return m, nil
}

func (m Model) handlePopupKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.popup {
	case popupCapture:
		return m.handleCapturePopup(msg)
	case popupConfirmReset:
		return m.handleConfirmResetPopup(msg)
	}
	return m, nil
}

func (m Model) handleCapturePopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.popup = popupNone
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.captureInput.Value())
		if text == "" {
			m.setStatus("Text cannot be empty")
			return m, nil
		}
		m.popup = popupNone
		return m, m.doCapture(text)
	}

	var cmd tea.Cmd
	m.captureInput, cmd = m.captureInput.Update(msg)
	return m, cmd
}

func (m Model) handleConfirmResetPopup(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "enter":
		m.popup = popupNone
		return m, m.doReset(m.popupItemID)
	case "n", "esc":
		m.popup = popupNone
	}
	return m, nil
}
