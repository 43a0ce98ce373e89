package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/ideaflow/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrCyan      = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)
	errorStyle  = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)

	laneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1)

	laneSelectedStyle = laneStyle.BorderForeground(clrHighlight)

	popupStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrHighlight).
			Padding(1, 2).
			Width(60)

	footerKeyStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	footerDescStyle = lipgloss.NewStyle().Foreground(clrSubtle)
)

func statusColor(s store.Status) lipgloss.AdaptiveColor {
	switch s {
	case store.StatusCompleted:
		return clrGreen
	case store.StatusFailed, store.StatusBlocked:
		return clrRed
	case store.StatusInProgress:
		return clrYellow
	case store.StatusQueuedSoftware, store.StatusQueuedConsulting:
		return clrBlue
	}
	return clrCyan
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.screen {
	case screenBoard:
		content = m.viewBoard()
	case screenDetail:
		content = m.viewDetail()
	}

	if m.popup != popupNone {
		content += "\n" + m.viewPopup()
	}
	return content
}

func (m Model) viewBoard() string {
	var b strings.Builder

	s := m.stats
	header := titleStyle.Render("ideaflow pipeline")
	header += dimStyle.Render(fmt.Sprintf("  %d items | queued %d  working %d  building %d  review %d  done %d  failed %d  blocked %d",
		len(m.items), s.Queued, s.InProgress, s.Building, s.InReview, s.Completed, s.Failed, s.Blocked))
	b.WriteString(header + "\n\n")

	laneWidth := 24
	if m.width > 0 {
		laneWidth = m.width/len(lanes) - 4
		if laneWidth < 16 {
			laneWidth = 16
		}
	}
	rows := 10
	if m.height > 0 {
		rows = m.height - 10
		if rows < 3 {
			rows = 3
		}
	}

	rendered := make([]string, len(lanes))
	for i, l := range lanes {
		rendered[i] = m.renderLane(i, l, laneWidth, rows)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, rendered...))
	b.WriteString("\n")

	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(footer("←→↑↓", "move", "enter", "open", "c", "capture", "x", "reset", "R", "refresh", "q", "quit"))
	return b.String()
}

func (m Model) renderLane(idx int, l lane, width, rows int) string {
	items := m.columns[idx]
	var c strings.Builder
	c.WriteString(lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%s (%d)", l.label, len(items))) + "\n")

	// Scroll so the cursor stays visible in the selected lane.
	start := 0
	if idx == m.cursorCol && m.cursorRow >= rows {
		start = m.cursorRow - rows + 1
	}
	for r := start; r < len(items) && r < start+rows; r++ {
		it := items[r]
		id := lipgloss.NewStyle().Foreground(statusColor(it.Status)).Render(fmt.Sprintf("#%d", it.ID))
		line := id + " " + truncate(it.Title(), width-len(fmt.Sprintf("#%d ", it.ID)))
		if idx == m.cursorCol && r == m.cursorRow {
			line = lipgloss.NewStyle().Reverse(true).Render(fmt.Sprintf("#%d ", it.ID) +
				truncate(it.Title(), width-len(fmt.Sprintf("#%d ", it.ID))))
		}
		c.WriteString(line + "\n")
	}
	if len(items) == 0 {
		c.WriteString(dimStyle.Render("empty") + "\n")
	}

	style := laneStyle
	if idx == m.cursorCol {
		style = laneSelectedStyle
	}
	return style.Width(width).Render(strings.TrimRight(c.String(), "\n"))
}

func (m Model) viewDetail() string {
	if m.detail == nil {
		return dimStyle.Render("Loading...")
	}
	var b strings.Builder
	it := m.detail
	b.WriteString(titleStyle.Render(fmt.Sprintf("#%d %s", it.ID, truncate(it.Title(), 60))))
	b.WriteString("  ")
	b.WriteString(lipgloss.NewStyle().Foreground(statusColor(it.Status)).Render(it.Status.String()))
	b.WriteString(dimStyle.Render(fmt.Sprintf("  %3.f%%", m.viewport.ScrollPercent()*100)))
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(footer("↑↓", "scroll", "x", "reset", "R", "reload", "esc", "back"))
	return b.String()
}

// renderDetail builds the scrollable body of the detail screen.
func renderDetail(it *store.Item, events []store.Event, width int) string {
	var b strings.Builder
	field := func(k, v string) {
		if v != "" {
			b.WriteString(subtleStyle.Render(fmt.Sprintf("%-12s", k)) + v + "\n")
		}
	}
	field("Priority", string(it.Priority))
	field("Stage", string(it.Stage))
	field("Type", it.AIType)
	field("Category", it.AICategory)
	field("Agent", it.SuggestedAgent)
	field("Executed by", it.ExecutedBy)
	if !it.ExecutedAt.IsZero() {
		field("Executed at", it.ExecutedAt.Format("2006-01-02 15:04:05"))
	}
	b.WriteString("\n" + lipgloss.NewStyle().Width(width).Render(it.Text) + "\n")

	if strings.TrimSpace(it.Error) != "" {
		b.WriteString("\n" + errorStyle.Render("ERRORS") + "\n")
		b.WriteString(lipgloss.NewStyle().Foreground(clrRed).Width(width).Render(it.Error) + "\n")
	}
	if strings.TrimSpace(it.Output) != "" {
		b.WriteString("\n" + titleStyle.Render("OUTPUT") + "\n")
		b.WriteString(highlightOutput(it.Output) + "\n")
	}
	if len(events) > 0 {
		b.WriteString("\n" + titleStyle.Render("EVENTS") + "\n")
		for _, e := range events {
			who := e.Agent
			if who == "" {
				who = "-"
			}
			b.WriteString(dimStyle.Render(e.Timestamp.Format("01-02 15:04:05")) + " " +
				fmt.Sprintf("%-10s %-10s ", who, e.Type) + truncate(firstLine(e.Content), width-40) + "\n")
		}
	}
	return b.String()
}

var fenceRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+-]*)[^\\n]*\\n(.*?)```")

// highlightOutput syntax-highlights fenced code blocks and leaves the rest of
// the text as is.
func highlightOutput(output string) string {
	return fenceRe.ReplaceAllStringFunc(output, func(block string) string {
		sub := fenceRe.FindStringSubmatch(block)
		lang, code := sub[1], sub[2]
		if lang == "" {
			return dimStyle.Render(code)
		}
		var buf strings.Builder
		if err := quick.Highlight(&buf, code, lang, "terminal256", "monokai"); err != nil {
			return dimStyle.Render(code)
		}
		return buf.String()
	})
}

func (m Model) viewPopup() string {
	switch m.popup {
	case popupCapture:
		return popupStyle.Render(titleStyle.Render("Capture idea") + "\n\n" +
			m.captureInput.View() + "\n\n" +
			dimStyle.Render("enter save  esc cancel"))
	case popupConfirmReset:
		return popupStyle.Render(titleStyle.Render(fmt.Sprintf("Reset #%d?", m.popupItemID)) + "\n\n" +
			"The error history is cleared and the item goes back to routing.\n\n" +
			dimStyle.Render("y confirm  n cancel"))
	}
	return ""
}

func (m Model) statusLine() string {
	if m.statusMsg == "" {
		return ""
	}
	lower := strings.ToLower(m.statusMsg)
	if strings.HasPrefix(lower, "failed") || strings.HasPrefix(lower, "error") || strings.Contains(lower, "failed:") {
		return errorStyle.Render("  " + m.statusMsg)
	}
	return statusStyle.Render("  " + m.statusMsg)
}

func footer(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, footerKeyStyle.Render(pairs[i])+footerDescStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}

func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
