package tui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// loaded runs the model's item load synchronously.
func loaded(t *testing.T, m Model) Model {
	t.Helper()
	next, _ := m.Update(m.loadItems()())
	return next.(Model)
}

func TestRebuildColumns_GroupsByLane(t *testing.T) {
	s := testStore(t)
	a, _ := s.CreateItem(store.NewItem{Text: "inbox"})
	b, _ := s.CreateItem(store.NewItem{Text: "queued"})
	c, _ := s.CreateItem(store.NewItem{Text: "stuck"})
	_ = a
	require.NoError(t, s.Transition(b.ID, store.StatusNone, store.Change{To: store.StatusQueuedConsulting}))
	require.NoError(t, s.Transition(c.ID, store.StatusNone, store.Change{To: store.StatusBlocked}))

	m := loaded(t, New(s))
	assert.Len(t, m.columns[0], 1)
	assert.Len(t, m.columns[1], 1)
	assert.Len(t, m.columns[len(lanes)-1], 1)
	assert.Equal(t, 3, len(m.items))
}

func TestBoardNavigationAndReset(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(store.NewItem{Text: "stuck item"})
	errText := "BLOCKED after 3 build failures. Requires manual review."
	require.NoError(t, s.Transition(it.ID, store.StatusNone, store.Change{To: store.StatusBlocked, Error: &errText}))

	m := loaded(t, New(s))
	for i := 0; i < len(lanes); i++ {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRight})
		m = next.(Model)
	}
	require.Equal(t, len(lanes)-1, m.cursorCol)
	require.NotNil(t, m.selectedItem())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	require.Equal(t, popupConfirmReset, m.popup)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	m = next.(Model)
	require.NotNil(t, cmd)
	msg := cmd()
	done, ok := msg.(resetDoneMsg)
	require.True(t, ok)
	require.NoError(t, done.err)

	got, err := s.GetItem(it.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusNone, got.Status)
	assert.Empty(t, got.Error)
}

func TestConfirmReset_RefusesActiveItems(t *testing.T) {
	s := testStore(t)
	_, err := s.CreateItem(store.NewItem{Text: "fresh"})
	require.NoError(t, err)

	m := loaded(t, New(s))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	assert.Equal(t, popupNone, m.popup)
	assert.Contains(t, m.statusMsg, "only failed or blocked")
}

func TestCapturePopup(t *testing.T) {
	s := testStore(t)
	m := loaded(t, New(s))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	m = next.(Model)
	require.Equal(t, popupCapture, m.popup)
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("roster report")})
	m = next.(Model)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	captured, ok := cmd().(capturedMsg)
	require.True(t, ok)
	require.NoError(t, captured.err)
	assert.Equal(t, "roster report", captured.item.Text)
	assert.Equal(t, store.StageOrganized, captured.item.Stage)
}

func TestHighlightOutput(t *testing.T) {
	out := highlightOutput("**File: main.py**\n```python\nprint('hi')\n```\nafter")
	assert.NotContains(t, out, "```")
	assert.Contains(t, out, "**File: main.py**")
	assert.True(t, strings.HasSuffix(out, "after"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdefgh", 5))
	assert.Equal(t, "", truncate("abc", 0))
}
