package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

// Store is what the board reads and the few writes it makes.
type Store interface {
	pipeline.ResetStore
	ListItems(f store.ListFilter) ([]store.Item, error)
	GetItem(id int64) (*store.Item, error)
	GetEvents(itemID int64) ([]store.Event, error)
	CreateItem(n store.NewItem) (*store.Item, error)
	Stats() (store.Stats, error)
}

type screen int

const (
	screenBoard  screen = iota // lanes of items
	screenDetail               // one item: errors, output, events
)

type popup int

const (
	popupNone popup = iota
	popupCapture
	popupConfirmReset
)

// lane groups pipeline states into one board column.
type lane struct {
	label    string
	statuses []store.Status
}

var lanes = []lane{
	{"INBOX", []store.Status{store.StatusNone}},
	{"QUEUED", []store.Status{store.StatusQueuedSoftware, store.StatusQueuedConsulting}},
	{"WORKING", []store.Status{store.StatusInProgress}},
	{"BUILD / REVIEW", []store.Status{store.StatusDeveloped, store.StatusBuilt, store.StatusReviewing}},
	{"DONE", []store.Status{store.StatusCompleted}},
	{"STUCK", []store.Status{store.StatusFailed, store.StatusBlocked}},
}

const refreshEvery = 3 * time.Second

// Model is the top-level bubbletea model.
type Model struct {
	store  Store
	width  int
	height int

	screen screen
	popup  popup

	items     []store.Item
	columns   [][]store.Item
	stats     store.Stats
	cursorCol int
	cursorRow int

	detail       *store.Item
	events       []store.Event
	viewport     viewport.Model
	captureInput textinput.Model
	popupItemID  int64

	statusMsg  string
	statusTime time.Time
	refreshing bool
	quitting   bool
}

// New creates a board over s.
func New(s Store) Model {
	ti := textinput.New()
	ti.Placeholder = "Describe the idea..."
	ti.CharLimit = 500
	ti.Width = 56

	return Model{
		store:        s,
		columns:      make([][]store.Item, len(lanes)),
		viewport:     viewport.New(80, 20),
		captureInput: ti,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadItems(), tickCmd())
}

type itemsLoadedMsg struct {
	items []store.Item
	stats store.Stats
	err   error
}

type detailLoadedMsg struct {
	item   *store.Item
	events []store.Event
	err    error
}

type resetDoneMsg struct {
	id  int64
	err error
}

type capturedMsg struct {
	item *store.Item
	err  error
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) loadItems() tea.Cmd {
	return func() tea.Msg {
		items, err := m.store.ListItems(store.ListFilter{Ascending: true})
		if err != nil {
			return itemsLoadedMsg{err: err}
		}
		stats, err := m.store.Stats()
		return itemsLoadedMsg{items: items, stats: stats, err: err}
	}
}

func (m Model) loadDetail(id int64) tea.Cmd {
	return func() tea.Msg {
		it, err := m.store.GetItem(id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		events, err := m.store.GetEvents(id)
		return detailLoadedMsg{item: it, events: events, err: err}
	}
}

func (m Model) doReset(id int64) tea.Cmd {
	return func() tea.Msg {
		it, err := m.store.GetItem(id)
		if err != nil {
			return resetDoneMsg{id: id, err: err}
		}
		return resetDoneMsg{id: id, err: pipeline.Reset(m.store, it)}
	}
}

func (m Model) doCapture(text string) tea.Cmd {
	return func() tea.Msg {
		it, err := m.store.CreateItem(store.NewItem{Text: text, Stage: store.StageOrganized})
		return capturedMsg{item: it, err: err}
	}
}

func laneOf(s store.Status) int {
	for i, l := range lanes {
		for _, st := range l.statuses {
			if st == s {
				return i
			}
		}
	}
	return -1
}

func (m *Model) rebuildColumns() {
	for i := range m.columns {
		m.columns[i] = nil
	}
	for _, it := range m.items {
		if i := laneOf(it.Status); i >= 0 {
			m.columns[i] = append(m.columns[i], it)
		}
	}
	m.clampCursor()
}

func (m *Model) clampCursor() {
	if m.cursorCol < 0 {
		m.cursorCol = 0
	}
	if m.cursorCol >= len(lanes) {
		m.cursorCol = len(lanes) - 1
	}
	col := m.columns[m.cursorCol]
	if m.cursorRow >= len(col) {
		m.cursorRow = len(col) - 1
	}
	if m.cursorRow < 0 {
		m.cursorRow = 0
	}
}

func (m *Model) selectedItem() *store.Item {
	col := m.columns[m.cursorCol]
	if m.cursorRow < len(col) {
		it := col[m.cursorRow]
		return &it
	}
	return nil
}

func (m *Model) setStatus(msg string) {
	m.statusMsg = msg
	m.statusTime = time.Now()
}

func resettable(s store.Status) bool {
	return s == store.StatusFailed || s == store.StatusBlocked
}
