package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// tickingClock makes created_at strictly increasing across inserts.
func tickingClock(s *Store) {
	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	s.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func ptr(s string) *string { return &s }

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file not created")
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.CreateItem(NewItem{Text: "persist me"}); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	s.Close()

	s2, err := New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	it, err := s2.GetItem(1)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if it.Text != "persist me" {
		t.Errorf("expected text to survive reopen, got %q", it.Text)
	}
}

func TestCreateItem(t *testing.T) {
	s := testStore(t)

	it, err := s.CreateItem(NewItem{
		Text:            "  Build a shift roster API  ",
		Priority:        "alta",
		AICategory:      "software",
		SuggestedSkills: []string{"core/classify-idea.md"},
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	if it.ID != 1 {
		t.Errorf("expected ID 1, got %d", it.ID)
	}
	if it.Text != "Build a shift roster API" {
		t.Errorf("expected trimmed text, got %q", it.Text)
	}
	if it.Priority != PriorityHigh {
		t.Errorf("expected legacy 'alta' to normalize to high, got %s", it.Priority)
	}
	if it.Stage != StageCaptured {
		t.Errorf("expected captured stage, got %s", it.Stage)
	}
	if it.Status != StatusNone {
		t.Errorf("expected unset status, got %s", it.Status)
	}
	if got := it.Skills(); len(got) != 1 || got[0] != "core/classify-idea.md" {
		t.Errorf("expected skills round trip, got %v", got)
	}
}

func TestCreateItem_RequiresText(t *testing.T) {
	s := testStore(t)
	if _, err := s.CreateItem(NewItem{Text: "   "}); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestGetItem_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetItem(42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestItemsInStatus_PriorityThenFIFO(t *testing.T) {
	s := testStore(t)
	tickingClock(s)

	low, _ := s.CreateItem(NewItem{Text: "low", Priority: "low"})
	medOld, _ := s.CreateItem(NewItem{Text: "medium old", Priority: "medium"})
	high, _ := s.CreateItem(NewItem{Text: "high", Priority: "high"})
	medNew, _ := s.CreateItem(NewItem{Text: "medium new", Priority: "media"})

	for _, it := range []*Item{low, medOld, high, medNew} {
		if err := s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"}); err != nil {
			t.Fatalf("Transition: %v", err)
		}
	}

	items, err := s.ItemsInStatus(StatusQueuedSoftware)
	if err != nil {
		t.Fatalf("ItemsInStatus: %v", err)
	}
	want := []int64{high.ID, medOld.ID, medNew.ID, low.ID}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, id := range want {
		if items[i].ID != id {
			t.Errorf("position %d: expected item %d, got %d", i, id, items[i].ID)
		}
	}
}

func TestRoutableItems_OnlyOrganizedAndUnset(t *testing.T) {
	s := testStore(t)

	captured, _ := s.CreateItem(NewItem{Text: "still captured"})
	organized, _ := s.CreateItem(NewItem{Text: "ready", Stage: StageOrganized})
	routed, _ := s.CreateItem(NewItem{Text: "already routed", Stage: StageOrganized})
	s.Transition(routed.ID, StatusNone, Change{To: StatusQueuedConsulting, By: "PM"})

	items, err := s.RoutableItems()
	if err != nil {
		t.Fatalf("RoutableItems: %v", err)
	}
	if len(items) != 1 || items[0].ID != organized.ID {
		t.Fatalf("expected only item %d, got %+v", organized.ID, items)
	}

	if err := s.Organize(captured.ID); err != nil {
		t.Fatalf("Organize: %v", err)
	}
	items, _ = s.RoutableItems()
	if len(items) != 2 {
		t.Errorf("expected organized item to become routable, got %d items", len(items))
	}
}

func TestTransition_CompareAndSet(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "cas"})

	if err := s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"}); err != nil {
		t.Fatalf("first transition: %v", err)
	}

	err := s.Transition(it.ID, StatusNone, Change{To: StatusQueuedConsulting, By: "PM"})
	if !errors.Is(err, ErrStaleState) {
		t.Fatalf("expected ErrStaleState, got %v", err)
	}

	got, _ := s.GetItem(it.ID)
	if got.Status != StatusQueuedSoftware {
		t.Errorf("stale transition must not write, status is %s", got.Status)
	}
}

func TestTransition_UnknownItem(t *testing.T) {
	s := testStore(t)
	err := s.Transition(99, StatusNone, Change{To: StatusQueuedSoftware})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransition_RejectsUnknownStatus(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "x"})
	if err := s.Transition(it.ID, StatusNone, Change{To: Status("exploded")}); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

func TestTransition_OutputAndErrorSemantics(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "payloads"})
	s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"})

	s.Transition(it.ID, StatusQueuedSoftware, Change{
		To: StatusInProgress, Output: ptr("first"), Error: ptr("BUILD REJECTED: boom"), By: "DEV",
	})
	// Nil pointers keep both columns.
	s.Transition(it.ID, StatusInProgress, Change{To: StatusDeveloped, By: "DEV"})

	got, _ := s.GetItem(it.ID)
	if got.Output != "first" {
		t.Errorf("expected output kept, got %q", got.Output)
	}
	if got.Error != "BUILD REJECTED: boom" {
		t.Errorf("expected error kept, got %q", got.Error)
	}
	if got.ExecutedBy != "DEV" {
		t.Errorf("expected executed_by DEV, got %q", got.ExecutedBy)
	}
	if got.ExecutedAt.IsZero() {
		t.Error("expected executed_at to be stamped")
	}
	if got.Stage != StageDistilled {
		t.Errorf("expected developed to raise stage to distilled, got %s", got.Stage)
	}
}

func TestTransition_CompletedForcesExpressedProject(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "finish", Stage: StageOrganized})
	s.Transition(it.ID, StatusNone, Change{To: StatusQueuedConsulting, By: "PM"})
	s.Transition(it.ID, StatusQueuedConsulting, Change{To: StatusInProgress, By: "CONSULTING-gtd"})
	s.Transition(it.ID, StatusInProgress, Change{To: StatusReviewing, By: "CONSULTING-gtd"})

	if err := s.Transition(it.ID, StatusReviewing, Change{To: StatusCompleted, Error: ptr(""), By: "REVIEWER"}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	got, _ := s.GetItem(it.ID)
	if got.Stage != StageExpressed {
		t.Errorf("expected expressed, got %s", got.Stage)
	}
	if !got.IsProject {
		t.Error("expected is_project after completion")
	}
	if got.Error != "" {
		t.Errorf("expected error cleared, got %q", got.Error)
	}
}

func TestTransition_BackToUnset(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "reset"})
	s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"})
	s.Transition(it.ID, StatusQueuedSoftware, Change{To: StatusBlocked, Error: ptr("BLOCKED"), By: "DEV"})

	if err := s.Transition(it.ID, StatusBlocked, Change{To: StatusNone, Error: ptr(""), By: "MANUAL"}); err != nil {
		t.Fatalf("reset: %v", err)
	}
	items, _ := s.ItemsInStatus(StatusNone)
	if len(items) != 1 || items[0].ID != it.ID {
		t.Fatalf("expected reset item to be unset, got %+v", items)
	}
}

func TestFailedNotExpressed(t *testing.T) {
	s := testStore(t)
	tickingClock(s)

	a, _ := s.CreateItem(NewItem{Text: "a"})
	b, _ := s.CreateItem(NewItem{Text: "b"})
	for _, it := range []*Item{b, a} {
		s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"})
		s.Transition(it.ID, StatusQueuedSoftware, Change{To: StatusInProgress, By: "DEV"})
		s.Transition(it.ID, StatusInProgress, Change{To: StatusFailed, Error: ptr("no model"), By: "DEV"})
	}

	items, err := s.FailedNotExpressed()
	if err != nil {
		t.Fatalf("FailedNotExpressed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 failed items, got %d", len(items))
	}
	if items[0].ID != b.ID {
		t.Errorf("expected oldest execution first (item %d), got %d", b.ID, items[0].ID)
	}
}

func TestStats(t *testing.T) {
	s := testStore(t)

	s.CreateItem(NewItem{Text: "pending", Stage: StageOrganized})
	q, _ := s.CreateItem(NewItem{Text: "queued"})
	s.Transition(q.ID, StatusNone, Change{To: StatusQueuedConsulting, By: "PM"})
	d, _ := s.CreateItem(NewItem{Text: "developed"})
	s.Transition(d.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"})
	s.Transition(d.ID, StatusQueuedSoftware, Change{To: StatusInProgress, By: "DEV"})
	s.Transition(d.ID, StatusInProgress, Change{To: StatusDeveloped, By: "DEV"})

	st, err := s.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Pending != 1 || st.Queued != 1 || st.Building != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.Completed != 0 || st.Failed != 0 || st.Blocked != 0 {
		t.Errorf("unexpected terminal counts: %+v", st)
	}
}

func TestUpsertProject(t *testing.T) {
	s := testStore(t)
	area := int64(7)

	p := Project{ID: "3", Name: "Roster", Description: "desc", URL: "http://localhost:5103",
		Icon: "code", Status: "development", Tech: "Python,flask", RelatedAreaID: &area}
	if err := s.UpsertProject(p); err != nil {
		t.Fatalf("UpsertProject: %v", err)
	}
	p.Status = "completed"
	if err := s.UpsertProject(p); err != nil {
		t.Fatalf("UpsertProject again: %v", err)
	}

	got, err := s.GetProject("3")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Status != "completed" || got.URL != "http://localhost:5103" {
		t.Errorf("unexpected project: %+v", got)
	}
	if got.RelatedAreaID == nil || *got.RelatedAreaID != 7 {
		t.Errorf("expected related area 7, got %v", got.RelatedAreaID)
	}

	all, _ := s.ListProjects()
	if len(all) != 1 {
		t.Errorf("expected a single project row, got %d", len(all))
	}
}

func TestContextItems_UpsertByKey(t *testing.T) {
	s := testStore(t)
	tickingClock(s)

	s.SaveContextItem("output-gtd-1", "v1", "gtd")
	s.SaveContextItem("glossary", "terms", "")
	s.SaveContextItem("output-gtd-1", "v2", "gtd")

	items, err := s.RecentContextItems(20)
	if err != nil {
		t.Fatalf("RecentContextItems: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].Key != "output-gtd-1" || items[0].Content != "v2" {
		t.Errorf("expected updated item first, got %+v", items[0])
	}
	if items[1].Category != "resource" {
		t.Errorf("expected default category, got %q", items[1].Category)
	}
}

func TestEvents_RecordTransitions(t *testing.T) {
	s := testStore(t)
	it, _ := s.CreateItem(NewItem{Text: "audit"})
	s.Transition(it.ID, StatusNone, Change{To: StatusQueuedSoftware, By: "PM"})

	events, err := s.GetEvents(it.ID)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected created + transition events, got %d", len(events))
	}
	if events[1].Agent != "PM" || events[1].Content != "unset -> queued_software" {
		t.Errorf("unexpected transition event: %+v", events[1])
	}
}
