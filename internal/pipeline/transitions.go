// Package pipeline holds the state machine shared by every stage worker:
// which worker may move an item along which edge, how rejections are marked
// in the error text, and how many of them each stage tolerates.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/imkarma/ideaflow/internal/store"
)

// Worker identifies an actor allowed to move items between states.
type Worker string

const (
	WorkerPM         Worker = "PM"
	WorkerDev        Worker = "DEV"
	WorkerBuilder    Worker = "BUILDER"
	WorkerQA         Worker = "QA"
	WorkerConsulting Worker = "CONSULTING"
	WorkerReviewer   Worker = "REVIEWER"
	WorkerRecovery   Worker = "RECOVERY"
	WorkerManual     Worker = "MANUAL"
)

// ErrIllegalTransition is returned when a worker attempts an edge outside
// its table.
var ErrIllegalTransition = errors.New("illegal transition")

type edges map[store.Status][]store.Status

var table = map[Worker]edges{
	WorkerPM: {
		store.StatusNone:   {store.StatusQueuedSoftware, store.StatusQueuedConsulting},
		store.StatusFailed: {store.StatusQueuedSoftware, store.StatusQueuedConsulting},
	},
	WorkerDev: {
		store.StatusQueuedSoftware: {store.StatusInProgress, store.StatusBlocked},
		store.StatusInProgress:     {store.StatusDeveloped, store.StatusFailed},
	},
	WorkerBuilder: {
		store.StatusDeveloped: {store.StatusBuilt, store.StatusQueuedSoftware, store.StatusBlocked},
	},
	WorkerQA: {
		store.StatusBuilt: {store.StatusCompleted, store.StatusQueuedSoftware, store.StatusFailed},
	},
	WorkerConsulting: {
		store.StatusQueuedConsulting: {store.StatusInProgress, store.StatusFailed},
		store.StatusInProgress:       {store.StatusReviewing, store.StatusFailed},
	},
	WorkerReviewer: {
		store.StatusReviewing: {store.StatusCompleted, store.StatusQueuedConsulting, store.StatusFailed},
	},
	WorkerRecovery: {
		store.StatusInProgress: {store.StatusQueuedSoftware, store.StatusQueuedConsulting},
	},
	WorkerManual: {
		store.StatusBlocked: {store.StatusNone},
		store.StatusFailed:  {store.StatusNone},
	},
}

// Check reports whether w may move an item from one state to another.
func Check(w Worker, from, to store.Status) error {
	for _, allowed := range table[w][from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%s: %s -> %s: %w", w, from, to, ErrIllegalTransition)
}

// Inputs returns the states w reads from.
func Inputs(w Worker) []store.Status {
	var out []store.Status
	for _, from := range store.Statuses {
		if _, ok := table[w][from]; ok {
			out = append(out, from)
		}
	}
	return out
}

// Outputs returns every state w may write.
func Outputs(w Worker) []store.Status {
	seen := map[store.Status]bool{}
	var out []store.Status
	for _, from := range store.Statuses {
		for _, to := range table[w][from] {
			if !seen[to] {
				seen[to] = true
				out = append(out, to)
			}
		}
	}
	return out
}

// Transitioner is the store operation Apply needs.
type Transitioner interface {
	Transition(id int64, from store.Status, c store.Change) error
}

// Apply validates the edge against w's table, writes it, and mirrors the
// change onto it. c.By defaults to the worker name.
func Apply(st Transitioner, w Worker, it *store.Item, c store.Change) error {
	if err := Check(w, it.Status, c.To); err != nil {
		return fmt.Errorf("item %d: %w", it.ID, err)
	}
	if c.By == "" {
		c.By = string(w)
	}
	if err := st.Transition(it.ID, it.Status, c); err != nil {
		return err
	}
	it.Status = c.To
	it.ExecutedBy = c.By
	if c.Output != nil {
		it.Output = *c.Output
	}
	if c.Error != nil {
		it.Error = *c.Error
	}
	return nil
}

// RecoveryStore is what Recover needs from the store.
type RecoveryStore interface {
	Transitioner
	ItemsInStatus(status store.Status) ([]store.Item, error)
	AddEvent(itemID int64, agent, eventType, content string)
}

// Recover returns items left in_progress by a crashed run to the queue of
// the pipeline that claimed them. With queues given, only items bound for
// one of them are touched; the rest may belong to another live process.
// It reports how many items moved.
func Recover(st RecoveryStore, queues ...store.Status) (int, error) {
	items, err := st.ItemsInStatus(store.StatusInProgress)
	if err != nil {
		return 0, err
	}
	n := 0
	for i := range items {
		it := &items[i]
		to := store.StatusQueuedSoftware
		if strings.HasPrefix(it.ExecutedBy, string(WorkerConsulting)) {
			to = store.StatusQueuedConsulting
		}
		if len(queues) > 0 && !slices.Contains(queues, to) {
			continue
		}
		if err := Apply(st, WorkerRecovery, it, store.Change{To: to}); err != nil {
			if errors.Is(err, store.ErrStaleState) {
				continue
			}
			return n, err
		}
		st.AddEvent(it.ID, string(WorkerRecovery), "recovered", fmt.Sprintf("interrupted run returned to %s", to))
		n++
	}
	return n, nil
}

// ResetStore is what Reset needs from the store.
type ResetStore interface {
	Transitioner
	AddEvent(itemID int64, agent, eventType, content string)
}

// Reset hands a blocked or failed item back to routing with its error
// history cleared. Its output is kept.
func Reset(st ResetStore, it *store.Item) error {
	from := it.Status
	cleared := ""
	if err := Apply(st, WorkerManual, it, store.Change{To: store.StatusNone, Error: &cleared}); err != nil {
		return err
	}
	st.AddEvent(it.ID, string(WorkerManual), "reset", fmt.Sprintf("reset from %s", from))
	return nil
}
