// Package worker runs the pipeline stages. Each stage worker polls the store
// for items in its input state and moves them along the edges the pipeline
// table allows; the Pool runs every worker on its own interval.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/imkarma/ideaflow/internal/agent"
	"github.com/imkarma/ideaflow/internal/build"
	agentctx "github.com/imkarma/ideaflow/internal/context"
	"github.com/imkarma/ideaflow/internal/notify"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/skills"
	"github.com/imkarma/ideaflow/internal/store"
)

// Worker is one pipeline stage run on a fixed interval. RunCycle returns how
// many items it processed; zero eligible items is (0, nil) with no writes.
type Worker interface {
	Name() string
	Interval() time.Duration
	RunCycle(ctx context.Context) (int, error)
}

// Store is the part of the item store the stage workers use.
type Store interface {
	pipeline.Transitioner
	agentctx.Source
	ItemsInStatus(status store.Status) ([]store.Item, error)
	RoutableItems() ([]store.Item, error)
	FailedNotExpressed() ([]store.Item, error)
	SetSuggestedAgent(id int64, agent string) error
	UpsertProject(p store.Project) error
	GetProject(id string) (*store.Project, error)
	SaveContextItem(key, content, category string) error
	AddEvent(itemID int64, agent, eventType, content string)
}

// Generator returns the first non-empty answer to a request and the backend
// that produced it. agent.Chain implements it.
type Generator interface {
	Generate(ctx context.Context, req agent.Request) (string, string)
}

// Deps holds what the stage workers are built from. Each worker uses the
// subset it needs.
type Deps struct {
	Store     Store
	Chain     Generator
	Skills    *skills.Loader
	Validator build.Validator
	Notifier  notify.Notifier
	Logger    *slog.Logger
	Interval  time.Duration
}

// Selectors are the worker names accepted by New, in pipeline order.
var Selectors = []string{"pm", "dev", "builder", "qa", "consulting", "reviewer"}

// New creates the stage worker for a selector.
func New(selector string, d Deps) (Worker, error) {
	switch selector {
	case "pm":
		return NewRouter(d), nil
	case "dev":
		return NewGenerate(d), nil
	case "builder":
		return NewBuild(d), nil
	case "qa":
		return NewCodeReview(d), nil
	case "consulting":
		return NewDocGenerate(d), nil
	case "reviewer":
		return NewDocReview(d), nil
	}
	return nil, fmt.Errorf("unknown worker %q (valid: %s)", selector, strings.Join(Selectors, ", "))
}

// base carries the plumbing shared by every stage worker.
type base struct {
	id       pipeline.Worker
	interval time.Duration
	store    Store
	prompts  *agentctx.Builder
	notifier notify.Notifier
	logger   *slog.Logger
}

func newBase(id pipeline.Worker, d Deps) base {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	n := d.Notifier
	if n == nil {
		n = notify.Nop{}
	}
	loader := d.Skills
	if loader == nil {
		loader = skills.NewLoader("skills")
	}
	interval := d.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	return base{
		id:       id,
		interval: interval,
		store:    d.Store,
		prompts:  agentctx.New(d.Store, loader),
		notifier: n,
		logger:   logger.With("worker", string(id)),
	}
}

func (b *base) Name() string            { return string(b.id) }
func (b *base) Interval() time.Duration { return b.interval }

// log returns the cycle logger the pool put in ctx, or the worker's own.
func (b *base) log(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return b.logger
}

// apply moves it along an edge of the worker's table.
func (b *base) apply(it *store.Item, c store.Change) error {
	return pipeline.Apply(b.store, b.id, it, c)
}

// first returns the head of the queue for a single-item stage.
func (b *base) first(status store.Status) (*store.Item, error) {
	items, err := b.store.ItemsInStatus(status)
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// fail moves it to failed, appending msg to its error history.
func (b *base) fail(ctx context.Context, it *store.Item, msg, by string) error {
	errText := pipeline.AppendError(it.Error, msg)
	if err := b.apply(it, store.Change{To: store.StatusFailed, Error: &errText, By: by}); err != nil {
		return err
	}
	b.log(ctx).Warn("item failed", "item", it.ID, "reason", msg)
	b.notify(ctx, "*%s: failed* #%d `%s`\n%s", b.id, it.ID, short(it.Text), msg)
	return nil
}

// reject sends it back to queue with a marker-tagged entry appended.
func (b *base) reject(ctx context.Context, it *store.Item, queue store.Status, m pipeline.Marker, detail string) error {
	errText := pipeline.AppendError(it.Error, m.Tag(detail))
	if err := b.apply(it, store.Change{To: queue, Error: &errText}); err != nil {
		return err
	}
	b.store.AddEvent(it.ID, string(b.id), "rejected", firstLine(detail))
	b.log(ctx).Warn("item rejected", "item", it.ID, "to", queue, "rejections", m.Count(errText))
	b.notify(ctx, "*%s: rejected* #%d `%s`\nBack to %s.", b.id, it.ID, short(it.Text), queue)
	return nil
}

// block moves it to blocked when m has reached max in its history. It
// reports whether the item was blocked.
func (b *base) block(ctx context.Context, it *store.Item, m pipeline.Marker, max int, what string) (bool, error) {
	n := m.Count(it.Error)
	if n < max {
		return false, nil
	}
	msg := fmt.Sprintf("BLOCKED after %d %s. Requires manual review.", n, what)
	errText := pipeline.AppendError(it.Error, msg)
	if err := b.apply(it, store.Change{To: store.StatusBlocked, Error: &errText}); err != nil {
		return true, err
	}
	b.log(ctx).Warn("item blocked", "item", it.ID, "count", n)
	b.notify(ctx, "*%s: blocked* #%d `%s`\n%s", b.id, it.ID, short(it.Text), msg)
	return true, nil
}

func (b *base) notify(ctx context.Context, format string, args ...any) {
	b.notifier.Notify(ctx, fmt.Sprintf(format, args...))
}

// skipStale logs and swallows a lost race on an item.
func (b *base) skipStale(ctx context.Context, it *store.Item, err error) error {
	if errors.Is(err, store.ErrStaleState) {
		b.log(ctx).Info("item moved by another writer, skipping", "item", it.ID)
		return nil
	}
	return err
}

func short(text string) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) > 50 {
		return string(r[:50])
	}
	return string(r)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func ptr(s string) *string { return &s }
