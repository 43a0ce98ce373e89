package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/imkarma/ideaflow/internal/agent"
	agentctx "github.com/imkarma/ideaflow/internal/context"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

const reviewMaxTokens = 2048

// reviewStage is what differs between the code and document reviewers.
type reviewStage struct {
	input    store.Status
	reject   store.Status
	marker   pipeline.Marker
	noAnswer string
	title    string // heading of the appended review section
	prompt   func(*store.Item) agentctx.Prompt
	approved func(context.Context, *store.Item) // optional hook after completion
}

// reviewer is the batch review loop shared by CodeReview and DocReview.
type reviewer struct {
	base
	chain Generator
	stage reviewStage
}

// RunCycle reviews every item waiting in the stage's input state and counts
// the items judged. An item failed for lack of an answer is not counted. An
// error or panic on one item leaves it untouched and does not stop the batch.
func (r *reviewer) RunCycle(ctx context.Context) (int, error) {
	items, err := r.store.ItemsInStatus(r.stage.input)
	if err != nil {
		return 0, err
	}

	var errs []error
	reviewed := 0
	for i := range items {
		it := &items[i]
		judged, err := r.safeReview(ctx, it)
		if err != nil {
			if err = r.skipStale(ctx, it, err); err != nil {
				r.log(ctx).Error("review failed", "item", it.ID, "err", err)
				errs = append(errs, err)
			}
			continue
		}
		if judged {
			reviewed++
		}
	}
	return reviewed, errors.Join(errs...)
}

// safeReview turns a panic while reviewing one item into an error.
func (r *reviewer) safeReview(ctx context.Context, it *store.Item) (judged bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			judged, err = false, fmt.Errorf("item %d: panic: %v", it.ID, rec)
		}
	}()
	return r.review(ctx, it)
}

// review judges one item. It reports whether a verdict was applied.
func (r *reviewer) review(ctx context.Context, it *store.Item) (bool, error) {
	log := r.log(ctx).With("item", it.ID)
	log.Info("reviewing", "text", short(it.Text))

	p := r.stage.prompt(it)
	text, backend := r.chain.Generate(ctx, agent.Request{
		ItemID:    it.ID,
		Prompt:    p.User,
		System:    p.System,
		MaxTokens: reviewMaxTokens,
	})
	if strings.TrimSpace(text) == "" {
		return false, r.fail(ctx, it, r.stage.noAnswer, "")
	}

	if !agent.ParseReview(text).Approved {
		return true, r.reject(ctx, it, r.stage.reject, r.stage.marker, text)
	}

	output := fmt.Sprintf("%s\n\n---\n### %s (%s, %s)\n%s", it.Output, r.stage.title, r.id, backend, text)
	if err := r.apply(it, store.Change{To: store.StatusCompleted, Output: &output, Error: ptr("")}); err != nil {
		return false, err
	}
	if r.stage.approved != nil {
		r.stage.approved(ctx, it)
	}
	log.Info("approved", "backend", backend)
	r.notify(ctx, "*%s approved* #%d `%s`\nMoved to projects.", r.id, it.ID, short(it.Text))
	return true, nil
}

// CodeReview reviews built code.
type CodeReview struct {
	reviewer
}

// NewCodeReview creates the QA worker.
func NewCodeReview(d Deps) *CodeReview {
	w := &CodeReview{reviewer{base: newBase(pipeline.WorkerQA, d), chain: d.Chain}}
	w.stage = reviewStage{
		input:    store.StatusBuilt,
		reject:   store.StatusQueuedSoftware,
		marker:   pipeline.CodeReviewRejected,
		noAnswer: "QA: no AI model responded. Review could not be performed.",
		title:    "Code Review",
		prompt:   w.prompts.CodeReview,
		approved: w.completeProject,
	}
	return w
}

// completeProject marks the item's project completed, registering it when
// the build did not.
func (w *CodeReview) completeProject(ctx context.Context, it *store.Item) {
	id := strconv.FormatInt(it.ID, 10)
	p, err := w.store.GetProject(id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			w.log(ctx).Error("load project failed", "item", it.ID, "err", err)
			return
		}
		p = &store.Project{
			ID:            id,
			Name:          it.Title(),
			Description:   it.Text,
			Icon:          ProjectIcon,
			Tech:          "Python",
			RelatedAreaID: it.RelatedAreaID,
		}
	}
	p.Status = "completed"
	if err := w.store.UpsertProject(*p); err != nil {
		w.log(ctx).Error("complete project failed", "item", it.ID, "err", err)
	}
}

// DocReview reviews consulting documents.
type DocReview struct {
	reviewer
}

// NewDocReview creates the REVIEWER worker.
func NewDocReview(d Deps) *DocReview {
	w := &DocReview{reviewer{base: newBase(pipeline.WorkerReviewer, d), chain: d.Chain}}
	w.stage = reviewStage{
		input:    store.StatusReviewing,
		reject:   store.StatusQueuedConsulting,
		marker:   pipeline.DocReviewRejected,
		noAnswer: "REVIEWER: no AI model responded. Review could not be performed.",
		title:    "Quality Review",
		prompt:   w.prompts.DocReview,
	}
	return w
}
