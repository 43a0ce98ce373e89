package worker

import (
	"context"
	"strings"

	"github.com/imkarma/ideaflow/internal/agent"
	agentctx "github.com/imkarma/ideaflow/internal/context"
	"github.com/imkarma/ideaflow/internal/extract"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/store"
)

const msgNoCode = "No code could be generated with any of the models."

// Generate turns queued software items into code.
type Generate struct {
	base
	chain Generator
}

// NewGenerate creates the DEV worker.
func NewGenerate(d Deps) *Generate {
	return &Generate{base: newBase(pipeline.WorkerDev, d), chain: d.Chain}
}

// RunCycle generates code for the head of the software queue.
func (g *Generate) RunCycle(ctx context.Context) (int, error) {
	it, err := g.first(store.StatusQueuedSoftware)
	if err != nil || it == nil {
		return 0, err
	}
	log := g.log(ctx).With("item", it.ID)

	blocked, err := g.block(ctx, it, pipeline.CodeReviewRejected, pipeline.MaxCorrections, "failed corrections")
	if blocked || err != nil {
		return 0, g.skipStale(ctx, it, err)
	}

	if err := g.apply(it, store.Change{To: store.StatusInProgress}); err != nil {
		return 0, g.skipStale(ctx, it, err)
	}
	correction := agentctx.IsCorrection(it.Error)
	log.Info("generating code", "correction", correction, "text", short(it.Text))

	p := g.prompts.Generate(it)
	text, backend := g.chain.Generate(ctx, agent.Request{ItemID: it.ID, Prompt: p.User, System: p.System})
	if strings.TrimSpace(text) == "" {
		return 0, g.skipStale(ctx, it, g.fail(ctx, it, msgNoCode, ""))
	}

	section := agentctx.EngineLabel + backend + "\n\n" + agentctx.GeneratedCodeHeader + "\n\n" + FormatCode(text)
	output := section
	if prev := strings.TrimSpace(it.Output); prev != "" {
		output = prev + "\n\n---\n\n" + section
	}

	if err := g.apply(it, store.Change{To: store.StatusDeveloped, Output: &output}); err != nil {
		return 0, g.skipStale(ctx, it, err)
	}
	log.Info("code generated", "backend", backend)
	g.notify(ctx, "*Code generated* #%d `%s`\nEngine: %s. Waiting for build.", it.ID, short(it.Text), backend)
	return 1, nil
}

// FormatCode normalizes model output into labeled file blocks. Output with
// no recognizable code is kept as trimmed text.
func FormatCode(text string) string {
	if files := extract.Files(text); len(files) > 0 {
		return extract.Format(files)
	}
	return strings.TrimSpace(text)
}
