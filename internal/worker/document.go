package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/imkarma/ideaflow/internal/agent"
	agentctx "github.com/imkarma/ideaflow/internal/context"
	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/skills"
	"github.com/imkarma/ideaflow/internal/store"
)

// maxContextContent bounds the copy of a document kept as context.
const maxContextContent = 2000

// DocGenerate writes consulting documents with a specialist's SOPs.
type DocGenerate struct {
	base
	chain  Generator
	skills *skills.Loader
}

// NewDocGenerate creates the CONSULTING worker.
func NewDocGenerate(d Deps) *DocGenerate {
	loader := d.Skills
	if loader == nil {
		loader = skills.NewLoader("skills")
	}
	return &DocGenerate{base: newBase(pipeline.WorkerConsulting, d), chain: d.Chain, skills: loader}
}

// RunCycle produces a document for the head of the consulting queue.
func (w *DocGenerate) RunCycle(ctx context.Context) (int, error) {
	it, err := w.first(store.StatusQueuedConsulting)
	if err != nil || it == nil {
		return 0, err
	}

	key := it.SuggestedAgent
	if key == "" {
		key = skills.DefaultAgent
	}
	specialist, paths := skills.ForAgent(key, it.SuggestedSkills)
	by := string(w.id) + "-" + key
	log := w.log(ctx).With("item", it.ID, "agent", key)

	if len(paths) == 0 {
		return 0, w.skipStale(ctx, it, w.fail(ctx, it, fmt.Sprintf("No skills configured for agent '%s'", key), by))
	}

	if err := w.apply(it, store.Change{To: store.StatusInProgress, By: by}); err != nil {
		return 0, w.skipStale(ctx, it, err)
	}
	log.Info("writing document", "text", short(it.Text))

	sops := w.skills.LoadMany(paths)
	if len(sops) == 0 {
		return 0, w.skipStale(ctx, it, w.fail(ctx, it, fmt.Sprintf("Could not load skill files: %s", strings.Join(paths, ", ")), by))
	}

	p := w.prompts.Document(it, specialist, sops)
	text, backend := w.chain.Generate(ctx, agent.Request{ItemID: it.ID, Prompt: p.User, System: p.System})
	if strings.TrimSpace(text) == "" {
		return 0, w.skipStale(ctx, it, w.fail(ctx, it, "No AI model generated a response.", by))
	}

	section := fmt.Sprintf("%s%s\n%s%s\n\n---\n\n%s", agentctx.AgentLabel, specialist.Name, agentctx.EngineLabel, backend, text)
	output := section
	if prev := strings.TrimSpace(it.Output); prev != "" {
		output = prev + "\n\n---\n\n" + section
	}
	if err := w.apply(it, store.Change{To: store.StatusReviewing, Output: &output, By: by}); err != nil {
		return 0, w.skipStale(ctx, it, err)
	}

	ctxKey := "output-" + key + "-" + strconv.FormatInt(it.ID, 10)
	if err := w.store.SaveContextItem(ctxKey, truncateRunes(text, maxContextContent), key); err != nil {
		log.Error("save context item failed", "err", err)
	}

	log.Info("document generated", "backend", backend)
	w.notify(ctx, "*Document generated* #%d `%s`\nAgent: %s. Waiting for review.", it.ID, short(it.Text), key)
	return 1, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
