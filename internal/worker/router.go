package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/imkarma/ideaflow/internal/pipeline"
	"github.com/imkarma/ideaflow/internal/skills"
	"github.com/imkarma/ideaflow/internal/store"
)

// categoryAgents maps a classification category onto a specialist.
var categoryAgents = map[string]string{
	"operaciones":  "staffing",
	"operations":   "staffing",
	"capacitacion": "training",
	"training":     "training",
	"finanzas":     "finance",
	"finance":      "finance",
	"contratos":    "compliance",
	"contracts":    "compliance",
	"hse":          "compliance",
}

// agentKeywords are scanned in this order; the first specialist with a hit
// wins.
var agentKeywords = []struct {
	agent    string
	keywords []string
}{
	{"staffing", []string{"dotacion", "personal", "turnos", "roster", "plantilla",
		"contratacion", "headcount", "manning", "shift"}},
	{"training", []string{"capacitacion", "entrenamiento", "formacion", "competencias",
		"malla curricular", "training", "cursos", "certificacion"}},
	{"finance", []string{"presupuesto", "opex", "budget", "costos", "gastos",
		"financiero", "costo", "inversion"}},
	{"compliance", []string{"cumplimiento", "compliance", "auditoria", "regulacion",
		"normativo", "permiso", "legal"}},
}

var softwareKeywords = []string{
	"software", "codigo", "code", "script", "programa", "program", "api",
	"endpoint", "frontend", "backend", "deploy", "desarrollo web", "web app",
}

// Route is the routing decision for one item. A zero Queue leaves the item
// unrouted.
type Route struct {
	Queue  store.Status
	Agent  string // specialist to persist, when inferred
	Reason string
}

// Decide applies the routing precedence to an unrouted item; the first rule
// that matches wins.
func Decide(it *store.Item) Route {
	category := strings.ToLower(strings.TrimSpace(it.AICategory))
	aiType := strings.ToLower(strings.TrimSpace(it.AIType))

	if skills.IsAgent(it.SuggestedAgent) {
		return Route{Queue: store.StatusQueuedConsulting, Reason: "suggested agent " + it.SuggestedAgent}
	}
	if agent, ok := categoryAgents[category]; ok {
		return Route{Queue: store.StatusQueuedConsulting, Agent: agent, Reason: "category " + category}
	}
	if aiType == "consulting" || category == "consulting" {
		return Route{Queue: store.StatusQueuedConsulting, Agent: keywordAgent(it.Text), Reason: "consulting type"}
	}
	if isSoftware(it) {
		return Route{Queue: store.StatusQueuedSoftware, Reason: "software"}
	}
	if agent := keywordAgent(it.Text); agent != "" {
		return Route{Queue: store.StatusQueuedConsulting, Agent: agent, Reason: "keywords"}
	}
	if len(it.Skills()) > 0 {
		return Route{Queue: store.StatusQueuedConsulting, Reason: "suggested skills"}
	}
	return Route{}
}

// RetryQueue picks the queue a failed item goes back to, or StatusNone when
// its hints point nowhere.
func RetryQueue(it *store.Item) store.Status {
	switch {
	case skills.IsAgent(it.SuggestedAgent):
		return store.StatusQueuedConsulting
	case isSoftware(it):
		return store.StatusQueuedSoftware
	}
	return store.StatusNone
}

func keywordAgent(text string) string {
	text = strings.ToLower(text)
	for _, set := range agentKeywords {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				return set.agent
			}
		}
	}
	return ""
}

func isSoftware(it *store.Item) bool {
	category := strings.ToLower(it.AICategory)
	aiType := strings.ToLower(strings.TrimSpace(it.AIType))
	if strings.Contains(category, "software") || strings.Contains(category, "desarrollo") ||
		strings.Contains(category, "development") {
		return true
	}
	if aiType == "software" || aiType == "desarrollo" {
		return true
	}
	text := strings.ToLower(it.Text)
	for _, kw := range softwareKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Router assigns newly organized items to a pipeline and re-queues failed
// items within their retry budget.
type Router struct {
	base
}

// NewRouter creates the PM worker.
func NewRouter(d Deps) *Router {
	return &Router{base: newBase(pipeline.WorkerPM, d)}
}

// RunCycle routes every routable item, then runs the retry pass. Per-item
// store errors are logged and returned joined; they do not stop the pass.
func (r *Router) RunCycle(ctx context.Context) (int, error) {
	log := r.log(ctx)

	items, err := r.store.RoutableItems()
	if err != nil {
		return 0, err
	}

	var errs []error
	routed := 0
	for i := range items {
		it := &items[i]
		ok, err := r.route(ctx, it)
		if err != nil {
			log.Error("route failed", "item", it.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			routed++
		}
	}

	failed, err := r.store.FailedNotExpressed()
	if err != nil {
		return routed, errors.Join(append(errs, err)...)
	}
	for i := range failed {
		it := &failed[i]
		ok, err := r.retry(ctx, it)
		if err != nil {
			log.Error("retry failed", "item", it.ID, "err", err)
			errs = append(errs, err)
			continue
		}
		if ok {
			routed++
		}
	}

	if routed > 0 {
		log.Info("routing pass done", "routed", routed)
	}
	return routed, errors.Join(errs...)
}

func (r *Router) route(ctx context.Context, it *store.Item) (bool, error) {
	dec := Decide(it)
	if dec.Queue == store.StatusNone {
		r.log(ctx).Debug("no route, left for manual handling", "item", it.ID)
		return false, nil
	}

	if dec.Agent != "" && dec.Agent != it.SuggestedAgent {
		if err := r.store.SetSuggestedAgent(it.ID, dec.Agent); err != nil {
			return false, err
		}
		it.SuggestedAgent = dec.Agent
	}

	if err := r.apply(it, store.Change{To: dec.Queue}); err != nil {
		return false, r.skipStale(ctx, it, err)
	}

	detail := string(dec.Queue)
	if it.SuggestedAgent != "" && dec.Queue == store.StatusQueuedConsulting {
		detail = fmt.Sprintf("%s (%s)", dec.Queue, it.SuggestedAgent)
	}
	r.store.AddEvent(it.ID, string(r.id), "routed", detail+": "+dec.Reason)
	r.log(ctx).Info("item routed", "item", it.ID, "queue", dec.Queue, "reason", dec.Reason)
	r.notify(ctx, "*Routed* #%d `%s`\n%s", it.ID, short(it.Text), detail)
	return true, nil
}

func (r *Router) retry(ctx context.Context, it *store.Item) (bool, error) {
	if pipeline.Retry.Count(it.Error) >= pipeline.MaxRequeues {
		return false, nil
	}
	queue := RetryQueue(it)
	if queue == store.StatusNone {
		return false, nil
	}

	errText := pipeline.Retry.Token + " Re-queued by PM"
	if prev := strings.TrimRight(it.Error, "\n "); prev != "" {
		errText = prev + "\n" + errText
	}
	if err := r.apply(it, store.Change{To: queue, Error: &errText}); err != nil {
		return false, r.skipStale(ctx, it, err)
	}
	r.store.AddEvent(it.ID, string(r.id), "routed", fmt.Sprintf("%s: retry %d", queue, pipeline.Retry.Count(errText)))
	r.log(ctx).Info("failed item re-queued", "item", it.ID, "queue", queue)
	return true, nil
}
