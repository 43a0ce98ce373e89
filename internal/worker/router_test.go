package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/store"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name  string
		item  store.Item
		queue store.Status
		agent string
	}{
		{
			name:  "known suggested agent beats software type",
			item:  store.Item{Text: "roster tool", AIType: "software", SuggestedAgent: "finance"},
			queue: store.StatusQueuedConsulting,
		},
		{
			name:  "category maps to specialist",
			item:  store.Item{Text: "anything", AICategory: "Operaciones"},
			queue: store.StatusQueuedConsulting,
			agent: "staffing",
		},
		{
			name:  "consulting type uses keywords",
			item:  store.Item{Text: "review the yearly budget", AIType: "consulting"},
			queue: store.StatusQueuedConsulting,
			agent: "finance",
		},
		{
			name:  "software type",
			item:  store.Item{Text: "roster tool", AIType: "software"},
			queue: store.StatusQueuedSoftware,
		},
		{
			name:  "software keyword in text",
			item:  store.Item{Text: "write a script for shift totals"},
			queue: store.StatusQueuedSoftware,
		},
		{
			name:  "keyword specialist",
			item:  store.Item{Text: "plan the new training courses"},
			queue: store.StatusQueuedConsulting,
			agent: "training",
		},
		{
			name:  "suggested skills only",
			item:  store.Item{Text: "something vague", SuggestedSkills: `["core/weekly-review.md"]`},
			queue: store.StatusQueuedConsulting,
		},
		{
			name:  "no signal",
			item:  store.Item{Text: "hello there"},
			queue: store.StatusNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Decide(&tt.item)
			assert.Equal(t, tt.queue, r.Queue)
			assert.Equal(t, tt.agent, r.Agent)
		})
	}
}

func TestRouter_PersistsInferredAgent(t *testing.T) {
	st := testStore(t)
	it := createItem(t, st, store.NewItem{Text: "yearly numbers", AICategory: "finanzas"})
	unrouted := createItem(t, st, store.NewItem{Text: "hello there"})

	assert.Equal(t, 1, cycle(t, NewRouter(testDeps(st, nil, nil, t.TempDir()))))

	got := reload(t, st, it.ID)
	assert.Equal(t, store.StatusQueuedConsulting, got.Status)
	assert.Equal(t, "finance", got.SuggestedAgent)
	assert.Equal(t, "PM", got.ExecutedBy)
	assert.True(t, hasEvent(t, st, it.ID, "routed"))

	assert.Equal(t, store.StatusNone, reload(t, st, unrouted.ID).Status)
}

func TestRouter_IgnoresCapturedItems(t *testing.T) {
	st := testStore(t)
	it := createItem(t, st, store.NewItem{Text: "roster tool", AIType: "software", Stage: store.StageCaptured})

	assert.Equal(t, 0, cycle(t, NewRouter(testDeps(st, nil, nil, t.TempDir()))))
	assert.Equal(t, store.StatusNone, reload(t, st, it.ID).Status)
}

func TestRouter_RetryPass(t *testing.T) {
	st := testStore(t)
	retry := createItem(t, st, store.NewItem{Text: "roster tool", AIType: "software"})
	put(t, st, retry, store.StatusFailed, "", "No code could be generated with any of the models.")
	spent := createItem(t, st, store.NewItem{Text: "roster tool", AIType: "software"})
	put(t, st, spent, store.StatusFailed, "", "x\n[RETRY] Re-queued by PM\ny\n[RETRY] Re-queued by PM")
	nowhere := createItem(t, st, store.NewItem{Text: "hello there"})
	put(t, st, nowhere, store.StatusFailed, "", "boom")

	assert.Equal(t, 1, cycle(t, NewRouter(testDeps(st, nil, nil, t.TempDir()))))

	got := reload(t, st, retry.ID)
	assert.Equal(t, store.StatusQueuedSoftware, got.Status)
	assert.Equal(t, "No code could be generated with any of the models.\n[RETRY] Re-queued by PM", got.Error)

	assert.Equal(t, store.StatusFailed, reload(t, st, spent.ID).Status)
	assert.Equal(t, store.StatusFailed, reload(t, st, nowhere.ID).Status)
}

func TestRouter_RetryConsultingItem(t *testing.T) {
	st := testStore(t)
	it := createItem(t, st, store.NewItem{Text: "budget memo", SuggestedAgent: "finance"})
	put(t, st, it, store.StatusFailed, "", "")

	assert.Equal(t, 1, cycle(t, NewRouter(testDeps(st, nil, nil, t.TempDir()))))
	got := reload(t, st, it.ID)
	require.Equal(t, store.StatusQueuedConsulting, got.Status)
	assert.Equal(t, "[RETRY] Re-queued by PM", got.Error)
}
