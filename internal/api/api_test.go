package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	h, err := New(Config{Store: s, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, s
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	var body map[string]string
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/health", nil, &body))
	assert.Equal(t, "ok", body["status"])
}

func TestCaptureAndGet(t *testing.T) {
	srv, s := newTestServer(t)

	var created store.Item
	code := doJSON(t, http.MethodPost, srv.URL+"/v1/ideas", CaptureRequest{
		Text:      "Shift roster script",
		Priority:  "alta",
		Type:      "software",
		Organized: true,
	}, &created)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, store.PriorityHigh, created.Priority)
	assert.Equal(t, store.StageOrganized, created.Stage)

	routable, err := s.RoutableItems()
	require.NoError(t, err)
	assert.Len(t, routable, 1)

	var detail ItemDetail
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/ideas/1", nil, &detail))
	assert.Equal(t, "Shift roster script", detail.Text)
	require.NotEmpty(t, detail.Events)
	assert.Equal(t, "created", detail.Events[0].Type)
}

func TestCapture_RejectsBlankText(t *testing.T) {
	srv, _ := newTestServer(t)
	code := doJSON(t, http.MethodPost, srv.URL+"/v1/ideas", map[string]string{"text": "   "}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetIdea_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/v1/ideas/99", nil, nil))
}

func TestListIdeas_StatusFilter(t *testing.T) {
	srv, s := newTestServer(t)
	a, err := s.CreateItem(store.NewItem{Text: "a"})
	require.NoError(t, err)
	_, err = s.CreateItem(store.NewItem{Text: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Transition(a.ID, store.StatusNone, store.Change{To: store.StatusQueuedSoftware, By: "PM"}))

	var items []store.Item
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/ideas?status=queued_software", nil, &items))
	require.Len(t, items, 1)
	assert.Equal(t, a.ID, items[0].ID)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/ideas", nil, &items))
	assert.Len(t, items, 2)

	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, srv.URL+"/v1/ideas?status=bogus", nil, nil))
}

func TestResetIdea(t *testing.T) {
	srv, s := newTestServer(t)
	it, err := s.CreateItem(store.NewItem{Text: "stuck"})
	require.NoError(t, err)
	errText := "BLOCKED after 3 build failures. Requires manual review."
	require.NoError(t, s.Transition(it.ID, store.StatusNone, store.Change{To: store.StatusBlocked, Error: &errText}))

	var got store.Item
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, srv.URL+"/v1/ideas/1/reset", nil, &got))
	assert.Equal(t, store.StatusNone, got.Status)
	assert.Empty(t, got.Error)

	// Already unset: the manual edge does not apply.
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, srv.URL+"/v1/ideas/1/reset", nil, nil))
}

func TestStatsAndProjects(t *testing.T) {
	srv, s := newTestServer(t)
	require.NoError(t, s.UpsertProject(store.Project{ID: "1", Name: "Roster", Status: "development", Tech: "Python"}))

	var stats store.Stats
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/stats", nil, &stats))

	var projects []store.Project
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/v1/projects", nil, &projects))
	require.Len(t, projects, 1)
	assert.Equal(t, "Roster", projects[0].Name)
}
