package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imkarma/ideaflow/internal/config"
)

type scripted struct {
	name  string
	resp  *Response
	err   error
	calls int
}

func (s *scripted) Run(ctx context.Context, req Request) (*Response, error) {
	s.calls++
	return s.resp, s.err
}
func (s *scripted) Name() string { return s.name }
func (s *scripted) Mode() string { return "api" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChain_FallsThroughInOrder(t *testing.T) {
	erroring := &scripted{name: "local", err: errors.New("connection refused")}
	blank := &scripted{name: "gemini", resp: &Response{Output: "  \n"}}
	failing := &scripted{name: "cli", resp: &Response{Output: "partial", ExitCode: 1}}
	good := &scripted{name: "claude", resp: &Response{Output: "print('hi')"}}
	never := &scripted{name: "spare", resp: &Response{Output: "unused"}}

	c := NewChain(quietLogger(), erroring, blank, failing, good, never)
	text, backend := c.Generate(context.Background(), Request{Prompt: "p"})

	assert.Equal(t, "print('hi')", text)
	assert.Equal(t, "claude", backend)
	assert.Equal(t, 0, never.calls)
	assert.Equal(t, []string{"local", "gemini", "cli", "claude", "spare"}, c.Names())
}

func TestChain_AllEmpty(t *testing.T) {
	c := NewChain(quietLogger(), &scripted{name: "a", resp: &Response{}}, &scripted{name: "b", err: errors.New("x")})
	text, backend := c.Generate(context.Background(), Request{Prompt: "p"})
	assert.Empty(t, text)
	assert.Empty(t, backend)

	text, _ = NewChain(quietLogger()).Generate(context.Background(), Request{})
	assert.Empty(t, text)
}

func TestBuildChain_SkipsMissingKeys(t *testing.T) {
	t.Setenv("IDEAFLOW_TEST_MISSING_KEY", "")
	c := BuildChain([]config.Backend{
		{Name: "local", Provider: "ollama", Model: "m"},
		{Name: "gemini", Provider: "google", APIKeyEnv: "IDEAFLOW_TEST_MISSING_KEY"},
		{Name: "bogus", Provider: "nope"},
	}, quietLogger())
	assert.Equal(t, []string{"local"}, c.Names())
}

func TestAPIRunner_Ollama(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "qwen", body["model"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "be terse", body["system"])
		w.Write([]byte(`{"response":"hello from ollama"}`))
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.Backend{Name: "local", Provider: "ollama", Model: "qwen", URL: srv.URL})
	require.NoError(t, err)
	resp, err := r.Run(context.Background(), Request{Prompt: "hi", System: "be terse"})
	require.NoError(t, err)
	assert.Equal(t, 0, resp.ExitCode)
	assert.Equal(t, "hello from ollama", resp.Output)
}

func TestAPIRunner_Anthropic(t *testing.T) {
	t.Setenv("IDEAFLOW_TEST_ANTHROPIC", "sk-test")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("x-api-key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(2000), body["max_tokens"])
		w.Write([]byte(`{"content":[{"text":"VERDICT: "},{"text":"APPROVED"}]}`))
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.Backend{Name: "claude", Provider: "anthropic", Model: "m",
		APIKeyEnv: "IDEAFLOW_TEST_ANTHROPIC", URL: srv.URL})
	require.NoError(t, err)
	resp, err := r.Run(context.Background(), Request{Prompt: "review", MaxTokens: 2000})
	require.NoError(t, err)
	assert.Equal(t, "VERDICT: APPROVED", resp.Output)
}

func TestAPIRunner_Google(t *testing.T) {
	t.Setenv("IDEAFLOW_TEST_GEMINI", "g-key")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-x:generateContent"), r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"doc"}]}}]}`))
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.Backend{Name: "gemini", Provider: "google", Model: "gemini-x",
		APIKeyEnv: "IDEAFLOW_TEST_GEMINI", URL: srv.URL})
	require.NoError(t, err)
	resp, err := r.Run(context.Background(), Request{Prompt: "write"})
	require.NoError(t, err)
	assert.Equal(t, "doc", resp.Output)
}

func TestAPIRunner_HTTPErrorIsAResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r, err := NewAPIRunner(config.Backend{Name: "proxy", Provider: "openai", Model: "m", URL: srv.URL})
	require.NoError(t, err)
	resp, err := r.Run(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.ExitCode)
	assert.Error(t, resp.Error)
}

func TestNewRunner_UnknownProvider(t *testing.T) {
	_, err := NewRunner(config.Backend{Name: "x", Provider: "telepathy"})
	assert.Error(t, err)
}

func TestCLIRunner_MissingBinary(t *testing.T) {
	r := NewCLIRunner(config.Backend{Name: "ghost", Provider: "cli", Cmd: "ideaflow-no-such-binary"})
	resp, err := r.Run(context.Background(), Request{Prompt: "p", WorkDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, -1, resp.ExitCode)
	assert.Error(t, resp.Error)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 3, EstimateTokens("twelve chars"))
}
