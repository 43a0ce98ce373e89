package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/imkarma/ideaflow/internal/config"
)

const defaultMaxTokens = 8192

// APIRunner calls a text-generation provider's HTTP API directly.
type APIRunner struct {
	cfg     config.Backend
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewAPIRunner creates a runner that calls LLM APIs. Hosted providers need
// their API key in the environment variable named by api_key_env.
func NewAPIRunner(cfg config.Backend) (*APIRunner, error) {
	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	if apiKey == "" && (cfg.Provider == "google" || cfg.Provider == "anthropic") {
		return nil, fmt.Errorf("backend %s: environment variable %s is not set", cfg.Name, cfg.APIKeyEnv)
	}

	baseURL := strings.TrimRight(cfg.URL, "/")
	if baseURL == "" {
		baseURL = map[string]string{
			"ollama":    "http://localhost:11434",
			"google":    "https://generativelanguage.googleapis.com",
			"anthropic": "https://api.anthropic.com",
			"openai":    "https://api.openai.com",
		}[cfg.Provider]
	}

	return &APIRunner{
		cfg:     cfg,
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: cfg.Timeout()},
	}, nil
}

func (r *APIRunner) Name() string { return r.cfg.Name }
func (r *APIRunner) Mode() string { return "api" }

// Run sends the prompt to the configured API provider.
func (r *APIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	switch r.cfg.Provider {
	case "ollama":
		return r.runOllama(ctx, req, start)
	case "openai":
		return r.runOpenAI(ctx, req, maxTokens, start)
	case "anthropic":
		return r.runAnthropic(ctx, req, maxTokens, start)
	case "google":
		return r.runGoogle(ctx, req, maxTokens, start)
	default:
		return nil, fmt.Errorf("unsupported API provider: %s", r.cfg.Provider)
	}
}

// runOllama handles a local Ollama server (non-streaming /api/generate).
func (r *APIRunner) runOllama(ctx context.Context, req Request, start time.Time) (*Response, error) {
	body := map[string]any{
		"model":  r.cfg.Model,
		"prompt": req.Prompt,
		"stream": false,
	}
	if req.System != "" {
		body["system"] = req.System
	}

	var result struct {
		Response string `json:"response"`
	}
	resp, err := r.post(ctx, r.baseURL+"/api/generate", body, nil, &result, start)
	if resp != nil || err != nil {
		return resp, err
	}
	return r.ok(result.Response, start), nil
}

// runOpenAI handles OpenAI-compatible APIs (OpenAI, OpenRouter, local proxies).
func (r *APIRunner) runOpenAI(ctx context.Context, req Request, maxTokens int, start time.Time) (*Response, error) {
	messages := []map[string]string{}
	if req.System != "" {
		messages = append(messages, map[string]string{"role": "system", "content": req.System})
	}
	messages = append(messages, map[string]string{"role": "user", "content": req.Prompt})

	body := map[string]any{
		"model":      r.cfg.Model,
		"messages":   messages,
		"max_tokens": maxTokens,
	}
	headers := map[string]string{}
	if r.apiKey != "" {
		headers["Authorization"] = "Bearer " + r.apiKey
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := r.post(ctx, r.baseURL+"/v1/chat/completions", body, headers, &result, start)
	if resp != nil || err != nil {
		return resp, err
	}

	output := ""
	if len(result.Choices) > 0 {
		output = result.Choices[0].Message.Content
	}
	return r.ok(output, start), nil
}

// runAnthropic handles Anthropic's Messages API.
func (r *APIRunner) runAnthropic(ctx context.Context, req Request, maxTokens int, start time.Time) (*Response, error) {
	body := map[string]any{
		"model":      r.cfg.Model,
		"max_tokens": maxTokens,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	if req.System != "" {
		body["system"] = req.System
	}
	headers := map[string]string{
		"x-api-key":         r.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	resp, err := r.post(ctx, r.baseURL+"/v1/messages", body, headers, &result, start)
	if resp != nil || err != nil {
		return resp, err
	}

	var out strings.Builder
	for _, c := range result.Content {
		out.WriteString(c.Text)
	}
	return r.ok(out.String(), start), nil
}

// runGoogle handles Google's Generative AI API (Gemini).
func (r *APIRunner) runGoogle(ctx context.Context, req Request, maxTokens int, start time.Time) (*Response, error) {
	model := r.cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", r.baseURL, model, r.apiKey)

	body := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": req.Prompt}}},
		},
		"generationConfig": map[string]any{"maxOutputTokens": maxTokens},
	}
	if req.System != "" {
		body["systemInstruction"] = map[string]any{
			"parts": []map[string]string{{"text": req.System}},
		}
	}

	var result struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	resp, err := r.post(ctx, url, body, nil, &result, start)
	if resp != nil || err != nil {
		return resp, err
	}

	var out strings.Builder
	if len(result.Candidates) > 0 {
		for _, p := range result.Candidates[0].Content.Parts {
			out.WriteString(p.Text)
		}
	}
	return r.ok(out.String(), start), nil
}

// post sends a JSON request and decodes a 200 response into result. A
// non-nil Response means the call failed at the transport or HTTP level and
// should be returned as is.
func (r *APIRunner) post(ctx context.Context, url string, body any, headers map[string]string, result any, start time.Time) (*Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return &Response{
			ExitCode: -1,
			Duration: time.Since(start).Seconds(),
			Error:    fmt.Errorf("API call failed: %w", err),
		}, nil
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return &Response{
			Output:   string(respBody),
			ExitCode: httpResp.StatusCode,
			Duration: time.Since(start).Seconds(),
			Error:    fmt.Errorf("API returned status %d: %s", httpResp.StatusCode, string(respBody)),
		}, nil
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return nil, nil
}

func (r *APIRunner) ok(output string, start time.Time) *Response {
	return &Response{
		Output:   output,
		ExitCode: 0,
		Duration: time.Since(start).Seconds(),
	}
}
