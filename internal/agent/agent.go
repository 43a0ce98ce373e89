// Package agent defines the text-generation capability used by the stage
// workers: a Runner interface with HTTP and CLI adapters, and a Chain that
// tries runners in order until one answers.
package agent

import (
	"context"
	"fmt"

	"github.com/imkarma/ideaflow/internal/config"
)

// Request contains everything a backend needs to answer a prompt.
type Request struct {
	ItemID    int64  // Item ID for tracking
	Prompt    string // The full prompt with context
	System    string // Optional system instruction
	MaxTokens int    // Output size hint (0 = provider default)
	WorkDir   string // Working directory for CLI backends
}

// Response is what we get back from a backend.
type Response struct {
	Output   string  // Generated text
	ExitCode int     // 0 = success, non-zero = failure
	Duration float64 // Execution time in seconds
	Error    error   // Any execution error
}

// Runner is the interface that all backend adapters must implement.
type Runner interface {
	// Run sends the request and returns the response.
	Run(ctx context.Context, req Request) (*Response, error)

	// Name returns the backend's configured name.
	Name() string

	// Mode returns "cli" or "api".
	Mode() string
}

// NewRunner creates the appropriate runner based on backend config.
func NewRunner(b config.Backend) (Runner, error) {
	switch b.Provider {
	case "cli":
		return NewCLIRunner(b), nil
	case "ollama", "google", "anthropic", "openai":
		return NewAPIRunner(b)
	default:
		return nil, fmt.Errorf("unknown backend provider: %s", b.Provider)
	}
}

// EstimateTokens is a rough size estimate used for logging.
func EstimateTokens(text string) int {
	return len(text) / 4
}
