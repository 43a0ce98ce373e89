package agent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/imkarma/ideaflow/internal/config"
)

// Chain tries its runners in order and returns the first non-empty answer.
// Runners share nothing but the request.
type Chain struct {
	runners []Runner
	logger  *slog.Logger
}

// NewChain creates a chain over the given runners.
func NewChain(logger *slog.Logger, runners ...Runner) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{runners: runners, logger: logger}
}

// BuildChain creates a runner for each configured backend, skipping (with a
// warning) those that cannot be constructed, e.g. a missing API key.
func BuildChain(backends []config.Backend, logger *slog.Logger) *Chain {
	c := NewChain(logger)
	for _, b := range backends {
		r, err := NewRunner(b)
		if err != nil {
			c.logger.Warn("backend disabled", "backend", b.Name, "err", err)
			continue
		}
		c.runners = append(c.runners, r)
	}
	return c
}

// Names lists the runners in fallback order.
func (c *Chain) Names() []string {
	names := make([]string, 0, len(c.runners))
	for _, r := range c.runners {
		names = append(names, r.Name())
	}
	return names
}

// Generate returns the first non-blank output and the name of the backend
// that produced it. It returns "" when every backend failed, timed out or
// answered with blank text.
func (c *Chain) Generate(ctx context.Context, req Request) (string, string) {
	for _, r := range c.runners {
		resp, err := r.Run(ctx, req)
		switch {
		case err != nil:
			c.logger.Warn("backend error", "backend", r.Name(), "item", req.ItemID, "err", err)
			continue
		case resp == nil:
			continue
		case resp.Error != nil || resp.ExitCode != 0:
			c.logger.Warn("backend failed", "backend", r.Name(), "item", req.ItemID,
				"exit", resp.ExitCode, "err", resp.Error)
			continue
		case strings.TrimSpace(resp.Output) == "":
			c.logger.Warn("backend returned empty output", "backend", r.Name(), "item", req.ItemID)
			continue
		}
		c.logger.Info("backend answered", "backend", r.Name(), "item", req.ItemID,
			"duration_s", resp.Duration, "tokens_in", EstimateTokens(req.Prompt),
			"tokens_out", EstimateTokens(resp.Output))
		return resp.Output, r.Name()
	}
	return "", ""
}
