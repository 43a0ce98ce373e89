package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/imkarma/ideaflow/internal/config"
)

// CLIRunner spawns an external CLI process (claude, gemini, ollama, etc.)
// and passes the prompt as the last argument.
type CLIRunner struct {
	cfg config.Backend
}

// NewCLIRunner creates a runner that spawns CLI processes.
func NewCLIRunner(cfg config.Backend) *CLIRunner {
	return &CLIRunner{cfg: cfg}
}

func (r *CLIRunner) Name() string { return r.cfg.Name }
func (r *CLIRunner) Mode() string { return "cli" }

// Run spawns the CLI backend with the prompt.
//
// For example, if cmd="claude" and args=["--model", "sonnet"], the full
// command becomes: claude --print --model sonnet "the prompt text"
//
// A system instruction is prepended to the prompt since CLI tools have no
// separate channel for it.
func (r *CLIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	prompt := req.Prompt
	if req.System != "" {
		prompt = req.System + "\n\n" + prompt
	}
	args := append(r.cfg.EffectiveArgs(), prompt)

	timeout := r.cfg.Timeout()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.cfg.Cmd, args...)
	cmd.Dir = req.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	resp := &Response{
		Output:   stdout.String(),
		Duration: time.Since(start).Seconds(),
	}

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			resp.Error = fmt.Errorf("backend %s timed out after %ds", r.cfg.Name, int(timeout.Seconds()))
			resp.ExitCode = -1
			return resp, nil
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			resp.ExitCode = exitErr.ExitCode()
		} else {
			resp.ExitCode = -1
		}

		stderrStr := strings.TrimSpace(stderr.String())
		if stderrStr != "" {
			resp.Error = fmt.Errorf("backend %s exited with code %d: %s", r.cfg.Name, resp.ExitCode, stderrStr)
		} else {
			resp.Error = fmt.Errorf("backend %s exited with code %d: %w", r.cfg.Name, resp.ExitCode, err)
		}
		return resp, nil
	}

	resp.ExitCode = 0
	return resp, nil
}

// CLIAvailable checks if the CLI command exists in PATH.
func CLIAvailable(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}
