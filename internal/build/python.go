package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/imkarma/ideaflow/internal/config"
	"github.com/imkarma/ideaflow/internal/extract"
)

const venvDir = ".venv"

// PythonValidator builds Python projects under root/<id>: requirements
// detection, an isolated venv when there is anything to install, a
// py_compile pass and a bounded start attempt.
type PythonValidator struct {
	root   string
	cfg    config.Build
	logger *slog.Logger
}

// NewPythonValidator creates a validator writing projects under root.
func NewPythonValidator(root string, cfg config.Build, logger *slog.Logger) *PythonValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &PythonValidator{root: root, cfg: cfg, logger: logger}
}

func (v *PythonValidator) seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate runs the whole build. It never returns with a child process
// still running.
func (v *PythonValidator) Validate(ctx context.Context, id int64, files []extract.File) Result {
	log := v.logger.With("item", id)

	dir, written, err := Workspace(v.root, id, files)
	if err != nil {
		return failed(err.Error())
	}
	log.Debug("files written", "dir", dir, "count", len(written))

	deps, err := v.requirements(dir, written, files)
	if err != nil {
		return failed(err.Error())
	}

	python := v.cfg.Python
	if len(deps) > 0 {
		venvPython, err := v.venv(ctx, dir)
		if err != nil {
			return failed("venv creation failed:\n" + err.Error())
		}
		python = venvPython

		_, stderr, err := v.run(ctx, v.seconds(v.cfg.InstallTimeoutSec), dir,
			python, "-m", "pip", "install", "-r", "requirements.txt")
		if err != nil {
			return failed("pip install failed:\n" + tail(stderr+err.Error(), 1000) +
				"\n\nFix the dependencies in requirements.txt.")
		}
		log.Debug("dependencies installed", "deps", deps)
	}

	var syntaxErrs []string
	for _, name := range written {
		if !strings.HasSuffix(name, ".py") {
			continue
		}
		_, stderr, err := v.run(ctx, v.seconds(v.cfg.CompileTimeoutSec), dir,
			python, "-m", "py_compile", filepath.FromSlash(name))
		if err != nil {
			msg := strings.TrimSpace(stderr)
			if msg == "" {
				msg = err.Error()
			}
			syntaxErrs = append(syntaxErrs, name+": "+msg)
		}
	}
	if len(syntaxErrs) > 0 {
		return failed("Syntax errors:\n" + strings.Join(syntaxErrs, "\n") + "\n\nFix the syntax errors.")
	}

	entry := Entrypoint(written)
	if entry == "" {
		return failed("No Python entry point found (main.py, app.py, or server.py)")
	}

	port := Port(v.cfg.BasePort, id)
	kind, stdout, err := v.start(ctx, python, dir, entry, port)
	if err != nil {
		return failed("Runtime error:\n" + err.Error() + "\n\nFix the code so it runs without errors.")
	}

	res := Result{
		OK:         true,
		Kind:       kind,
		Dir:        dir,
		Files:      written,
		Deps:       deps,
		Entrypoint: entry,
		Port:       port,
		Stdout:     tail(stdout, 1000),
	}
	if kind == KindWebapp {
		res.URL = "http://localhost:" + strconv.Itoa(port)
	}
	log.Info("build ok", "kind", kind, "entrypoint", entry)
	return res
}

// requirements returns the project dependencies, writing requirements.txt
// from the detected imports when the generated files did not include one.
func (v *PythonValidator) requirements(dir string, written []string, files []extract.File) ([]string, error) {
	for _, name := range written {
		if filepath.Base(name) == "requirements.txt" {
			data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
			if err != nil {
				return nil, fmt.Errorf("read requirements: %w", err)
			}
			return ParseRequirements(string(data)), nil
		}
	}

	deps := Requirements(files)
	if len(deps) == 0 {
		return nil, nil
	}
	body := strings.Join(deps, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(body), 0644); err != nil {
		return nil, fmt.Errorf("write requirements: %w", err)
	}
	return deps, nil
}

func (v *PythonValidator) venv(ctx context.Context, dir string) (string, error) {
	_, stderr, err := v.run(ctx, time.Minute, dir, v.cfg.Python, "-m", "venv", venvDir)
	if err != nil {
		return "", fmt.Errorf("%s%w", stderr, err)
	}

	python := filepath.Join(dir, venvDir, "bin", "python")
	if runtime.GOOS == "windows" {
		python = filepath.Join(dir, venvDir, "Scripts", "python.exe")
	}
	if _, err := os.Stat(python); err != nil {
		return "", fmt.Errorf("venv python not found at %s", python)
	}
	return python, nil
}

// run runs a command to completion under a timeout.
func (v *PythonValidator) run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (string, string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("timed out (%ds)", int(timeout.Seconds()))
	}
	return stdout.String(), stderr.String(), err
}

// start runs the entrypoint and waits for the startup window. A clean exit
// inside the window is a script; a process still alive at the end of it is
// a service and is stopped with SIGTERM, then killed after the grace period.
func (v *PythonValidator) start(ctx context.Context, python, dir, entry string, port int) (Kind, string, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	cmd := exec.CommandContext(runCtx, python, entry)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"PORT="+strconv.Itoa(port),
		"FLASK_RUN_PORT="+strconv.Itoa(port),
	)
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = v.seconds(v.cfg.KillGraceSec)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return "", "", fmt.Errorf("failed to start: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	timer := time.NewTimer(v.seconds(v.cfg.StartupWaitSec))
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return "", "", fmt.Errorf("process exited with code %d\nstderr: %s\nstdout: %s",
				cmd.ProcessState.ExitCode(), tail(stderr.String(), 1000), tail(stdout.String(), 1000))
		}
		return KindScript, stdout.String(), nil
	case <-timer.C:
		stop()
		<-done
		return KindWebapp, "", nil
	case <-ctx.Done():
		stop()
		<-done
		return "", "", fmt.Errorf("start attempt cancelled: %w", ctx.Err())
	}
}
