// Package build turns a set of generated files into a project directory and
// checks that it installs, compiles and starts.
package build

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/imkarma/ideaflow/internal/extract"
)

// Kind tells how a successful build behaved when started.
type Kind string

const (
	KindScript Kind = "script" // exited with status 0
	KindWebapp Kind = "webapp" // still running after the startup wait
)

// Result is the outcome of one validation attempt. When OK is false, Detail
// holds the diagnostic to feed back to generation.
type Result struct {
	OK         bool
	Kind       Kind
	Dir        string
	Files      []string
	Deps       []string
	Entrypoint string
	Port       int
	URL        string
	Stdout     string
	Detail     string
}

// Validator validates the files generated for one item.
type Validator interface {
	Validate(ctx context.Context, id int64, files []extract.File) Result
}

func failed(detail string) Result {
	return Result{Detail: detail}
}

// Tech summarizes the stack as "Python" plus up to five dependencies.
func (r Result) Tech() string {
	deps := r.Deps
	if len(deps) > 5 {
		deps = deps[:5]
	}
	if len(deps) == 0 {
		return "Python"
	}
	return "Python," + strings.Join(deps, ",")
}

// Report renders the human-readable build report appended to the item
// output.
func (r Result) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Files written:** %d\n", len(r.Files))
	for _, f := range r.Files {
		fmt.Fprintf(&b, "- %s\n", f)
	}
	fmt.Fprintf(&b, "\n**Directory:** `%s`\n\n", r.Dir)
	b.WriteString("**venv:** OK | **pip install:** OK | **Syntax:** OK\n\n")

	switch r.Kind {
	case KindWebapp:
		b.WriteString("**Type:** Web application\n")
		fmt.Fprintf(&b, "**Assigned port:** %d\n", r.Port)
	case KindScript:
		b.WriteString("**Type:** Script (exit code 0)\n")
		if out := strings.TrimSpace(r.Stdout); out != "" {
			fmt.Fprintf(&b, "**Output:**\n```\n%s\n```\n", head(out, 500))
		}
	}
	return b.String()
}

// Workspace writes files into root/<id>, replacing any previous attempt.
// Names are sanitized first; it fails when no file survives.
func Workspace(root string, id int64, files []extract.File) (string, []string, error) {
	dir := filepath.Join(root, strconv.FormatInt(id, 10))
	if err := os.RemoveAll(dir); err != nil {
		return "", nil, fmt.Errorf("clean project dir: %w", err)
	}

	kept, _ := extract.Sanitize(files)
	if len(kept) == 0 {
		return "", nil, fmt.Errorf("no files could be written (invalid names)")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("create project dir: %w", err)
	}

	written := make([]string, 0, len(kept))
	for _, f := range kept {
		path := filepath.Join(dir, filepath.FromSlash(f.Name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", nil, fmt.Errorf("create %s: %w", f.Name, err)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return "", nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		written = append(written, f.Name)
	}
	return dir, written, nil
}

// Entrypoint picks the file to run: main.py, app.py, server.py, then the
// first top-level .py other than __init__.py.
func Entrypoint(names []string) string {
	set := map[string]bool{}
	for _, n := range names {
		set[n] = true
	}
	for _, candidate := range []string{"main.py", "app.py", "server.py"} {
		if set[candidate] {
			return candidate
		}
	}
	for _, n := range names {
		if strings.HasSuffix(n, ".py") && !strings.Contains(n, "/") && n != "__init__.py" {
			return n
		}
	}
	return ""
}

// Port is the port assigned to an item's service.
func Port(base int, id int64) int {
	return base + int(id%1000)
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
