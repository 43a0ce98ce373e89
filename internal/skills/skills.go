// Package skills loads the markdown SOP files that give each stage its
// working instructions.
package skills

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stage SOPs, relative to the skills directory.
const (
	GenerateCode   = "core/generate-python-code.md"
	ReviewCode     = "core/review-code-quality.md"
	ReviewDocument = "core/review-document-quality.md"
)

// ErrOutsideDir is returned for paths that resolve outside the skills
// directory.
var ErrOutsideDir = errors.New("skill path escapes skills directory")

type entry struct {
	content string
	mtime   time.Time
}

// Loader reads skill files from a directory and caches each one until its
// modification time changes.
type Loader struct {
	dir string

	mu    sync.Mutex
	cache map[string]entry
}

// NewLoader creates a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{dir: dir, cache: map[string]entry{}}
}

// Dir returns the skills directory.
func (l *Loader) Dir() string { return l.dir }

func (l *Loader) resolve(rel string) (string, error) {
	rel = filepath.FromSlash(strings.TrimSpace(rel))
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideDir)
	}
	full := filepath.Join(l.dir, rel)
	back, err := filepath.Rel(l.dir, full)
	if err != nil || back == ".." || strings.HasPrefix(back, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideDir)
	}
	return full, nil
}

// Load returns the content of one skill file. A missing file yields
// fs.ErrNotExist.
func (l *Loader) Load(rel string) (string, error) {
	full, err := l.resolve(rel)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	cached, ok := l.cache[full]
	l.mu.Unlock()
	if ok && cached.mtime.Equal(info.ModTime()) {
		return cached.content, nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	l.cache[full] = entry{content: string(data), mtime: info.ModTime()}
	l.mu.Unlock()
	return string(data), nil
}

// LoadOr returns the skill content, or fallback when it cannot be read or
// is blank.
func (l *Loader) LoadOr(rel, fallback string) string {
	content, err := l.Load(rel)
	if err != nil || strings.TrimSpace(content) == "" {
		return fallback
	}
	return content
}

// LoadMany loads several skills in order, skipping missing or empty ones.
func (l *Loader) LoadMany(rels []string) []string {
	var out []string
	for _, rel := range rels {
		content, err := l.Load(rel)
		if err != nil || strings.TrimSpace(content) == "" {
			continue
		}
		out = append(out, content)
	}
	return out
}

// List returns every .md file under the skills directory as sorted
// slash-separated relative paths. A missing directory lists nothing.
func (l *Loader) List() ([]string, error) {
	var out []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == l.dir {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		rel, err := filepath.Rel(l.dir, path)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list skills: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
