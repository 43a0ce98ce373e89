package skills

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoader_CachesUntilMtimeChanges(t *testing.T) {
	dir := t.TempDir()
	path := writeSkill(t, dir, "core/a.md", "v1")
	stamp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	l := NewLoader(dir)
	got, err := l.Load("core/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	// Same mtime: the cached copy is served.
	require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
	require.NoError(t, os.Chtimes(path, stamp, stamp))
	got, err = l.Load("core/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v1", got)

	later := stamp.Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))
	got, err = l.Load("core/a.md")
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestLoader_Missing(t *testing.T) {
	l := NewLoader(t.TempDir())
	_, err := l.Load("core/none.md")
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.Equal(t, "fallback", l.LoadOr("core/none.md", "fallback"))
}

func TestLoader_RejectsEscapes(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "skills")
	writeSkill(t, root, "secret.md", "nope")
	writeSkill(t, dir, "ok.md", "fine")

	l := NewLoader(dir)
	for _, rel := range []string{"../secret.md", "core/../../secret.md", filepath.Join(root, "secret.md"), ""} {
		_, err := l.Load(rel)
		assert.ErrorIs(t, err, ErrOutsideDir, rel)
	}
	got, err := l.Load("ok.md")
	require.NoError(t, err)
	assert.Equal(t, "fine", got)
}

func TestLoader_LoadManySkipsMissingAndEmpty(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "a.md", "alpha")
	writeSkill(t, dir, "blank.md", "  \n")
	writeSkill(t, dir, "b.md", "beta")

	l := NewLoader(dir)
	assert.Equal(t, []string{"alpha", "beta"}, l.LoadMany([]string{"a.md", "gone.md", "blank.md", "b.md"}))
}

func TestLoader_List(t *testing.T) {
	dir := t.TempDir()
	writeSkill(t, dir, "core/weekly-review.md", "x")
	writeSkill(t, dir, "customizable/create-training-plan.md", "x")
	writeSkill(t, dir, "README.txt", "x")

	got, err := NewLoader(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"core/weekly-review.md", "customizable/create-training-plan.md"}, got)

	got, err = NewLoader(filepath.Join(dir, "missing")).List()
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestForAgent(t *testing.T) {
	a, paths := ForAgent("finance", `["ignored.md"]`)
	assert.Equal(t, "finance", a.Key)
	assert.Equal(t, []string{"core/model-opex-budget.md"}, paths)

	a, paths = ForAgent("", "")
	assert.Equal(t, DefaultAgent, a.Key)
	assert.Len(t, paths, 4)

	a, paths = ForAgent("legal", `["custom/contract-review.md"]`)
	assert.Equal(t, "Agent legal", a.Name)
	assert.Equal(t, []string{"custom/contract-review.md"}, paths)

	_, paths = ForAgent("legal", "not json")
	assert.Empty(t, paths)
}

func TestAgentKeys(t *testing.T) {
	assert.Equal(t, []string{"compliance", "finance", "gtd", "staffing", "training"}, AgentKeys())
	assert.True(t, IsAgent("gtd"))
	assert.False(t, IsAgent("legal"))
}
