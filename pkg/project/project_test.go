package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkfile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestDiscover(t *testing.T) {
	base := t.TempDir()

	mkfile(t, filepath.Join(base, "web", "package.json"))
	mkfile(t, filepath.Join(base, "api", "go.mod"))
	mkfile(t, filepath.Join(base, "Tooling", "pyproject.toml"))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "repo", ".git"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0755))
	mkfile(t, filepath.Join(base, ".hidden", "go.mod"))
	mkfile(t, filepath.Join(base, "notes.txt"))

	projects, err := Discover(base)
	require.NoError(t, err)

	names := make([]string, 0, len(projects))
	for _, p := range projects {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"api", "repo", "Tooling", "web"}, names)

	byName := map[string]Project{}
	for _, p := range projects {
		byName[p.Name] = p
	}
	assert.Equal(t, "go", byName["api"].Type)
	assert.Equal(t, "git", byName["repo"].Type)
	assert.Equal(t, "python", byName["Tooling"].Type)
	assert.Equal(t, "node", byName["web"].Type)
	assert.Equal(t, filepath.Join(base, "api"), byName["api"].Path)
	assert.Equal(t, []string{"go.mod"}, byName["api"].Markers)
}

func TestDiscoverMissingBase(t *testing.T) {
	projects, err := Discover(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestDiscoverFollowsSymlinks(t *testing.T) {
	base := t.TempDir()
	elsewhere := t.TempDir()
	mkfile(t, filepath.Join(elsewhere, "shared", "Cargo.toml"))
	require.NoError(t, os.Symlink(filepath.Join(elsewhere, "shared"), filepath.Join(base, "shared")))
	require.NoError(t, os.Symlink(filepath.Join(base, "missing"), filepath.Join(base, "dangling")))

	projects, err := Discover(base)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "shared", projects[0].Name)
	assert.Equal(t, "rust", projects[0].Type)
}

func TestDetectType(t *testing.T) {
	tests := []struct {
		markers []string
		want    string
	}{
		{[]string{".git", "package.json"}, "node"},
		{[]string{"requirements.txt"}, "python"},
		{[]string{"Cargo.toml", ".git"}, "rust"},
		{[]string{"go.mod", "Makefile"}, "go"},
		{[]string{".git"}, "git"},
		{[]string{"Makefile"}, "unknown"},
		{nil, "unknown"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectType(tt.markers), "markers %v", tt.markers)
	}
}

func TestGetInfo(t *testing.T) {
	dir := t.TempDir()
	mkfile(t, filepath.Join(dir, "go.mod"))
	mkfile(t, filepath.Join(dir, "README.md"))
	mkfile(t, filepath.Join(dir, "Dockerfile"))
	mkfile(t, filepath.Join(dir, "cmd", "main.go"))
	mkfile(t, filepath.Join(dir, "scripts", "deploy.sh"))
	mkfile(t, filepath.Join(dir, "node_modules", "dep", "index.js"))
	mkfile(t, filepath.Join(dir, ".git", "HEAD"))

	info, err := GetInfo(dir)
	require.NoError(t, err)

	assert.True(t, info.Exists)
	assert.True(t, info.IsDir)
	assert.True(t, info.IsGit)
	assert.Equal(t, filepath.Base(dir), info.Name)
	assert.Equal(t, "go", info.Type)
	assert.Equal(t, "README.md", info.Readme)
	assert.Equal(t, []string{"go.mod", "Dockerfile"}, info.ConfigFiles)
	assert.Equal(t, []string{"Go", "Shell"}, info.Languages)
	// go.mod, README.md, Dockerfile, main.go, deploy.sh
	assert.Equal(t, 5, info.FilesCount)
	assert.Equal(t, 2, info.DirectoriesCount)
}

func TestGetInfoMissingAndFile(t *testing.T) {
	dir := t.TempDir()

	info, err := GetInfo(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, info.Exists)

	file := filepath.Join(dir, "f.txt")
	mkfile(t, file)
	info, err = GetInfo(file)
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.False(t, info.IsDir)
}
