package project

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prismon/vps-agent/pkg/logger"
	"github.com/prismon/vps-agent/pkg/pathutil"
	"github.com/sirupsen/logrus"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("project")
}

// Markers are the files or directories whose presence makes a directory a project
var Markers = []string{
	".git",
	"package.json",
	"pyproject.toml",
	"setup.py",
	"requirements.txt",
	"Cargo.toml",
	"go.mod",
	"Makefile",
}

// IgnoredDirs are skipped when walking a project tree
var IgnoredDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"target":       true,
	"dist":         true,
	"build":        true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	".tox":         true,
	".mypy_cache":  true,
}

// Project is a directory recognised by its markers
type Project struct {
	// Name is the directory name
	Name string `json:"name"`

	// Path is the absolute path to the project directory
	Path string `json:"path"`

	// Type is the detected project kind (node, python, rust, go, git, unknown)
	Type string `json:"type"`

	// Markers lists which marker files were found
	Markers []string `json:"markers"`
}

// Discover returns the immediate subdirectories of basePath that carry a
// project marker, sorted by name. A missing basePath yields no projects.
func Discover(basePath string) ([]Project, error) {
	entries, err := os.ReadDir(basePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", basePath).Debug("Projects directory does not exist")
			return []Project{}, nil
		}
		return nil, fmt.Errorf("failed to read projects directory: %w", err)
	}

	projects := []Project{}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		// Follows symlinks, so a linked project directory still counts
		dir := filepath.Join(basePath, entry.Name())
		if !pathutil.IsDir(dir) {
			continue
		}
		found := FindMarkers(dir)
		if len(found) == 0 {
			continue
		}

		projects = append(projects, Project{
			Name:    entry.Name(),
			Path:    dir,
			Type:    DetectType(found),
			Markers: found,
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return strings.ToLower(projects[i].Name) < strings.ToLower(projects[j].Name)
	})

	return projects, nil
}

// FindMarkers lists the project markers present in dir
func FindMarkers(dir string) []string {
	var found []string
	for _, marker := range Markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			found = append(found, marker)
		}
	}
	return found
}

// DetectType infers the project kind from its markers
func DetectType(markers []string) string {
	has := make(map[string]bool, len(markers))
	for _, m := range markers {
		has[m] = true
	}

	switch {
	case has["package.json"]:
		return "node"
	case has["pyproject.toml"] || has["setup.py"] || has["requirements.txt"]:
		return "python"
	case has["Cargo.toml"]:
		return "rust"
	case has["go.mod"]:
		return "go"
	case has[".git"]:
		return "git"
	}
	return "unknown"
}
