package project

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// configFiles are reported by GetInfo when present at the project root
var configFiles = []string{
	"package.json", "pyproject.toml", "setup.py", "requirements.txt",
	"Cargo.toml", "go.mod", "Makefile", "docker-compose.yml",
	"Dockerfile", ".env.example", "tsconfig.json",
}

var readmeNames = []string{"README.md", "README.rst", "README.txt", "README"}

var languageByExt = map[string]string{
	".py":   "Python",
	".js":   "JavaScript",
	".ts":   "TypeScript",
	".jsx":  "JavaScript",
	".tsx":  "TypeScript",
	".rs":   "Rust",
	".go":   "Go",
	".rb":   "Ruby",
	".java": "Java",
	".c":    "C",
	".cpp":  "C++",
	".h":    "C",
	".hpp":  "C++",
	".sh":   "Shell",
	".sql":  "SQL",
}

const maxLanguages = 5

// Info describes a project directory
type Info struct {
	Path             string   `json:"path"`
	Name             string   `json:"name,omitempty"`
	Exists           bool     `json:"exists"`
	IsDir            bool     `json:"is_dir"`
	IsGit            bool     `json:"is_git"`
	Type             string   `json:"type,omitempty"`
	FilesCount       int      `json:"files_count"`
	DirectoriesCount int      `json:"directories_count"`
	ConfigFiles      []string `json:"config_files"`
	Readme           string   `json:"readme,omitempty"`
	Languages        []string `json:"languages"`
}

// GetInfo inspects the directory at path. A missing path or a file is
// reported in the result rather than as an error.
func GetInfo(path string) (*Info, error) {
	info := &Info{Path: path, ConfigFiles: []string{}, Languages: []string{}}

	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return nil, err
	}
	info.Exists = true
	if !st.IsDir() {
		return info, nil
	}

	info.IsDir = true
	info.Name = filepath.Base(path)
	if _, err := os.Stat(filepath.Join(path, ".git")); err == nil {
		info.IsGit = true
	}
	info.Type = DetectType(FindMarkers(path))

	for _, name := range configFiles {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			info.ConfigFiles = append(info.ConfigFiles, name)
		}
	}
	for _, name := range readmeNames {
		if _, err := os.Stat(filepath.Join(path, name)); err == nil {
			info.Readme = name
			break
		}
	}

	languages := map[string]bool{}
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped
			if d != nil && d.IsDir() && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		if p == path {
			return nil
		}
		if d.IsDir() {
			if IgnoredDirs[d.Name()] || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			info.DirectoriesCount++
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		info.FilesCount++
		if len(languages) < maxLanguages {
			if lang, ok := languageByExt[strings.ToLower(filepath.Ext(d.Name()))]; ok {
				languages[lang] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for lang := range languages {
		info.Languages = append(info.Languages, lang)
	}
	sort.Strings(info.Languages)

	return info, nil
}
