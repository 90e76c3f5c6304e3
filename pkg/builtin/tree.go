package builtin

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/prismon/vps-agent/pkg/home"
	"github.com/prismon/vps-agent/pkg/project"
	"github.com/prismon/vps-agent/pkg/tools"
)

// treeNode is one entry of a dir_tree result
type treeNode struct {
	Name      string      `json:"name"`
	Type      string      `json:"type"`
	Size      *int64      `json:"size,omitempty"`
	Children  []*treeNode `json:"children,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
}

type treeWalker struct {
	maxDepth      int
	maxEntries    int
	includeHidden bool
	pattern       string

	entries   int
	files     int
	dirs      int
	truncated bool
}

func dirTreeTool(cfg *home.Config) tools.Tool {
	depthLimit := cfg.Limits.MaxTreeDepth
	if depthLimit < 1 {
		depthLimit = 1
	}
	def := mcp.NewTool("dir_tree",
		mcp.WithDescription("Show a directory tree. Defaults to the focused project."),
		mcp.WithString("path",
			mcp.Description("Directory to list; relative paths resolve against the focus"),
		),
		mcp.WithNumber("max_depth",
			integer(),
			mcp.Description("How many levels to descend"),
			mcp.Min(1),
			mcp.Max(float64(depthLimit)),
			mcp.DefaultNumber(float64(min(3, depthLimit))),
		),
		mcp.WithBoolean("include_hidden",
			mcp.Description("Include dotfiles and dot directories"),
			mcp.DefaultBool(false),
		),
		mcp.WithString("pattern",
			mcp.Description("Glob that file names must match, e.g. *.go"),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		root, err := targetPath(env, params.String("path"))
		if err != nil {
			return nil, err
		}
		st, err := os.Stat(root)
		if err != nil {
			return nil, err
		}
		if !st.IsDir() {
			return nil, newError("NotADirectory", "not a directory: %s", root)
		}

		pattern := params.String("pattern")
		if pattern != "" {
			if _, err := filepath.Match(pattern, ""); err != nil {
				return nil, &tools.ValidationError{Field: "pattern", Message: "invalid glob pattern: " + err.Error()}
			}
		}

		w := &treeWalker{
			maxDepth:      params.Int("max_depth"),
			maxEntries:    config(env).Limits.MaxTreeEntries,
			includeHidden: params.Bool("include_hidden"),
			pattern:       pattern,
		}
		tree := &treeNode{Name: filepath.Base(root), Type: "directory"}
		w.walk(ctx, root, tree, 1)

		return map[string]any{
			"path":        root,
			"tree":        tree,
			"total_files": w.files,
			"total_dirs":  w.dirs,
			"truncated":   w.truncated,
		}, nil
	})
}

func (w *treeWalker) walk(ctx context.Context, dir string, node *treeNode, depth int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).WithField("path", dir).Debug("Skipping unreadable directory")
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	node.Children = []*treeNode{}
	for _, entry := range entries {
		if ctx.Err() != nil || w.entries >= w.maxEntries {
			node.Truncated = true
			w.truncated = true
			return
		}

		name := entry.Name()
		if !w.includeHidden && strings.HasPrefix(name, ".") {
			continue
		}

		if entry.IsDir() {
			if project.IgnoredDirs[name] {
				continue
			}
			child := &treeNode{Name: name, Type: "directory"}
			w.entries++
			w.dirs++
			node.Children = append(node.Children, child)
			if depth < w.maxDepth {
				w.walk(ctx, filepath.Join(dir, name), child, depth+1)
			}
			continue
		}

		if w.pattern != "" {
			if ok, _ := filepath.Match(w.pattern, name); !ok {
				continue
			}
		}
		child := &treeNode{Name: name, Type: "file"}
		if info, err := entry.Info(); err == nil {
			size := info.Size()
			child.Size = &size
		}
		w.entries++
		w.files++
		node.Children = append(node.Children, child)
	}
}
