package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeTree(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	}
}

func childNames(node map[string]any) []string {
	var names []string
	children, _ := node["children"].([]any)
	for _, c := range children {
		names = append(names, c.(map[string]any)["name"].(string))
	}
	return names
}

func childNamed(node map[string]any, name string) map[string]any {
	children, _ := node["children"].([]any)
	for _, c := range children {
		if m := c.(map[string]any); m["name"] == name {
			return m
		}
	}
	return nil
}

func TestDirTree(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root,
		"b.txt", "A.md", ".env",
		"src/main.go", "src/util/helpers.go",
		"node_modules/pkg/index.js",
		"docs/guide.md",
	)
	env := focusedEnv(t, root)

	t.Run("defaults to focus, dirs first", func(t *testing.T) {
		result, err := call(t, "dir_tree", env, `{}`)
		require.NoError(t, err)
		assert.Equal(t, root, result["path"])

		tree := result["tree"].(map[string]any)
		assert.Equal(t, "directory", tree["type"])
		assert.Equal(t, []string{"docs", "src", "A.md", "b.txt"}, childNames(tree))
		assert.Equal(t, []string{"util", "main.go"}, childNames(childNamed(tree, "src")))

		assert.EqualValues(t, 5, result["total_files"])
		assert.EqualValues(t, 3, result["total_dirs"])
		assert.Equal(t, false, result["truncated"])
	})

	t.Run("hidden files", func(t *testing.T) {
		result, err := call(t, "dir_tree", env, `{"include_hidden": true, "max_depth": 1}`)
		require.NoError(t, err)
		assert.Contains(t, childNames(result["tree"].(map[string]any)), ".env")
	})

	t.Run("depth limit", func(t *testing.T) {
		result, err := call(t, "dir_tree", env, `{"max_depth": 1}`)
		require.NoError(t, err)
		src := childNamed(result["tree"].(map[string]any), "src")
		require.NotNil(t, src)
		assert.Empty(t, childNames(src))
	})

	t.Run("pattern filters files only", func(t *testing.T) {
		result, err := call(t, "dir_tree", env, `{"pattern": "*.go"}`)
		require.NoError(t, err)
		tree := result["tree"].(map[string]any)
		assert.Equal(t, []string{"docs", "src"}, childNames(tree))
		assert.EqualValues(t, 2, result["total_files"])
	})

	t.Run("entry cap", func(t *testing.T) {
		capped := focusedEnv(t, root)
		capped.Config.Limits.MaxTreeEntries = 2
		result, err := call(t, "dir_tree", capped, `{}`)
		require.NoError(t, err)
		assert.Equal(t, true, result["truncated"])
		assert.Equal(t, true, result["tree"].(map[string]any)["truncated"])
	})
}

func TestDirTreeErrors(t *testing.T) {
	root := t.TempDir()
	makeTree(t, root, "file.txt")

	_, err := call(t, "dir_tree", newEnv(t), `{}`)
	require.Error(t, err)
	assert.Equal(t, "NoFocus", kindOf(err))

	_, err = call(t, "dir_tree", newEnv(t), `{"path": `+quote(filepath.Join(root, "file.txt"))+`}`)
	require.Error(t, err)
	assert.Equal(t, "NotADirectory", kindOf(err))

	_, err = call(t, "dir_tree", focusedEnv(t, root), `{"pattern": "[a-"}`)
	require.Error(t, err)
	assert.Equal(t, "ValidationError", kindOf(err))
}
