package builtin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/prismon/vps-agent/pkg/tools"
)

const defaultEncoding = "utf-8"

func fileReadTool() tools.Tool {
	def := mcp.NewTool("file_read",
		mcp.WithDescription("Read a text file, optionally a range of lines. Relative paths resolve against the project focus."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File to read"),
		),
		mcp.WithNumber("start_line",
			integer(),
			mcp.Description("First line to return, 1-based"),
			mcp.Min(1),
		),
		mcp.WithNumber("end_line",
			integer(),
			mcp.Description("Last line to return, inclusive"),
			mcp.Min(1),
		),
		mcp.WithString("encoding",
			mcp.Description("Text encoding of the file"),
			mcp.DefaultString(defaultEncoding),
		),
	)

	return newTool(def, tools.TierAuto, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		path, err := resolvePath(env, params.String("path"))
		if err != nil {
			return nil, err
		}

		st, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !st.Mode().IsRegular() {
			return nil, newError("NotAFile", "not a file: %s", path)
		}
		limit := config(env).Limits.MaxFileSizeBytes
		if st.Size() > limit {
			return nil, newError("FileTooLarge", "file is %d bytes, limit is %d: %s", st.Size(), limit, path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		enc := params.String("encoding")
		content, err := decode(data, enc)
		if err != nil {
			return nil, err
		}

		lines := splitLines(content)
		total := len(lines)
		start, end := 1, total
		if params.Has("start_line") {
			start = params.Int("start_line")
		}
		if params.Has("end_line") {
			end = params.Int("end_line")
		}
		selected := selectLines(lines, start, end)

		return map[string]any{
			"path":        path,
			"content":     strings.Join(selected, ""),
			"lines":       len(selected),
			"total_lines": total,
			"size_bytes":  st.Size(),
			"encoding":    enc,
			"truncated":   len(selected) < total,
		}, nil
	})
}

func fileWriteTool() tools.Tool {
	def := mcp.NewTool("file_write",
		mcp.WithDescription("Create or overwrite a text file. Relative paths resolve against the project focus."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File to write"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("Full new content of the file"),
		),
		mcp.WithBoolean("create_dirs",
			mcp.Description("Create missing parent directories"),
			mcp.DefaultBool(true),
		),
		mcp.WithString("encoding",
			mcp.Description("Text encoding to write with"),
			mcp.DefaultString(defaultEncoding),
		),
	)

	return newTool(def, tools.TierConfirm, func(ctx context.Context, params tools.Params, env *tools.Env) (any, error) {
		path, err := resolvePath(env, params.String("path"))
		if err != nil {
			return nil, err
		}

		var oldSize int64
		created := true
		if st, err := os.Stat(path); err == nil {
			if st.IsDir() {
				return nil, newError("NotAFile", "path is a directory: %s", path)
			}
			oldSize = st.Size()
			created = false
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}

		enc := params.String("encoding")
		content := params.String("content")
		data, err := encode(content, enc)
		if err != nil {
			return nil, err
		}

		if params.Bool("create_dirs") {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create parent directories: %w", err)
			}
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, err
		}

		log.WithField("path", path).WithField("bytes", len(data)).Debug("Wrote file")

		return map[string]any{
			"path":           path,
			"created":        created,
			"modified":       !created,
			"old_size_bytes": oldSize,
			"new_size_bytes": len(data),
			"lines":          len(splitLines(content)),
			"encoding":       enc,
		}, nil
	})
}

// lookupEncoding returns nil for UTF-8, which needs no transcoding
func lookupEncoding(name string) (encoding.Encoding, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, newError("UnsupportedEncoding", "unsupported encoding: %s", name)
	}
	return enc, nil
}

func decode(data []byte, name string) (string, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return "", err
	}
	if enc == nil {
		if !utf8.Valid(data) {
			return "", newError("DecodeError", "file is not valid %s", defaultEncoding)
		}
		return string(data), nil
	}
	out, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", newError("DecodeError", "failed to decode file as %s: %v", name, err)
	}
	return string(out), nil
}

func encode(content, name string) ([]byte, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return []byte(content), nil
	}
	out, err := enc.NewEncoder().Bytes([]byte(content))
	if err != nil {
		return nil, newError("EncodeError", "content cannot be encoded as %s: %v", name, err)
	}
	return out, nil
}

// splitLines splits text after each newline, keeping the terminators
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// selectLines returns lines start..end, 1-based and inclusive, clamped
func selectLines(lines []string, start, end int) []string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return []string{}
	}
	return lines[start-1 : end]
}
