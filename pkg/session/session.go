package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prismon/vps-agent/internal/models"
)

const tailChunk = 4096

// Session is one resolved session for the current invocation. It carries
// the focus recovered by replaying its log plus anything appended since.
type Session struct {
	// ID is the session identifier, also the log file stem
	ID string

	// Origin is the entry type that opened the session this invocation
	Origin models.EntryType

	path    string
	store   *Store
	focus   string
	entries []models.Entry
}

// Path returns the session's log file
func (s *Session) Path() string {
	return s.path
}

// Focus returns the project focus as of the last context change, or ""
func (s *Session) Focus() string {
	return s.focus
}

// HasFocus returns true if the session has a project focus
func (s *Session) HasFocus() bool {
	return s.focus != ""
}

// Entries returns the entries replayed and appended so far
func (s *Session) Entries() []models.Entry {
	out := make([]models.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// History returns up to limit of the most recent entries
func (s *Session) History(limit int) []models.Entry {
	if limit <= 0 || limit >= len(s.entries) {
		return s.Entries()
	}
	out := make([]models.Entry, limit)
	copy(out, s.entries[len(s.entries)-limit:])
	return out
}

// Append writes one entry to the end of the log. A missing timestamp is
// filled from the store clock. Committed entries are never touched. A torn
// final line left by a crashed writer is cut off first so it cannot fuse
// with the new record.
func (s *Session) Append(entry models.Entry) error {
	if entry.Timestamp == "" {
		entry.Timestamp = models.Timestamp(s.store.now())
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open session log: %w", err)
	}

	if err := dropTornTail(f); err != nil {
		f.Close()
		return err
	}

	werr := writeEntry(f, entry)
	cerr := f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return fmt.Errorf("failed to close session log: %w", cerr)
	}

	s.entries = append(s.entries, entry)
	return nil
}

// dropTornTail truncates the log to just after its last newline when the
// final line is unterminated and undecodable
func dropTornTail(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat session log: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil
	}

	buf := make([]byte, tailChunk)
	end := size
	for end > 0 {
		start := end - int64(len(buf))
		if start < 0 {
			start = 0
		}
		chunk := buf[:end-start]
		if _, err := f.ReadAt(chunk, start); err != nil {
			return fmt.Errorf("failed to read session log tail: %w", err)
		}
		if end == size && chunk[len(chunk)-1] == '\n' {
			return nil
		}
		if i := bytes.LastIndexByte(chunk, '\n'); i >= 0 {
			end = start + int64(i) + 1
			break
		}
		end = start
	}

	// An unterminated line that still decodes was replayed as an entry, so
	// it only needs its newline
	tail := make([]byte, size-end)
	if _, err := f.ReadAt(tail, end); err != nil {
		return fmt.Errorf("failed to read session log tail: %w", err)
	}
	var entry models.Entry
	if json.Unmarshal(bytes.TrimSpace(tail), &entry) == nil {
		if _, err := f.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("failed to terminate session entry: %w", err)
		}
		return nil
	}

	log.WithField("path", f.Name()).WithField("bytes", size-end).Warn("Dropping torn trailing entry from session log")
	if err := f.Truncate(end); err != nil {
		return fmt.Errorf("failed to drop torn session entry: %w", err)
	}
	return nil
}

func (s *Session) newEntry(entryType models.EntryType) models.Entry {
	return models.NewEntry(entryType, s.store.now())
}

// LogContextChange records a new focus. An empty focus clears it.
func (s *Session) LogContextChange(focus string) error {
	entry := s.newEntry(models.EntryContextChange)
	entry.Context = &models.EntryContext{ProjectFocus: optional(focus)}
	if err := s.Append(entry); err != nil {
		return err
	}
	s.focus = focus
	return nil
}

// LogToolCall records one tool attempt. focus is the snapshot taken when
// the call started.
func (s *Session) LogToolCall(tool string, params json.RawMessage, result any, callErr *models.EntryError, focus string) error {
	entry := s.newEntry(models.EntryToolCall)
	entry.Tool = tool
	entry.Params = params
	entry.Error = callErr
	entry.Context = &models.EntryContext{ProjectFocus: optional(focus)}
	if callErr == nil {
		entry.Result = result
	}
	return s.Append(entry)
}

// writeEntry encodes the entry as a single line and issues one Write
func writeEntry(w io.Writer, entry models.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode session entry: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to append session entry: %w", err)
	}
	return nil
}

// Replay reads every entry of a session log in order. A final line with no
// newline is a torn write and is skipped with a warning. Any other
// undecodable line is a *CorruptLogError.
func Replay(path string) ([]models.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readEntries(f, path)
}

func readEntries(r io.Reader, path string) ([]models.Entry, error) {
	reader := bufio.NewReader(r)
	var entries []models.Entry

	for lineNo := 1; ; lineNo++ {
		line, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to read session log: %w", err)
		}
		complete := err == nil
		trimmed := bytes.TrimSpace(line)

		if len(trimmed) > 0 {
			var entry models.Entry
			if uerr := json.Unmarshal(trimmed, &entry); uerr != nil {
				if !complete {
					log.WithField("path", path).WithField("line", lineNo).Warn("Skipping partial trailing entry in session log")
					break
				}
				return nil, &CorruptLogError{Path: path, Line: lineNo, Err: uerr}
			}
			entries = append(entries, entry)
		}

		if !complete {
			break
		}
	}

	return entries, nil
}

// State is what replaying a log recovers
type State struct {
	Focus string
}

// Fold derives session state from entries. Only context_change entries
// matter, applied in order, last one wins.
func Fold(entries []models.Entry) State {
	var state State
	for _, entry := range entries {
		if entry.Type != models.EntryContextChange || entry.Context == nil {
			continue
		}
		if entry.Context.ProjectFocus == nil {
			state.Focus = ""
		} else {
			state.Focus = *entry.Context.ProjectFocus
		}
	}
	return state
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// NoSessionError is returned when a session is not found
type NoSessionError struct {
	SessionID string
}

func (e *NoSessionError) Error() string {
	return "session not found: " + e.SessionID
}

// CorruptLogError is returned when a complete log line cannot be decoded
type CorruptLogError struct {
	Path string
	Line int
	Err  error
}

func (e *CorruptLogError) Error() string {
	return fmt.Sprintf("corrupt session log %s at line %d: %v", e.Path, e.Line, e.Err)
}

func (e *CorruptLogError) Unwrap() error {
	return e.Err
}
