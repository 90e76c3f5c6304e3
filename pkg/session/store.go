package session

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/prismon/vps-agent/internal/models"
	"github.com/prismon/vps-agent/pkg/logger"
)

var log *logrus.Entry

func init() {
	log = logger.WithName("session")
}

const (
	// DefaultTTL is how long an idle session stays resumable
	DefaultTTL = 24 * time.Hour
	// DefaultIDPrefix starts every generated session id
	DefaultIDPrefix = "sess_"
	// DefaultIDLength is the number of random characters after the prefix
	DefaultIDLength = 8

	logExt         = ".jsonl"
	idAlphabet     = "abcdefghijklmnopqrstuvwxyz0123456789"
	maxCreateTries = 16
)

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Store owns the directory of session logs. It holds no state across
// invocations beyond what is on disk.
type Store struct {
	dir      string
	ttl      time.Duration
	idPrefix string
	idLength int
	now      func() time.Time

	// expiredFn overrides the mtime rule; nil means use it
	expiredFn func(id string, modTime time.Time) bool
}

// Option configures a Store
type Option func(*Store)

// WithTTL sets the expiry window
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithIDFormat sets the generated id prefix and random suffix length
func WithIDFormat(prefix string, length int) Option {
	return func(s *Store) {
		if prefix != "" {
			s.idPrefix = prefix
		}
		if length > 0 {
			s.idLength = length
		}
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store rooted at dir
func NewStore(dir string, opts ...Option) *Store {
	s := &Store{
		dir:      dir,
		ttl:      DefaultTTL,
		idPrefix: DefaultIDPrefix,
		idLength: DefaultIDLength,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the directory holding session logs
func (s *Store) Dir() string {
	return s.dir
}

// TTL returns the expiry window
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// LogPath returns the log file for a session id
func (s *Store) LogPath(id string) string {
	return filepath.Join(s.dir, id+logExt)
}

// Resolve picks the session for this invocation. A resumeID that names a
// live session wins; otherwise continueLast picks the newest live session;
// otherwise, or when neither finds one, a new session is created.
func (s *Store) Resolve(resumeID string, continueLast bool) (*Session, error) {
	if resumeID != "" {
		sess, err := s.Resume(resumeID)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
		log.WithField("sessionID", resumeID).Info("Session not resumable, starting a new one")
	}

	if continueLast {
		sess, err := s.ContinueLast()
		if err != nil {
			return nil, err
		}
		if sess != nil {
			return sess, nil
		}
		log.Info("No live session to continue, starting a new one")
	}

	return s.Create()
}

// Create starts a new session and writes its session_start entry. The log
// file is created exclusively, so a colliding id is retried with a new one.
func (s *Store) Create() (*Session, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	for attempt := 0; attempt < maxCreateTries; attempt++ {
		id, err := s.generateID()
		if err != nil {
			return nil, err
		}

		path := s.LogPath(id)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				log.WithField("sessionID", id).Debug("Session id collision, retrying")
				continue
			}
			return nil, fmt.Errorf("failed to create session log: %w", err)
		}

		sess := &Session{ID: id, Origin: models.EntrySessionStart, path: path, store: s}
		entry := sess.newEntry(models.EntrySessionStart)
		werr := writeEntry(f, entry)
		cerr := f.Close()
		if werr != nil {
			return nil, werr
		}
		if cerr != nil {
			return nil, fmt.Errorf("failed to close session log: %w", cerr)
		}
		sess.entries = append(sess.entries, entry)

		log.WithField("sessionID", id).Debug("Created new session")
		return sess, nil
	}

	return nil, fmt.Errorf("failed to allocate a unique session id after %d attempts", maxCreateTries)
}

// Resume reopens a session by id. It returns nil without error when the
// session does not exist or has expired.
func (s *Store) Resume(id string) (*Session, error) {
	if !validID.MatchString(id) {
		return nil, nil
	}

	expired, err := s.IsExpired(id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	if expired {
		return nil, nil
	}

	return s.reopen(id, models.EntrySessionResume)
}

// ContinueLast reopens the most recently modified live session. Corrupt
// logs are skipped. It returns nil without error when there is none.
func (s *Store) ContinueLast() (*Session, error) {
	files, err := s.logFiles()
	if err != nil {
		return nil, err
	}

	for _, lf := range files {
		if s.expired(lf.id, lf.modTime) {
			continue
		}
		sess, err := s.reopen(lf.id, models.EntrySessionContinue)
		var corrupt *CorruptLogError
		if errors.As(err, &corrupt) {
			log.WithError(err).WithField("sessionID", lf.id).Warn("Skipping unreadable session log")
			continue
		}
		return sess, err
	}

	return nil, nil
}

// Open loads a session without writing to its log
func (s *Store) Open(id string) (*Session, error) {
	if !validID.MatchString(id) {
		return nil, &NoSessionError{SessionID: id}
	}

	path := s.LogPath(id)
	entries, err := Replay(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &NoSessionError{SessionID: id}
		}
		return nil, err
	}

	state := Fold(entries)
	return &Session{
		ID:      id,
		path:    path,
		store:   s,
		entries: entries,
		focus:   state.Focus,
	}, nil
}

// IsExpired reports whether the session's log is older than the TTL
func (s *Store) IsExpired(id string) (bool, error) {
	info, err := os.Stat(s.LogPath(id))
	if err != nil {
		return false, err
	}
	return s.expired(id, info.ModTime()), nil
}

// Summary describes a session for listings
type Summary struct {
	SessionID    string  `json:"session_id"`
	LastModified string  `json:"last_modified"`
	Expired      bool    `json:"expired"`
	ProjectFocus *string `json:"project_focus"`
	Entries      int     `json:"entries"`
}

// List returns sessions newest first. Expired sessions are included only
// when includeExpired is set.
func (s *Store) List(includeExpired bool) ([]Summary, error) {
	files, err := s.logFiles()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(files))
	for _, lf := range files {
		expired := s.expired(lf.id, lf.modTime)
		if expired && !includeExpired {
			continue
		}

		summary := Summary{
			SessionID:    lf.id,
			LastModified: models.Timestamp(lf.modTime),
			Expired:      expired,
		}

		entries, err := Replay(lf.path)
		if err != nil {
			log.WithError(err).WithField("sessionID", lf.id).Warn("Skipping unreadable session log")
			continue
		}
		state := Fold(entries)
		if state.Focus != "" {
			focus := state.Focus
			summary.ProjectFocus = &focus
		}
		summary.Entries = len(entries)

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// CleanupExpired deletes the logs of expired sessions and returns how many
// were removed. Failures on individual files are collected and returned
// together; the sweep still visits every file.
func (s *Store) CleanupExpired() (int, error) {
	files, err := s.logFiles()
	if err != nil {
		return 0, err
	}

	var result *multierror.Error
	deleted := 0
	for _, lf := range files {
		if !s.expired(lf.id, lf.modTime) {
			continue
		}
		if err := os.Remove(lf.path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			result = multierror.Append(result, fmt.Errorf("failed to remove %s: %w", lf.id, err))
			continue
		}
		deleted++
		log.WithField("sessionID", lf.id).Debug("Removed expired session")
	}

	return deleted, result.ErrorOrNil()
}

func (s *Store) reopen(id string, marker models.EntryType) (*Session, error) {
	sess, err := s.Open(id)
	if err != nil {
		return nil, err
	}
	sess.Origin = marker

	if err := sess.Append(sess.newEntry(marker)); err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"sessionID": id,
		"via":       marker,
		"focus":     sess.focus,
	}).Debug("Reopened session")

	return sess, nil
}

// expired applies the inactivity rule: a log untouched for longer than the
// TTL is expired. Exactly TTL old is still live.
func (s *Store) expired(id string, modTime time.Time) bool {
	if s.expiredFn != nil {
		return s.expiredFn(id, modTime)
	}
	return s.now().Sub(modTime) > s.ttl
}

func (s *Store) generateID() (string, error) {
	var b strings.Builder
	b.WriteString(s.idPrefix)
	alphabetSize := big.NewInt(int64(len(idAlphabet)))
	for i := 0; i < s.idLength; i++ {
		n, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", fmt.Errorf("failed to generate session id: %w", err)
		}
		b.WriteByte(idAlphabet[n.Int64()])
	}
	return b.String(), nil
}

type logFile struct {
	id      string
	path    string
	modTime time.Time
}

// logFiles lists session logs sorted by modification time, newest first
func (s *Store) logFiles() ([]logFile, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var files []logFile
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, s.idPrefix) || !strings.HasSuffix(name, logExt) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{
			id:      strings.TrimSuffix(name, logExt),
			path:    filepath.Join(s.dir, name),
			modTime: info.ModTime(),
		})
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})

	return files, nil
}
