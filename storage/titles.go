package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// File names inside the configuration directory.
const (
	TitlesFile        = "titles.txt"
	AppliedTitlesFile = "applied-titles.txt"
	HistoryFile       = "history.log"

	lockName = ".yttitle"
)

// TitleStore persists the pending title queue, the applied-title archive and
// the history log as plain line-oriented text files. It is the only writer of
// those files.
type TitleStore struct {
	dir string
	loc *time.Location
	mu  sync.Mutex
}

// Option configures a TitleStore.
type Option func(*TitleStore)

// WithLocation sets the timezone used to render and parse line timestamps.
func WithLocation(loc *time.Location) Option {
	return func(s *TitleStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewTitleStore creates a store rooted at dir, creating the directory if needed.
func NewTitleStore(dir string, opts ...Option) (*TitleStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("%w: config directory is required", ErrInvalidInput)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &StorageError{Op: "create", Entity: "directory", ID: dir, Err: err}
	}

	s := &TitleStore{dir: dir, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the configuration directory.
func (s *TitleStore) Dir() string { return s.dir }

// TitlesPath returns the path of the pending titles file.
func (s *TitleStore) TitlesPath() string { return filepath.Join(s.dir, TitlesFile) }

// AppliedPath returns the path of the applied-titles archive.
func (s *TitleStore) AppliedPath() string { return filepath.Join(s.dir, AppliedTitlesFile) }

// HistoryPath returns the path of the history log.
func (s *TitleStore) HistoryPath() string { return filepath.Join(s.dir, HistoryFile) }

// EnsureFiles creates missing files. The archive and history files start
// empty; an absent titles file is created holding seed (or empty when seed is
// blank). Existing files are never modified.
func (s *TitleStore) EnsureFiles(seed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range []struct{ entity, path string }{
		{"applied-titles", s.AppliedPath()},
		{"history", s.HistoryPath()},
	} {
		file, err := os.OpenFile(f.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err != nil {
			if errors.Is(err, os.ErrExist) {
				continue
			}
			return &StorageError{Op: "create", Entity: f.entity, ID: f.path, Err: err}
		}
		file.Close()
	}

	if _, err := os.Stat(s.TitlesPath()); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "stat", Entity: "titles", ID: s.TitlesPath(), Err: err}
	}

	var content []byte
	if seed = strings.TrimSpace(seed); seed != "" {
		content = []byte(seed + "\n")
	}
	if err := writeFileAtomic(s.TitlesPath(), content, 0o644); err != nil {
		return &StorageError{Op: "create", Entity: "titles", ID: s.TitlesPath(), Err: err}
	}
	return nil
}

// Load reads the pending titles, one per non-blank line, in file order.
// A missing file is an empty queue. An unreadable file also yields an empty
// queue together with the error, so callers can degrade instead of failing.
func (s *TitleStore) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.TitlesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return []string{}, &StorageError{Op: "read", Entity: "titles", ID: s.TitlesPath(), Err: err}
	}
	return nonBlankLines(data), nil
}

// Save overwrites the titles file with one title per line. The write goes
// through a temp file and rename so Load never observes a partial file.
func (s *TitleStore) Save(ctx context.Context, titles []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for _, t := range titles {
		if err := validTitle(t); err != nil {
			return &StorageError{Op: "write", Entity: "titles", ID: s.TitlesPath(), Err: err}
		}
		buf.WriteString(t)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeFileAtomic(s.TitlesPath(), buf.Bytes(), 0o644); err != nil {
		return &StorageError{Op: "write", Entity: "titles", ID: s.TitlesPath(), Err: err}
	}
	return nil
}

// Archive records an applied title: one line in the applied-titles file and
// one "Title updated" line in the history log. Both files are opened before
// either is written; if only one line lands the returned *ArchiveError
// matches ErrPartialArchive.
func (s *TitleStore) Archive(ctx context.Context, title string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	both := []string{AppliedTitlesFile, HistoryFile}
	if err := validTitle(title); err != nil {
		return &ArchiveError{Title: title, Failed: both, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := openAppend(s.AppliedPath())
	if err != nil {
		return &ArchiveError{Title: title, Failed: both,
			Err: &StorageError{Op: "append", Entity: "applied-titles", ID: s.AppliedPath(), Err: err}}
	}
	defer applied.Close()

	history, err := openAppend(s.HistoryPath())
	if err != nil {
		return &ArchiveError{Title: title, Failed: both,
			Err: &StorageError{Op: "append", Entity: "history", ID: s.HistoryPath(), Err: err}}
	}
	defer history.Close()

	if _, err := applied.WriteString(formatLine(at, s.loc, title)); err != nil {
		return &ArchiveError{Title: title, Failed: both,
			Err: &StorageError{Op: "append", Entity: "applied-titles", ID: s.AppliedPath(), Err: err}}
	}
	if _, err := history.WriteString(formatLine(at, s.loc, updatedPrefix+title)); err != nil {
		return &ArchiveError{Title: title, Written: both[:1], Failed: both[1:],
			Err: &StorageError{Op: "append", Entity: "history", ID: s.HistoryPath(), Err: err}}
	}
	return nil
}

// LogError appends an "Error: <detail>" line to the history log.
func (s *TitleStore) LogError(ctx context.Context, detail string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	detail = strings.Join(strings.Fields(detail), " ")

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := openAppend(s.HistoryPath())
	if err != nil {
		return &StorageError{Op: "append", Entity: "history", ID: s.HistoryPath(), Err: err}
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(at, s.loc, errorPrefix+detail)); err != nil {
		return &StorageError{Op: "append", Entity: "history", ID: s.HistoryPath(), Err: err}
	}
	return nil
}

// AppliedTitles returns the archive in file order. Malformed lines are skipped.
func (s *TitleStore) AppliedTitles(ctx context.Context) ([]AppliedTitleRecord, error) {
	lines, err := s.readLines(ctx, "applied-titles", s.AppliedPath())
	if err != nil {
		return nil, err
	}
	records := make([]AppliedTitleRecord, 0, len(lines))
	for _, line := range lines {
		if rec, ok := parseApplied(line, s.loc); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// History returns the history log in file order. Malformed lines are skipped.
func (s *TitleStore) History(ctx context.Context) ([]HistoryEntry, error) {
	lines, err := s.readLines(ctx, "history", s.HistoryPath())
	if err != nil {
		return nil, err
	}
	entries := make([]HistoryEntry, 0, len(lines))
	for _, line := range lines {
		if entry, ok := parseHistory(line, s.loc); ok {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

// Lock takes the advisory single-owner lock for the configuration directory.
func (s *TitleStore) Lock(timeout time.Duration) (*FileLock, error) {
	l := NewFileLock(filepath.Join(s.dir, lockName))
	if err := l.Lock(timeout); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *TitleStore) readLines(ctx context.Context, entity, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, &StorageError{Op: "read", Entity: entity, ID: path, Err: err}
	}
	return nonBlankLines(data), nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
}

// nonBlankLines splits on '\n' with no per-line length limit, so a long
// line can never cut off the entries after it.
func nonBlankLines(data []byte) []string {
	lines := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func validTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidInput)
	}
	if strings.ContainsAny(title, "\r\n") {
		return fmt.Errorf("%w: title contains a line break", ErrInvalidInput)
	}
	return nil
}
