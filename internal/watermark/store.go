// Package watermark persists the "last checked" instant as a millisecond
// epoch timestamp in a single text file.
package watermark

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FileName is the watermark file inside the application directory.
const FileName = "gmail.storage"

// Timestamp is milliseconds since the Unix epoch.
type Timestamp int64

// FromTime converts t to a millisecond Timestamp.
func FromTime(t time.Time) Timestamp { return Timestamp(t.UnixMilli()) }

// Seconds truncates the timestamp to whole seconds since the epoch.
func (t Timestamp) Seconds() int64 { return int64(t) / 1000 }

func (t Timestamp) String() string { return strconv.FormatInt(int64(t), 10) }

var errMalformed = errors.New("malformed watermark")

// Store reads and writes the watermark file. It does no locking: only one
// invocation is expected to touch the file at a time.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store backed by path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Read returns the stored timestamp. ok is false when no watermark is stored
// or the file contents are not a non-negative integer; the latter is logged
// and never returned as an error.
func (s *Store) Read() (ts Timestamp, ok bool, err error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("read watermark %s: %w", s.path, err)
	}
	ts, err = parse(string(data))
	if err != nil {
		s.logger.Warn("ignoring invalid watermark", "path", s.path, "error", err)
		return 0, false, nil
	}
	return ts, true, nil
}

func parse(raw string) (Timestamp, error) {
	raw = strings.TrimSpace(raw)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errMalformed, raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("%w: negative value %d", errMalformed, v)
	}
	return Timestamp(v), nil
}

// Write replaces the stored watermark with ts.
func (s *Store) Write(ts Timestamp) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("ensure watermark dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp watermark: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(ts.String()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write watermark: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp watermark: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace watermark %s: %w", s.path, err)
	}
	return nil
}

// Clear removes the watermark. It reports whether anything was removed.
func (s *Store) Clear() (bool, error) {
	if err := os.Remove(s.path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove watermark %s: %w", s.path, err)
	}
	return true, nil
}
