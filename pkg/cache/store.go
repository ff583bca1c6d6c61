package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxNameCollisions bounds the search for a free file name when several
// entries for the same path are written within the same millisecond.
const maxNameCollisions = 1000

// Config holds the store configuration.
type Config struct {
	// Dir is the cache directory. It is created if absent.
	Dir string

	// TTLSeconds is the entry time-to-live; TTLForever if zero
	TTLSeconds int64

	// MatchHeaders is the header policy used to fingerprint stored requests
	MatchHeaders fingerprint.MatchHeaders

	// ResetAtStartup deletes every cache file before the first load
	ResetAtStartup bool

	// Clock defaults to SystemClock
	Clock Clock

	// Logger defaults to the global logger with component=cache
	Logger *zerolog.Logger
}

// record is an indexed entry with its precomputed fingerprint.
type record struct {
	entry       *CachedEntry
	fingerprint string
}

// Stats summarizes the store contents.
type Stats struct {
	Entries      int
	Expired      int
	Fingerprints int
}

// Store maps request fingerprints to recorded responses, one file per entry.
// It is safe for concurrent use.
type Store struct {
	dir    string
	ttl    int64
	policy fingerprint.MatchHeaders
	clock  Clock
	logger zerolog.Logger

	mu    sync.RWMutex
	index map[string]record
}

// NewStore creates an empty store for cfg without touching the filesystem.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if cfg.TTLSeconds == 0 {
		cfg.TTLSeconds = TTLForever
	}
	if cfg.TTLSeconds < 0 {
		return nil, fmt.Errorf("ttl must be positive (got %d)", cfg.TTLSeconds)
	}
	if cfg.MatchHeaders == "" {
		cfg.MatchHeaders = fingerprint.DefaultMatchHeaders
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}

	logger := log.With().Str("component", "cache").Logger()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	return &Store{
		dir:    cfg.Dir,
		ttl:    cfg.TTLSeconds,
		policy: cfg.MatchHeaders,
		clock:  cfg.Clock,
		logger: logger,
		index:  make(map[string]record),
	}, nil
}

// Open creates a store, optionally resets the directory, and loads every
// existing entry. Any failure is fatal for the caller.
func Open(cfg Config) (*Store, error) {
	s, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.ResetAtStartup {
		removed, err := Reset(cfg.Dir)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("dir", cfg.Dir).Int("removed", removed).Msg("Cache reset at startup")
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *Store) Dir() string {
	return s.dir
}

// MatchHeaders returns the header policy used to fingerprint entries.
func (s *Store) MatchHeaders() fingerprint.MatchHeaders {
	return s.policy
}

// Now returns the current time from the store clock.
func (s *Store) Now() time.Time {
	return s.clock.Now()
}

// Load scans the cache directory and replaces the index with its contents.
// A single malformed file fails the whole load.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		return &CacheIOError{Op: "load", Path: s.dir, Err: err}
	}

	files, err := os.ReadDir(s.dir)
	if err != nil {
		CacheErrors.WithLabelValues("load").Inc()
		return &CacheIOError{Op: "load", Path: s.dir, Err: err}
	}

	index := make(map[string]record, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(s.dir, f.Name())

		entry, err := readEntry(path)
		if err != nil {
			CacheErrors.WithLabelValues("load").Inc()
			return err
		}
		fp, err := entry.Fingerprint(s.policy)
		if err != nil {
			CacheErrors.WithLabelValues("load").Inc()
			return &CacheIOError{Op: "decode", Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidEntry, err)}
		}
		index[path] = record{entry: entry, fingerprint: fp}
	}

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()
	CacheEntries.Set(float64(len(index)))

	s.logger.Info().
		Str("dir", s.dir).
		Int("entries", len(index)).
		Str("match_headers", string(s.policy)).
		Msg("Cache loaded")
	return nil
}

// Get returns a live entry whose fingerprint equals fp.
// Expired matches are treated as absent and left in place. When several live
// generations exist, the most recent one wins.
func (s *Store) Get(fp string) (*CachedEntry, bool) {
	now := s.clock.Now()

	s.mu.RLock()
	var found *CachedEntry
	for _, rec := range s.index {
		if rec.fingerprint != fp || rec.entry.IsExpired(s.ttl, now) {
			continue
		}
		if found == nil || rec.entry.TimeCreatedUtcMillis > found.TimeCreatedUtcMillis {
			found = rec.entry
		}
	}
	s.mu.RUnlock()

	if found == nil {
		CacheMisses.Inc()
		return nil, false
	}
	CacheHits.Inc()
	return found, true
}

// Put persists entry under a file name derived from seed and indexes it.
// It returns the path of the new file. Either the file is fully written and
// indexed, or nothing is persisted.
func (s *Store) Put(seed string, entry *CachedEntry) (string, error) {
	if entry == nil {
		return "", fmt.Errorf("cache entry cannot be nil")
	}
	if entry.TimeCreatedUtcMillis == 0 {
		entry.TimeCreatedUtcMillis = s.clock.Now().UnixMilli()
	}

	fp, err := entry.Fingerprint(s.policy)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		CacheErrors.WithLabelValues("write").Inc()
		return "", fmt.Errorf("marshal cache entry: %w", err)
	}

	path, err := s.writeUnique(seed, entry.TimeCreatedUtcMillis, data)
	if err != nil {
		CacheErrors.WithLabelValues("write").Inc()
		return "", err
	}

	s.mu.Lock()
	s.index[path] = record{entry: entry, fingerprint: fp}
	size := len(s.index)
	s.mu.Unlock()
	CacheEntries.Set(float64(size))

	s.logger.Debug().
		Str("file", path).
		Int("status_code", entry.StatusCode).
		Msg("Cached response")
	return path, nil
}

// writeUnique creates a new file for seed. The millisecond suffix is advanced
// past files that already exist so concurrent writers never share a path.
func (s *Store) writeUnique(seed string, millis int64, data []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &CacheIOError{Op: "write", Path: s.dir, Err: err}
	}

	for i := int64(0); i < maxNameCollisions; i++ {
		path := filepath.Join(s.dir, FileName(seed, millis+i))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", &CacheIOError{Op: "write", Path: path, Err: err}
		}

		_, err = f.Write(data)
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			os.Remove(path)
			return "", &CacheIOError{Op: "write", Path: path, Err: err}
		}
		return path, nil
	}

	return "", &CacheIOError{
		Op:   "write",
		Path: filepath.Join(s.dir, FileName(seed, millis)),
		Err:  fmt.Errorf("no free file name after %d attempts", maxNameCollisions),
	}
}

// Compact deletes the files of expired entries and drops them from the index.
// It returns the number of files removed.
func (s *Store) Compact() (int, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for path, rec := range s.index {
		if !rec.entry.IsExpired(s.ttl, now) {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			CacheErrors.WithLabelValues("compact").Inc()
			CacheEntries.Set(float64(len(s.index)))
			return removed, &CacheIOError{Op: "compact", Path: path, Err: err}
		}
		delete(s.index, path)
		removed++
	}
	CacheFilesRemoved.WithLabelValues("expired").Add(float64(removed))
	CacheEntries.Set(float64(len(s.index)))

	s.logger.Info().Str("dir", s.dir).Int("removed", removed).Msg("Cache compacted")
	return removed, nil
}

// Len returns the number of indexed entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Stats returns a summary of the indexed entries.
func (s *Store) Stats() Stats {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Entries: len(s.index)}
	fingerprints := make(map[string]struct{}, len(s.index))
	for _, rec := range s.index {
		if rec.entry.IsExpired(s.ttl, now) {
			stats.Expired++
		}
		fingerprints[rec.fingerprint] = struct{}{}
	}
	stats.Fingerprints = len(fingerprints)
	return stats
}

// Reset deletes every non-directory file in dir. The directory itself is
// kept (and created if absent). It returns the number of files removed.
func Reset(dir string) (int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		CacheErrors.WithLabelValues("reset").Inc()
		return 0, &CacheIOError{Op: "reset", Path: dir, Err: err}
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		CacheErrors.WithLabelValues("reset").Inc()
		return 0, &CacheIOError{Op: "reset", Path: dir, Err: err}
	}

	removed := 0
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		path := filepath.Join(dir, f.Name())
		if err := os.Remove(path); err != nil {
			CacheErrors.WithLabelValues("reset").Inc()
			CacheFilesRemoved.WithLabelValues("reset").Add(float64(removed))
			return removed, &CacheIOError{Op: "reset", Path: path, Err: err}
		}
		removed++
	}
	CacheFilesRemoved.WithLabelValues("reset").Add(float64(removed))
	return removed, nil
}

// readEntry decodes a single cache file.
func readEntry(path string) (*CachedEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CacheIOError{Op: "load", Path: path, Err: err}
	}

	var entry CachedEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, &CacheIOError{Op: "decode", Path: path, Err: fmt.Errorf("%w: %v", ErrInvalidEntry, err)}
	}
	if entry.StatusCode < 100 || entry.StatusCode > 999 {
		return nil, &CacheIOError{Op: "decode", Path: path, Err: fmt.Errorf("%w: status code %d", ErrInvalidEntry, entry.StatusCode)}
	}
	return &entry, nil
}
