package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/i474232898/lake-levels/internal/common"
	"github.com/i474232898/lake-levels/internal/levels"
	"github.com/i474232898/lake-levels/internal/metrics"
)

// DefaultMaxAge is how long a snapshot stays loadable.
const DefaultMaxAge = 7 * 24 * time.Hour

const (
	fileExt    = ".json"
	tmpPrefix  = ".tmp-"
	tmpPattern = tmpPrefix + "*"
)

var (
	validate = validator.New()

	// Percent-encoding keeps the mapping reversible, so distinct keys never share a file.
	keyReplacer = strings.NewReplacer("%", "%25", "/", "%2F", "\\", "%5C", ".", "%2E")
)

// Option configures a DiskStore.
type Option func(*DiskStore)

// WithMaxAge sets the age after which snapshots are discarded.
func WithMaxAge(d time.Duration) Option {
	return func(s *DiskStore) { s.maxAge = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *DiskStore) { s.now = now }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *DiskStore) { s.logger = l }
}

// WithMetrics records cache events on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DiskStore) { s.metrics = m }
}

// DiskStore keeps one JSON snapshot file per (lake, period) under dir.
// All operations serialize on a single mutex, so it is safe for concurrent use.
type DiskStore struct {
	mu sync.Mutex

	dir     string
	maxAge  time.Duration
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewDiskStore opens (creating if needed) a snapshot store rooted at dir.
func NewDiskStore(dir string, opts ...Option) (*DiskStore, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	s := &DiskStore{
		dir:    dir,
		maxAge: DefaultMaxAge,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the cache directory.
func (s *DiskStore) Dir() string {
	return s.dir
}

// Save writes the snapshot for (lakeID, period), replacing any existing one.
// The file is written to a temp file and renamed into place.
func (s *DiskStore) Save(lakeID string, current levels.CurrentLevel, samples []levels.Sample, period levels.Period, source levels.DataSource) error {
	snap := levels.Snapshot{
		LakeID:     lakeID,
		Period:     period,
		Current:    current,
		Samples:    samples,
		Source:     source,
		CapturedAt: s.now().UTC(),
	}
	if snap.Samples == nil {
		snap.Samples = []levels.Sample{}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		s.metrics.CacheEvent(metrics.CacheWriteError)
		return levels.NewError(levels.KindCacheWrite, "encoding snapshot", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.writeAtomic(s.pathFor(lakeID, period), data); err != nil {
		s.metrics.CacheEvent(metrics.CacheWriteError)
		return levels.NewError(levels.KindCacheWrite, "writing snapshot", err)
	}
	s.metrics.CacheEvent(metrics.CacheWrite)
	return nil
}

// Load returns the snapshot for (lakeID, period). Missing, unreadable,
// mismatched, future-dated and expired snapshots are all reported as absent;
// the invalid ones are removed.
func (s *DiskStore) Load(lakeID string, period levels.Period) (levels.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.load(lakeID, period)
}

func (s *DiskStore) load(lakeID string, period levels.Period) (levels.Snapshot, bool) {
	path := s.pathFor(lakeID, period)
	log := s.logger.With("lake", lakeID, "period", period, "path", path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.metrics.CacheEvent(metrics.CacheMiss)
		return levels.Snapshot{}, false
	}
	if err != nil {
		log.Warn("reading cached snapshot", "error", err)
		s.metrics.CacheEvent(metrics.CacheMiss)
		return levels.Snapshot{}, false
	}

	var snap levels.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		s.discard(log, path, metrics.CacheCorrupt, "corrupt cached snapshot", err)
		return levels.Snapshot{}, false
	}
	if err := validate.Struct(snap); err != nil {
		s.discard(log, path, metrics.CacheCorrupt, "malformed cached snapshot", err)
		return levels.Snapshot{}, false
	}
	if snap.LakeID != lakeID || snap.Period != period {
		s.discard(log, path, metrics.CacheIntegrity, "cached snapshot does not match key",
			fmt.Errorf("stored %s/%s", snap.LakeID, snap.Period))
		return levels.Snapshot{}, false
	}

	now := s.now()
	if snap.CapturedAt.After(now) {
		s.discard(log, path, metrics.CacheFuture, "cached snapshot is from the future",
			fmt.Errorf("captured at %s", snap.CapturedAt.Format(time.RFC3339)))
		return levels.Snapshot{}, false
	}
	if age := now.Sub(snap.CapturedAt); age > s.maxAge {
		s.discard(log, path, metrics.CacheExpired, "cached snapshot expired",
			fmt.Errorf("age %s exceeds %s", age.Round(time.Second), s.maxAge))
		return levels.Snapshot{}, false
	}

	s.metrics.CacheEvent(metrics.CacheHit)
	return snap, true
}

// HasAny reports whether any canonical period has a loadable snapshot for lakeID.
func (s *DiskStore) HasAny(lakeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range levels.Periods {
		if _, ok := s.load(lakeID, p); ok {
			return true
		}
	}
	return false
}

// Clear removes the snapshots of every canonical period for lakeID.
func (s *DiskStore) Clear(lakeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for _, p := range levels.Periods {
		if err := os.Remove(s.pathFor(lakeID, p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.metrics.CacheEvent(metrics.CacheClear)
	return errors.Join(errs...)
}

// ClearAll removes every snapshot in the store, along with any temp files
// left behind by an interrupted write.
func (s *DiskStore) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.artifacts(true)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	s.metrics.CacheEvent(metrics.CacheClear)
	return errors.Join(errs...)
}

// TotalSize returns the combined size in bytes of all snapshot files.
func (s *DiskStore) TotalSize() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.artifacts(false)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

// FormattedSize returns TotalSize in human-readable form, e.g. "12 kB".
func (s *DiskStore) FormattedSize() string {
	n, err := s.TotalSize()
	if err != nil {
		s.logger.Warn("computing cache size", "error", err)
		return humanize.Bytes(0)
	}
	return humanize.Bytes(uint64(n))
}

// artifacts lists snapshot files, plus temp files left by interrupted writes
// when withTemp is set. Writes hold the lock, so no temp file is in flight.
func (s *DiskStore) artifacts(withTemp bool) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing cache directory: %w", err)
	}
	out := entries[:0]
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(e.Name(), fileExt) || (withTemp && strings.HasPrefix(e.Name(), tmpPrefix)) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *DiskStore) discard(log *slog.Logger, path, event, msg string, cause error) {
	log.Warn(msg, "error", cause)
	s.metrics.CacheEvent(event)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("removing invalid snapshot", "error", err)
	}
}

func (s *DiskStore) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, tmpPattern)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *DiskStore) pathFor(lakeID string, period levels.Period) string {
	return filepath.Join(s.dir, SanitizeKey(lakeID)+"_"+SanitizeKey(string(period))+fileExt)
}

// SanitizeKey percent-encodes path separators, dots and '%' so a key
// component can never address a file outside the cache directory.
func SanitizeKey(s string) string {
	if !common.HasAny(s, "%", "/", "\\", ".") {
		return s
	}
	return keyReplacer.Replace(s)
}
