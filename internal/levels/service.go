package levels

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
)

// Fetcher produces one parsed result for a lake and period, or fails.
type Fetcher interface {
	Fetch(ctx context.Context, lakeID string, period Period) (Result, error)
}

// Cache is the subset of the snapshot store the Service depends on.
type Cache interface {
	Save(lakeID string, current CurrentLevel, samples []Sample, period Period, source DataSource) error
	Load(lakeID string, period Period) (Snapshot, bool)
}

// State is the observable state of a Service.
type State struct {
	Lake      *Lake         `json:"lake,omitempty"`
	Period    Period        `json:"period"`
	Current   *CurrentLevel `json:"current,omitempty"`
	Samples   []Sample      `json:"samples"`
	Loading   bool          `json:"loading"`
	Err       *Error        `json:"-"`
	Source    DataSource    `json:"source,omitempty"`
	FromCache bool          `json:"fromCache"`
	CacheAge  string        `json:"cacheAge,omitempty"`
	Stale     bool          `json:"stale"`
}

// ErrorMessage returns the user-facing error text, or "" when there is none.
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithStaleAfter sets the age after which cached data is flagged stale.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Service) { s.staleAfter = d }
}

// WithPeriod sets the initially selected period.
func WithPeriod(p Period) Option {
	return func(s *Service) { s.state.Period = p }
}

// WithObserver registers a callback invoked with a copy of the state after every transition.
func WithObserver(fn func(State)) Option {
	return func(s *Service) { s.observer = fn }
}

// Service coordinates the cache and the fetcher for one caller.
// It is not safe for concurrent use; the cache it wraps is.
type Service struct {
	fetcher    Fetcher
	cache      Cache
	logger     *slog.Logger
	now        func() time.Time
	staleAfter time.Duration
	observer   func(State)

	state State
}

// NewService creates a Service in its initial empty state.
func NewService(fetcher Fetcher, cache Cache, opts ...Option) *Service {
	s := &Service{
		fetcher:    fetcher,
		cache:      cache,
		logger:     slog.Default(),
		now:        time.Now,
		staleAfter: time.Hour,
		state:      State{Period: PeriodWeek},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Service) State() State {
	st := s.state
	st.Samples = append([]Sample(nil), s.state.Samples...)
	if s.state.Current != nil {
		cur := *s.state.Current
		st.Current = &cur
	}
	if s.state.Lake != nil {
		lake := *s.state.Lake
		st.Lake = &lake
	}
	return st
}

// SelectLake records the target lake and refreshes it for the selected period.
func (s *Service) SelectLake(ctx context.Context, lake Lake) {
	s.state.Lake = &lake
	s.FetchForPeriod(ctx, s.state.Period)
}

// FetchForPeriod runs one fetch for the selected lake. Failures are reported
// through State, never returned. A period outside the canonical set is
// rejected without touching the selected period, the cache or the network.
func (s *Service) FetchForPeriod(ctx context.Context, period Period) {
	if s.state.Lake == nil {
		s.state.Err = NewError(KindNoLakeSelected, msgNoLakeSelected, nil)
		s.notify()
		return
	}
	if !period.Valid() {
		s.state.Err = NewError(KindInvalidPeriod, msgInvalidPeriod, fmt.Errorf("period %q", period))
		s.notify()
		return
	}

	lakeID := s.state.Lake.ID
	s.state.Period = period
	s.state.Loading = true
	s.state.Err = nil

	cached, hasCached := s.cache.Load(lakeID, period)
	if hasCached {
		s.applySnapshot(cached)
	}
	s.notify()

	res, err := s.fetcher.Fetch(ctx, lakeID, period)
	if err != nil {
		s.logger.Warn("fetch failed", "lake", lakeID, "period", period, "error", err)
		if hasCached {
			s.applySnapshot(cached)
			s.state.Err = nil
		} else {
			s.state.Err = NewError(KindNoData, msgNoData, err)
		}
		s.state.Loading = false
		s.notify()
		return
	}

	cur := res.Current
	s.state.Current = &cur
	s.state.Samples = res.Samples
	s.state.Source = res.Source
	s.state.FromCache = false
	s.state.CacheAge = ""
	s.state.Stale = false

	if err := s.cache.Save(lakeID, res.Current, res.Samples, period, res.Source); err != nil {
		s.logger.Warn("cache write failed", "lake", lakeID, "period", period, "error", err)
	}

	s.state.Loading = false
	s.notify()
}

// Reset returns the Service to its initial empty state. The cache is untouched.
func (s *Service) Reset() {
	s.state = State{Period: s.state.Period}
	s.notify()
}

// Stats summarizes the current readings.
func (s *Service) Stats() Stats {
	return Summarize(s.state.Samples)
}

// Min returns the lowest current reading; ok is false when there are none.
func (s *Service) Min() (float64, bool) {
	st := s.Stats()
	return st.Min, st.OK
}

// Max returns the highest current reading; ok is false when there are none.
func (s *Service) Max() (float64, bool) {
	st := s.Stats()
	return st.Max, st.OK
}

// Mean returns the average of current readings; ok is false when there are none.
func (s *Service) Mean() (float64, bool) {
	st := s.Stats()
	return st.Mean, st.OK
}

func (s *Service) applySnapshot(snap Snapshot) {
	now := s.now()
	cur := snap.Current
	s.state.Current = &cur
	s.state.Samples = snap.Samples
	s.state.Source = snap.Source
	s.state.FromCache = true
	s.state.CacheAge = humanize.RelTime(snap.CapturedAt, now, "ago", "from now")
	s.state.Stale = now.Sub(snap.CapturedAt) > s.staleAfter
}

func (s *Service) notify() {
	if s.observer != nil {
		s.observer(s.State())
	}
}

// ServiceFactory builds a fresh Service with the given initial period.
type ServiceFactory func(period Period) *Service
