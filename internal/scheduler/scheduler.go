package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/lake-levels/internal/levels"
)

// Scheduler periodically refreshes the snapshot cache for configured lakes.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	newService levels.ServiceFactory
	lakes      []levels.Lake
	periods    []levels.Period
	interval   time.Duration
	timeout    time.Duration
	logger     *slog.Logger
}

// New creates a new Scheduler. Services are single-writer, so newService is
// called once per lake on every run.
func New(lakes []levels.Lake, periods []levels.Period, interval time.Duration, newService levels.ServiceFactory, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if len(periods) == 0 {
		periods = []levels.Period{levels.PeriodWeek}
	}
	return &Scheduler{
		scheduler:  gocron.NewScheduler(time.UTC),
		newService: newService,
		lakes:      lakes,
		periods:    periods,
		interval:   interval,
		timeout:    2 * time.Minute,
		logger:     logger,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if len(s.lakes) == 0 {
		s.logger.Info("scheduler: no lakes configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.jobInterval()).Do(func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// jobInterval is the configured interval at full precision, defaulting to an hour.
func (s *Scheduler) jobInterval() time.Duration {
	if s.interval <= 0 {
		return time.Hour
	}
	return s.interval
}

// RunOnce refreshes every configured lake and period, one goroutine per lake.
// Periods for the same lake run sequentially on the same Service.
func (s *Scheduler) RunOnce(ctx context.Context) {
	s.logger.Info("scheduler: running cache warm-up", "lakes", len(s.lakes))

	var wg sync.WaitGroup
	for _, lake := range s.lakes {
		wg.Add(1)
		go func(lake levels.Lake) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			svc := s.newService(s.periods[0])
			svc.SelectLake(ctx, lake)
			s.report(lake, svc.State())
			for _, p := range s.periods[1:] {
				svc.FetchForPeriod(ctx, p)
				s.report(lake, svc.State())
			}
		}(lake)
	}
	wg.Wait()
	s.logger.Info("scheduler: completed cache warm-up")
}

func (s *Scheduler) report(lake levels.Lake, st levels.State) {
	switch {
	case st.Err != nil:
		s.logger.Warn("scheduler: warm-up failed", "lake", lake.ID, "period", st.Period, "error", st.ErrorMessage())
	case st.FromCache:
		s.logger.Warn("scheduler: upstream unavailable, cache kept", "lake", lake.ID, "period", st.Period, "age", st.CacheAge)
	default:
		s.logger.Debug("scheduler: warmed", "lake", lake.ID, "period", st.Period, "samples", len(st.Samples))
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
