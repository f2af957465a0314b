package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"

	"github.com/i474232898/weather-tables/internal/metrics"
	"github.com/i474232898/weather-tables/internal/weather"
)

// StationCheckpointer builds a station table for a query and stores it.
type StationCheckpointer interface {
	CheckpointStations(ctx context.Context, filename string, q weather.StationQuery) (*weather.ReorganizedTable, error)
}

// JobConfig describes the periodic station checkpoint.
type JobConfig struct {
	Interval     time.Duration
	Stations     []string
	Variables    []string
	Frequency    string
	LookbackDays int
	// Timeout bounds a single run. Zero means no limit.
	Timeout time.Duration
}

// Scheduler periodically checkpoints station data for the configured stations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   StationCheckpointer
	job       JobConfig
	metrics   *metrics.Collector
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a new Scheduler.
func New(job JobConfig, service StationCheckpointer, m *metrics.Collector, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	// Runs never overlap; a run that outlasts the interval delays the next one.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		service:   service,
		job:       job,
		metrics:   m,
		logger:    logger.With("component", "scheduler"),
		now:       time.Now,
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if len(s.job.Stations) == 0 {
		s.logger.Info("no stations configured; nothing to schedule")
		return nil
	}

	interval := s.job.Interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		ctx := context.Background()
		if s.job.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.job.Timeout)
			defer cancel()
		}
		// Failures are logged and counted; the next tick is the only retry.
		_ = s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("checkpoint job scheduled", "interval", interval.String(), "stations", len(s.job.Stations))
	return nil
}

// RunOnce checkpoints the last LookbackDays of station data under
// "stations_<YYYYMMDD>".
func (s *Scheduler) RunOnce(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With("run_id", runID)

	q, filename := s.query()
	logger.Info("running station checkpoint", "filename", filename,
		"from", q.DateFrom.Format(time.DateOnly), "to", q.DateTo.Format(time.DateOnly))

	table, err := s.service.CheckpointStations(ctx, filename, q)
	s.metrics.RecordScheduledRun(err)
	if err != nil {
		logger.Error("station checkpoint failed", "filename", filename, "error", err)
		return err
	}
	logger.Info("station checkpoint completed", "filename", filename, "rows", table.Len())
	return nil
}

func (s *Scheduler) query() (weather.StationQuery, string) {
	now := s.now().UTC()
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lookback := s.job.LookbackDays
	if lookback <= 0 {
		lookback = 7
	}
	from := to.AddDate(0, 0, -lookback)

	q := weather.StationQuery{
		Stations:    s.job.Stations,
		DateFrom:    from,
		DateTo:      to,
		Variables:   s.job.Variables,
		Frequencies: s.job.Frequency,
		Format:      "json",
	}
	return q, "stations_" + to.Format("20060102")
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
