package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// LicenseExpirer clears the license flag on devices whose license ran out.
type LicenseExpirer interface {
	ExpireLicenses(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper periodically deactivates expired device licenses.
type Sweeper struct {
	store    LicenseExpirer
	schedule string
	cron     *cron.Cron
	recorder Recorder
	logger   zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex
	running  bool
}

// NewSweeper creates a sweeper that runs on a cron schedule (e.g. "@hourly").
func NewSweeper(store LicenseExpirer, schedule string, recorder Recorder, logger zerolog.Logger) *Sweeper {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
		recorder: recorder,
		logger:   logger.With().Str("component", "license_sweeper").Logger(),
		now:      time.Now,
	}
}

// Start registers the sweep on the schedule and starts the cron runner.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("license sweeper already running")
	}
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunNow(context.Background()) }); err != nil {
		return err
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().Str("schedule", s.schedule).Msg("license sweeper started")
	return nil
}

// Stop stops the scheduler. The returned context is done once a running sweep finishes.
func (s *Sweeper) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.running = false
	s.logger.Info().Msg("stopping license sweeper")
	return s.cron.Stop()
}

// RunNow performs one sweep and returns the number of devices deactivated.
func (s *Sweeper) RunNow(ctx context.Context) int64 {
	n, err := s.store.ExpireLicenses(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("license sweep failed")
		return 0
	}
	s.recorder.LicensesExpired(n)
	if n > 0 {
		s.logger.Info().Int64("devices", n).Msg("expired device licenses deactivated")
	}
	return n
}
