// Package cleanup runs the periodic sweep of the scratch directory and the
// session store.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/satriahrh/audioscribe/domain/repositories"
	"github.com/satriahrh/audioscribe/internal/metrics"
)

const (
	DefaultInterval = 600 * time.Second
	DefaultMaxAge   = 600 * time.Second
)

// Config controls how often the sweeper runs and what counts as stale
type Config struct {
	Interval time.Duration
	MaxAge   time.Duration
}

// Result reports what a single pass removed
type Result struct {
	Files    int
	Sessions int
}

// Sweeper removes stale temp files and expired sessions on a schedule.
// It never coordinates with in-flight batches.
type Sweeper struct {
	store    repositories.TempStore
	sessions repositories.SessionRepository
	metrics  *metrics.Metrics
	config   Config
	logger   *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
}

// NewSweeper creates a sweeper. sessions may be nil.
func NewSweeper(
	store repositories.TempStore,
	sessions repositories.SessionRepository,
	m *metrics.Metrics,
	config Config,
	logger *zap.Logger,
) *Sweeper {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.MaxAge <= 0 {
		config.MaxAge = DefaultMaxAge
	}
	return &Sweeper{
		store:    store,
		sessions: sessions,
		metrics:  m,
		config:   config,
		logger:   logger,
	}
}

// Start runs one sweep right away and schedules the rest. Calling Start
// on a running sweeper does nothing.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.scheduler != nil {
		return nil
	}

	cl := &cronLogger{logger: s.logger}
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cl),
		cron.SkipIfStillRunning(cl),
	))

	schedule := fmt.Sprintf("@every %s", s.config.Interval)
	if _, err := scheduler.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	s.RunOnce(context.Background())

	scheduler.Start()
	s.scheduler = scheduler

	s.logger.Info("Temp file sweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("maxAge", s.config.MaxAge))
	return nil
}

// Stop halts the schedule and waits for a running sweep. Safe to call
// more than once.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	scheduler := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()

	if scheduler == nil {
		return
	}

	<-scheduler.Stop().Done()
	s.logger.Info("Temp file sweeper stopped")
}

// Running reports whether the schedule is active
func (s *Sweeper) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler != nil
}

// RunOnce performs a single sweep of files and sessions
func (s *Sweeper) RunOnce(ctx context.Context) Result {
	var result Result

	result.Files = s.store.Sweep(s.config.MaxAge)
	s.metrics.RecordSwept(ctx, result.Files)

	if s.sessions != nil {
		n, err := s.sessions.ExpireSessions(ctx)
		if err != nil {
			s.logger.Error("Failed to expire sessions", zap.Error(err))
		}
		result.Sessions = n
	}

	s.logger.Debug("Sweep completed",
		zap.Int("files", result.Files),
		zap.Int("sessions", result.Sessions))
	return result
}

// cronLogger adapts zap to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
