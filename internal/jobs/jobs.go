// Package jobs runs the periodic maintenance work of the API process.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"inkwell/internal/observability"

	"github.com/robfig/cron/v3"
)

// Default schedules.
const (
	TokenPurgeSchedule     = "@hourly"
	SitemapRefreshSchedule = "@every 15m"
)

// Job is one unit of scheduled work.
type Job func(ctx context.Context) error

// Parser accepts standard five-field expressions, an optional seconds field
// and descriptors such as "@hourly" or "@every 15m".
var Parser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// TokenPurger deletes user tokens that expired before the given time.
type TokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// SitemapRefresher rebuilds the cached sitemap.
type SitemapRefresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler runs named jobs on cron schedules. Overlapping runs of the same
// job are skipped and a panicking job does not stop the scheduler.
type Scheduler struct {
	cron       *cron.Cron
	logger     *slog.Logger
	jobTimeout time.Duration

	mu      sync.Mutex
	ctx     context.Context
	started bool
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithLogger overrides the scheduler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithJobTimeout bounds every job execution.
func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Scheduler) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:     slog.Default(),
		jobTimeout: 5 * time.Minute,
		ctx:        context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cronLogger := cron.VerbosePrintfLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelDebug))
	s.cron = cron.New(
		cron.WithParser(Parser),
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	return s
}

// Add registers job under name.
func (s *Scheduler) Add(name, expression string, job Job) error {
	if name == "" {
		return errors.New("job name cannot be empty")
	}
	if job == nil {
		return errors.New("job cannot be nil")
	}
	if _, err := Parser.Parse(expression); err != nil {
		return fmt.Errorf("invalid cron expression for %s: %w", name, err)
	}
	if _, err := s.cron.AddFunc(expression, func() { _ = s.Run(s.runContext(), name, job) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Run executes job immediately with the configured timeout and records the outcome.
func (s *Scheduler) Run(ctx context.Context, name string, job Job) error {
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.jobTimeout)
		defer cancel()
	}
	start := time.Now()
	err := job(ctx)
	observability.LogJobRun(ctx, name, err, map[string]any{"duration_ms": time.Since(start).Milliseconds()})
	return err
}

// Start begins running jobs until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("scheduler already started")
	}
	s.ctx = ctx
	s.started = true
	s.cron.Start()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// Entries reports how many jobs are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// PurgeTokens returns the job deleting expired verification and reset tokens.
func PurgeTokens(tokens TokenPurger, now func() time.Time) Job {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context) error {
		n, err := tokens.PurgeExpired(ctx, now())
		if err != nil {
			return fmt.Errorf("purge user tokens: %w", err)
		}
		if n > 0 {
			observability.GlobalLogger.InfoContext(ctx, "purged expired user tokens", slog.Int64("count", n))
		}
		return nil
	}
}

// RefreshSitemap returns the job rebuilding the cached sitemap.
func RefreshSitemap(sitemap SitemapRefresher) Job {
	return func(ctx context.Context) error {
		if err := sitemap.Refresh(ctx); err != nil {
			return fmt.Errorf("refresh sitemap: %w", err)
		}
		return nil
	}
}

// RegisterDefaults adds the token purge and sitemap refresh jobs.
func (s *Scheduler) RegisterDefaults(tokens TokenPurger, sitemap SitemapRefresher) error {
	if err := s.Add("purge_user_tokens", TokenPurgeSchedule, PurgeTokens(tokens, nil)); err != nil {
		return err
	}
	return s.Add("refresh_sitemap", SitemapRefreshSchedule, RefreshSitemap(sitemap))
}
