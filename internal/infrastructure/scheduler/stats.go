// Package scheduler runs periodic background jobs.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/codepilot/assistant-api/internal/core/ports"
	"github.com/codepilot/assistant-api/internal/metrics"
)

const (
	DefaultStatsSchedule = "@every 5m"
	statsTimeout         = 30 * time.Second
)

// StatsJob refreshes the aggregate usage gauges from the usage repository.
type StatsJob struct {
	usage ports.UsageRepository
	log   zerolog.Logger
}

func NewStatsJob(usage ports.UsageRepository, log zerolog.Logger) *StatsJob {
	return &StatsJob{usage: usage, log: log}
}

// Run executes one refresh. It never returns an error; failures are logged
// and the gauges keep their previous values.
func (j *StatsJob) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, statsTimeout)
	defer cancel()

	totals, err := j.usage.Totals(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("failed to aggregate usage totals")
		return
	}

	metrics.UsersTotal.Set(float64(totals.Users))
	metrics.UsageTotal.WithLabelValues("analyses").Set(float64(totals.Analyses))
	metrics.UsageTotal.WithLabelValues("problems_solved").Set(float64(totals.ProblemsSolved))
	metrics.UsageTotal.WithLabelValues("chat_messages").Set(float64(totals.ChatMessages))

	j.log.Debug().
		Int64("users", totals.Users).
		Int64("analyses", totals.Analyses).
		Int64("problems_solved", totals.ProblemsSolved).
		Int64("chat_messages", totals.ChatMessages).
		Msg("usage totals refreshed")
}

// Scheduler wraps a cron runner bound to a base context.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	log  zerolog.Logger
}

// New creates a Scheduler whose jobs receive ctx.
func New(ctx context.Context, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:  ctx,
		log:  log,
	}
}

// Add registers fn under a standard cron spec or an "@every" descriptor.
func (s *Scheduler) Add(name, spec string, fn func(context.Context)) error {
	if spec == "" {
		spec = DefaultStatsSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		if s.ctx.Err() != nil {
			return
		}
		fn(s.ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s %q: %w", name, spec, err)
	}
	s.log.Info().Str("job", name).Str("schedule", spec).Msg("job scheduled")
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs up to ctx's deadline.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out")
	}
}
