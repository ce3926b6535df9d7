package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TickFunc is invoked on every firing with the UTC calendar day it fired on.
type TickFunc func(ctx context.Context, day time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	// Spec is a six-field cron expression (seconds first) or a descriptor
	// such as "@daily".
	Spec       string
	Location   *time.Location
	RunOnStart bool
}

// Scheduler fires valuation runs on a cron schedule.
type Scheduler struct {
	opts     Options
	schedule cron.Schedule
	now      func() time.Time
	logger   zerolog.Logger
}

var parser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New parses the schedule.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	schedule, err := parser.Parse(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", opts.Spec, err)
	}
	return &Scheduler{
		opts:     opts,
		schedule: schedule,
		now:      time.Now,
		logger:   logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Next returns the first firing strictly after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.opts.Location))
}

// Run blocks, invoking tick on every firing until ctx is cancelled. Tick
// errors are logged and never stop the loop. Firings do not overlap.
func (s *Scheduler) Run(ctx context.Context, tick TickFunc) error {
	c := cron.New(
		cron.WithLocation(s.opts.Location),
		cron.WithParser(parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	c.Schedule(s.schedule, cron.FuncJob(func() {
		s.fire(ctx, tick)
	}))

	if s.opts.RunOnStart {
		s.logger.Info().Msg("running once on start")
		s.fire(ctx, tick)
	}

	c.Start()
	s.logger.Info().
		Str("cron", s.opts.Spec).
		Str("timezone", s.opts.Location.String()).
		Time("next_run", s.Next(s.now())).
		Msg("scheduler started")

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info().Msg("scheduler stopped")
	return ctx.Err()
}

func (s *Scheduler) fire(ctx context.Context, tick TickFunc) {
	if ctx.Err() != nil {
		return
	}
	day := calendarDay(s.now())
	s.logger.Info().Time("day", day).Msg("executing scheduled tick")
	if err := tick(ctx, day); err != nil {
		s.logger.Error().Err(err).Time("day", day).Msg("tick execution failed")
	}
}

func calendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
