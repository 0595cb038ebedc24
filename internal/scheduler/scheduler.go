package scheduler

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"portwatch/internal/domain"
	"portwatch/internal/probe"
	"portwatch/internal/repo"
)

const (
	DefaultTick        = time.Second
	DefaultRetention   = 31 * 24 * time.Hour
	DefaultIntervalSec = 60
)

// Scheduler drives probing rounds off a fixed 1s tick. Each tick it samples
// the settings store, counts down the probe interval, and when the countdown
// hits zero runs one round: retention sweep, target snapshot, probe, persist.
//
// The round executes synchronously inside the tick loop, so rounds never
// overlap; a round slower than the interval delays the next countdown rather
// than stacking probes (cadence is anchored to round completion).
type Scheduler struct {
	Logger    *zap.Logger
	Targets   repo.TargetStore
	Results   repo.ResultStore
	Settings  repo.SettingStore
	Prober    *probe.Prober
	Tick      time.Duration
	Retention time.Duration

	elapsedTicks    int
	currentInterval int
}

func New(
	logger *zap.Logger,
	targets repo.TargetStore,
	results repo.ResultStore,
	settings repo.SettingStore,
	prober *probe.Prober,
) *Scheduler {
	return &Scheduler{
		Logger:          logger,
		Targets:         targets,
		Results:         results,
		Settings:        settings,
		Prober:          prober,
		Tick:            DefaultTick,
		Retention:       DefaultRetention,
		currentInterval: DefaultIntervalSec,
	}
}

// Run loops until ctx is cancelled. Store failures inside a tick are logged
// and the loop proceeds; nothing short of cancellation stops it.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.Tick)
	defer t.Stop()

	s.Logger.Info("scheduler_started",
		zap.Duration("tick", s.Tick),
		zap.Duration("retention", s.Retention),
	)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.step(ctx, time.Now().UTC())
		}
	}
}

// step is one tick of the state machine. Exported behavior is specified by
// the tests; keeping it separate from Run lets them drive virtual time.
func (s *Scheduler) step(ctx context.Context, now time.Time) {
	status := s.readStatus(ctx)
	interval := s.readInterval(ctx)

	// An interval change takes effect immediately; the old countdown is
	// abandoned.
	if interval != s.currentInterval {
		s.Logger.Info("interval_changed",
			zap.Int("old", s.currentInterval),
			zap.Int("new", interval),
		)
		s.currentInterval = interval
		s.elapsedTicks = 0
	}

	// Stopped resets the countdown so re-enabling starts fresh instead of
	// firing from stale state.
	if status != domain.TaskRunning {
		s.elapsedTicks = 0
		return
	}

	if s.elapsedTicks == 0 {
		s.runRound(ctx, now)
	}
	s.elapsedTicks = (s.elapsedTicks + 1) % s.currentInterval
}

// runRound executes one probing round. Every store failure is contained
// here: logged, round degrades, loop survives.
func (s *Scheduler) runRound(ctx context.Context, now time.Time) {
	cutoff := now.Add(-s.Retention)
	if deleted, err := s.Results.Purge(ctx, cutoff); err != nil {
		s.Logger.Warn("sweep_error", zap.Error(err))
	} else if deleted > 0 {
		s.Logger.Info("sweep_complete", zap.Int64("deleted", deleted))
	}

	targets, err := s.Targets.ListActive(ctx)
	if err != nil {
		s.Logger.Warn("target_snapshot_error", zap.Error(err))
		return
	}
	if len(targets) == 0 {
		s.Logger.Debug("round_skipped_no_targets")
		return
	}

	start := time.Now()
	results := s.Prober.Probe(ctx, targets)

	var successful int
	for _, r := range results {
		if r.IsSuccessful {
			successful++
		}
	}

	if err := s.Results.Append(ctx, results); err != nil {
		s.Logger.Warn("append_error",
			zap.Int("results", len(results)),
			zap.Error(err),
		)
		return
	}
	s.Logger.Info("round_complete",
		zap.Int("targets", len(targets)),
		zap.Int("successful", successful),
		zap.Duration("took", time.Since(start)),
	)
}

// readStatus samples task_status. Unreadable or unknown values behave as
// stopped; the next tick retries.
func (s *Scheduler) readStatus(ctx context.Context) string {
	v, err := s.Settings.GetSetting(ctx, domain.SettingTaskStatus)
	if err != nil {
		s.Logger.Warn("status_read_error", zap.Error(err))
		return domain.TaskStopped
	}
	if err := domain.ValidateTaskStatus(v); err != nil {
		s.Logger.Warn("status_invalid", zap.String("value", v))
		return domain.TaskStopped
	}
	return v
}

// readInterval samples probe_interval_seconds, keeping the last-seen value
// when the store is unreadable or holds garbage.
func (s *Scheduler) readInterval(ctx context.Context) int {
	v, err := s.Settings.GetSetting(ctx, domain.SettingProbeInterval)
	if err != nil {
		s.Logger.Warn("interval_read_error", zap.Error(err))
		return s.currentInterval
	}
	n, err := strconv.Atoi(v)
	if err != nil || domain.ValidateProbeInterval(n) != nil {
		s.Logger.Warn("interval_invalid", zap.String("value", v))
		return s.currentInterval
	}
	return n
}
