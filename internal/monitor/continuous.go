package monitor

import (
	"context"
	"fmt"
	"time"

	"fleetsync/internal/metrics"
	"fleetsync/internal/validator"
	"fleetsync/pkg/logging"
)

const (
	DefaultInterval     = 300 * time.Second
	DefaultErrorBackoff = 60 * time.Second
)

// ContinuousOptions configures MonitorContinuous.
type ContinuousOptions struct {
	Interval time.Duration
	// AutoFix runs the validator's repair path after a cycle that found drift.
	AutoFix bool
	// ErrorBackoff replaces Interval after a failed cycle.
	ErrorBackoff time.Duration
	// Trigger starts the next cycle early when it receives.
	Trigger <-chan struct{}
	// OnCycle is called after every cycle.
	OnCycle func(Cycle)
}

// Cycle is the outcome of one monitoring pass.
type Cycle struct {
	Started time.Time
	Drift   []DriftDetection
	Repairs []validator.RepairAction
	Err     error
}

// MonitorContinuous detects drift every Interval until ctx is cancelled.
// A cycle in progress when ctx is cancelled runs to completion, so its
// repairs are saved before the loop returns. Failed or panicking cycles
// are logged and retried after ErrorBackoff.
func (m *Monitor) MonitorContinuous(ctx context.Context, opts ContinuousOptions) error {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ErrorBackoff <= 0 {
		opts.ErrorBackoff = DefaultErrorBackoff
	}
	logging.Info("Monitor", "Starting continuous monitoring (interval: %s, auto-fix: %t)", opts.Interval, opts.AutoFix)

	for ctx.Err() == nil {
		cycle := m.runCycle(context.WithoutCancel(ctx), opts.AutoFix)

		result, wait := metrics.CycleOK, opts.Interval
		if cycle.Err != nil {
			logging.Error("Monitor", cycle.Err, "Monitoring cycle failed, retrying in %s", opts.ErrorBackoff)
			result, wait = metrics.CycleError, opts.ErrorBackoff
		}
		m.opts.Metrics.ObserveCycle(result, m.opts.Clock.Now())
		if opts.OnCycle != nil {
			opts.OnCycle(cycle)
		}

		if !waitNext(ctx, wait, opts.Trigger) {
			break
		}
	}
	logging.Info("Monitor", "Monitoring stopped")
	return nil
}

// waitNext blocks until d elapses or trigger fires. It returns false when
// ctx is cancelled first.
func waitNext(ctx context.Context, d time.Duration, trigger <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			return true
		case _, ok := <-trigger:
			if ok {
				logging.Debug("Monitor", "Configuration changed, starting cycle early")
				return true
			}
			trigger = nil
		}
	}
}

func (m *Monitor) runCycle(ctx context.Context, autoFix bool) (c Cycle) {
	c.Started = m.opts.Clock.Now()
	defer func() {
		if r := recover(); r != nil {
			c.Err = fmt.Errorf("panic during monitoring cycle: %v", r)
		}
	}()

	if n := m.opts.History.Prune(); n > 0 {
		logging.Debug("Monitor", "Pruned %d drift records", n)
		m.opts.Metrics.SetHistorySize(m.opts.History.Len())
	}

	drift, err := m.DetectDrift(ctx, nil)
	if err != nil {
		c.Err = err
		return c
	}
	c.Drift = drift
	if len(drift) == 0 {
		logging.Info("Monitor", "No configuration drift detected")
		return c
	}

	logging.Warn("Monitor", "Configuration drift detected: %d issues", len(drift))
	for _, d := range drift {
		logging.Warn("Monitor", "Drift on %s: %s", d.Node, d.DriftType)
	}

	if !autoFix || m.opts.Repairer == nil {
		return c
	}
	logging.Info("Monitor", "Auto-fixing %d drift issues", len(drift))
	_, repairs, err := m.opts.Repairer.ValidateAndRepair(ctx, nil, true)
	c.Repairs = repairs
	if err != nil {
		c.Err = err
		return c
	}
	if len(repairs) > 0 {
		logging.Info("Monitor", "Applied %d automatic fixes", len(repairs))
	}
	return c
}
