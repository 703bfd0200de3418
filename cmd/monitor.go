package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fleetsync/internal/monitor"
	"fleetsync/pkg/logging"
)

type monitorOptions struct {
	interval    time.Duration
	autoFix     bool
	metricsAddr string
	noWatch     bool
}

func newMonitorCmd() *cobra.Command {
	opts := &monitorOptions{}
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Watch the fleet continuously and record configuration drift",
		Long: `Run drift detection every interval until interrupted. Each cycle checks
every enabled node and records the differences in the drift history. With
--auto-fix, cycles that find drift run the validator's repair path and save
the corrected configuration.

Editing the fleet configuration starts a cycle early. When started by
systemd the command reports readiness, answers the watchdog and publishes
the last cycle's outcome as the unit status.`,
		Example: `  fleetsync monitor
  fleetsync monitor --interval 10m --auto-fix --metrics-addr :9465`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMonitor(cmd, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "time between cycles (default from settings, 5m)")
	cmd.Flags().BoolVar(&opts.autoFix, "auto-fix", false, "repair auto-fixable drift after each cycle")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9465")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "do not start a cycle when the configuration file changes")
	return cmd
}

func runMonitor(cmd *cobra.Command, opts *monitorOptions) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	s := settings.Monitor
	if cmd.Flags().Changed("interval") {
		s.Interval = opts.interval
	}
	if cmd.Flags().Changed("auto-fix") {
		s.AutoFix = opts.autoFix
	}
	if cmd.Flags().Changed("metrics-addr") {
		s.MetricsAddr = opts.metricsAddr
	}
	if s.Interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", s.Interval)
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	if s.MetricsAddr != "" {
		g.Go(func() error {
			return a.metrics.Serve(ctx, s.MetricsAddr)
		})
	}

	var trigger <-chan struct{}
	if s.WatchConfig && !opts.noWatch {
		w := monitor.NewConfigWatcher(a.store.Path(), s.ConfigDebounce)
		if err := w.Start(ctx); err != nil {
			logging.Warn("Monitor", "Not watching %s for changes: %v", a.store.Path(), err)
		} else {
			defer w.Stop()
			trigger = w.Changes()
		}
	}

	if interval, err := daemon.SdWatchdogEnabled(false); err == nil && interval > 0 {
		g.Go(func() error {
			pingWatchdog(ctx, interval/2)
			return nil
		})
	}

	g.Go(func() error {
		return a.monitor.MonitorContinuous(ctx, monitor.ContinuousOptions{
			Interval:     s.Interval,
			AutoFix:      s.AutoFix,
			ErrorBackoff: s.ErrorBackoff,
			Trigger:      trigger,
			OnCycle:      notifyCycle,
		})
	})

	notify(daemon.SdNotifyReady)
	err = g.Wait()
	notify(daemon.SdNotifyStopping)
	return err
}

// pingWatchdog keeps the systemd watchdog fed until ctx is done.
func pingWatchdog(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			notify(daemon.SdNotifyWatchdog)
		}
	}
}

// notifyCycle publishes the outcome of a cycle as the systemd unit status.
func notifyCycle(c monitor.Cycle) {
	notify("STATUS=" + cycleStatus(c))
}

func cycleStatus(c monitor.Cycle) string {
	at := c.Started.Format(time.RFC3339)
	if c.Err != nil {
		return fmt.Sprintf("Last cycle %s failed: %v", at, c.Err)
	}
	status := fmt.Sprintf("Last cycle %s: %d drift records", at, len(c.Drift))
	if len(c.Repairs) > 0 {
		status += fmt.Sprintf(", %d repairs", len(c.Repairs))
	}
	return status
}

// notify is a no-op when not running under systemd.
func notify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logging.Debug("Monitor", "sd_notify %q failed: %v", state, err)
	}
}
