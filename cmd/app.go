package cmd

import (
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"fleetsync/internal/discovery"
	"fleetsync/internal/executor"
	"fleetsync/internal/fleet"
	"fleetsync/internal/formatting"
	"fleetsync/internal/metrics"
	"fleetsync/internal/monitor"
	"fleetsync/internal/template"
	"fleetsync/internal/validator"
)

// app wires the components a command needs from the loaded settings.
type app struct {
	store     *fleet.FileStore
	ssh       *executor.SSHExecutor
	engine    *discovery.Engine
	metrics   *metrics.Recorder
	validator *validator.Validator
	monitor   *monitor.Monitor
	templates *template.Manager
	format    formatting.OutputFormat
	out       formatting.Formatter
}

func newApp(cmd *cobra.Command) (*app, error) {
	format, err := formatting.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}

	s := settings
	rec := metrics.New(nil)

	ssh := executor.NewSSHExecutor(executor.SSHConfig{
		DefaultUser:           s.SSH.User,
		DefaultPort:           s.SSH.Port,
		KeyFiles:              s.SSH.KeyFiles,
		KnownHostsFile:        s.SSH.KnownHostsFile,
		InsecureIgnoreHostKey: s.SSH.InsecureIgnoreHostKey,
		ConnectTimeout:        s.SSH.ConnectTimeout,
	})
	exec := executor.NewMux(executor.NewLocalExecutor(), ssh)
	engine := discovery.NewEngine(exec, executor.NewExecChecker(exec), discovery.Options{
		CandidatePaths:   s.Discovery.CandidatePaths,
		CandidatePorts:   s.Discovery.CandidatePorts,
		PathTimeout:      s.Discovery.PathTimeout,
		ContainerTimeout: s.Discovery.ContainerTimeout,
		PortTimeout:      s.Discovery.PortTimeout,
		Metrics:          rec,
	})

	store := fleet.NewFileStore(s.FleetConfig)
	v := validator.New(store, engine, validator.Options{
		Concurrency: s.Discovery.Concurrency,
		Metrics:     rec,
	})
	m := monitor.New(store, engine, monitor.Options{
		Concurrency: s.Discovery.Concurrency,
		History: monitor.NewHistory(monitor.HistoryOptions{
			RetentionDays: s.Monitor.RetentionDays,
			MaxEntries:    s.Monitor.MaxHistory,
		}),
		Metrics:  rec,
		Repairer: v,
	})

	templates := template.NewManager(template.NewStorage(s.TemplatesDir))
	if _, err := templates.LoadDirectory(); err != nil {
		ssh.Close()
		return nil, err
	}

	return &app{
		store:     store,
		ssh:       ssh,
		engine:    engine,
		metrics:   rec,
		validator: v,
		monitor:   m,
		templates: templates,
		format:    format,
		out:       formatting.New(formatting.Options{Format: format, Output: cmd.OutOrStdout()}),
	}, nil
}

// withSpinner runs fn behind a progress spinner on stderr. Structured output
// formats get no spinner so stdout stays machine readable.
func (a *app) withSpinner(cmd *cobra.Command, suffix string, fn func() error) error {
	if a.format != formatting.FormatTable {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " " + suffix
	s.Start()
	defer s.Stop()
	return fn()
}

// Close releases cached SSH connections.
func (a *app) Close() error {
	return a.ssh.Close()
}
