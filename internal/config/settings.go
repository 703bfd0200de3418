package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Settings is the top-level application configuration for fleetsync.
type Settings struct {
	// FleetConfig is the path of the fleet document.
	FleetConfig string `yaml:"fleetConfig,omitempty"`
	// TemplatesDir holds persisted configuration templates.
	TemplatesDir string `yaml:"templatesDir,omitempty"`
	LogLevel     string `yaml:"logLevel,omitempty"`

	Discovery DiscoverySettings `yaml:"discovery"`
	SSH       SSHSettings       `yaml:"ssh"`
	Monitor   MonitorSettings   `yaml:"monitor"`
}

// DiscoverySettings bounds the checks run against each node.
type DiscoverySettings struct {
	PathTimeout      time.Duration `yaml:"pathTimeout,omitempty"`
	ContainerTimeout time.Duration `yaml:"containerTimeout,omitempty"`
	PortTimeout      time.Duration `yaml:"portTimeout,omitempty"`
	// CandidatePaths and CandidatePorts replace the built-in lists when set.
	CandidatePaths []string `yaml:"candidatePaths,omitempty"`
	CandidatePorts []int    `yaml:"candidatePorts,omitempty"`
	// Concurrency is the number of nodes checked in parallel (1 = sequential).
	Concurrency int `yaml:"concurrency,omitempty"`
}

// SSHSettings configures the remote executor.
type SSHSettings struct {
	Port                  int           `yaml:"port,omitempty"`
	User                  string        `yaml:"user,omitempty"`
	KeyFiles              []string      `yaml:"keyFiles,omitempty"`
	KnownHostsFile        string        `yaml:"knownHostsFile,omitempty"`
	InsecureIgnoreHostKey bool          `yaml:"insecureIgnoreHostKey,omitempty"`
	ConnectTimeout        time.Duration `yaml:"connectTimeout,omitempty"`
}

// MonitorSettings configures `fleetsync monitor`.
type MonitorSettings struct {
	Interval      time.Duration `yaml:"interval,omitempty"`
	ErrorBackoff  time.Duration `yaml:"errorBackoff,omitempty"`
	RetentionDays int           `yaml:"retentionDays,omitempty"`
	MaxHistory    int           `yaml:"maxHistory,omitempty"`
	AutoFix       bool          `yaml:"autoFix,omitempty"`
	// WatchConfig starts a cycle early when the fleet document changes.
	WatchConfig bool `yaml:"watchConfig"`
	// ConfigDebounce coalesces bursts of file events from editors.
	ConfigDebounce time.Duration `yaml:"configDebounce,omitempty"`
	// MetricsAddr serves Prometheus metrics when non-empty, e.g. ":9465".
	MetricsAddr string `yaml:"metricsAddr,omitempty"`
}

// DefaultSettings returns the settings used when no config.yaml exists.
// Template and document paths are resolved against configDir.
func DefaultSettings(configDir string) Settings {
	return Settings{
		FleetConfig:  "config.yaml",
		TemplatesDir: filepath.Join(configDir, "templates"),
		LogLevel:     "info",
		Discovery: DiscoverySettings{
			PathTimeout:      5 * time.Second,
			ContainerTimeout: 8 * time.Second,
			PortTimeout:      6 * time.Second,
			Concurrency:      1,
		},
		SSH: SSHSettings{
			Port:           22,
			User:           "root",
			KnownHostsFile: "~/.ssh/known_hosts",
			ConnectTimeout: 5 * time.Second,
		},
		Monitor: MonitorSettings{
			Interval:       300 * time.Second,
			ErrorBackoff:   60 * time.Second,
			RetentionDays:  7,
			MaxHistory:     10000,
			WatchConfig:    true,
			ConfigDebounce: 500 * time.Millisecond,
		},
	}
}

// Validate rejects settings the pipeline cannot run with.
func (s Settings) Validate() error {
	var problems []string
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"discovery.pathTimeout", s.Discovery.PathTimeout},
		{"discovery.containerTimeout", s.Discovery.ContainerTimeout},
		{"discovery.portTimeout", s.Discovery.PortTimeout},
		{"ssh.connectTimeout", s.SSH.ConnectTimeout},
		{"monitor.interval", s.Monitor.Interval},
		{"monitor.errorBackoff", s.Monitor.ErrorBackoff},
	}
	for _, p := range positive {
		if p.d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %s", p.name, p.d))
		}
	}
	if s.Discovery.Concurrency < 1 {
		problems = append(problems, fmt.Sprintf("discovery.concurrency must be at least 1, got %d", s.Discovery.Concurrency))
	}
	for _, p := range s.Discovery.CandidatePorts {
		if p < 1 || p > 65535 {
			problems = append(problems, fmt.Sprintf("discovery.candidatePorts contains invalid port %d", p))
		}
	}
	if s.SSH.Port < 1 || s.SSH.Port > 65535 {
		problems = append(problems, fmt.Sprintf("ssh.port %d is out of range", s.SSH.Port))
	}
	if s.Monitor.RetentionDays < 1 {
		problems = append(problems, fmt.Sprintf("monitor.retentionDays must be at least 1, got %d", s.Monitor.RetentionDays))
	}
	if s.Monitor.MaxHistory < 1 {
		problems = append(problems, fmt.Sprintf("monitor.maxHistory must be at least 1, got %d", s.Monitor.MaxHistory))
	}
	if s.FleetConfig == "" {
		problems = append(problems, "fleetConfig cannot be empty")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// ValidationError lists invalid settings.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return e.Problems[0]
	}
	return fmt.Sprintf("%d invalid settings: %s (and %d more)", len(e.Problems), e.Problems[0], len(e.Problems)-1)
}
