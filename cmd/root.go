package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"fleetsync/internal/config"
	"fleetsync/internal/fleet"
	"fleetsync/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodePersistence indicates the fleet document could not be read or written.
	ExitCodePersistence = 2
	// ExitCodeConfiguration indicates invalid application settings.
	ExitCodeConfiguration = 3
)

// Global flags shared by every command.
var (
	configDir    string
	fleetConfig  string
	templatesDir string
	logLevel     string
	logFormat    string
	outputFormat string
)

// settings is populated by the root command before any subcommand runs.
var settings config.Settings

// rootCmd represents the base command for the fleetsync application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fleetsync",
	Short: "Keep an Ethereum node fleet configuration in sync with reality",
	Long: `fleetsync discovers what is actually running on each node of an Ethereum
fleet (eth-docker, Rocket Pool, Obol, Lido CSM, Hyperdrive), compares it with
the fleet configuration document and repairs the document when they disagree.
It can also run continuously and record configuration drift over time.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main(). SIGINT and SIGTERM cancel the
// command context so long-running commands can finish their current work.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fleetsync version %s\n" .Version}}`)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var perr *fleet.PersistenceError
	if errors.As(err, &perr) {
		return ExitCodePersistence
	}

	var cerr config.ConfigurationError
	if errors.As(err, &cerr) {
		return ExitCodeConfiguration
	}

	return ExitCodeError
}

// loadSettings reads config.yaml, applies flag overrides and sets up logging.
func loadSettings(cmd *cobra.Command, _ []string) error {
	dir := configDir
	if dir == "" {
		dir = config.DefaultConfigDir()
	}

	// Log settings loading at the level requested on the command line.
	level := logging.LevelInfo
	if logLevel != "" {
		parsed, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		level = parsed
	}
	if err := initLogging(level, cmd); err != nil {
		return err
	}

	s, err := config.LoadSettings(dir)
	if err != nil {
		return err
	}
	if fleetConfig != "" {
		s.FleetConfig = fleetConfig
	}
	if templatesDir != "" {
		s.TemplatesDir = templatesDir
	}
	if logLevel != "" {
		s.LogLevel = logLevel
	}

	if logLevel == "" && s.LogLevel != "" {
		parsed, err := logging.ParseLevel(s.LogLevel)
		if err != nil {
			return config.NewConfigurationError(filepath.Join(dir, "config.yaml"), config.ErrorTypeValidation, err.Error())
		}
		if err := initLogging(parsed, cmd); err != nil {
			return err
		}
	}

	settings = s
	return nil
}

// initLogging installs the log handler selected by --log-format. Logs go to
// stderr so stdout carries only command output.
func initLogging(level logging.LogLevel, cmd *cobra.Command) error {
	switch logFormat {
	case "", "text":
		logging.InitForCLI(level, cmd.ErrOrStderr())
	case "json":
		logging.InitForJSON(level, cmd.ErrOrStderr())
	default:
		return fmt.Errorf("unsupported log format %q (use text or json)", logFormat)
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configDir, "config-dir", "", "settings directory (default ~/.config/fleetsync)")
	pf.StringVar(&fleetConfig, "fleet-config", "", "fleet configuration document (default from settings, ./config.yaml)")
	pf.StringVar(&templatesDir, "templates-dir", "", "directory of persisted templates (default <config-dir>/templates)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	pf.StringVarP(&outputFormat, "output", "o", "table", "output format: table, json or yaml")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSyncCmd())
	rootCmd.AddCommand(newDriftCmd())
	rootCmd.AddCommand(newRefreshCmd())
	rootCmd.AddCommand(newMonitorCmd())
	rootCmd.AddCommand(newTemplateCmd())
}
