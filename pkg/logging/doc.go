// Package logging provides subsystem-tagged structured logging for fleetsync.
//
// It is a thin layer over log/slog. Every record carries a "subsystem"
// attribute so records from discovery, validation and the drift monitor can be
// told apart when several nodes are processed in parallel.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Discovery", "Discovered %d containers on %s", n, node)
//	logging.Warn("Discovery", "Port check failed on %s: %v", node, err)
//	logging.Error("Validator", err, "Failed to save fleet document")
//
// InitForJSON selects the JSON handler, which is what `fleetsync monitor`
// uses when running under systemd.
//
// Before initialization only warnings and errors are written, directly to
// stderr.
package logging
