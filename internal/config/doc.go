// Package config loads fleetsync application settings.
//
// Settings come from a single directory, ~/.config/fleetsync by default or
// the directory given with --config-dir:
//
//	~/.config/fleetsync/
//	├── config.yaml      # Settings (optional)
//	└── templates/       # Persisted configuration templates
//
// Loading starts from DefaultSettings and overlays config.yaml, so every
// field is optional:
//
//	fleetConfig: /etc/fleetsync/fleet.yaml
//	logLevel: debug
//	discovery:
//	  portTimeout: 3s
//	  concurrency: 4
//	ssh:
//	  user: egk
//	  keyFiles: [~/.ssh/id_ed25519]
//	monitor:
//	  interval: 10m
//	  autoFix: true
//	  metricsAddr: ":9465"
//
// The fleet document itself (the list of nodes) is not part of Settings;
// see package fleet.
package config
