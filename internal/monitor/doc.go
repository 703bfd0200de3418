// Package monitor keeps the fleet configuration in step with the running
// nodes over time.
//
// The Monitor has four entry points over the enabled nodes of a fleet
// document:
//
//   - SyncAllNodes discovers every node, applies the changes
//     validator.Analyze reports, and saves the document once.
//   - DetectDrift discovers every node and records a DriftDetection per
//     mismatch in the drift History.
//   - RefreshSingleNode is SyncAllNodes scoped to one node.
//   - MonitorContinuous runs DetectDrift in a loop, optionally repairing
//     through the validator, until its context is cancelled.
//
// A ConfigWatcher can feed MonitorContinuous so that edits to the fleet
// document start a cycle without waiting for the interval.
//
// The History is bounded both by age (RetentionDays) and by size
// (MaxEntries), and takes its time from an injected Clock.
package monitor
