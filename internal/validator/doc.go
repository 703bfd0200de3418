// Package validator compares persisted node configuration with discovered
// live state.
//
// ValidateAndRepair discovers every enabled node, reports each mismatch as
// a typed Issue and, when asked to, repairs the in-memory document and
// records a RepairAction per attempt. The document is saved once at the end
// of the batch. A node whose validation fails (discovery error or panic) is
// reported with a single critical validation_error issue and does not
// affect the other nodes.
//
// Analyze and ApplyChanges expose the same comparison as a list of Change
// values for callers that sync configuration without issue reporting.
package validator
