// Package discovery inspects a live node to learn what it is actually running.
//
// The Engine runs six independent steps against a node: docker path checks,
// container enumeration, network inference, beacon API port checks, stack
// tagging and client role inference. A failed step adds a message to
// Result.Errors and leaves its fields empty; the remaining steps still run,
// so a Result is always usable.
//
// Classification is table driven. The stack, client and port tables live in
// tables.go and network inference is behind the NetworkClassifier interface
// so the marker heuristic can be swapped out.
package discovery
