// Package metrics holds the Prometheus collectors for the discovery,
// validation and drift pipeline.
//
// A Recorder registers its collectors on the registry it is given, so tests
// can use a fresh registry each time. Every Recorder method is safe to call
// on a nil receiver, which lets components treat metrics as optional.
package metrics
