// Package mock provides test doubles for the fleetsync pipeline.
//
//   - MockClock: a controllable clock for history retention and template
//     timestamps.
//   - ScriptedExecutor and ScriptedChecker: canned command and HTTP check
//     answers keyed by node and command text or port.
//   - MemoryStore: an in-memory fleet document store that counts loads and
//     saves and can be told to fail.
//   - StaticDiscoverer: per-node discovery results, errors or panics.
package mock
