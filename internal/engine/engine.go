// Package engine runs smoke tests. This package consolidates the following
// functionality:
// - Operation actors: one call against a package manager or rule
// - Pipelines: the per package manager state machine
// - Buses: per-phase aggregation of pipeline events
// - Smoker: the top-level orchestrator
package engine

// The implementation is split across multiple files:
// - smoker.go: Orchestrator
// - pipeline.go: Per package manager pipeline
// - actors.go: Operation actors
// - bus.go: Phase buses
// - listener.go: Listener delivery and flushing
// - queue.go: FIFO queue and actor mailboxes
// - safegroup.go: Panic-safe concurrency utilities
// - factory.go: Dependency injection factory
