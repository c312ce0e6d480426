// Package engine implements the concurrent per-device polling and
// trigger core of buttond.
//
// # Architecture
//
// The Registry enumerates devices and spawns one Worker goroutine per
// device. Each Worker binds the configured filter rules to its
// device's live option set (global rules first, then any matching
// device-specific section layered on top), then samples the bound
// options every poll interval. When a binding's cached value matches
// its from-condition and the fresh sample matches its to-condition,
// the worker marks the device active and runs the handler invocation
// sequence: export environment construction, begin/trigger
// notifications, device quiesce (handle close), handler process
// execution, active-flag clear, settle delay, end notification,
// device reopen.
//
// The external force-trigger entry point (Registry.Trigger) and the
// sampling loop both funnel through the same per-device active flag,
// so the invocation sequence has a single entry regardless of trigger
// source, and at most one trigger is ever in flight per device.
//
// # Locking
//
// Two lock levels exist: the registry lock and one lock per worker.
// The registry lock is always acquired first and released last; no
// code path holds two worker locks at once, and rule matching runs
// only during worker initialization so it never re-enters the polling
// lock.
//
// # Cancellation
//
// Workers stop cooperatively. A stop request is honored only at the
// checkpoint before a sampling pass; a pass in flight (including a
// handler invocation) always runs to completion, and the registry's
// stop path additionally waits for the active flag to clear before
// requesting cancellation. A worker is therefore never torn down while
// a handler child process is attached to its device.
package engine
