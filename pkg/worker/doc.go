// Package worker applies queued mutations to the system of record.
//
// There is one handler per job name. Handlers trust the payload captured at
// enqueue time and never read the cache. Every handler is safe to run more
// than once for the same payload: inserts are keyed by natural identity and
// counters move only when a row was actually written, and versioned updates
// ignore payloads older than the stored row.
package worker
