// Package store provides SQLite-backed persistence for subscribe cursors.
//
// Two tables:
//   - checkpoints: the last acknowledged cursor and subscription per
//     subscriber name, overwritten on every delivered batch
//   - journal: an append-only log of delivered messages
//
// # Patterns
//
// Idempotency: journal rows are unique per (name, fingerprint) and inserted
// with ON CONFLICT DO NOTHING, so replaying a batch after a crash does not
// duplicate entries.
//
// Deterministic reads: journal queries order by seq, the insertion order,
// never by wall time. Payloads are stored as canonical JSON.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Journal implements subscribe.Listener so the store can be registered with
// a client like any other listener.
package store
