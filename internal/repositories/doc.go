// Package repositories implements the optional SQLite persistence of qbsync.
//
// Nothing here is needed for a sync run. It is used when run history is enabled
// ([database] history = true) or when session cookies are kept in SQLite
// ([browser] cookie_store = "sqlite").
//
// Key Implementations:
//   - [SyncRunRepository] : run history with per-track results and soft deletes
//   - [RunRecorder] : adapts the repository to tasks.Recorder
//   - [CookieRepository] : browser.CookieStore keyed by cookie name, domain and path
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
