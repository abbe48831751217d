// Package tasks orchestrates the Spotify to Qobuz sync with real-time progress reporting.
//
// # Core Operations
//
//  1. [PlaylistEngine.Run] : one sync run
//     - Exports the source playlist through [services.Source]
//     - Skips the run, without opening the destination, when the playlist is empty
//     - Caps the track list ([DefaultMaxTracks] unless configured)
//     - Opens the [Destination], logs in and prepares the target playlist
//     - Adds each track in order, paced by a rate limiter
//     - Returns per-track results and the success and failure counts
//
//  2. [PlaylistEngine.BulkExport] : export several source playlists to files
//     - Worker pool with rate-limited source requests
//     - Writes an export manifest next to the files
//
// # Failure Handling
//
// A failed track is logged and recorded, then the run moves on. Reading the source,
// opening the destination, logging in and preparing the playlist are fatal. The destination
// is closed on every path once it has been opened.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # History
//
// The optional [Recorder] receives a [models.SyncRun] when a run ends.
// Recorder errors are logged and never change the outcome.
package tasks
