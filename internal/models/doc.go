// Package models defines the persistent entities of qbsync and the interfaces used to store them.
//
// Sync itself is stateless. These types exist for the optional run history:
//   - [SyncRun] : one execution of a sync with its counts and outcome
//   - [SyncTrackResult] : the per-track outcome recorded for a run
//
// Persistent entities implement the [Model] interface and are stored through a [Repository].
package models
