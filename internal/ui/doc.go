// Package ui implements the interactive sync screen on top of bubbletea.
//
// The flow moves through five views:
//  1. [PlaylistListView] : pick one of the signed-in user's Spotify playlists
//  2. [TrackListView] : preview its tracks
//  3. [ConfirmView] : confirm the destination playlist and the track cap
//  4. [SyncView] : follow the engine's progress updates
//  5. [ResultView] : show the success and failure counts and the failed tracks
//
// The [Model] runs [tasks.SyncEngine.Run] in a goroutine and reads its progress channel one
// update per command, so the engine never blocks on the screen.
package ui
