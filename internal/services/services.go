// package services defines the [Source] interface for reading playlists from a music API
//
// Spotify (via zmb3/spotify)
package services

import (
	"context"
)

// Source reads playlists from a music streaming service.
type Source interface {
	// Name returns the name of the service (e.g., "Spotify")
	Name() string

	// CurrentUser verifies the stored credentials by fetching the signed-in profile.
	CurrentUser(ctx context.Context) (*User, error)

	// GetPlaylists retrieves all playlists for the authenticated user.
	GetPlaylists(ctx context.Context) ([]Playlist, error)

	// ExportPlaylist exports a playlist with all its tracks.
	//
	// ref may be an ID, URI, share URL or playlist name.
	ExportPlaylist(ctx context.Context, ref string) (*PlaylistExport, error)
}

// User is the authenticated account of a [Source].
type User struct {
	ID          string
	DisplayName string
}

// Playlist represents a music playlist from any service
type Playlist struct {
	ID          string
	Name        string
	Description string
	TrackCount  int
	Public      bool
}

// PlaylistExport represents a playlist with all its tracks for migration
type PlaylistExport struct {
	Playlist Playlist
	Tracks   []Track
}

// Track represents a music track from any service
type Track struct {
	ID       string
	Title    string
	Artist   string // primary artist only
	Album    string
	Duration int    // Duration in milliseconds
	ISRC     string // International Standard Recording Code
}

// SearchQuery is the free text used to look the track up on another service.
func (t Track) SearchQuery() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Title + " " + t.Artist
}

// String renders the track as "artist - title".
func (t Track) String() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}
