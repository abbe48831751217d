// Package services reads playlists from Spotify through the [Source] interface.
//
// # Spotify
//
// [SpotifySource] wraps github.com/zmb3/spotify/v2. It never runs an interactive login.
// It loads a token from the auth cache (the spotipy .cache layout or oauth2.Token JSON)
// and builds an [oauth2] client that refreshes the token on demand. Each refreshed token
// is written back to the cache.
//
// The cache is created by `qbsync spotify auth`. In CI it comes from the SPOTIFY_AUTH_CACHE
// environment variable.
//
// # Error Handling
//
// Services use sentinel errors from the shared package:
//   - [shared.ErrMissingCredentials] : client id or secret not configured
//   - [shared.ErrMissingAuthCache] : no usable token cache
//   - [shared.ErrAuthFailed] : the token could not be used or refreshed
//   - [shared.ErrPlaylistNotFound] : playlist reference did not resolve
//   - [shared.ErrAPIRequest] : other Web API failures
package services
