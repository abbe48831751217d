// Spotify Web API implementation of [Source], built on github.com/zmb3/spotify/v2
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// SpotifyScopes are the permissions qbsync asks for. Reading private playlists is enough.
var SpotifyScopes = []string{
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistReadCollaborative,
}

const playlistPageSize = 100

var spotifyIDPattern = regexp.MustCompile(`^[0-9A-Za-z]{22}$`)

// SpotifyOptions configures a [SpotifySource].
type SpotifyOptions struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	CachePath    string
	CacheData    string          // raw cache JSON written to CachePath before loading
	Endpoint     oauth2.Endpoint // defaults to the Spotify accounts service
	BaseURL      string          // API base URL, for tests
	Logger       *log.Logger
}

// SpotifySource implements [Source] for Spotify.
type SpotifySource struct {
	client    *spotify.Client
	cachePath string
	logger    *log.Logger
}

// NewOAuthConfig returns the OAuth2 configuration for the Spotify accounts service.
func NewOAuthConfig(clientID, clientSecret, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// NewSpotifySource builds an authenticated client from the stored auth cache.
//
// It fails fast with [shared.ErrMissingCredentials] or [shared.ErrMissingAuthCache]
// and performs no network calls. Refreshed tokens are written back to the cache.
func NewSpotifySource(ctx context.Context, opts SpotifyOptions) (*SpotifySource, error) {
	var missing []string
	if opts.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if opts.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if opts.CachePath == "" {
		return nil, fmt.Errorf("%w: no cache path configured", shared.ErrMissingAuthCache)
	}

	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	if opts.CacheData != "" {
		if err := WriteRawTokenCache(opts.CachePath, opts.CacheData); err != nil {
			return nil, err
		}
		logger.Debug("wrote auth cache from environment", "path", opts.CachePath)
	}

	tok, err := LoadTokenCache(opts.CachePath)
	if err != nil {
		return nil, err
	}

	config := NewOAuthConfig(opts.ClientID, opts.ClientSecret, opts.RedirectURI)
	if opts.Endpoint.TokenURL != "" {
		config.Endpoint = opts.Endpoint
	}

	ts := newNotifyingTokenSource(config.TokenSource(ctx, tok), tok, func(t *oauth2.Token) {
		if err := SaveTokenCache(opts.CachePath, t, strings.Join(SpotifyScopes, " ")); err != nil {
			logger.Warn("failed to persist refreshed token", "error", err)
			return
		}
		logger.Debug("refreshed spotify token saved", "path", opts.CachePath)
	})

	var clientOpts []spotify.ClientOption
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, spotify.WithBaseURL(strings.TrimSuffix(opts.BaseURL, "/")+"/"))
	}

	return &SpotifySource{
		client:    spotify.New(oauth2.NewClient(ctx, ts), clientOpts...),
		cachePath: opts.CachePath,
		logger:    logger,
	}, nil
}

func (s *SpotifySource) Name() string {
	return "Spotify"
}

// CurrentUser fetches the signed-in profile, which proves the token works.
func (s *SpotifySource) CurrentUser(ctx context.Context) (*User, error) {
	me, err := s.client.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}
	return &User{ID: me.ID, DisplayName: me.DisplayName}, nil
}

// GetPlaylists retrieves all playlists for the authenticated user.
func (s *SpotifySource) GetPlaylists(ctx context.Context) ([]Playlist, error) {
	page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(50))
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var playlists []Playlist
	for {
		for _, p := range page.Playlists {
			playlists = append(playlists, Playlist{
				ID:          string(p.ID),
				Name:        p.Name,
				Description: p.Description,
				TrackCount:  int(p.Tracks.Total),
				Public:      p.IsPublic,
			})
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrapAPIError(err)
		}
	}

	return playlists, nil
}

// GetPlaylist fetches playlist metadata without its tracks.
func (s *SpotifySource) GetPlaylist(ctx context.Context, id string) (*Playlist, error) {
	p, err := s.client.GetPlaylist(ctx, spotify.ID(id), spotify.Fields("id,name,description,public,tracks.total"))
	if err != nil {
		return nil, wrapAPIError(err)
	}
	return &Playlist{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		TrackCount:  int(p.Tracks.Total),
		Public:      p.IsPublic,
	}, nil
}

// ResolvePlaylistID turns a playlist reference into an ID.
//
// IDs, spotify:playlist: URIs and open.spotify.com links are parsed locally.
// Anything else is matched case-insensitively against the user's playlist names.
func (s *SpotifySource) ResolvePlaylistID(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("%w: playlist reference", shared.ErrMissingArgument)
	}
	if id, ok := ParsePlaylistRef(ref); ok {
		return id, nil
	}

	playlists, err := s.GetPlaylists(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range playlists {
		if strings.EqualFold(p.Name, ref) {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, ref)
}

// FetchTracks pages through every item of a playlist.
//
// Null, removed and unresolvable entries are skipped.
func (s *SpotifySource) FetchTracks(ctx context.Context, id string) ([]Track, error) {
	page, err := s.client.GetPlaylistItems(ctx, spotify.ID(id), spotify.Limit(playlistPageSize))
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var tracks []Track
	skipped := 0
	for {
		for _, item := range page.Items {
			track, ok := normalizeItem(item)
			if !ok {
				skipped++
				continue
			}
			tracks = append(tracks, track)
		}

		err = s.client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, wrapAPIError(err)
		}
	}

	if skipped > 0 {
		s.logger.Debug("skipped unavailable playlist entries", "playlist", id, "count", skipped)
	}
	return tracks, nil
}

// ExportPlaylist exports a playlist with all its tracks.
func (s *SpotifySource) ExportPlaylist(ctx context.Context, ref string) (*PlaylistExport, error) {
	id, err := s.ResolvePlaylistID(ctx, ref)
	if err != nil {
		return nil, err
	}

	playlist, err := s.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("found source playlist", "name", playlist.Name, "tracks", playlist.TrackCount)

	tracks, err := s.FetchTracks(ctx, id)
	if err != nil {
		return nil, err
	}

	return &PlaylistExport{Playlist: *playlist, Tracks: tracks}, nil
}

// normalizeItem reduces a playlist entry to title, primary artist and album.
func normalizeItem(item spotify.PlaylistItem) (Track, bool) {
	t := item.Track.Track
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return Track{}, false
	}

	track := Track{
		ID:       string(t.ID),
		Title:    t.Name,
		Album:    t.Album.Name,
		Duration: int(t.Duration),
		ISRC:     t.ExternalIDs["isrc"],
	}
	if len(t.Artists) > 0 {
		track.Artist = t.Artists[0].Name
	}
	if item.IsLocal && track.Artist == "" {
		return Track{}, false
	}
	return track, true
}

// ParsePlaylistRef extracts a playlist ID from a bare ID, URI or share URL.
func ParsePlaylistRef(ref string) (string, bool) {
	if spotifyIDPattern.MatchString(ref) {
		return ref, true
	}

	if rest, ok := strings.CutPrefix(ref, "spotify:playlist:"); ok && spotifyIDPattern.MatchString(rest) {
		return rest, true
	}

	u, err := url.Parse(ref)
	if err != nil || u.Host != "open.spotify.com" {
		return "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "playlist" && spotifyIDPattern.MatchString(parts[i+1]) {
			return parts[i+1], true
		}
	}
	return "", false
}

// wrapAPIError maps API failures onto the shared sentinels.
func wrapAPIError(err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, apiErr.Message)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", shared.ErrNotAuthenticated, apiErr.Message)
		}
	}
	if errors.Is(err, shared.ErrAuthFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}
