package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/qbsync/internal/shared"
	"golang.org/x/oauth2"
)

// tokenCache is the on-disk auth cache. It reads both the spotipy layout
// (expires_at in unix seconds) and the JSON form of [oauth2.Token].
type tokenCache struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresIn    int64      `json:"expires_in,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	ExpiresAt    int64      `json:"expires_at,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	Expiry       *time.Time `json:"expiry,omitempty"`
}

// ParseTokenCache decodes auth cache JSON into a token.
func ParseTokenCache(data []byte) (*oauth2.Token, error) {
	var c tokenCache
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: malformed auth cache: %w", shared.ErrMissingAuthCache, err)
	}
	if c.AccessToken == "" && c.RefreshToken == "" {
		return nil, fmt.Errorf("%w: auth cache holds no token", shared.ErrMissingAuthCache)
	}

	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
	}
	switch {
	case c.ExpiresAt > 0:
		tok.Expiry = time.Unix(c.ExpiresAt, 0)
	case c.Expiry != nil:
		tok.Expiry = *c.Expiry
	}

	if tok.AccessToken == "" {
		// Only a refresh token: force a refresh on first use.
		tok.Expiry = time.Unix(1, 0)
	}
	if tok.RefreshToken == "" && !tok.Valid() {
		return nil, fmt.Errorf("%w: access token expired", shared.ErrNoRefreshToken)
	}
	return tok, nil
}

// LoadTokenCache reads the auth cache at path.
func LoadTokenCache(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", shared.ErrMissingAuthCache, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read auth cache: %w", err)
	}
	return ParseTokenCache(data)
}

// SaveTokenCache writes tok to path in the spotipy layout.
func SaveTokenCache(path string, tok *oauth2.Token, scope string) error {
	c := tokenCache{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.Type(),
		Scope:        scope,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		c.ExpiresAt = tok.Expiry.Unix()
		c.ExpiresIn = max(int64(time.Until(tok.Expiry).Seconds()), 0)
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return writeTokenFile(path, data)
}

// WriteRawTokenCache stores cache JSON supplied through the environment at path,
// after checking that it parses.
func WriteRawTokenCache(path, raw string) error {
	if _, err := ParseTokenCache([]byte(raw)); err != nil {
		return err
	}
	return writeTokenFile(path, []byte(raw))
}

// writeTokenFile writes data with owner-only permissions, creating the parent directory.
func writeTokenFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create auth cache directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write auth cache: %w", err)
	}
	return nil
}

// notifyingTokenSource reports every token that differs from the previous one.
type notifyingTokenSource struct {
	mu       sync.Mutex
	base     oauth2.TokenSource
	last     string
	onChange func(*oauth2.Token)
}

func newNotifyingTokenSource(base oauth2.TokenSource, initial *oauth2.Token, onChange func(*oauth2.Token)) *notifyingTokenSource {
	return &notifyingTokenSource{base: base, last: initial.AccessToken, onChange: onChange}
}

func (s *notifyingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrAuthFailed, err)
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.last
	s.last = tok.AccessToken
	s.mu.Unlock()

	if changed && s.onChange != nil {
		s.onChange(tok)
	}
	return tok, nil
}
