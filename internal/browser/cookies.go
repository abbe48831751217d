package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/desertthunder/qbsync/internal/shared"
)

// Cookie is a browser cookie in a form that can be stored and restored.
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"` // unix seconds, 0 for session cookies
	HTTPOnly bool    `json:"http_only"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"same_site,omitempty"`
}

// Expired reports whether the cookie has a deadline before now.
func (c Cookie) Expired(now time.Time) bool {
	return c.Expires > 0 && time.Unix(int64(c.Expires), 0).Before(now)
}

// CookieStore persists session cookies between runs.
type CookieStore interface {
	// Load returns the saved cookies or [shared.ErrNoCookies].
	Load(ctx context.Context) ([]Cookie, error)
	Save(ctx context.Context, cookies []Cookie) error
	Clear(ctx context.Context) error
}

// Live drops expired cookies.
func Live(cookies []Cookie, now time.Time) []Cookie {
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		if !c.Expired(now) {
			out = append(out, c)
		}
	}
	return out
}

// fromNetwork converts a DevTools cookie.
func fromNetwork(nc *network.Cookie) Cookie {
	c := Cookie{
		Name:     nc.Name,
		Value:    nc.Value,
		Domain:   nc.Domain,
		Path:     nc.Path,
		HTTPOnly: nc.HTTPOnly,
		Secure:   nc.Secure,
		SameSite: nc.SameSite.String(),
	}
	if !nc.Session && nc.Expires > 0 {
		c.Expires = nc.Expires
	}
	return c
}

func sameSite(v string) network.CookieSameSite {
	switch strings.ToLower(v) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	}
	return ""
}

// Cookies returns every cookie for the current page.
func (s *Session) Cookies() ([]Cookie, error) {
	var cookies []Cookie
	err := s.run(s.opts.ElementTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		got, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, nc := range got {
			cookies = append(cookies, fromNetwork(nc))
		}
		return nil
	}))
	return cookies, err
}

// SetCookies installs cookies into the browser. Cookies that Chrome rejects are
// logged and skipped; an error is returned only if none could be set.
func (s *Session) SetCookies(cookies []Cookie) error {
	if len(cookies) == 0 {
		return nil
	}

	set := 0
	err := s.run(s.opts.ElementTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			params := network.SetCookie(c.Name, c.Value).
				WithDomain(c.Domain).
				WithPath(c.Path).
				WithSecure(c.Secure).
				WithHTTPOnly(c.HTTPOnly)
			if ss := sameSite(c.SameSite); ss != "" {
				params = params.WithSameSite(ss)
			}
			if c.Expires > 0 {
				exp := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
				params = params.WithExpires(&exp)
			}
			if err := params.Do(ctx); err != nil {
				s.logger.Debug("cookie rejected", "name", c.Name, "domain", c.Domain, "error", err)
				continue
			}
			set++
		}
		return nil
	}))
	if err != nil {
		return err
	}
	if set == 0 {
		return fmt.Errorf("%w: chrome rejected all %d cookies", shared.ErrBrowser, len(cookies))
	}
	return nil
}

// FileCookieStore keeps cookies in a JSON file readable only by the owner.
type FileCookieStore struct {
	Path string
}

// NewFileCookieStore returns a store writing to path.
func NewFileCookieStore(path string) *FileCookieStore {
	return &FileCookieStore{Path: path}
}

// Load returns the unexpired cookies in the file.
func (f *FileCookieStore) Load(_ context.Context) ([]Cookie, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, shared.ErrNoCookies
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cookie file: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("failed to parse cookie file %s: %w", f.Path, err)
	}

	cookies = Live(cookies, time.Now())
	if len(cookies) == 0 {
		return nil, shared.ErrNoCookies
	}
	return cookies, nil
}

// Save replaces the file contents with cookies.
func (f *FileCookieStore) Save(_ context.Context, cookies []Cookie) error {
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create cookie directory: %w", err)
		}
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}

// Clear removes the file. A missing file is not an error.
func (f *FileCookieStore) Clear(_ context.Context) error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cookie file: %w", err)
	}
	return nil
}
