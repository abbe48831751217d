// Package qobuz automates the Qobuz web site: login, playlist preparation and
// adding tracks from search results. There is no public playlist API, so every
// operation is a sequence of page loads and clicks on a [Page].
package qobuz

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/browser"
)

// DefaultBaseURL is the Qobuz web site.
const DefaultBaseURL = "https://www.qobuz.com"

// Screenshot policies.
const (
	ScreenshotsAll      = "all"
	ScreenshotsFailures = "failures"
	ScreenshotsOff      = "off"
)

// Page is the part of a browser session the flows need. [browser.Session] implements it.
type Page interface {
	Navigate(url string) error
	Count(sel browser.Selector) (int, error)
	WaitAny(timeout time.Duration, candidates ...browser.Selector) (browser.Selector, error)
	Click(sel browser.Selector) error
	ScrollIntoView(sel browser.Selector) error
	Clear(sel browser.Selector) error
	Type(sel browser.Selector, text string) error
	Pause(d time.Duration) error
	HTML() (string, error)
	Screenshot(step string) (string, error)
	Cookies() ([]browser.Cookie, error)
	SetCookies(cookies []browser.Cookie) error
	Close() error
}

// Delays are the fixed waits that let the site finish rendering.
type Delays struct {
	PageSettle   time.Duration // after opening the playlist page
	ResultSettle time.Duration // after a search or creating a playlist
	Step         time.Duration // between menu clicks
}

// DefaultDelays mirrors how long the site takes to settle in practice.
func DefaultDelays() Delays {
	return Delays{PageSettle: 5 * time.Second, ResultSettle: 3 * time.Second, Step: time.Second}
}

// Options configures a [Client].
type Options struct {
	BaseURL        string
	Email          string
	Password       string
	LoginAttempts  int
	PageTimeout    time.Duration
	ElementTimeout time.Duration
	ProbeTimeout   time.Duration
	Screenshots    string
	Delays         Delays
	Backoff        backoff.BackOff // nil for exponential backoff with jitter
}

// Client drives Qobuz through a [Page].
type Client struct {
	page     Page
	store    browser.CookieStore
	opts     Options
	logger   *log.Logger
	playlist string
}

// NewClient wraps page. store may be nil to disable session reuse.
func NewClient(page Page, store browser.CookieStore, opts Options, logger *log.Logger) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.LoginAttempts <= 0 {
		opts.LoginAttempts = 3
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 10 * time.Second
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 15 * time.Second
	}
	if opts.Screenshots == "" {
		opts.Screenshots = ScreenshotsFailures
	}
	return &Client{page: page, store: store, opts: opts, logger: logger}
}

// Close releases the browser.
func (c *Client) Close() error {
	return c.page.Close()
}

func (c *Client) url(path string) string {
	return c.opts.BaseURL + path
}

// SearchURL returns the search page for query.
func SearchURL(base, query string) string {
	return strings.TrimSuffix(base, "/") + searchPath + "?q=" + url.QueryEscape(query)
}

// shot captures a screenshot when the policy allows it. Failures are only logged.
func (c *Client) shot(step string, failure bool) {
	switch c.opts.Screenshots {
	case ScreenshotsOff:
		return
	case ScreenshotsFailures:
		if !failure {
			return
		}
	}

	path, err := c.page.Screenshot(step)
	if err != nil {
		c.logger.Debug("screenshot skipped", "step", step, "error", err)
		return
	}
	if failure {
		c.logger.Info("saved screenshot", "path", path)
	}
}

// Snapshot captures the page as a failure screenshot.
func (c *Client) Snapshot(step string) {
	c.shot(step, true)
}

// pause waits d. A cancelled context surfaces on the next page call.
func (c *Client) pause(d time.Duration) {
	_ = c.page.Pause(d)
}

func (c *Client) newBackoff() backoff.BackOff {
	if c.opts.Backoff != nil {
		return c.opts.Backoff
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 30 * time.Second
	return b
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("qobuz: %w", err)
	}
	return nil
}
