package qobuz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/shared"
)

// Login makes sure the browser holds a signed-in Qobuz session.
//
// Saved cookies are tried first. Without them, or when they have expired, the
// credentials are typed into the login form, retrying with exponential backoff.
// A CAPTCHA stops the retries. New sessions are saved to the cookie store.
func (c *Client) Login(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	if c.restoreSession(ctx) {
		return nil
	}

	if c.opts.Email == "" || c.opts.Password == "" {
		return fmt.Errorf("%w: QOBUZ_EMAIL and QOBUZ_PASSWORD are required without a saved session", shared.ErrMissingCredentials)
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.submitCredentials(attempt)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, shared.ErrCaptcha):
			return struct{}{}, backoff.Permanent(err)
		default:
			c.logger.Warn("login attempt failed", "attempt", attempt, "of", c.opts.LoginAttempts, "error", err)
			return struct{}{}, err
		}
	}, backoff.WithBackOff(c.newBackoff()), backoff.WithMaxTries(uint(c.opts.LoginAttempts)))
	if err != nil {
		return fmt.Errorf("%w after %d attempt(s): %w", shared.ErrLoginFailed, attempt, err)
	}

	c.logger.Info("logged in to qobuz", "attempts", attempt)
	c.saveSession(ctx)
	return nil
}

// restoreSession installs saved cookies and reports whether they still sign us in.
func (c *Client) restoreSession(ctx context.Context) bool {
	if c.store == nil {
		return false
	}

	cookies, err := c.store.Load(ctx)
	if errors.Is(err, shared.ErrNoCookies) {
		c.logger.Debug("no saved qobuz session")
		return false
	}
	if err != nil {
		c.logger.Warn("could not load saved cookies", "error", err)
		return false
	}

	// Chrome only accepts cookies for a domain once a page on it is open.
	if err := c.page.Navigate(c.url("/")); err != nil {
		c.logger.Warn("could not open qobuz to restore the session", "error", err)
		return false
	}
	if err := c.page.SetCookies(cookies); err != nil {
		c.logger.Warn("could not restore cookies", "error", err)
		return false
	}
	if err := c.page.Navigate(c.url(playlistsPath)); err != nil {
		c.logger.Warn("could not reload after restoring cookies", "error", err)
		return false
	}

	if !c.isLoggedIn(c.opts.ProbeTimeout) {
		c.logger.Info("saved qobuz session has expired")
		return false
	}

	c.logger.Info("restored qobuz session from saved cookies", "cookies", len(cookies))
	return true
}

// submitCredentials fills and submits the login form once.
func (c *Client) submitCredentials(attempt int) error {
	if err := c.page.Navigate(c.url(loginPath)); err != nil {
		return err
	}

	email, err := c.page.WaitAny(c.opts.PageTimeout, emailInput...)
	if err != nil {
		c.shot("login_page", true)
		return fmt.Errorf("login form: %w", err)
	}
	c.shot("login_page", false)

	password, err := c.page.WaitAny(c.opts.ElementTimeout, passwordInput...)
	if err != nil {
		return fmt.Errorf("password field: %w", err)
	}

	_ = c.page.Clear(email)
	if err := c.page.Type(email, c.opts.Email); err != nil {
		return fmt.Errorf("type email: %w", err)
	}
	c.pause(c.opts.Delays.Step / 2)
	_ = c.page.Clear(password)
	if err := c.page.Type(password, c.opts.Password); err != nil {
		return fmt.Errorf("type password: %w", err)
	}

	submit, err := c.page.WaitAny(c.opts.ElementTimeout, submitButton...)
	if err != nil {
		return fmt.Errorf("submit button: %w", err)
	}
	if err := c.page.Click(submit); err != nil {
		return err
	}

	if c.isLoggedIn(c.opts.PageTimeout) {
		return nil
	}

	c.shot(fmt.Sprintf("login_failure_%d", attempt), true)
	if html, err := c.page.HTML(); err == nil && browser.DetectCaptcha(html) {
		c.logger.Error("captcha detected, log in manually and import the cookies")
		return shared.ErrCaptcha
	}
	return fmt.Errorf("%w: signed-in marker did not appear", shared.ErrLoginFailed)
}

func (c *Client) isLoggedIn(timeout time.Duration) bool {
	_, err := c.page.WaitAny(timeout, loggedInMarker...)
	return err == nil
}

// saveSession stores the current cookies. Failures only cost the next run a login.
func (c *Client) saveSession(ctx context.Context) {
	if c.store == nil {
		return
	}
	cookies, err := c.page.Cookies()
	if err != nil {
		c.logger.Warn("could not read session cookies", "error", err)
		return
	}
	if err := c.store.Save(ctx, cookies); err != nil {
		c.logger.Warn("could not save session cookies", "error", err)
		return
	}
	c.logger.Debug("saved qobuz session", "cookies", len(cookies))
}
