package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// QobuzLogin logs in once so later runs can restore the saved session.
func (r *Runner) QobuzLogin(ctx context.Context, cmd *cli.Command) error {
	store, err := r.cookieStore()
	if err != nil {
		return err
	}
	if store == nil {
		r.logger.Warn("cookie_store is none, the session will not be saved")
	}

	client, err := r.openQobuz(ctx, cmd.Bool("visible"), store)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			r.logger.Warn("failed to close browser", "error", err)
		}
	}()

	if err := client.Login(ctx); err != nil {
		return err
	}

	r.writePlain("✓ Logged in to Qobuz\n")
	if store != nil {
		r.writePlain("✓ Session saved (%s store)\n", r.config.Browser.CookieStore)
	}
	return nil
}

// QobuzCookiesImport stores the cookies of a logged-in browser request as the saved session.
//
// This is the way around a CAPTCHA: log in by hand, copy any qobuz.com request as cURL and import it.
func (r *Runner) QobuzCookiesImport(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	var (
		req *shared.CurlRequest
		err error
	)
	if curlFile != "" {
		req, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		req, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	cookies, err := r.sessionCookies(req)
	if err != nil {
		return err
	}

	store, err := r.cookieStore()
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("%w: cookie_store is none", shared.ErrInvalidConfig)
	}
	if err := store.Save(ctx, cookies); err != nil {
		return err
	}

	r.logger.Info("imported qobuz session", "cookies", len(cookies))
	r.writePlain("✓ Imported %d cookies for %s\n", len(cookies), cookies[0].Domain)
	r.writePlain("Run 'qbsync qobuz login' to check the session.\n")
	return nil
}

// sessionCookies turns the cookie header of req into cookies scoped to the Qobuz domain.
func (r *Runner) sessionCookies(req *shared.CurlRequest) ([]browser.Cookie, error) {
	domain := cookieDomain(r.config.Credentials.Qobuz.BaseURL)
	if host := req.Host(); host != "" && !strings.HasSuffix("."+host, domain) {
		return nil, fmt.Errorf("%w: cURL request is for %s, not %s", shared.ErrInvalidInput, host, strings.TrimPrefix(domain, "."))
	}

	pairs := req.Cookies()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("%w: cURL command has no cookies", shared.ErrInvalidInput)
	}

	cookies := make([]browser.Cookie, 0, len(pairs))
	for _, p := range pairs {
		cookies = append(cookies, browser.Cookie{
			Name:   p.Name,
			Value:  p.Value,
			Domain: domain,
			Path:   "/",
			Secure: true,
		})
	}
	return cookies, nil
}

// cookieDomain returns ".qobuz.com" style domain for the site at baseURL.
func cookieDomain(baseURL string) string {
	host := "www.qobuz.com"
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	return "." + strings.TrimPrefix(host, "www.")
}

// QobuzCookiesClear forgets the saved session.
func (r *Runner) QobuzCookiesClear(ctx context.Context, cmd *cli.Command) error {
	store, err := r.cookieStore()
	if err != nil {
		return err
	}
	if store == nil {
		r.writePlain("cookie_store is none, nothing to clear\n")
		return nil
	}
	if err := store.Clear(ctx); err != nil {
		return err
	}
	r.writePlain("✓ Saved Qobuz session cleared\n")
	return nil
}
