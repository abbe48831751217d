package qobuz

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
)

// fakePage is a scripted [Page]. Selectors are visible when their query is in present.
type fakePage struct {
	present  map[string]bool
	counts   map[string]int
	onClick  map[string]func(p *fakePage)
	html     string
	cookies  []browser.Cookie
	restored []browser.Cookie

	// loginOnRestore marks the session signed in once cookies are set.
	loginOnRestore bool

	navigated []string
	clicks    []string
	typed     map[string]string
	shots     []string
	closed    bool
}

func newFakePage() *fakePage {
	return &fakePage{
		present: map[string]bool{},
		counts:  map[string]int{},
		onClick: map[string]func(*fakePage){},
		typed:   map[string]string{},
	}
}

func (p *fakePage) show(sels ...browser.Selector) {
	for _, s := range sels {
		p.present[s.Query] = true
	}
}

func (p *fakePage) Navigate(url string) error {
	p.navigated = append(p.navigated, url)
	return nil
}

func (p *fakePage) Count(sel browser.Selector) (int, error) {
	if n, ok := p.counts[sel.Query]; ok {
		return n, nil
	}
	if p.present[sel.Query] {
		return 1, nil
	}
	return 0, nil
}

func (p *fakePage) WaitAny(_ time.Duration, candidates ...browser.Selector) (browser.Selector, error) {
	for _, c := range candidates {
		if p.present[c.Query] {
			return c, nil
		}
	}
	return browser.Selector{}, shared.ErrElementNotFound
}

func (p *fakePage) Click(sel browser.Selector) error {
	if !p.present[sel.Query] && p.counts[sel.Query] == 0 && sel.Query != optionsButton.Query {
		return shared.ErrElementNotFound
	}
	p.clicks = append(p.clicks, sel.Query)
	if fn := p.onClick[sel.Query]; fn != nil {
		fn(p)
	}
	return nil
}

func (p *fakePage) ScrollIntoView(browser.Selector) error { return nil }
func (p *fakePage) Clear(browser.Selector) error          { return nil }
func (p *fakePage) Pause(time.Duration) error             { return nil }
func (p *fakePage) HTML() (string, error)                 { return p.html, nil }

func (p *fakePage) Type(sel browser.Selector, text string) error {
	p.typed[sel.Query] = text
	return nil
}

func (p *fakePage) Screenshot(step string) (string, error) {
	p.shots = append(p.shots, step)
	return browser.ScreenshotName(step), nil
}

func (p *fakePage) Cookies() ([]browser.Cookie, error) { return p.cookies, nil }

func (p *fakePage) SetCookies(cookies []browser.Cookie) error {
	p.restored = cookies
	if p.loginOnRestore {
		p.show(loggedInMarker[0])
	}
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

type memoryStore struct {
	cookies []browser.Cookie
	saves   int
}

func (m *memoryStore) Load(context.Context) ([]browser.Cookie, error) {
	if len(m.cookies) == 0 {
		return nil, shared.ErrNoCookies
	}
	return m.cookies, nil
}

func (m *memoryStore) Save(_ context.Context, cookies []browser.Cookie) error {
	m.cookies = cookies
	m.saves++
	return nil
}

func (m *memoryStore) Clear(context.Context) error {
	m.cookies = nil
	return nil
}

func testOptions() Options {
	return Options{
		BaseURL:  "https://qobuz.test",
		Email:    "me@example.com",
		Password: "hunter2",
		Backoff:  &backoff.ZeroBackOff{},
	}
}

func newTestClient(page *fakePage, store browser.CookieStore, opts Options) *Client {
	return NewClient(page, store, opts, shared.NewLogger(io.Discard))
}

// loginForm renders the login form. Submitting signs in from the nth submission on.
func loginForm(page *fakePage, succeedOn int) *int {
	page.show(emailInput[0], passwordInput[0], submitButton[0])
	submits := 0
	page.onClick[submitButton[0].Query] = func(p *fakePage) {
		submits++
		if succeedOn > 0 && submits >= succeedOn {
			p.show(loggedInMarker[0])
		}
	}
	return &submits
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	session := []browser.Cookie{{Name: "session", Value: "abc", Domain: ".qobuz.test", Path: "/"}}

	t.Run("restores saved session", func(t *testing.T) {
		page := newFakePage()
		page.loginOnRestore = true
		store := &memoryStore{cookies: session}

		if err := newTestClient(page, store, testOptions()).Login(ctx); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if len(page.restored) != 1 {
			t.Errorf("expected cookies to be restored, got %v", page.restored)
		}
		if len(page.typed) != 0 {
			t.Errorf("credentials should not be typed, got %v", page.typed)
		}
		if page.navigated[0] != "https://qobuz.test/" {
			t.Errorf("first navigation = %q, want site root", page.navigated[0])
		}
	})

	t.Run("falls back to credentials when session expired", func(t *testing.T) {
		page := newFakePage()
		page.cookies = session
		submits := loginForm(page, 1)
		store := &memoryStore{cookies: []browser.Cookie{{Name: "old", Value: "x"}}}

		if err := newTestClient(page, store, testOptions()).Login(ctx); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if *submits != 1 {
			t.Errorf("submits = %d, want 1", *submits)
		}
		if page.typed[emailInput[0].Query] != "me@example.com" {
			t.Errorf("email typed = %q", page.typed[emailInput[0].Query])
		}
		if page.typed[passwordInput[0].Query] != "hunter2" {
			t.Errorf("password typed = %q", page.typed[passwordInput[0].Query])
		}
		if store.saves != 1 || store.cookies[0].Name != "session" {
			t.Errorf("expected new session to be saved, got %+v", store)
		}
	})

	t.Run("without store", func(t *testing.T) {
		page := newFakePage()
		loginForm(page, 1)

		if err := newTestClient(page, nil, testOptions()).Login(ctx); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	})

	t.Run("missing credentials", func(t *testing.T) {
		page := newFakePage()
		opts := testOptions()
		opts.Password = ""

		err := newTestClient(page, &memoryStore{}, opts).Login(ctx)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
		if len(page.navigated) != 0 {
			t.Errorf("no page should be opened, got %v", page.navigated)
		}
	})

	t.Run("retries until signed in", func(t *testing.T) {
		page := newFakePage()
		submits := loginForm(page, 2)

		if err := newTestClient(page, nil, testOptions()).Login(ctx); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if *submits != 2 {
			t.Errorf("submits = %d, want 2", *submits)
		}
		if !slices.Contains(page.shots, "login_failure_1") {
			t.Errorf("expected failure screenshot, got %v", page.shots)
		}
	})

	t.Run("gives up after configured attempts", func(t *testing.T) {
		page := newFakePage()
		submits := loginForm(page, 0)
		opts := testOptions()
		opts.LoginAttempts = 2

		err := newTestClient(page, nil, opts).Login(ctx)
		if !errors.Is(err, shared.ErrLoginFailed) {
			t.Fatalf("expected ErrLoginFailed, got %v", err)
		}
		if *submits != 2 {
			t.Errorf("submits = %d, want 2", *submits)
		}
		if !strings.Contains(err.Error(), "2 attempt(s)") {
			t.Errorf("error should report attempts: %v", err)
		}
	})

	t.Run("captcha stops retries", func(t *testing.T) {
		page := newFakePage()
		page.html = `<html><div class="g-recaptcha">Please prove you are not a robot</div></html>`
		submits := loginForm(page, 0)

		err := newTestClient(page, nil, testOptions()).Login(ctx)
		if !errors.Is(err, shared.ErrCaptcha) {
			t.Fatalf("expected ErrCaptcha, got %v", err)
		}
		if !errors.Is(err, shared.ErrLoginFailed) {
			t.Errorf("captcha should still be a login failure: %v", err)
		}
		if *submits != 1 {
			t.Errorf("submits = %d, want 1", *submits)
		}
	})

	t.Run("login form never appears", func(t *testing.T) {
		page := newFakePage()
		opts := testOptions()
		opts.LoginAttempts = 1
		opts.Screenshots = ScreenshotsAll

		err := newTestClient(page, nil, opts).Login(ctx)
		if !errors.Is(err, shared.ErrElementNotFound) {
			t.Fatalf("expected ErrElementNotFound, got %v", err)
		}
		if !slices.Contains(page.shots, "login_page") {
			t.Errorf("expected login_page screenshot, got %v", page.shots)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := newTestClient(newFakePage(), nil, testOptions()).Login(cctx)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestPreparePlaylist(t *testing.T) {
	ctx := context.Background()
	const name = "Weekly Mix"

	t.Run("clears existing playlist", func(t *testing.T) {
		page := newFakePage()
		page.show(playlistEntry(name)[0], playlistHeader[0], selectAllButton[0], deleteButton[0], confirmButton[0])
		page.counts[trackItem.Query] = 4

		if err := newTestClient(page, nil, testOptions()).PreparePlaylist(ctx, name); err != nil {
			t.Fatalf("PreparePlaylist() error = %v", err)
		}
		want := []string{playlistEntry(name)[0].Query, selectAllButton[0].Query, deleteButton[0].Query, confirmButton[0].Query}
		if !slices.Equal(page.clicks, want) {
			t.Errorf("clicks = %v, want %v", page.clicks, want)
		}
		if page.navigated[0] != "https://qobuz.test/my-profile/playlists" {
			t.Errorf("navigated to %q", page.navigated[0])
		}
	})

	t.Run("empty existing playlist", func(t *testing.T) {
		page := newFakePage()
		page.show(playlistEntry(name)[1], playlistHeader[0])
		page.counts[trackItem.Query] = 0

		if err := newTestClient(page, nil, testOptions()).PreparePlaylist(ctx, name); err != nil {
			t.Fatalf("PreparePlaylist() error = %v", err)
		}
		if len(page.clicks) != 1 {
			t.Errorf("only the playlist should be opened, clicks = %v", page.clicks)
		}
	})

	t.Run("clearing failure is not fatal", func(t *testing.T) {
		page := newFakePage()
		page.show(playlistEntry(name)[0])

		if err := newTestClient(page, nil, testOptions()).PreparePlaylist(ctx, name); err != nil {
			t.Fatalf("PreparePlaylist() error = %v", err)
		}
		if !slices.Contains(page.shots, "track_delete_error") {
			t.Errorf("expected track_delete_error screenshot, got %v", page.shots)
		}
	})

	t.Run("creates missing playlist", func(t *testing.T) {
		page := newFakePage()
		page.show(createPlaylistButton[2], playlistNameInput[0], confirmCreateButton[0])

		if err := newTestClient(page, nil, testOptions()).PreparePlaylist(ctx, name); err != nil {
			t.Fatalf("PreparePlaylist() error = %v", err)
		}
		if got := page.typed[playlistNameInput[0].Query]; got != name {
			t.Errorf("typed name = %q, want %q", got, name)
		}
		if page.clicks[len(page.clicks)-1] != confirmCreateButton[0].Query {
			t.Errorf("last click = %q, want confirm", page.clicks[len(page.clicks)-1])
		}
	})

	t.Run("create failure is fatal", func(t *testing.T) {
		page := newFakePage()
		page.show(createPlaylistButton[0])

		err := newTestClient(page, nil, testOptions()).PreparePlaylist(ctx, name)
		if !errors.Is(err, shared.ErrPlaylistCreate) {
			t.Fatalf("expected ErrPlaylistCreate, got %v", err)
		}
		if !slices.Contains(page.shots, "create_playlist_error") {
			t.Errorf("expected create_playlist_error screenshot, got %v", page.shots)
		}
	})

	t.Run("screenshots off", func(t *testing.T) {
		page := newFakePage()
		opts := testOptions()
		opts.Screenshots = ScreenshotsOff

		_ = newTestClient(page, nil, opts).PreparePlaylist(ctx, name)
		if len(page.shots) != 0 {
			t.Errorf("expected no screenshots, got %v", page.shots)
		}
	})
}

func TestAddTrack(t *testing.T) {
	ctx := context.Background()
	track := services.Track{Title: "Windowlicker", Artist: "Aphex Twin"}

	prepared := func(page *fakePage) *Client {
		c := newTestClient(page, nil, testOptions())
		c.playlist = "Mix"
		return c
	}

	t.Run("adds first result", func(t *testing.T) {
		page := newFakePage()
		page.counts[trackItem.Query] = 3
		page.show(addToPlaylist[0], dialogEntry("Mix")[2])

		if err := prepared(page).AddTrack(ctx, 1, track); err != nil {
			t.Fatalf("AddTrack() error = %v", err)
		}
		if got, want := page.navigated[0], "https://qobuz.test/search?q=Windowlicker+Aphex+Twin"; got != want {
			t.Errorf("navigated to %q, want %q", got, want)
		}
		want := []string{optionsButton.Query, addToPlaylist[0].Query, dialogEntry("Mix")[2].Query}
		if !slices.Equal(page.clicks, want) {
			t.Errorf("clicks = %v, want %v", page.clicks, want)
		}
	})

	t.Run("no results", func(t *testing.T) {
		page := newFakePage()

		err := prepared(page).AddTrack(ctx, 2, track)
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "search" {
			t.Fatalf("expected search step error, got %v", err)
		}
		if !errors.Is(err, shared.ErrNoResults) {
			t.Errorf("expected ErrNoResults, got %v", err)
		}
		if !slices.Contains(page.shots, "no_results_2") {
			t.Errorf("expected no_results_2 screenshot, got %v", page.shots)
		}
	})

	t.Run("playlist missing from dialog", func(t *testing.T) {
		page := newFakePage()
		page.counts[trackItem.Query] = 1
		page.show(addToPlaylist[0], dialogEntry("Other")[0])

		err := prepared(page).AddTrack(ctx, 3, track)
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "choose playlist" {
			t.Fatalf("expected choose playlist step error, got %v", err)
		}
		if !slices.Contains(page.shots, "playlist_not_found_3") {
			t.Errorf("expected playlist_not_found_3 screenshot, got %v", page.shots)
		}
	})

	t.Run("menu missing", func(t *testing.T) {
		page := newFakePage()
		page.counts[trackItem.Query] = 1

		err := prepared(page).AddTrack(ctx, 4, track)
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "add to playlist" {
			t.Fatalf("expected add to playlist step error, got %v", err)
		}
	})

	t.Run("requires prepared playlist", func(t *testing.T) {
		err := newTestClient(newFakePage(), nil, testOptions()).AddTrack(ctx, 1, track)
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestSearchURL(t *testing.T) {
	tests := []struct {
		base, query, want string
	}{
		{"https://www.qobuz.com", "Song Artist", "https://www.qobuz.com/search?q=Song+Artist"},
		{"https://www.qobuz.com/", "AC/DC & Friends", "https://www.qobuz.com/search?q=AC%2FDC+%26+Friends"},
		{"https://www.qobuz.com", "Beyoncé", "https://www.qobuz.com/search?q=Beyonc%C3%A9"},
	}
	for _, tt := range tests {
		if got := SearchURL(tt.base, tt.query); got != tt.want {
			t.Errorf("SearchURL(%q, %q) = %q, want %q", tt.base, tt.query, got, tt.want)
		}
	}
}

func TestClose(t *testing.T) {
	page := newFakePage()
	if err := newTestClient(page, nil, testOptions()).Close(); err != nil {
		t.Fatal(err)
	}
	if !page.closed {
		t.Error("page was not closed")
	}
}
