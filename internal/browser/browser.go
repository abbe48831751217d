// Package browser drives a Chrome instance through the DevTools protocol.
//
// A [Session] owns one browser process and one tab. Every operation runs in the
// session's context, which is derived from the context given to [Launch], so
// cancelling that context also stops whatever the session is doing.
package browser

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/desertthunder/qbsync/internal/shared"
)

// Browser modes accepted by [ResolveHeadless].
const (
	ModeAuto     = "auto"
	ModeHeadless = "headless"
	ModeVisible  = "visible"
)

// stealthScript runs before any page script and hides the usual automation tells.
const stealthScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});
window.chrome = window.chrome || {runtime: {}};
Object.defineProperty(navigator, 'languages', {get: () => ['en-US', 'en']});
Object.defineProperty(navigator, 'plugins', {get: () => [1, 2, 3, 4, 5]});`

// Options configures the launched browser.
type Options struct {
	Headless       bool
	UserAgent      string
	WindowWidth    int
	WindowHeight   int
	ExecPath       string
	ScreenshotDir  string
	PageTimeout    time.Duration
	ElementTimeout time.Duration
	Typist         *Typist
	Verbose        bool
}

// ResolveHeadless maps a configured mode to a headless decision.
//
// The auto mode is headless when CI or GITHUB_ACTIONS is set.
func ResolveHeadless(mode string, lookup shared.LookupFunc) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModeHeadless:
		return true, nil
	case ModeVisible:
		return false, nil
	case ModeAuto, "":
		for _, key := range []string{"CI", "GITHUB_ACTIONS"} {
			v, ok := lookup(key)
			if !ok || v == "" {
				continue
			}
			if b, err := strconv.ParseBool(v); err == nil && !b {
				continue
			}
			return true, nil
		}
		return false, nil
	default:
		return false, fmt.Errorf("%w: browser mode %q", shared.ErrInvalidConfig, mode)
	}
}

// LaunchFlags returns the Chrome switches for opts on top of chromedp's defaults.
func LaunchFlags(opts Options) map[string]any {
	w, h := opts.WindowWidth, opts.WindowHeight
	if w <= 0 || h <= 0 {
		w, h = 1920, 1080
	}

	flags := map[string]any{
		"disable-blink-features": "AutomationControlled",
		"enable-automation":      false,
		"disable-infobars":       true,
		"window-size":            fmt.Sprintf("%d,%d", w, h),
		"lang":                   "en-US",
	}
	if opts.UserAgent != "" {
		flags["user-agent"] = opts.UserAgent
	}

	if opts.Headless {
		flags["headless"] = "new"
		flags["no-sandbox"] = true
		flags["disable-dev-shm-usage"] = true
		flags["disable-gpu"] = true
	} else {
		flags["headless"] = false
		flags["hide-scrollbars"] = false
		flags["mute-audio"] = false
		flags["start-maximized"] = true
	}
	return flags
}

// allocatorOptions turns [LaunchFlags] into exec allocator options.
func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	flags := LaunchFlags(opts)
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for _, name := range slices.Sorted(maps.Keys(flags)) {
		out = append(out, chromedp.Flag(name, flags[name]))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

// Session is a single Chrome tab.
type Session struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	opts        Options
	logger      *log.Logger
	closeOnce   sync.Once
}

// Launch starts Chrome, opens a tab and installs the stealth script.
//
// The caller must call [Session.Close].
func Launch(ctx context.Context, opts Options, logger *log.Logger) (*Session, error) {
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = 60 * time.Second
	}
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 10 * time.Second
	}
	if opts.Typist == nil {
		opts.Typist = NewTypist(50*time.Millisecond, 180*time.Millisecond)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)

	ctxOpts := []chromedp.ContextOption{chromedp.WithErrorf(logger.Debugf)}
	if opts.Verbose {
		ctxOpts = append(ctxOpts, chromedp.WithLogf(logger.Debugf))
	}
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, ctxOpts...)

	s := &Session{ctx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc, opts: opts, logger: logger}

	// The first Run allocates the browser, so it must use the tab context itself.
	err := chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: failed to start chrome: %w", shared.ErrBrowser, err)
	}

	logger.Info("browser started", "headless", opts.Headless, "window", LaunchFlags(opts)["window-size"])
	return s, nil
}

// Close shuts the tab and the browser process down. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
		s.logger.Debug("browser closed")
	})
	return nil
}

// run executes actions with an optional timeout and maps failures onto shared errors.
func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx := s.ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
		defer cancel()
	}

	if err := chromedp.Run(ctx, actions...); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", shared.ErrBrowser, err)
	}
	return nil
}
