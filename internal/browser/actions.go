package browser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/desertthunder/qbsync/internal/shared"
)

const pollInterval = 250 * time.Millisecond

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// ScreenshotName returns the file name used for a screenshot of step.
func ScreenshotName(step string) string {
	step = strings.Trim(unsafeName.ReplaceAllString(step, "_"), "_")
	if step == "" {
		step = "page"
	}
	return "screenshot_" + step + ".png"
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(url string) error {
	if err := s.run(s.opts.PageTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Count returns how many elements currently match sel without waiting.
func (s *Session) Count(sel Selector) (int, error) {
	var nodes []*cdp.Node
	if err := s.run(s.opts.ElementTimeout, chromedp.Nodes(sel.Query, &nodes, sel.by(), chromedp.AtLeast(0))); err != nil {
		return 0, err
	}
	return len(nodes), nil
}

// WaitAny polls candidates in order until one matches or timeout passes.
func (s *Session) WaitAny(timeout time.Duration, candidates ...Selector) (Selector, error) {
	return waitAny(candidates, timeout, pollInterval, s.Count, s.Pause)
}

// waitAny is the polling loop behind [Session.WaitAny]. Every candidate is tried
// at least once, even with a zero timeout.
func waitAny(candidates []Selector, timeout, interval time.Duration, count func(Selector) (int, error), pause func(time.Duration) error) (Selector, error) {
	if len(candidates) == 0 {
		return Selector{}, fmt.Errorf("%w: no selectors given", shared.ErrInvalidArgument)
	}

	rounds := 1
	if interval > 0 && timeout > 0 {
		rounds += int(timeout / interval)
	}

	for round := range rounds {
		for _, sel := range candidates {
			n, err := count(sel)
			if err != nil {
				return Selector{}, err
			}
			if n > 0 {
				return sel, nil
			}
		}
		if round < rounds-1 {
			if err := pause(interval); err != nil {
				return Selector{}, err
			}
		}
	}

	queries := make([]string, len(candidates))
	for i, c := range candidates {
		queries[i] = c.Query
	}
	return Selector{}, fmt.Errorf("%w: %s", shared.ErrElementNotFound, strings.Join(queries, " | "))
}

// Click clicks the first element matching sel once it is visible.
func (s *Session) Click(sel Selector) error {
	if err := s.run(s.opts.ElementTimeout, chromedp.Click(sel.Query, sel.by())); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

// ScrollIntoView scrolls the first element matching sel into the viewport.
func (s *Session) ScrollIntoView(sel Selector) error {
	return s.run(s.opts.ElementTimeout, chromedp.ScrollIntoView(sel.Query, sel.by()))
}

// Clear empties an input field.
func (s *Session) Clear(sel Selector) error {
	return s.run(s.opts.ElementTimeout, chromedp.Clear(sel.Query, sel.by()))
}

// Type focuses sel and enters text one key at a time with the session's typing delays.
func (s *Session) Type(sel Selector, text string) error {
	if err := s.run(s.opts.ElementTimeout, chromedp.Focus(sel.Query, sel.by())); err != nil {
		return fmt.Errorf("focus %s: %w", sel, err)
	}

	return s.run(0, chromedp.ActionFunc(func(ctx context.Context) error {
		for _, r := range text {
			if err := chromedp.KeyEvent(string(r)).Do(ctx); err != nil {
				return err
			}
			if err := chromedp.Sleep(s.opts.Typist.Delay(r)).Do(ctx); err != nil {
				return err
			}
		}
		return nil
	}))
}

// Pause waits for d unless the session is cancelled first.
func (s *Session) Pause(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return s.run(0, chromedp.Sleep(d))
}

// HTML returns the current document markup.
func (s *Session) HTML() (string, error) {
	var html string
	if err := s.run(s.opts.ElementTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Screenshot captures the viewport to ScreenshotDir and returns the written path.
func (s *Session) Screenshot(step string) (string, error) {
	var buf []byte
	if err := s.run(s.opts.ElementTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrScreenshotFailed, err)
	}

	dir := s.opts.ScreenshotDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrScreenshotFailed, err)
	}

	path := filepath.Join(dir, ScreenshotName(step))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrScreenshotFailed, err)
	}
	return path, nil
}
