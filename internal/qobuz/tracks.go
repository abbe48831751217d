package qobuz

import (
	"context"
	"fmt"

	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
)

// StepError names the part of the add-track flow that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Err.Error() }
func (e *StepError) Unwrap() error { return e.Err }

// StepName lets callers read the step without importing this package.
func (e *StepError) StepName() string { return e.Step }

// AddTrack searches for track and adds the first result to the prepared playlist.
// n is the 1-based position, used to name screenshots.
func (c *Client) AddTrack(ctx context.Context, n int, track services.Track) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	if c.playlist == "" {
		return fmt.Errorf("%w: no playlist prepared", shared.ErrInvalidArgument)
	}

	fail := func(step, shot string, err error) error {
		c.shot(shot, true)
		return &StepError{Step: step, Err: err}
	}
	generic := fmt.Sprintf("error_%d", n)

	query := track.SearchQuery()
	if err := c.page.Navigate(SearchURL(c.opts.BaseURL, query)); err != nil {
		return fail("search", generic, err)
	}
	c.pause(c.opts.Delays.ResultSettle)
	c.shot(fmt.Sprintf("search_%d", n), false)

	found, err := c.page.Count(trackItem)
	if err != nil {
		return fail("search", generic, err)
	}
	if found == 0 {
		return fail("search", fmt.Sprintf("no_results_%d", n), fmt.Errorf("%w for %q", shared.ErrNoResults, query))
	}

	if err := c.page.ScrollIntoView(optionsButton); err != nil {
		return fail("options", generic, err)
	}
	c.pause(c.opts.Delays.Step)
	if err := c.page.Click(optionsButton); err != nil {
		return fail("options", generic, err)
	}

	menu, err := c.page.WaitAny(c.opts.ElementTimeout, addToPlaylist...)
	if err == nil {
		err = c.page.Click(menu)
	}
	if err != nil {
		return fail("add to playlist", generic, err)
	}
	c.pause(c.opts.Delays.Step)

	entry, err := c.page.WaitAny(c.opts.ElementTimeout, dialogEntry(c.playlist)...)
	if err == nil {
		err = c.page.Click(entry)
	}
	if err != nil {
		return fail("choose playlist", fmt.Sprintf("playlist_not_found_%d", n), err)
	}
	c.pause(c.opts.Delays.Step)

	c.logger.Info("added track", "n", n, "track", track.String())
	return nil
}
