package qobuz

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/shared"
)

// PreparePlaylist makes name the empty target of the run. A missing playlist is
// created, and failing to create it is fatal. An existing playlist is emptied on
// a best-effort basis.
func (c *Client) PreparePlaylist(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	c.playlist = name

	if err := c.page.Navigate(c.url(playlistsPath)); err != nil {
		c.shot("playlists_page", true)
		return fmt.Errorf("%w %q: %w", shared.ErrPlaylistCreate, name, err)
	}
	c.pause(c.opts.Delays.PageSettle)
	c.shot("playlists_page", false)

	entry, err := c.page.WaitAny(0, playlistEntry(name)...)
	switch {
	case err == nil:
		c.logger.Info("playlist exists, clearing it", "playlist", name)
		c.clearPlaylist(entry)
		return nil
	case errors.Is(err, shared.ErrElementNotFound):
		return c.createPlaylist(name)
	default:
		return fmt.Errorf("%w %q: %w", shared.ErrPlaylistCreate, name, err)
	}
}

func (c *Client) createPlaylist(name string) error {
	c.logger.Info("creating playlist", "playlist", name)
	fail := func(step string, err error) error {
		c.shot("create_playlist_error", true)
		return fmt.Errorf("%w %q: %s: %w", shared.ErrPlaylistCreate, name, step, err)
	}

	button, err := c.page.WaitAny(c.opts.ElementTimeout, createPlaylistButton...)
	if err != nil {
		return fail("create button", err)
	}
	if err := c.page.Click(button); err != nil {
		return fail("create button", err)
	}

	input, err := c.page.WaitAny(c.opts.ElementTimeout, playlistNameInput...)
	if err != nil {
		return fail("name field", err)
	}
	_ = c.page.Clear(input)
	if err := c.page.Type(input, name); err != nil {
		return fail("name field", err)
	}

	confirm, err := c.page.WaitAny(c.opts.ElementTimeout, confirmCreateButton...)
	if err != nil {
		return fail("confirm", err)
	}
	if err := c.page.Click(confirm); err != nil {
		return fail("confirm", err)
	}
	c.pause(c.opts.Delays.ResultSettle)

	c.logger.Info("created playlist", "playlist", name)
	return nil
}

// clearPlaylist removes every track from the playlist behind entry. Each failure
// is logged and ends the attempt without failing the run.
func (c *Client) clearPlaylist(entry browser.Selector) {
	warn := func(step string, err error) {
		c.logger.Warn("could not clear playlist, continuing", "step", step, "error", err)
		c.shot("track_delete_error", true)
	}

	if err := c.page.Click(entry); err != nil {
		warn("open playlist", err)
		return
	}
	c.pause(c.opts.Delays.ResultSettle)

	if _, err := c.page.WaitAny(c.opts.ElementTimeout, playlistHeader...); err != nil {
		warn("playlist header", err)
		return
	}

	n, err := c.page.Count(trackItem)
	if err != nil {
		warn("count tracks", err)
		return
	}
	if n == 0 {
		c.logger.Debug("playlist is already empty")
		return
	}

	steps := []struct {
		name       string
		candidates []browser.Selector
	}{
		{"select all", selectAllButton},
		{"delete", deleteButton},
		{"confirm", confirmButton},
	}
	for _, step := range steps {
		sel, err := c.page.WaitAny(c.opts.ElementTimeout, step.candidates...)
		if err == nil {
			err = c.page.Click(sel)
		}
		if err != nil {
			warn(step.name, err)
			return
		}
		c.pause(c.opts.Delays.Step)
	}
	c.pause(c.opts.Delays.Step)

	c.logger.Info("cleared playlist", "tracks", n)
}
