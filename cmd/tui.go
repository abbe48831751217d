package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/desertthunder/qbsync/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogFile = "qbsync-tui.log"

// SyncUI launches the interactive terminal UI for picking and syncing a playlist.
func (r *Runner) SyncUI(ctx context.Context, cmd *cli.Command) error {
	source, err := r.requireSource()
	if err != nil {
		return err
	}

	// Logs go to a file so they do not tear the TUI rendering.
	f, err := os.OpenFile(tuiLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	logger := shared.NewLogger(f)
	logger.SetLevel(r.logger.GetLevel())

	engine, err := r.newEngine(cmd.Bool("visible"), 0, logger)
	if err != nil {
		return err
	}

	dest := r.config.Sync.Destination
	if dest == "" {
		dest = shared.DefaultPlaylistName
	}

	model := ui.NewModel(ctx, source, engine, dest, engine.Limit())
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
