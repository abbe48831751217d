package main

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/formatter"
	"github.com/desertthunder/qbsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// newEngine wires the Spotify source, a Qobuz destination and the optional run history.
func (r *Runner) newEngine(visible bool, maxTracks int, logger *log.Logger) (*tasks.PlaylistEngine, error) {
	source, err := r.requireSource()
	if err != nil {
		return nil, err
	}
	store, err := r.cookieStore()
	if err != nil {
		return nil, err
	}
	recorder, err := r.recorder()
	if err != nil {
		return nil, err
	}
	if maxTracks <= 0 {
		maxTracks = r.config.Sync.MaxTracks
	}

	return tasks.NewPlaylistEngine(source, r.destination(visible, store), tasks.EngineOptions{
		MaxTracks:  maxTracks,
		TrackDelay: r.config.Sync.TrackDelay.Duration,
		Recorder:   recorder,
		Logger:     logger,
	}), nil
}

// SyncRun runs one Spotify to Qobuz sync and prints the report.
//
// Failed tracks do not fail the command. A source, login or playlist failure does.
func (r *Runner) SyncRun(ctx context.Context, cmd *cli.Command) error {
	if v := cmd.String("source"); v != "" {
		r.config.Sync.Source = v
	}
	if v := cmd.String("dest"); v != "" {
		r.config.Sync.Destination = v
	}
	if err := r.config.ValidateSync(); err != nil {
		return err
	}

	source, err := r.requireSource()
	if err != nil {
		return err
	}
	user, err := source.CurrentUser(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("authenticated with spotify", "user", user.DisplayName)

	engine, err := r.newEngine(cmd.Bool("visible"), cmd.Int("max-tracks"), r.logger)
	if err != nil {
		return err
	}

	sourceRef, destName := r.config.Sync.Source, r.config.Sync.Destination
	r.logger.Info("starting sync", "source", sourceRef, "dest", destName, "limit", engine.Limit())
	r.writePlain("Source: %s\n", sourceRef)
	r.writePlain("Destination: %s\n\n", destName)

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.AddTracks:
				r.writePlain("   [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.Complete:
				r.writePlain("\n%s\n", update.Message)
			default:
				r.writePlain("→ %s\n", update.Message)
			}
		}
	}()

	result, err := engine.Run(ctx, progress, sourceRef, destName)
	close(progress)
	<-done

	if result != nil {
		run := result.Run()
		r.writePlain("\n")
		r.writePlainHeader("Sync Report")
		r.output.Write(formatter.ReportToText(run))

		if path := cmd.String("report"); path != "" {
			if werr := formatter.WriteReport(run, path); werr != nil {
				r.logger.Warn("failed to write report", "path", path, "error", werr)
			} else {
				r.writePlain("Report saved to %s\n", path)
			}
		}
	}

	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}
