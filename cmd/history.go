package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/qbsync/internal/formatter"
	"github.com/desertthunder/qbsync/internal/models"
	"github.com/desertthunder/qbsync/internal/repositories"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/urfave/cli/v3"
)

func (r *Runner) runRepository() (*repositories.SyncRunRepository, error) {
	if !r.config.Database.History {
		return nil, fmt.Errorf("%w: set database.history = true", shared.ErrHistoryDisabled)
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewSyncRunRepository(db), nil
}

// HistoryList prints recent runs, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	runs, err := repo.List(map[string]any{
		"status": cmd.String("status"),
		"limit":  cmd.Int("limit"),
	})
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		r.writePlain("No recorded runs.\n")
		return nil
	}

	for _, run := range runs {
		r.writePlain("#%-4d %-9s %s  %s → %s  %d ok, %d failed\n",
			run.Sequence,
			run.Status,
			run.StartedAt.Local().Format(time.DateTime),
			sourceLabel(run),
			run.Destination,
			run.Succeeded,
			run.Failed,
		)
	}
	return nil
}

// HistoryShow prints one run. --id accepts the run number or its ID.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	repo, err := r.runRepository()
	if err != nil {
		return err
	}

	id := cmd.String("id")
	var run *models.SyncRun
	if seq, convErr := strconv.Atoi(id); convErr == nil {
		run, err = repo.GetBySequence(seq)
	} else {
		run, err = repo.Get(id)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(run, true)
	}
	_, err = r.output.Write(formatter.ReportToText(run))
	return err
}

func sourceLabel(run *models.SyncRun) string {
	if run.SourceName != "" {
		return run.SourceName
	}
	return run.SourceID
}
