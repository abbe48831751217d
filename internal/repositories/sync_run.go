package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/qbsync/internal/models"
	"github.com/desertthunder/qbsync/internal/shared"
)

const syncRunColumns = `
	id, sequence, source_id, source_name, destination, status, total_tracks,
	processed, succeeded, failed, error_message, started_at, finished_at,
	created_at, updated_at, deleted_at`

// SyncRunRepository implements models.Repository[*models.SyncRun] for run history.
//
// Track results are stored in sync_run_tracks and replaced as a whole on update.
type SyncRunRepository struct {
	db *sql.DB
}

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a run and its track results. The ID is generated unless already set.
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	if run.RunID == "" {
		run.RunID = shared.GenerateID()
	}
	if run.Status == "" {
		run.Status = models.RunRunning
	}
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sync_run")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	now := time.Now()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sync_runs (
			id, sequence, source_id, source_name, destination, status, total_tracks,
			processed, succeeded, failed, error_message, started_at, finished_at,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		run.RunID,
		sequence,
		run.SourceID,
		run.SourceName,
		run.Destination,
		string(run.Status),
		run.TotalTracks,
		run.Processed,
		run.Succeeded,
		run.Failed,
		run.ErrorMessage,
		run.StartedAt,
		nullableTime(run.FinishedAt),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	if err := insertTracks(tx, run.RunID, run.Tracks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}

	run.Sequence = sequence
	run.Created = now
	run.Updated = now
	return nil
}

// Get retrieves a run with its track results, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`

	run, err := scanRun(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync run %s", shared.ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	run.Tracks, err = r.tracks(run.RunID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetBySequence retrieves a run by its human-readable number
func (r *SyncRunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	var id string
	err := r.db.QueryRow(`SELECT id FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL`, sequence).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: sync run #%d", shared.ErrRecordNotFound, sequence)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up sync run: %w", err)
	}
	return r.Get(id)
}

// Update modifies the outcome of an existing run and replaces its track results
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE sync_runs
		SET source_name = ?, status = ?, total_tracks = ?, processed = ?, succeeded = ?,
			failed = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.Exec(query,
		run.SourceName,
		string(run.Status),
		run.TotalTracks,
		run.Processed,
		run.Succeeded,
		run.Failed,
		run.ErrorMessage,
		nullableTime(run.FinishedAt),
		now,
		run.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: sync run %s", shared.ErrRecordNotFound, run.RunID)
	}

	if _, err := tx.Exec(`DELETE FROM sync_run_tracks WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("failed to clear track results: %w", err)
	}
	if err := insertTracks(tx, run.RunID, run.Tracks); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	run.Updated = now
	return nil
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	result, err := r.db.Exec(`UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: sync run %s", shared.ErrRecordNotFound, id)
	}
	return nil
}

// List retrieves runs newest first, excluding soft-deleted runs. Track results are not loaded.
//
// Supported criteria: "status" (string or models.RunStatus), "source_id" (string) and "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	switch status := criteria["status"].(type) {
	case models.RunStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	}

	if sourceID, ok := criteria["source_id"].(string); ok && sourceID != "" {
		query += " AND source_id = ?"
		args = append(args, sourceID)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

func (r *SyncRunRepository) tracks(runID string) ([]models.SyncTrackResult, error) {
	rows, err := r.db.Query(`
		SELECT position, title, artist, album, status, step, error_message
		FROM sync_run_tracks
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query track results: %w", err)
	}
	defer rows.Close()

	var tracks []models.SyncTrackResult
	for rows.Next() {
		var (
			tr     models.SyncTrackResult
			status string
		)
		if err := rows.Scan(&tr.Position, &tr.Title, &tr.Artist, &tr.Album, &status, &tr.Step, &tr.Error); err != nil {
			return nil, fmt.Errorf("failed to scan track result: %w", err)
		}
		tr.Status = models.TrackStatus(status)
		tracks = append(tracks, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

func insertTracks(tx *sql.Tx, runID string, tracks []models.SyncTrackResult) error {
	if len(tracks) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO sync_run_tracks (run_id, position, title, artist, album, status, step, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare track insert: %w", err)
	}
	defer stmt.Close()

	for _, tr := range tracks {
		if _, err := stmt.Exec(runID, tr.Position, tr.Title, tr.Artist, tr.Album, string(tr.Status), tr.Step, tr.Error); err != nil {
			return fmt.Errorf("failed to insert track result %d: %w", tr.Position, err)
		}
	}
	return nil
}

// scanner is satisfied by [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		run        models.SyncRun
		status     string
		finishedAt sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(
		&run.RunID, &run.Sequence, &run.SourceID, &run.SourceName, &run.Destination, &status,
		&run.TotalTracks, &run.Processed, &run.Succeeded, &run.Failed, &run.ErrorMessage,
		&run.StartedAt, &finishedAt, &run.Created, &run.Updated, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run.Status = models.RunStatus(status)
	run.FinishedAt = timePtr(finishedAt)
	run.DeletedAt = timePtr(deletedAt)
	return &run, nil
}

// RunRecorder stores finished runs. It implements tasks.Recorder.
type RunRecorder struct {
	repo *SyncRunRepository
}

// NewRunRecorder creates a RunRecorder writing through repo
func NewRunRecorder(repo *SyncRunRepository) *RunRecorder {
	return &RunRecorder{repo: repo}
}

// Record inserts run, or updates it when a run with the same ID already exists.
func (a *RunRecorder) Record(ctx context.Context, run *models.SyncRun) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.RunID != "" {
		if _, err := a.repo.Get(run.RunID); err == nil {
			return a.repo.Update(run)
		}
	}
	return a.repo.Create(run)
}
