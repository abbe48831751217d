// package models defines the data model of the sync history
package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// RunStatus is the outcome of a sync run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunSkipped   RunStatus = "skipped"
	RunFailed    RunStatus = "failed"
)

// TrackStatus is the outcome of adding one track.
type TrackStatus string

const (
	TrackAdded  TrackStatus = "added"
	TrackFailed TrackStatus = "failed"
)

// SyncRun records one execution of the Spotify to Qobuz sync.
type SyncRun struct {
	RunID        string
	Sequence     int
	SourceID     string
	SourceName   string
	Destination  string
	Status       RunStatus
	TotalTracks  int
	Processed    int
	Succeeded    int
	Failed       int
	ErrorMessage string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Created      time.Time
	Updated      time.Time
	DeletedAt    *time.Time
	Tracks       []SyncTrackResult
}

// SyncTrackResult is a single track's outcome within a [SyncRun].
type SyncTrackResult struct {
	Position int
	Title    string
	Artist   string
	Album    string
	Status   TrackStatus
	Step     string
	Error    string
}

func (r *SyncRun) ID() string           { return r.RunID }
func (r *SyncRun) CreatedAt() time.Time { return r.Created }
func (r *SyncRun) UpdatedAt() time.Time { return r.Updated }

// Validate checks the fields the database requires.
func (r *SyncRun) Validate() error {
	if r.RunID == "" {
		return fmt.Errorf("sync run id is required")
	}
	if r.SourceID == "" {
		return fmt.Errorf("sync run source is required")
	}
	if r.Destination == "" {
		return fmt.Errorf("sync run destination is required")
	}
	switch r.Status {
	case RunRunning, RunCompleted, RunSkipped, RunFailed:
	default:
		return fmt.Errorf("unknown sync run status %q", r.Status)
	}
	if r.Succeeded+r.Failed > r.Processed {
		return fmt.Errorf("sync run counts exceed processed tracks (%d+%d > %d)", r.Succeeded, r.Failed, r.Processed)
	}
	return nil
}

// Elapsed returns how long the run took, or zero while it is still running.
func (r *SyncRun) Elapsed() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
