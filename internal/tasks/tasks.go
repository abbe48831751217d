// package tasks implements the playlist sync from a [services.Source] into a browser driven destination.
//
// The core abstraction is SyncEngine. Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/models"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
)

// DefaultMaxTracks caps a run when no limit is configured.
const DefaultMaxTracks = 100

// Destination is the playlist tracks are copied into. qobuz.Client implements it.
type Destination interface {
	// Login establishes an authenticated session. Failure ends the run.
	Login(ctx context.Context) error

	// PreparePlaylist creates or empties the target playlist. Failure ends the run.
	PreparePlaylist(ctx context.Context, name string) error

	// AddTrack adds one track. n is its 1-based position in the run.
	AddTrack(ctx context.Context, n int, track services.Track) error

	// Close releases the destination. It is called on every exit path.
	Close() error
}

// DestinationFactory opens a destination. It is only called once there are tracks to add.
type DestinationFactory func(ctx context.Context) (Destination, error)

// Recorder stores the outcome of a run.
type Recorder interface {
	Record(ctx context.Context, run *models.SyncRun) error
}

// snapshotter is implemented by destinations that can capture their state on a fatal error.
type snapshotter interface {
	Snapshot(step string)
}

// TrackResult is the outcome of one track.
type TrackResult struct {
	Position int
	Track    services.Track
	Err      error
}

// Added reports whether the track made it into the playlist.
func (r TrackResult) Added() bool { return r.Err == nil }

// Step names the part of the add flow that failed, if the destination reported one.
func (r TrackResult) Step() string {
	var stepErr interface{ StepName() string }
	if errors.As(r.Err, &stepErr) {
		return stepErr.StepName()
	}
	if r.Err != nil {
		return "add"
	}
	return ""
}

// SyncResult contains all data from a sync run.
type SyncResult struct {
	RunID        string
	SourceRef    string                   // reference the run was started with
	Source       *services.PlaylistExport // nil if the source could not be read
	Destination  string                   // target playlist name
	Available    int                      // tracks in the source playlist
	Limit        int                      // effective cap
	Results      []TrackResult
	SuccessCount int
	FailedCount  int
	Skipped      bool  // source was empty, destination untouched
	Err          error // fatal error, if any
	Started      time.Time
	Finished     time.Time
}

// Processed is the number of tracks attempted.
func (r *SyncResult) Processed() int { return len(r.Results) }

// Status summarizes the run.
func (r *SyncResult) Status() models.RunStatus {
	switch {
	case r.Err != nil:
		return models.RunFailed
	case r.Skipped:
		return models.RunSkipped
	case r.Finished.IsZero():
		return models.RunRunning
	default:
		return models.RunCompleted
	}
}

// Run converts the result to its history model.
func (r *SyncResult) Run() *models.SyncRun {
	run := &models.SyncRun{
		RunID:       r.RunID,
		SourceID:    r.SourceRef,
		Destination: r.Destination,
		Status:      r.Status(),
		TotalTracks: r.Available,
		Processed:   r.Processed(),
		Succeeded:   r.SuccessCount,
		Failed:      r.FailedCount,
		StartedAt:   r.Started,
	}
	if r.Source != nil {
		run.SourceID = r.Source.Playlist.ID
		run.SourceName = r.Source.Playlist.Name
	}
	if r.Err != nil {
		run.ErrorMessage = r.Err.Error()
	}
	if !r.Finished.IsZero() {
		finished := r.Finished
		run.FinishedAt = &finished
	}
	for _, tr := range r.Results {
		res := models.SyncTrackResult{
			Position: tr.Position,
			Title:    tr.Track.Title,
			Artist:   tr.Track.Artist,
			Album:    tr.Track.Album,
			Status:   models.TrackAdded,
		}
		if tr.Err != nil {
			res.Status = models.TrackFailed
			res.Step = tr.Step()
			res.Error = tr.Err.Error()
		}
		run.Tracks = append(run.Tracks, res)
	}
	return run
}

// SyncEngine copies a source playlist into a destination playlist.
type SyncEngine interface {
	// Run exports the source playlist, prepares the destination playlist and adds each track in order.
	Run(ctx context.Context, progress chan<- ProgressUpdate, sourceIDOrName, destName string) (*SyncResult, error)
}

// EngineOptions configures a [PlaylistEngine].
type EngineOptions struct {
	MaxTracks  int           // tracks per run, <= 0 selects [DefaultMaxTracks]
	TrackDelay time.Duration // pause after each track before the next one starts
	Recorder   Recorder      // optional run history
	Logger     *log.Logger
}

// PlaylistEngine implements SyncEngine.
type PlaylistEngine struct {
	source services.Source
	open   DestinationFactory
	opts   EngineOptions
	logger *log.Logger
}

// NewPlaylistEngine creates a new PlaylistEngine reading from source and writing through open.
func NewPlaylistEngine(source services.Source, open DestinationFactory, opts EngineOptions) *PlaylistEngine {
	logger := opts.Logger
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{source: source, open: open, opts: opts, logger: logger}
}

// Limit returns the effective per-run track cap.
func (e *PlaylistEngine) Limit() int {
	if e.opts.MaxTracks <= 0 {
		return DefaultMaxTracks
	}
	return e.opts.MaxTracks
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Run performs a full sync.
//
// Per-track failures are recorded in the result and never returned. Source, login and playlist
// preparation failures end the run and are returned alongside the partial result.
func (e *PlaylistEngine) Run(ctx context.Context, progress chan<- ProgressUpdate, sourceIDOrName, destName string) (result *SyncResult, err error) {
	if e.source == nil || e.open == nil {
		return nil, fmt.Errorf("%w: sync engine needs a source and a destination", shared.ErrInvalidArgument)
	}
	if destName == "" {
		destName = shared.DefaultPlaylistName
	}

	result = &SyncResult{
		RunID:       shared.GenerateID(),
		SourceRef:   sourceIDOrName,
		Destination: destName,
		Limit:       e.Limit(),
		Started:     time.Now(),
	}
	logger := shared.WithLogger(e.logger, "run", result.RunID[:8])

	defer func() {
		result.Finished = time.Now()
		result.Err = err
		e.sendProgress(progress, completeUpdate(result))
		e.record(ctx, logger, result)
	}()

	e.sendProgress(progress, fetchingSourceUpdate(sourceIDOrName))
	export, err := e.source.ExportPlaylist(ctx, sourceIDOrName)
	if err != nil {
		return result, fmt.Errorf("failed to read source playlist: %w", err)
	}
	result.Source = export
	result.Available = len(export.Tracks)
	e.sendProgress(progress, foundPlaylistUpdate(export))

	if len(export.Tracks) == 0 {
		logger.Warn("source playlist is empty, leaving destination untouched", "source", export.Playlist.Name)
		result.Skipped = true
		return result, nil
	}

	tracks := export.Tracks
	if len(tracks) > result.Limit {
		logger.Info("capping tracks for this run", "available", len(tracks), "limit", result.Limit)
		tracks = tracks[:result.Limit]
	}

	e.sendProgress(progress, openBrowserUpdate())
	dest, err := e.open(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to open destination: %w", err)
	}
	defer func() {
		if cerr := dest.Close(); cerr != nil {
			logger.Warn("failed to close destination", "error", cerr)
		}
	}()

	e.sendProgress(progress, authenticateUpdate())
	if err = dest.Login(ctx); err != nil {
		e.snapshot(dest)
		return result, err
	}

	e.sendProgress(progress, preparePlaylistUpdate(destName))
	if err = dest.PreparePlaylist(ctx, destName); err != nil {
		e.snapshot(dest)
		return result, err
	}

	if err = e.addTracks(ctx, progress, logger, dest, tracks, result); err != nil {
		return result, err
	}

	logger.Info("sync finished", "success", result.SuccessCount, "failed", result.FailedCount)
	return result, nil
}

// addTracks walks tracks in order, pausing TrackDelay after each one. Only cancellation stops the walk.
func (e *PlaylistEngine) addTracks(ctx context.Context, progress chan<- ProgressUpdate, logger *log.Logger, dest Destination, tracks []services.Track, result *SyncResult) error {
	total := len(tracks)
	interrupted := func(done int, err error) error {
		return fmt.Errorf("sync interrupted after %d of %d tracks: %w", done, total, err)
	}

	for i, track := range tracks {
		if err := ctx.Err(); err != nil {
			return interrupted(i, err)
		}

		n := i + 1
		e.sendProgress(progress, addTrackUpdate(n, total, track))

		err := dest.AddTrack(ctx, n, track)
		result.Results = append(result.Results, TrackResult{Position: n, Track: track, Err: err})
		if err != nil {
			result.FailedCount++
			logger.Warn("failed to add track, moving on", "n", n, "track", track.String(), "error", err)
		} else {
			result.SuccessCount++
		}

		if n < total {
			if err := e.pause(ctx); err != nil {
				return interrupted(n, err)
			}
		}
	}
	return nil
}

// pause waits TrackDelay so Qobuz is not hit with back-to-back searches.
func (e *PlaylistEngine) pause(ctx context.Context) error {
	if e.opts.TrackDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.opts.TrackDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (e *PlaylistEngine) snapshot(dest Destination) {
	if s, ok := dest.(snapshotter); ok {
		s.Snapshot("final_error")
	}
}

// record stores the run. Recorder failures never change the outcome.
func (e *PlaylistEngine) record(ctx context.Context, logger *log.Logger, result *SyncResult) {
	if e.opts.Recorder == nil {
		return
	}
	if err := e.opts.Recorder.Record(context.WithoutCancel(ctx), result.Run()); err != nil {
		logger.Warn("failed to record sync run", "error", err)
	}
}
