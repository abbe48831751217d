package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/qbsync/internal/models"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
	th "github.com/desertthunder/qbsync/internal/testing"
)

type stepErr struct{ step string }

func (e *stepErr) Error() string    { return e.step + ": failed" }
func (e *stepErr) StepName() string { return e.step }

type memoryRecorder struct {
	runs []*models.SyncRun
	err  error
}

func (m *memoryRecorder) Record(ctx context.Context, run *models.SyncRun) error {
	m.runs = append(m.runs, run)
	return m.err
}

func sourceWith(tracks []services.Track) *th.MockSource {
	return &th.MockSource{
		Exports: map[string]*services.PlaylistExport{
			"src123": {
				Playlist: services.Playlist{ID: "src123", Name: "Discover Weekly", TrackCount: len(tracks)},
				Tracks:   tracks,
			},
		},
	}
}

func factoryFor(dest *th.MockDestination, opened *int) DestinationFactory {
	return func(ctx context.Context) (Destination, error) {
		if opened != nil {
			*opened++
		}
		return dest, nil
	}
}

func quietOptions() EngineOptions {
	return EngineOptions{Logger: shared.NewLogger(io.Discard)}
}

func TestPlaylistEngine_Run(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		tracks      int
		maxTracks   int
		dest        *th.MockDestination
		ref         string
		wantErr     error
		wantSuccess int
		wantFailed  int
		wantCalls   []string
		wantStatus  models.RunStatus
	}{
		{
			name:        "adds every track",
			tracks:      3,
			dest:        &th.MockDestination{},
			ref:         "src123",
			wantSuccess: 3,
			wantCalls:   []string{"login", "prepare", "add:1", "add:2", "add:3", "close"},
			wantStatus:  models.RunCompleted,
		},
		{
			name:        "resolves source by name",
			tracks:      1,
			dest:        &th.MockDestination{},
			ref:         "discover weekly",
			wantSuccess: 1,
			wantCalls:   []string{"login", "prepare", "add:1", "close"},
			wantStatus:  models.RunCompleted,
		},
		{
			name:   "track failures are not fatal",
			tracks: 4,
			dest: &th.MockDestination{TrackErrs: map[int]error{
				2: shared.ErrNoResults,
				3: &stepErr{step: "choose playlist"},
			}},
			ref:         "src123",
			wantSuccess: 2,
			wantFailed:  2,
			wantCalls:   []string{"login", "prepare", "add:1", "add:2", "add:3", "add:4", "close"},
			wantStatus:  models.RunCompleted,
		},
		{
			name:        "caps tracks per run",
			tracks:      5,
			maxTracks:   2,
			dest:        &th.MockDestination{},
			ref:         "src123",
			wantSuccess: 2,
			wantCalls:   []string{"login", "prepare", "add:1", "add:2", "close"},
			wantStatus:  models.RunCompleted,
		},
		{
			name:       "login failure ends the run",
			tracks:     2,
			dest:       &th.MockDestination{LoginErr: shared.ErrLoginFailed},
			ref:        "src123",
			wantErr:    shared.ErrLoginFailed,
			wantCalls:  []string{"login", "close"},
			wantStatus: models.RunFailed,
		},
		{
			name:       "playlist creation failure ends the run",
			tracks:     2,
			dest:       &th.MockDestination{PrepareErr: shared.ErrPlaylistCreate},
			ref:        "src123",
			wantErr:    shared.ErrPlaylistCreate,
			wantCalls:  []string{"login", "prepare", "close"},
			wantStatus: models.RunFailed,
		},
		{
			name:       "unknown source",
			tracks:     2,
			dest:       &th.MockDestination{},
			ref:        "missing",
			wantErr:    shared.ErrPlaylistNotFound,
			wantStatus: models.RunFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := quietOptions()
			opts.MaxTracks = tt.maxTracks
			engine := NewPlaylistEngine(sourceWith(th.Tracks(tt.tracks)), factoryFor(tt.dest, nil), opts)

			result, err := engine.Run(ctx, nil, tt.ref, "Target")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Run() error = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("Run() unexpected error: %v", err)
			}

			if result == nil {
				t.Fatal("Run() returned nil result")
			}
			if result.SuccessCount != tt.wantSuccess {
				t.Errorf("SuccessCount = %d, want %d", result.SuccessCount, tt.wantSuccess)
			}
			if result.FailedCount != tt.wantFailed {
				t.Errorf("FailedCount = %d, want %d", result.FailedCount, tt.wantFailed)
			}
			if !slices.Equal(tt.dest.Calls, tt.wantCalls) {
				t.Errorf("calls = %v, want %v", tt.dest.Calls, tt.wantCalls)
			}
			if got := result.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %s, want %s", got, tt.wantStatus)
			}
			if result.Finished.IsZero() {
				t.Error("Finished should be set")
			}
		})
	}
}

func TestPlaylistEngine_RunDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("empty source never opens the destination", func(t *testing.T) {
		opened := 0
		dest := &th.MockDestination{}
		engine := NewPlaylistEngine(sourceWith(nil), factoryFor(dest, &opened), quietOptions())

		result, err := engine.Run(ctx, nil, "src123", "Target")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if !result.Skipped || result.Status() != models.RunSkipped {
			t.Errorf("expected skipped run, got %+v", result)
		}
		if opened != 0 {
			t.Errorf("destination opened %d times", opened)
		}
	})

	t.Run("factory failure", func(t *testing.T) {
		engine := NewPlaylistEngine(sourceWith(th.Tracks(1)), func(context.Context) (Destination, error) {
			return nil, shared.ErrBrowser
		}, quietOptions())

		_, err := engine.Run(ctx, nil, "src123", "Target")
		if !errors.Is(err, shared.ErrBrowser) {
			t.Fatalf("expected ErrBrowser, got %v", err)
		}
	})

	t.Run("default destination name", func(t *testing.T) {
		dest := &th.MockDestination{}
		engine := NewPlaylistEngine(sourceWith(th.Tracks(1)), factoryFor(dest, nil), quietOptions())

		result, err := engine.Run(ctx, nil, "src123", "")
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if dest.Playlist != shared.DefaultPlaylistName || result.Destination != shared.DefaultPlaylistName {
			t.Errorf("destination = %q, want default", dest.Playlist)
		}
	})

	t.Run("fatal error takes a final screenshot", func(t *testing.T) {
		dest := &th.MockDestination{LoginErr: shared.ErrCaptcha}
		engine := NewPlaylistEngine(sourceWith(th.Tracks(1)), factoryFor(dest, nil), quietOptions())

		_, _ = engine.Run(ctx, nil, "src123", "Target")
		if !slices.Equal(dest.Shots, []string{"final_error"}) {
			t.Errorf("shots = %v", dest.Shots)
		}
	})

	t.Run("tracks are added in order", func(t *testing.T) {
		dest := &th.MockDestination{}
		tracks := th.Tracks(3)
		engine := NewPlaylistEngine(sourceWith(tracks), factoryFor(dest, nil), quietOptions())

		if _, err := engine.Run(ctx, nil, "src123", "Target"); err != nil {
			t.Fatal(err)
		}
		if !slices.Equal(dest.Added, tracks) {
			t.Errorf("added = %v, want %v", dest.Added, tracks)
		}
	})

	t.Run("cancellation stops the walk", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		dest := &th.MockDestination{OnAdd: func(n int, _ services.Track) {
			if n == 2 {
				cancel()
			}
		}}
		engine := NewPlaylistEngine(sourceWith(th.Tracks(5)), factoryFor(dest, nil), quietOptions())

		result, err := engine.Run(cctx, nil, "src123", "Target")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result.Processed() != 2 {
			t.Errorf("processed = %d, want 2", result.Processed())
		}
		if !dest.Closed {
			t.Error("destination should be closed")
		}
	})

	t.Run("tracks are paced", func(t *testing.T) {
		dest := &th.MockDestination{}
		opts := quietOptions()
		opts.TrackDelay = 20 * time.Millisecond
		engine := NewPlaylistEngine(sourceWith(th.Tracks(3)), factoryFor(dest, nil), opts)

		start := time.Now()
		if _, err := engine.Run(ctx, nil, "src123", "Target"); err != nil {
			t.Fatal(err)
		}
		if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
			t.Errorf("three tracks took %s, expected at least two delays", elapsed)
		}
	})

	t.Run("pause follows a slow track", func(t *testing.T) {
		var starts, ends []time.Time
		dest := &th.MockDestination{OnAdd: func(int, services.Track) {
			starts = append(starts, time.Now())
			time.Sleep(30 * time.Millisecond)
			ends = append(ends, time.Now())
		}}
		opts := quietOptions()
		opts.TrackDelay = 20 * time.Millisecond
		engine := NewPlaylistEngine(sourceWith(th.Tracks(3)), factoryFor(dest, nil), opts)

		if _, err := engine.Run(ctx, nil, "src123", "Target"); err != nil {
			t.Fatal(err)
		}
		for i := 1; i < len(starts); i++ {
			if gap := starts[i].Sub(ends[i-1]); gap < 20*time.Millisecond {
				t.Errorf("track %d started %s after track %d finished, want at least 20ms", i+1, gap, i)
			}
		}
	})

	t.Run("cancellation during the pause", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		dest := &th.MockDestination{OnAdd: func(n int, _ services.Track) {
			if n == 1 {
				time.AfterFunc(10*time.Millisecond, cancel)
			}
		}}
		opts := quietOptions()
		opts.TrackDelay = time.Minute
		engine := NewPlaylistEngine(sourceWith(th.Tracks(3)), factoryFor(dest, nil), opts)

		result, err := engine.Run(cctx, nil, "src123", "Target")
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result.Processed() != 1 {
			t.Errorf("processed = %d, want 1", result.Processed())
		}
	})

	t.Run("missing dependencies", func(t *testing.T) {
		engine := NewPlaylistEngine(nil, nil, quietOptions())
		if _, err := engine.Run(ctx, nil, "src123", "Target"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestPlaylistEngine_Recorder(t *testing.T) {
	ctx := context.Background()

	t.Run("records completed run", func(t *testing.T) {
		rec := &memoryRecorder{}
		opts := quietOptions()
		opts.Recorder = rec
		dest := &th.MockDestination{TrackErrs: map[int]error{2: &stepErr{step: "search"}}}
		engine := NewPlaylistEngine(sourceWith(th.Tracks(2)), factoryFor(dest, nil), opts)

		if _, err := engine.Run(ctx, nil, "src123", "Target"); err != nil {
			t.Fatal(err)
		}
		if len(rec.runs) != 1 {
			t.Fatalf("expected 1 recorded run, got %d", len(rec.runs))
		}
		run := rec.runs[0]
		if run.Status != models.RunCompleted || run.SourceName != "Discover Weekly" || run.SourceID != "src123" {
			t.Errorf("unexpected run %+v", run)
		}
		if run.Succeeded != 1 || run.Failed != 1 || run.Processed != 2 || run.TotalTracks != 2 {
			t.Errorf("unexpected counts %+v", run)
		}
		if run.FinishedAt == nil {
			t.Error("FinishedAt should be set")
		}
		if err := run.Validate(); err != nil {
			t.Errorf("recorded run is invalid: %v", err)
		}
		if got := run.Tracks[1]; got.Status != models.TrackFailed || got.Step != "search" {
			t.Errorf("unexpected track result %+v", got)
		}
	})

	t.Run("records failed run", func(t *testing.T) {
		rec := &memoryRecorder{}
		opts := quietOptions()
		opts.Recorder = rec
		engine := NewPlaylistEngine(sourceWith(th.Tracks(1)), factoryFor(&th.MockDestination{LoginErr: shared.ErrLoginFailed}, nil), opts)

		_, _ = engine.Run(ctx, nil, "src123", "Target")
		if len(rec.runs) != 1 || rec.runs[0].Status != models.RunFailed || rec.runs[0].ErrorMessage == "" {
			t.Errorf("unexpected recorded runs %+v", rec.runs)
		}
	})

	t.Run("recorder errors are ignored", func(t *testing.T) {
		opts := quietOptions()
		opts.Recorder = &memoryRecorder{err: fmt.Errorf("disk full")}
		engine := NewPlaylistEngine(sourceWith(th.Tracks(1)), factoryFor(&th.MockDestination{}, nil), opts)

		if _, err := engine.Run(ctx, nil, "src123", "Target"); err != nil {
			t.Errorf("recorder error leaked: %v", err)
		}
	})
}

func TestPlaylistEngine_Progress(t *testing.T) {
	progress := make(chan ProgressUpdate, 32)
	engine := NewPlaylistEngine(sourceWith(th.Tracks(2)), factoryFor(&th.MockDestination{}, nil), quietOptions())

	if _, err := engine.Run(context.Background(), progress, "src123", "Target"); err != nil {
		t.Fatal(err)
	}
	close(progress)

	var phases []Phase
	var last ProgressUpdate
	for u := range progress {
		if len(phases) == 0 || phases[len(phases)-1] != u.Phase {
			phases = append(phases, u.Phase)
		}
		last = u
	}

	want := []Phase{FetchSource, OpenBrowser, Authenticate, PreparePlaylist, AddTracks, Complete}
	if !slices.Equal(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
	if last.Message != "Success: 2, Failed: 0" {
		t.Errorf("final message = %q", last.Message)
	}
}

func TestSendProgressNeverBlocks(t *testing.T) {
	engine := NewPlaylistEngine(nil, nil, quietOptions())
	progress := make(chan ProgressUpdate)

	done := make(chan struct{})
	go func() {
		engine.sendProgress(progress, ProgressUpdate{Phase: FetchSource})
		engine.sendProgress(nil, ProgressUpdate{Phase: FetchSource})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sendProgress blocked")
	}
}

func TestPhaseString(t *testing.T) {
	for _, tc := range []struct {
		phase Phase
		want  string
	}{
		{FetchSource, "fetch_source"},
		{OpenBrowser, "open_browser"},
		{Authenticate, "authenticate"},
		{PreparePlaylist, "prepare_playlist"},
		{AddTracks, "add_tracks"},
		{Complete, "complete"},
		{ExportPlaylist, "export_playlist"},
		{Phase(99), ""},
	} {
		if got := tc.phase.String(); got != tc.want {
			t.Errorf("Phase(%d).String() = %q, want %q", tc.phase, got, tc.want)
		}
	}
}

func TestTrackResultStep(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("boom"), "add"},
		{fmt.Errorf("wrapped: %w", &stepErr{step: "options"}), "options"},
	}
	for _, tt := range tests {
		if got := (TrackResult{Err: tt.err}).Step(); got != tt.want {
			t.Errorf("Step() = %q, want %q", got, tt.want)
		}
	}
}
