package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/qbsync/internal/formatter"
	"github.com/desertthunder/qbsync/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportOpts contains configuration for bulk playlist exports.
type BulkExportOpts struct {
	Format     string  // Export format: json, csv, markdown, txt
	OutputDir  string  // Base output directory (default: spotify_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 4, max: 8)
	RateLimit  float64 // Source requests per second (default: 5)
}

// PlaylistExportResult is the outcome of exporting one playlist.
type PlaylistExportResult struct {
	Ref          string `json:"ref"`
	PlaylistName string `json:"name,omitempty"`
	Tracks       int    `json:"tracks"`
	File         string `json:"file,omitempty"`
	Error        error  `json:"-"`
	ErrorMessage string `json:"error,omitempty"`
}

// BulkExportResult summarizes a bulk export. Results keep the order of the requested refs.
type BulkExportResult struct {
	TotalPlaylists    int                    `json:"total"`
	SuccessfulExports int                    `json:"succeeded"`
	FailedExports     int                    `json:"failed"`
	OutputDirectory   string                 `json:"output_directory"`
	ManifestPath      string                 `json:"-"`
	Results           []PlaylistExportResult `json:"results"`
}

type exportJob struct {
	index int
	ref   string
}

// BulkExport exports several source playlists to files with a bounded worker pool.
//
// Requests to the source are rate limited. Failed playlists are reported in the result and
// a manifest summarizing every export is written to the output directory.
func (e *PlaylistEngine) BulkExport(ctx context.Context, prog chan<- ProgressUpdate, refs []string, opts BulkExportOpts) (*BulkExportResult, error) {
	if e.source == nil {
		return nil, fmt.Errorf("%w: no source configured", shared.ErrInvalidArgument)
	}
	if len(refs) == 0 {
		return nil, fmt.Errorf("%w: at least one playlist", shared.ErrMissingArgument)
	}

	format, err := formatter.ParseFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("spotify_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	opts.NumWorkers = min(opts.NumWorkers, 8, len(refs))
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		TotalPlaylists:  len(refs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]PlaylistExportResult, len(refs)),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	jobs := make(chan exportJob)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	for range opts.NumWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				res := e.exportOne(ctx, limiter, job.ref, format, opts.OutputDir)

				mu.Lock()
				result.Results[job.index] = res
				completed++
				done := completed
				if res.Error == nil {
					result.SuccessfulExports++
				} else {
					result.FailedExports++
				}
				mu.Unlock()

				if res.Error == nil {
					e.sendProgress(prog, exportCompletedUpdate(done, len(refs), res.PlaylistName, res.File))
				} else {
					e.sendProgress(prog, exportFailedUpdate(done, len(refs), res.Ref, res.Error))
				}
			}
		}()
	}

	for i, ref := range refs {
		e.sendProgress(prog, exportingPlaylistUpdate(i+1, len(refs), ref))
		jobs <- exportJob{index: i, ref: ref}
	}
	close(jobs)
	wg.Wait()

	manifest, err := shared.MarshalJSON(result, true)
	if err != nil {
		return result, fmt.Errorf("export completed but failed to encode manifest: %w", err)
	}
	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := os.WriteFile(manifestPath, manifest, 0644); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *PlaylistEngine) exportOne(ctx context.Context, limiter *rate.Limiter, ref, format, dir string) PlaylistExportResult {
	res := PlaylistExportResult{Ref: ref}
	fail := func(err error) PlaylistExportResult {
		res.Error = err
		res.ErrorMessage = err.Error()
		return res
	}

	if err := limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	export, err := e.source.ExportPlaylist(ctx, ref)
	if err != nil {
		return fail(fmt.Errorf("failed to fetch playlist: %w", err))
	}
	res.PlaylistName = export.Playlist.Name
	res.Tracks = len(export.Tracks)

	path, err := formatter.WriteExport(export, format, filepath.Join(dir, export.Playlist.ID+formatter.Extension(format)))
	if err != nil {
		return fail(err)
	}
	res.File = path
	return res
}
