package tasks

import (
	"fmt"

	"github.com/desertthunder/qbsync/internal/services"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchSource Phase = iota
	OpenBrowser
	Authenticate
	PreparePlaylist
	AddTracks
	Complete
	ExportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchSource:
		return "fetch_source"
	case OpenBrowser:
		return "open_browser"
	case Authenticate:
		return "authenticate"
	case PreparePlaylist:
		return "prepare_playlist"
	case AddTracks:
		return "add_tracks"
	case Complete:
		return "complete"
	case ExportPlaylist:
		return "export_playlist"
	default:
		return ""
	}
}

func fetchingSourceUpdate(ref string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching source playlist %s...", ref),
	}
}

func foundPlaylistUpdate(export *services.PlaylistExport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchSource,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", export.Playlist.Name, len(export.Tracks)),
		Data:    export,
	}
}

func openBrowserUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: OpenBrowser, Step: 1, Total: 1, Message: "Launching browser..."}
}

func authenticateUpdate() ProgressUpdate {
	return ProgressUpdate{Phase: Authenticate, Step: 1, Total: 1, Message: "Logging in to Qobuz..."}
}

func preparePlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PreparePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Preparing playlist %q...", name),
	}
}

func addTrackUpdate(step, total int, tr services.Track) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s", step, total, tr.String()),
		Data:    tr,
	}
}

func completeUpdate(r *SyncResult) ProgressUpdate {
	msg := fmt.Sprintf("Success: %d, Failed: %d", r.SuccessCount, r.FailedCount)
	switch {
	case r.Err != nil:
		msg = fmt.Sprintf("Sync failed: %v", r.Err)
	case r.Skipped:
		msg = "Source playlist is empty, nothing to sync"
	}
	return ProgressUpdate{
		Phase:   Complete,
		Step:    r.Processed(),
		Total:   r.Processed(),
		Message: msg,
		Data:    r,
	}
}

func exportingPlaylistUpdate(step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(step, total int, name, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%s)", step, total, name, path),
	}
}

func exportFailedUpdate(step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}
