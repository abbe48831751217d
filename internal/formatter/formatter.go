// package formatter renders source playlists and sync reports as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/qbsync/internal/models"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
)

// Export formats
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// ParseFormat normalizes a user supplied format name.
func ParseFormat(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (json, csv, markdown, txt)", shared.ErrInvalidFlag, name)
	}
}

// Extension returns the file extension for format, including the dot.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: Position, Title, Artist, Album, Duration, ISRC, ID
func ExportToCSV(export *services.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "Duration", "ISRC", "ID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, track := range export.Tracks {
		record := []string{
			strconv.Itoa(i + 1),
			track.Title,
			track.Artist,
			track.Album,
			shared.FormatDuration(track.Duration),
			track.ISRC,
			track.ID,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to a Markdown document
func ExportToMarkdown(export *services.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(export.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range export.Tracks {
		albumPart := ""
		if track.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s%s [%s]\n", i+1, track.String(), albumPart, shared.FormatDuration(track.Duration))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *services.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name)
	if export.Playlist.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", export.Playlist.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(export.Tracks))

	for i, track := range export.Tracks {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, track.String())
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the export as indented JSON.
func ExportToJSON(export *services.PlaylistExport) ([]byte, error) {
	return shared.MarshalJSON(export, true)
}

// FormatExport renders export in format.
func FormatExport(export *services.PlaylistExport, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	case FormatJSON:
		return ExportToJSON(export)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, format)
	}
}

// WriteExport writes export to path in format and returns the path written.
//
// Defaults to {playlist.ID}{ext} in the working directory. Parent directories are created.
func WriteExport(export *services.PlaylistExport, format, path string) (string, error) {
	if path == "" {
		path = export.Playlist.ID + Extension(format)
	}

	data, err := FormatExport(export, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// ReportToText renders a sync run summary followed by the failed tracks.
func ReportToText(run *models.SyncRun) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Run #%d (%s)\n", run.Sequence, run.Status)
	source := run.SourceName
	if source == "" {
		source = run.SourceID
	}
	fmt.Fprintf(&buf, "Source:      %s\n", source)
	fmt.Fprintf(&buf, "Destination: %s\n", run.Destination)
	fmt.Fprintf(&buf, "Started:     %s\n", run.StartedAt.Format(time.DateTime))
	if elapsed := run.Elapsed(); elapsed > 0 {
		fmt.Fprintf(&buf, "Elapsed:     %s\n", elapsed.Round(time.Second))
	}
	fmt.Fprintf(&buf, "Tracks:      %d of %d processed\n", run.Processed, run.TotalTracks)
	fmt.Fprintf(&buf, "Success: %d, Failed: %d\n", run.Succeeded, run.Failed)
	if run.ErrorMessage != "" {
		fmt.Fprintf(&buf, "Error: %s\n", run.ErrorMessage)
	}

	var failed []models.SyncTrackResult
	for _, tr := range run.Tracks {
		if tr.Status == models.TrackFailed {
			failed = append(failed, tr)
		}
	}
	if len(failed) > 0 {
		buf.WriteString("\nFailed tracks:\n")
		for _, tr := range failed {
			fmt.Fprintf(&buf, "%3d. %s - %s [%s] %s\n", tr.Position, tr.Artist, tr.Title, tr.Step, tr.Error)
		}
	}

	return buf.Bytes()
}

// ReportToCSV writes one row per processed track.
func ReportToCSV(w io.Writer, run *models.SyncRun) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"Position", "Title", "Artist", "Album", "Status", "Step", "Error"}); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, tr := range run.Tracks {
		record := []string{strconv.Itoa(tr.Position), tr.Title, tr.Artist, tr.Album, string(tr.Status), tr.Step, tr.Error}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteReport writes the report for run to path. A .csv path selects CSV, anything else text.
func WriteReport(run *models.SyncRun, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return ReportToCSV(f, run)
	}
	_, err = f.Write(ReportToText(run))
	return err
}
