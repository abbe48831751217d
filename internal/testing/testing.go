// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
)

// MockSource is a test double for [services.Source].
//
// Playlists are looked up by ID first and then by name, like the real source does.
type MockSource struct {
	User      *services.User
	Playlists []services.Playlist
	Exports   map[string]*services.PlaylistExport

	UserErr      error
	PlaylistsErr error
	ExportErr    error

	mu          sync.Mutex
	exportCalls int
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) CurrentUser(ctx context.Context) (*services.User, error) {
	if m.UserErr != nil {
		return nil, m.UserErr
	}
	if m.User == nil {
		return &services.User{ID: "mock-user", DisplayName: "Mock User"}, nil
	}
	return m.User, nil
}

func (m *MockSource) GetPlaylists(ctx context.Context) ([]services.Playlist, error) {
	if m.PlaylistsErr != nil {
		return nil, m.PlaylistsErr
	}
	return m.Playlists, nil
}

func (m *MockSource) ExportPlaylist(ctx context.Context, ref string) (*services.PlaylistExport, error) {
	m.mu.Lock()
	m.exportCalls++
	m.mu.Unlock()

	if m.ExportErr != nil {
		return nil, m.ExportErr
	}
	if export, ok := m.Exports[ref]; ok {
		return export, nil
	}
	for _, export := range m.Exports {
		if strings.EqualFold(export.Playlist.Name, ref) {
			return export, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, ref)
}

// ExportCalls returns how many times ExportPlaylist ran.
func (m *MockSource) ExportCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exportCalls
}

// MockDestination is a scripted sync destination that records every call.
type MockDestination struct {
	LoginErr   error
	PrepareErr error
	// TrackErrs fails AddTrack for the given 1-based positions.
	TrackErrs map[int]error
	// OnAdd runs before each AddTrack returns.
	OnAdd func(n int, track services.Track)

	Calls    []string
	Playlist string
	Added    []services.Track
	Closed   bool
	Shots    []string
}

func (m *MockDestination) Login(ctx context.Context) error {
	m.Calls = append(m.Calls, "login")
	return m.LoginErr
}

func (m *MockDestination) PreparePlaylist(ctx context.Context, name string) error {
	m.Calls = append(m.Calls, "prepare")
	m.Playlist = name
	return m.PrepareErr
}

func (m *MockDestination) AddTrack(ctx context.Context, n int, track services.Track) error {
	m.Calls = append(m.Calls, fmt.Sprintf("add:%d", n))
	if m.OnAdd != nil {
		m.OnAdd(n, track)
	}
	if err := m.TrackErrs[n]; err != nil {
		return err
	}
	m.Added = append(m.Added, track)
	return nil
}

func (m *MockDestination) Snapshot(step string) {
	m.Shots = append(m.Shots, step)
}

func (m *MockDestination) Close() error {
	m.Calls = append(m.Calls, "close")
	m.Closed = true
	return nil
}

// Tracks builds n numbered tracks.
func Tracks(n int) []services.Track {
	tracks := make([]services.Track, n)
	for i := range tracks {
		tracks[i] = services.Track{
			ID:     fmt.Sprintf("track%d", i+1),
			Title:  fmt.Sprintf("Song %d", i+1),
			Artist: fmt.Sprintf("Artist %d", i+1),
			Album:  "Album",
		}
	}
	return tracks
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
