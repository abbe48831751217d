package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	PlaylistListView ViewState = iota
	TrackListView
	ConfirmView
	SyncView
	ResultView
)

// maxFailuresShown bounds the failure list on the result screen.
const maxFailuresShown = 10

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	source       services.Source
	engine       tasks.SyncEngine
	destination  string
	limit        int
	width        int
	height       int
	playlistList list.Model
	trackList    list.Model
	selected     *services.PlaylistExport
	progressChan chan tasks.ProgressUpdate
	doneChan     chan Msg
	progress     tasks.ProgressUpdate
	bar          progress.Model
	result       *tasks.SyncResult
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model. Selected playlists are synced into destination,
// at most limit tracks per run.
func NewModel(ctx context.Context, source services.Source, engine tasks.SyncEngine, destination string, limit int) *Model {
	m := &Model{
		ctx:         ctx,
		view:        PlaylistListView,
		source:      source,
		engine:      engine,
		destination: destination,
		limit:       limit,
		bar:         progress.New(progress.WithDefaultGradient()),
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.playlistList = m.newList("Spotify Playlists")
	m.trackList = m.newList("Tracks")
	return m
}

// newList builds an empty list. Resizes can arrive before any items do.
func (m *Model) newList(title string) list.Model {
	w, h := m.listSize()
	l := list.New(nil, list.NewDefaultDelegate(), w, h)
	l.Title = title
	return l
}

// Init initializes the TUI by fetching playlists from Spotify.
func (m *Model) Init() tea.Cmd {
	return m.fetchPlaylists()
}

// State returns the current view.
func (m *Model) State() ViewState { return m.view }

// Err returns the last error shown to the user.
func (m *Model) Err() error { return m.err }

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w, h := m.listSize()
		m.playlistList.SetSize(w, h)
		m.trackList.SetSize(w, h)
		m.bar.Width = min(max(msg.Width-8, 10), 80)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case PlaylistListView:
			return m.handlePlaylistListKeys(msg)
		case TrackListView:
			return m.handleTrackListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgPlaylistsFetched:
		data := msg.data.(playlistsPayload)
		if data.err != nil {
			m.err = data.err
			return m, nil
		}
		items := make([]list.Item, len(data.playlists))
		for i, pl := range data.playlists {
			items[i] = playlistItem{playlist: pl}
		}
		return m, m.playlistList.SetItems(items)

	case MsgTracksFetched:
		data := msg.data.(tracksPayload)
		if data.err != nil {
			m.err = data.err
			m.view = PlaylistListView
			return m, nil
		}
		m.err = nil
		m.selected = data.playlist
		items := make([]list.Item, len(data.playlist.Tracks))
		for i, track := range data.playlist.Tracks {
			items[i] = trackItem{n: i + 1, track: track}
		}
		m.trackList.ResetFilter()
		m.trackList.Select(0)
		m.trackList.Title = fmt.Sprintf("Tracks in '%s'", data.playlist.Playlist.Name)
		m.view = TrackListView
		return m, m.trackList.SetItems(items)

	case MsgProgressUpdate:
		m.progress = msg.data.(tasks.ProgressUpdate)
		return m, m.waitForProgress()

	case MsgSyncComplete:
		data := msg.data.(syncPayload)
		m.result = data.result
		m.err = data.err
		m.view = ResultView
		m.progressChan = nil
		m.doneChan = nil
		return m, nil
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view == PlaylistListView {
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" + m.help.ShortHelpView([]key.Binding{m.keys.quit})
	}

	switch m.view {
	case PlaylistListView:
		return m.renderPlaylistList()
	case TrackListView:
		return m.renderTrackList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handlePlaylistListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.playlistList.FilterState() == list.Filtering
	switch {
	case key.Matches(msg, m.keys.quit) && !filtering:
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter) && !filtering:
		if pl, ok := m.playlistList.SelectedItem().(playlistItem); ok {
			return m, m.fetchTracks(pl.playlist.ID)
		}
	}

	var cmd tea.Cmd
	m.playlistList, cmd = m.playlistList.Update(msg)
	return m, cmd
}

func (m *Model) handleTrackListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := m.trackList.FilterState() == list.Filtering
	switch {
	case key.Matches(msg, m.keys.quit) && !filtering:
		return m, tea.Quit
	case key.Matches(msg, m.keys.back) && !filtering:
		m.view = PlaylistListView
		return m, nil
	case key.Matches(msg, m.keys.sync) && !filtering:
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.trackList, cmd = m.trackList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		m.progress = tasks.ProgressUpdate{}
		return m, m.startSync()
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.view = TrackListView
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.view = PlaylistListView
		m.selected = nil
		m.result = nil
		m.err = nil
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case PlaylistListView:
		m.playlistList, cmd = m.playlistList.Update(msg)
	case TrackListView:
		m.trackList, cmd = m.trackList.Update(msg)
	}
	return m, cmd
}

// listSize leaves room for the help line. Before the first resize an 80x24 terminal is assumed.
func (m *Model) listSize() (int, int) {
	if m.width == 0 || m.height == 0 {
		return 76, 16
	}
	return max(m.width-4, 10), max(m.height-8, 4)
}

func (m *Model) fetchPlaylists() tea.Cmd {
	return func() tea.Msg {
		playlists, err := m.source.GetPlaylists(m.ctx)
		return playlistsFetchedMsg(playlists, err)
	}
}

func (m *Model) fetchTracks(playlistID string) tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.source.ExportPlaylist(m.ctx, playlistID)
		return tracksFetchedMsg(playlist, err)
	}
}

// startSync runs the engine in the background. Progress is read from progressChan
// until the engine returns, then the result arrives on doneChan.
func (m *Model) startSync() tea.Cmd {
	progressChan := make(chan tasks.ProgressUpdate, 64)
	doneChan := make(chan Msg, 1)
	m.progressChan = progressChan
	m.doneChan = doneChan

	ref := m.selected.Playlist.ID
	go func() {
		result, err := m.engine.Run(m.ctx, progressChan, ref, m.destination)
		close(progressChan)
		doneChan <- syncCompleteMsg(result, err)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	progressChan, doneChan := m.progressChan, m.doneChan
	return func() tea.Msg {
		if progressChan == nil {
			return syncCompleteMsg(m.result, m.err)
		}
		if update, ok := <-progressChan; ok {
			return progressUpdateMsg(update)
		}
		return <-doneChan
	}
}

func (m *Model) renderPlaylistList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.playlistList.View(), helpView)
}

func (m *Model) renderTrackList() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.sync, m.keys.back, m.keys.quit})
	return fmt.Sprintf("%s\n\n%s", m.trackList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	name := m.selected.Playlist.Name
	title := styles.title.Render(fmt.Sprintf("Sync '%s' to Qobuz?", name))

	total := len(m.selected.Tracks)
	tracks := fmt.Sprintf("%d", total)
	if m.limit > 0 && total > m.limit {
		tracks = fmt.Sprintf("%d of %d (limit)", m.limit, total)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Source:      %s\n", name)
	fmt.Fprintf(&b, "Destination: %s\n", styles.accent.Render(m.destination))
	fmt.Fprintf(&b, "Tracks:      %s\n\n", tracks)
	b.WriteString(styles.warn.Render("The destination playlist is cleared before tracks are added."))

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return fmt.Sprintf("%s\n%s\n\n%s", title, b.String(), helpView)
}

func (m *Model) renderSync() string {
	title := styles.title.Render("Syncing to Qobuz")

	var phase string
	switch m.progress.Phase {
	case tasks.FetchSource:
		phase = "Fetching source playlist..."
	case tasks.OpenBrowser:
		phase = "Launching browser..."
	case tasks.Authenticate:
		phase = "Logging in..."
	case tasks.PreparePlaylist:
		phase = "Preparing playlist..."
	case tasks.AddTracks:
		phase = fmt.Sprintf("Adding tracks (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.Complete:
		phase = "Finishing..."
	default:
		phase = "Starting..."
	}

	var bar string
	if m.progress.Phase == tasks.AddTracks && m.progress.Total > 0 {
		bar = "\n" + m.bar.ViewAs(float64(m.progress.Step)/float64(m.progress.Total)) + "\n"
	}
	return fmt.Sprintf("%s\n\n%s\n%s\n%s", title, phase, bar, styles.help.Render(m.progress.Message))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})

	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Sync failed: %v", m.err)) + "\n\n" + helpView
	}
	if m.result == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}
	if m.result.Skipped {
		return styles.warn.Render("Source playlist is empty, nothing was synced.") + "\n\n" + helpView
	}

	title := styles.ok.Render("✓ Sync Complete!")
	info := fmt.Sprintf("\nSource: %s\nDestination: %s\nSuccess: %d, Failed: %d",
		m.result.Source.Playlist.Name,
		m.result.Destination,
		m.result.SuccessCount,
		m.result.FailedCount,
	)

	var failed strings.Builder
	if m.result.FailedCount > 0 {
		failed.WriteString("\n\n" + styles.warn.Render(fmt.Sprintf("Failed to add %d tracks:", m.result.FailedCount)))
		shown := 0
		for _, tr := range m.result.Results {
			if tr.Added() {
				continue
			}
			if shown == maxFailuresShown {
				fmt.Fprintf(&failed, "\n  ... and %d more", m.result.FailedCount-shown)
				break
			}
			fmt.Fprintf(&failed, "\n  • %s [%s]", tr.Track.String(), tr.Step())
			shown++
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed.String(), helpView)
}
