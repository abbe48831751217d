package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./qbsync.db" {
			t.Errorf("expected database path ./qbsync.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8888 {
			t.Errorf("expected server port 8888, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.RedirectURI != "http://localhost:8888/callback" {
			t.Errorf("unexpected redirect uri %s", config.Credentials.Spotify.RedirectURI)
		}

		if config.Sync.Destination != DefaultPlaylistName {
			t.Errorf("expected destination %q, got %q", DefaultPlaylistName, config.Sync.Destination)
		}

		if config.Sync.TrackDelay.Duration != 2*time.Second {
			t.Errorf("expected track delay 2s, got %v", config.Sync.TrackDelay)
		}

		if config.Browser.WindowWidth != 1920 || config.Browser.WindowHeight != 1080 {
			t.Errorf("unexpected window size %dx%d", config.Browser.WindowWidth, config.Browser.WindowHeight)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		testConfig := `[sync]
source = "37i9dQZEVXcJZyENOWUFo7"
max_tracks = 25
track_delay = "500ms"

[credentials.spotify]
client_id = "test_client_id"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Sync.MaxTracks != 25 {
			t.Errorf("expected max tracks 25, got %d", config.Sync.MaxTracks)
		}
		if config.Sync.TrackDelay.Duration != 500*time.Millisecond {
			t.Errorf("expected 500ms, got %v", config.Sync.TrackDelay)
		}
		if config.Sync.Destination != DefaultPlaylistName {
			t.Errorf("destination default lost, got %q", config.Sync.Destination)
		}
		if config.Browser.LoginAttempts != 3 {
			t.Errorf("expected 3 login attempts, got %d", config.Browser.LoginAttempts)
		}
	})

	t.Run("LoadConfig rejects bad durations", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[sync]\ntrack_delay = \"soon\"\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(configPath); err == nil {
			t.Fatal("expected parse error")
		}
	})

	t.Run("LoadConfigOrDefault", func(t *testing.T) {
		config, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "missing.toml"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if config.Sync.MaxTracks != 100 {
			t.Errorf("expected defaults, got max tracks %d", config.Sync.MaxTracks)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	env := func(m map[string]string) LookupFunc {
		return func(k string) (string, bool) {
			v, ok := m[k]
			return v, ok
		}
	}

	t.Run("overrides", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{
			"SPOTIFY_CLIENT_ID":     "id",
			"SPOTIFY_CLIENT_SECRET": "secret",
			"SPOTIFY_AUTH_CACHE":    `{"access_token":"x"}`,
			"QOBUZ_EMAIL":           "me@example.com",
			"QOBUZ_PASSWORD":        "hunter2",
			"DISCOVER_WEEKLY_ID":    "dw",
			"MAX_TRACKS":            "7",
			"BROWSER_MODE":          "visible",
		}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if config.Credentials.Spotify.ClientID != "id" || config.Credentials.Spotify.ClientSecret != "secret" {
			t.Errorf("spotify credentials not applied: %+v", config.Credentials.Spotify)
		}
		if config.Credentials.Spotify.AuthCacheData == "" {
			t.Error("auth cache data not applied")
		}
		if config.Credentials.Qobuz.Email != "me@example.com" {
			t.Errorf("qobuz email not applied")
		}
		if config.Sync.Source != "dw" {
			t.Errorf("expected source dw, got %q", config.Sync.Source)
		}
		if config.Sync.MaxTracks != 7 {
			t.Errorf("expected max tracks 7, got %d", config.Sync.MaxTracks)
		}
		if config.Browser.Mode != "visible" {
			t.Errorf("expected visible mode, got %q", config.Browser.Mode)
		}
	})

	t.Run("source playlist wins over discover weekly", func(t *testing.T) {
		config := DefaultConfig()
		_ = config.ApplyEnv(env(map[string]string{"DISCOVER_WEEKLY_ID": "dw", "SOURCE_PLAYLIST": "mine"}))
		if config.Sync.Source != "mine" {
			t.Errorf("expected mine, got %q", config.Sync.Source)
		}
	})

	t.Run("invalid max tracks", func(t *testing.T) {
		config := DefaultConfig()
		err := config.ApplyEnv(env(map[string]string{"MAX_TRACKS": "lots"}))
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("dotenv lookup", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		if err := os.WriteFile(path, []byte("QBSYNC_TEST_ONLY_KEY=from-file\n"), 0600); err != nil {
			t.Fatal(err)
		}
		lookup, err := EnvLookup(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v, ok := lookup("QBSYNC_TEST_ONLY_KEY"); !ok || v != "from-file" {
			t.Errorf("expected from-file, got %q (%v)", v, ok)
		}

		t.Setenv("QBSYNC_TEST_ONLY_KEY", "from-env")
		if v, _ := lookup("QBSYNC_TEST_ONLY_KEY"); v != "from-env" {
			t.Errorf("process env should win, got %q", v)
		}
	})

	t.Run("missing dotenv is fine", func(t *testing.T) {
		if _, err := EnvLookup(filepath.Join(t.TempDir(), "nope.env")); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestValidateSync(t *testing.T) {
	config := DefaultConfig()
	err := config.ValidateSync()
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}

	config.Credentials.Spotify.ClientID = "id"
	config.Credentials.Spotify.ClientSecret = "secret"
	config.Sync.Source = "abc"
	config.Sync.Destination = ""
	if err := config.ValidateSync(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Sync.Destination != DefaultPlaylistName {
		t.Errorf("expected default destination, got %q", config.Sync.Destination)
	}
}
