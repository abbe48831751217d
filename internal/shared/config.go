package shared

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// DefaultPlaylistName is the Qobuz playlist a sync writes to when none is configured.
const DefaultPlaylistName = "Spotify Discover & Release (Combined)"

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Sync        SyncConfig        `toml:"sync"`
	Browser     BrowserConfig     `toml:"browser"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Qobuz   QobuzConfig   `toml:"qobuz"`
}

// SpotifyConfig contains Spotify API credentials.
//
// AuthCache is the path of the token cache. AuthCacheData holds raw cache JSON
// supplied through the environment and is never written to the config file.
type SpotifyConfig struct {
	ClientID      string `toml:"client_id"`
	ClientSecret  string `toml:"client_secret"`
	RedirectURI   string `toml:"redirect_uri"`
	AuthCache     string `toml:"auth_cache"`
	AuthCacheData string `toml:"-"`
}

// QobuzConfig contains the Qobuz account used by the browser session.
type QobuzConfig struct {
	Email    string `toml:"email"`
	Password string `toml:"password"`
	BaseURL  string `toml:"base_url"`
}

// SyncConfig controls what a sync run reads and writes.
type SyncConfig struct {
	Source      string   `toml:"source"`
	Destination string   `toml:"destination"`
	MaxTracks   int      `toml:"max_tracks"`
	TrackDelay  Duration `toml:"track_delay"`
}

// BrowserConfig controls the automated Chrome instance.
type BrowserConfig struct {
	Mode           string   `toml:"mode"`
	UserAgent      string   `toml:"user_agent"`
	WindowWidth    int      `toml:"window_width"`
	WindowHeight   int      `toml:"window_height"`
	ExecPath       string   `toml:"exec_path"`
	CookieStore    string   `toml:"cookie_store"`
	CookieFile     string   `toml:"cookie_file"`
	ScreenshotDir  string   `toml:"screenshot_dir"`
	Screenshots    string   `toml:"screenshots"`
	LoginAttempts  int      `toml:"login_attempts"`
	PageTimeout    Duration `toml:"page_timeout"`
	ElementTimeout Duration `toml:"element_timeout"`
	ProbeTimeout   Duration `toml:"probe_timeout"`
	TypingMin      Duration `toml:"typing_min"`
	TypingMax      Duration `toml:"typing_max"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
	History      bool   `toml:"history"`
}

// ServerConfig contains the OAuth callback server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logger settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Duration is a [time.Duration] that decodes from strings such as "2s" or "1m30s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q", ErrInvalidConfig, string(text))
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// LoadConfigOrDefault loads path, falling back to the defaults when the file does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return config, err
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// EnvLookup returns a [LookupFunc] that consults the process environment first
// and then the dotenv file at path. A missing dotenv file is not an error.
func EnvLookup(path string) (LookupFunc, error) {
	values := map[string]string{}
	if path != "" {
		read, err := godotenv.Read(path)
		switch {
		case err == nil:
			values = read
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	return func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := values[key]
		return v, ok
	}, nil
}

// ApplyEnv overrides config values with environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID)
	str("SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret)
	str("SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI)
	str("SPOTIFY_AUTH_CACHE_PATH", &c.Credentials.Spotify.AuthCache)
	str("SPOTIFY_AUTH_CACHE", &c.Credentials.Spotify.AuthCacheData)
	str("QOBUZ_EMAIL", &c.Credentials.Qobuz.Email)
	str("QOBUZ_PASSWORD", &c.Credentials.Qobuz.Password)
	str("QOBUZ_PLAYLIST_NAME", &c.Sync.Destination)
	str("DISCOVER_WEEKLY_ID", &c.Sync.Source)
	str("SOURCE_PLAYLIST", &c.Sync.Source)
	str("BROWSER_MODE", &c.Browser.Mode)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("MAX_TRACKS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: MAX_TRACKS=%q", ErrInvalidConfig, v)
		}
		c.Sync.MaxTracks = n
	}

	return nil
}

// ValidateSync reports every setting a sync run needs that is still empty.
func (c *Config) ValidateSync() error {
	var missing []string
	if c.Credentials.Spotify.ClientID == "" {
		missing = append(missing, "SPOTIFY_CLIENT_ID")
	}
	if c.Credentials.Spotify.ClientSecret == "" {
		missing = append(missing, "SPOTIFY_CLIENT_SECRET")
	}
	if c.Sync.Source == "" {
		missing = append(missing, "sync.source (DISCOVER_WEEKLY_ID)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	if c.Sync.Destination == "" {
		c.Sync.Destination = DefaultPlaylistName
	}
	return nil
}
