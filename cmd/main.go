package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/urfave/cli/v3"
)

const (
	defaultConfigPath = "config.toml"
	dotenvPath        = ".env"
)

func main() {
	logger := shared.NewLogger(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	runner, err := newRunnerFromEnv(ctx, logger)
	if err != nil {
		stop()
		logger.Fatalf("startup error: %v", err)
	}

	app := &cli.Command{
		Name:     "qbsync",
		Usage:    "Copy Spotify playlists into Qobuz",
		Version:  "0.1.0",
		Commands: runner.register(),
	}

	err = app.Run(ctx, os.Args)
	if cerr := runner.Close(); cerr != nil {
		logger.Warn("failed to close database", "error", cerr)
	}
	stop()

	if err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

// newRunnerFromEnv loads the config file named by QBSYNC_CONFIG (or config.toml), applies
// environment and .env overrides, and builds the Spotify source.
//
// A source that cannot be built is not fatal here. Commands that need it report why.
func newRunnerFromEnv(ctx context.Context, logger *log.Logger) (*Runner, error) {
	lookup, err := shared.EnvLookup(dotenvPath)
	if err != nil {
		return nil, err
	}

	configPath := defaultConfigPath
	if v, ok := lookup("QBSYNC_CONFIG"); ok && v != "" {
		configPath = v
	}

	config, err := shared.LoadConfigOrDefault(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if err := shared.SetLogLevel(logger, config.Log.Level); err != nil {
		return nil, err
	}

	var source services.Source
	spotify, sourceErr := services.NewSpotifySource(ctx, services.SpotifyOptions{
		ClientID:     config.Credentials.Spotify.ClientID,
		ClientSecret: config.Credentials.Spotify.ClientSecret,
		RedirectURI:  config.Credentials.Spotify.RedirectURI,
		CachePath:    config.Credentials.Spotify.AuthCache,
		CacheData:    config.Credentials.Spotify.AuthCacheData,
		Logger:       shared.WithLogger(logger, "component", "spotify"),
	})
	if sourceErr == nil {
		source = spotify
	} else {
		logger.Debug("spotify source unavailable", "error", sourceErr)
	}

	return NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Lookup:     lookup,
		Source:     source,
		SourceErr:  sourceErr,
		Logger:     logger,
	}), nil
}
