// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// setupCommand handles setup operations for the config file and database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a config.toml with the default settings",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   r.configPath,
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify playlist operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authorize qbsync with Spotify and write the auth cache",
				Action: r.SpotifyAuth,
			},
			{
				Name:  "playlists",
				Usage: "List Spotify playlists",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of playlists to return",
						Value: 50,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
					},
				},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:  "tracks",
				Usage: "Show or export the tracks of a playlist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Playlist ID, URI, URL or name (default: sync.source)",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
						Value:   "txt",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
				},
				Action: r.SpotifyTracks,
			},
			{
				Name:  "export",
				Usage: "Export several playlists to files",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     "source",
						Aliases:  []string{"s"},
						Usage:    "Playlist ID, URI, URL or name (repeatable)",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: json, csv, markdown, txt",
						Value:   "json",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Output directory (default: spotify_export_<epoch>)",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent exports",
						Value: 4,
					},
				},
				Action: r.SpotifyExport,
			},
		},
	}
}

// qobuzCommand handles the Qobuz browser session.
func qobuzCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "qobuz",
		Usage: "Qobuz session operations",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Log in to Qobuz and save the session cookies",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "visible",
						Usage: "Show the browser window",
					},
				},
				Action: r.QobuzLogin,
			},
			{
				Name:  "cookies",
				Usage: "Manage saved session cookies",
				Commands: []*cli.Command{
					{
						Name:  "import",
						Usage: "Import a logged-in session from a browser 'Copy as cURL' command",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "curl",
								Usage: "cURL command from browser DevTools (Copy as cURL)",
							},
							&cli.StringFlag{
								Name:  "curl-file",
								Usage: "Path to .sh file containing cURL command",
							},
						},
						Action: r.QobuzCookiesImport,
					},
					{
						Name:   "clear",
						Usage:  "Forget the saved session",
						Action: r.QobuzCookiesClear,
					},
				},
			},
		},
	}
}

// syncCommand runs Spotify to Qobuz syncs.
func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy a Spotify playlist into a Qobuz playlist",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run a full sync",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "source",
						Aliases: []string{"s"},
						Usage:   "Spotify playlist ID, URI, URL or name (default: sync.source)",
					},
					&cli.StringFlag{
						Name:    "dest",
						Aliases: []string{"d"},
						Usage:   "Qobuz playlist name (default: sync.destination)",
					},
					&cli.IntFlag{
						Name:  "max-tracks",
						Usage: "Tracks per run (default: sync.max_tracks)",
					},
					&cli.BoolFlag{
						Name:  "visible",
						Usage: "Show the browser window",
					},
					&cli.StringFlag{
						Name:  "report",
						Usage: "Write the run report to a file (.csv or text)",
					},
				},
				Action: r.SyncRun,
			},
			{
				Name:    "ui",
				Aliases: []string{"tui", "interactive"},
				Usage:   "Pick a playlist and sync it interactively",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "visible",
						Usage: "Show the browser window",
					},
				},
				Action: r.SyncUI,
			},
		},
	}
}

// historyCommand reads recorded sync runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Recorded sync runs (requires database.history)",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List recent runs",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only runs with this status (running, completed, skipped, failed)",
					},
				},
				Action: r.HistoryList,
			},
			{
				Name:  "show",
				Usage: "Show one run with its failed tracks",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "id",
						Usage:    "Run number or ID",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.HistoryShow,
			},
		},
	}
}
