package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/qbsync/internal/browser"
	"github.com/desertthunder/qbsync/internal/qobuz"
	"github.com/desertthunder/qbsync/internal/repositories"
	"github.com/desertthunder/qbsync/internal/services"
	"github.com/desertthunder/qbsync/internal/shared"
	"github.com/desertthunder/qbsync/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Cookie store kinds accepted in [browser] cookie_store.
const (
	cookieStoreFile   = "file"
	cookieStoreSQLite = "sqlite"
	cookieStoreNone   = "none"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config      *shared.Config
	configPath  string
	lookup      shared.LookupFunc
	source      services.Source
	sourceErr   error
	destination func(visible bool, store browser.CookieStore) tasks.DestinationFactory
	db          *sql.DB
	logger      *log.Logger
	output      io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Lookup     shared.LookupFunc
	Source     services.Source
	SourceErr  error // why Source could not be built, reported by commands that need it
	// Destination overrides how sync runs open Qobuz. Defaults to a Chrome session.
	Destination func(visible bool, store browser.CookieStore) tasks.DestinationFactory
	DB          *sql.DB
	Logger      *log.Logger
	Output      io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Lookup == nil {
		opts.Lookup = os.LookupEnv
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = defaultConfigPath
	}

	r := &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		lookup:      opts.Lookup,
		source:      opts.Source,
		sourceErr:   opts.SourceErr,
		destination: opts.Destination,
		db:          opts.DB,
		logger:      opts.Logger,
		output:      opts.Output,
	}
	if r.destination == nil {
		r.destination = r.chromeDestination
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, qobuzCommand, syncCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Close releases the database, if one was opened.
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// requireSource returns the Spotify source, or the reason it is unavailable.
func (r *Runner) requireSource() (services.Source, error) {
	if r.source != nil {
		return r.source, nil
	}
	if r.sourceErr != nil {
		return nil, fmt.Errorf("spotify is not available (run 'qbsync spotify auth'): %w", r.sourceErr)
	}
	return nil, fmt.Errorf("%w: spotify is not configured", shared.ErrMissingCredentials)
}

// database opens the configured database on first use and runs migrations.
func (r *Runner) database() (*sql.DB, error) {
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, err
	}
	r.db = db
	return db, nil
}

// cookieStore returns the configured session store. The store is nil when reuse is disabled.
func (r *Runner) cookieStore() (browser.CookieStore, error) {
	cfg := r.config.Browser
	switch strings.ToLower(cfg.CookieStore) {
	case cookieStoreFile, "":
		return browser.NewFileCookieStore(cfg.CookieFile), nil
	case cookieStoreSQLite:
		db, err := r.database()
		if err != nil {
			return nil, err
		}
		return repositories.NewCookieRepository(db), nil
	case cookieStoreNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: cookie_store %q", shared.ErrInvalidConfig, cfg.CookieStore)
	}
}

// recorder returns the run history recorder, or nil when history is off.
func (r *Runner) recorder() (tasks.Recorder, error) {
	if !r.config.Database.History {
		return nil, nil
	}
	db, err := r.database()
	if err != nil {
		return nil, err
	}
	return repositories.NewRunRecorder(repositories.NewSyncRunRepository(db)), nil
}

// chromeDestination opens a fresh Chrome session per run and drives Qobuz through it.
func (r *Runner) chromeDestination(visible bool, store browser.CookieStore) tasks.DestinationFactory {
	return func(ctx context.Context) (tasks.Destination, error) {
		return r.openQobuz(ctx, visible, store)
	}
}

func (r *Runner) openQobuz(ctx context.Context, visible bool, store browser.CookieStore) (*qobuz.Client, error) {
	cfg := r.config.Browser
	mode := cfg.Mode
	if visible {
		mode = browser.ModeVisible
	}
	headless, err := browser.ResolveHeadless(mode, r.lookup)
	if err != nil {
		return nil, err
	}

	session, err := browser.Launch(ctx, browser.Options{
		Headless:       headless,
		UserAgent:      cfg.UserAgent,
		WindowWidth:    cfg.WindowWidth,
		WindowHeight:   cfg.WindowHeight,
		ExecPath:       cfg.ExecPath,
		ScreenshotDir:  cfg.ScreenshotDir,
		PageTimeout:    cfg.PageTimeout.Duration,
		ElementTimeout: cfg.ElementTimeout.Duration,
		Typist:         browser.NewTypist(cfg.TypingMin.Duration, cfg.TypingMax.Duration),
		Verbose:        r.logger.GetLevel() <= log.DebugLevel,
	}, shared.WithLogger(r.logger, "component", "browser"))
	if err != nil {
		return nil, err
	}

	creds := r.config.Credentials.Qobuz
	return qobuz.NewClient(session, store, qobuz.Options{
		BaseURL:        creds.BaseURL,
		Email:          creds.Email,
		Password:       creds.Password,
		LoginAttempts:  cfg.LoginAttempts,
		PageTimeout:    cfg.PageTimeout.Duration,
		ElementTimeout: cfg.ElementTimeout.Duration,
		ProbeTimeout:   cfg.ProbeTimeout.Duration,
		Screenshots:    cfg.Screenshots,
		Delays:         qobuz.DefaultDelays(),
	}, shared.WithLogger(r.logger, "component", "qobuz")), nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
