package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/services"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// SpotifyClient is the Spotify surface used by the commands.
type SpotifyClient interface {
	services.Source
	TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error)
	TopArtists(ctx context.Context, tr models.TimeRange, limit int) ([]models.Artist, error)
	Token() (*oauth2.Token, error)
}

// TidalClient is the Tidal surface used by the commands.
type TidalClient interface {
	services.Destination
	LookupISRC(ctx context.Context, isrc string) (*models.DestTrack, error)
	Token() (*oauth2.Token, error)
}

// SpotifyFactory builds an authenticated Spotify client from the configuration.
type SpotifyFactory func(ctx context.Context, cfg *shared.Config, opts services.ClientOptions) (SpotifyClient, error)

// TidalFactory builds an authenticated Tidal client from the configuration.
type TidalFactory func(ctx context.Context, cfg *shared.Config, opts services.ClientOptions) (TidalClient, error)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	spotify    SpotifyFactory
	tidal      TidalFactory
	tidalAuth  func(shared.TidalConfig) *services.TidalAuth
	browser    func(url string) error
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Spotify    SpotifyFactory
	Tidal      TidalFactory
	TidalAuth  func(shared.TidalConfig) *services.TidalAuth
	Browser    func(url string) error
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
	if opts.Spotify == nil {
		opts.Spotify = func(ctx context.Context, cfg *shared.Config, o services.ClientOptions) (SpotifyClient, error) {
			return services.NewSpotifySourceFromConfig(ctx, cfg, o)
		}
	}
	if opts.Tidal == nil {
		opts.Tidal = func(ctx context.Context, cfg *shared.Config, o services.ClientOptions) (TidalClient, error) {
			return services.NewTidalDestinationFromConfig(ctx, cfg, o)
		}
	}

	if opts.TidalAuth == nil {
		opts.TidalAuth = services.NewTidalAuth
	}

	if opts.Browser == nil {
		opts.Browser = shared.OpenBrowser
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		spotify:    opts.Spotify,
		tidal:      opts.Tidal,
		tidalAuth:  opts.TidalAuth,
		browser:    opts.Browser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, spotifyCommand, tidalCommand, migrateCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// LoadConfig reads the configuration named by --config, falling back to defaults when the file
// does not exist, then applies environment overrides.
func (r *Runner) LoadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	if path == "" {
		path = "config.toml"
	}
	r.configPath = path

	config := shared.DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = shared.LoadConfig(path); err != nil {
			return ctx, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return ctx, fmt.Errorf("failed to stat config: %w", err)
	}

	if applied := shared.ApplyEnv(config); len(applied) > 0 {
		r.logger.Debug("applied environment overrides", "vars", applied)
	}
	switch {
	case cmd.Bool("verbose"):
		shared.SetLogLevel(r.logger, log.DebugLevel)
	case cmd.Bool("quiet"):
		shared.SetLogLevel(r.logger, log.WarnLevel)
	}

	r.config = config
	return ctx, nil
}

func (r *Runner) clientOptions() (services.ClientOptions, error) {
	return services.NewClientOptions(r.config.Migration, r.logger)
}

func (r *Runner) spotifyClient(ctx context.Context) (SpotifyClient, error) {
	if err := r.config.RequireSpotify(); err != nil {
		return nil, err
	}
	opts, err := r.clientOptions()
	if err != nil {
		return nil, err
	}
	return r.spotify(ctx, r.config, opts)
}

func (r *Runner) tidalClient(ctx context.Context) (TidalClient, error) {
	if err := r.config.RequireTidal(); err != nil {
		return nil, err
	}
	opts, err := r.clientOptions()
	if err != nil {
		return nil, err
	}
	return r.tidal(ctx, r.config, opts)
}

// tokenSource is satisfied by both clients; refreshed tokens are written back to the config file.
type tokenSource interface {
	Token() (*oauth2.Token, error)
}

// saveTokens persists refreshed tokens. Failures are logged, never returned.
func (r *Runner) saveTokens(spotify, tidal tokenSource) {
	changed := false
	if spotify != nil {
		changed = refreshStored(&r.config.Credentials.Spotify.OAuthToken, spotify) || changed
	}
	if tidal != nil {
		changed = refreshStored(&r.config.Credentials.Tidal.OAuthToken, tidal) || changed
	}
	if !changed || r.configPath == "" {
		return
	}

	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("failed to save refreshed tokens", "error", err)
		return
	}
	r.logger.Debug("saved refreshed tokens", "path", r.configPath)
}

func refreshStored(stored *shared.OAuthToken, src tokenSource) bool {
	tok, err := src.Token()
	if err != nil || tok == nil || tok.AccessToken == stored.AccessToken {
		return false
	}
	return stored.Update(tok) == nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

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

func (r *Runner) writeBytes(data []byte) error {
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
