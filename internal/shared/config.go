package shared

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Search strategies for the title fallback.
const (
	StrategyTitle       = "title"
	StrategyTitleArtist = "title_artist"
)

// Candidate picks for search results.
const (
	CandidateFirst = "first"
	CandidateBest  = "best"
)

// Policies applied when a destination playlist with the same name already exists.
const (
	DuplicateRename = "rename"
	DuplicateReuse  = "reuse"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Migration   MigrationConfig   `toml:"migration"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Tidal   TidalConfig   `toml:"tidal"`
}

// OAuthToken is the persisted form of an [oauth2.Token].
type OAuthToken struct {
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// Token converts the stored fields to an [oauth2.Token], or nil when nothing is stored.
func (t OAuthToken) Token() *oauth2.Token {
	if t.AccessToken == "" && t.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// Update replaces the stored fields with tok.
func (t *OAuthToken) Update(tok *oauth2.Token) error {
	if tok == nil || tok.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidInput)
	}
	t.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		t.RefreshToken = tok.RefreshToken
	}
	t.TokenType = tok.TokenType
	t.Expiry = tok.Expiry
	return nil
}

// SpotifyConfig contains Spotify API credentials and the last issued token.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
	OAuthToken
}

// TidalConfig contains Tidal API credentials and the last issued token.
type TidalConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	OAuthToken
}

// MigrationConfig tunes matching, duplicate handling, retries and paging.
type MigrationConfig struct {
	SearchStrategy     string  `toml:"search_strategy"`
	Candidate          string  `toml:"candidate"`
	MinSimilarity      float64 `toml:"min_similarity"`
	DuplicatePlaylists string  `toml:"duplicate_playlists"`
	MaxRetries         int     `toml:"max_retries"`
	Backoff            string  `toml:"backoff"`
	MaxBackoff         string  `toml:"max_backoff"`
	RequestsPerSecond  float64 `toml:"requests_per_second"`
	PlaylistPageSize   int     `toml:"playlist_page_size"`
	TrackPageSize      int     `toml:"track_page_size"`
	LikedPageSize      int     `toml:"liked_page_size"`
}

// RetryPolicy builds the [RetryPolicy] described by the configuration.
func (m MigrationConfig) RetryPolicy() (RetryPolicy, error) {
	p := DefaultRetryPolicy()
	p.MaxRetries = m.MaxRetries

	if m.Backoff != "" {
		d, err := time.ParseDuration(m.Backoff)
		if err != nil {
			return p, fmt.Errorf("%w: backoff %q: %v", ErrInvalidConfig, m.Backoff, err)
		}
		p.BaseDelay = d
	}

	if m.MaxBackoff != "" {
		d, err := time.ParseDuration(m.MaxBackoff)
		if err != nil {
			return p, fmt.Errorf("%w: max_backoff %q: %v", ErrInvalidConfig, m.MaxBackoff, err)
		}
		p.MaxDelay = d
	}
	return p, nil
}

// DatabaseConfig contains settings for the optional run journal.
type DatabaseConfig struct {
	Enabled      bool   `toml:"enabled"`
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the OAuth callback listener address.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep their defaults.
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

// SaveConfig encodes config as TOML and writes it to path. Tokens are stored, so the file is private.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks the enumerated settings and reports every problem at once.
func (c *Config) Validate() error {
	var problems []string

	switch c.Migration.SearchStrategy {
	case StrategyTitle, StrategyTitleArtist:
	default:
		problems = append(problems, fmt.Sprintf("migration.search_strategy %q", c.Migration.SearchStrategy))
	}

	switch c.Migration.Candidate {
	case CandidateFirst, CandidateBest:
	default:
		problems = append(problems, fmt.Sprintf("migration.candidate %q", c.Migration.Candidate))
	}

	switch c.Migration.DuplicatePlaylists {
	case DuplicateRename, DuplicateReuse:
	default:
		problems = append(problems, fmt.Sprintf("migration.duplicate_playlists %q", c.Migration.DuplicatePlaylists))
	}

	if c.Migration.MaxRetries < 0 {
		problems = append(problems, "migration.max_retries must not be negative")
	}

	if c.Migration.MinSimilarity < 0 || c.Migration.MinSimilarity > 1 {
		problems = append(problems, "migration.min_similarity must be within [0, 1]")
	}

	if _, err := c.Migration.RetryPolicy(); err != nil {
		problems = append(problems, err.Error())
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, ", "))
	}
	return nil
}

// RequireSpotify reports which Spotify client credentials are missing.
func (c *Config) RequireSpotify() error {
	return requireFields(map[string]string{
		"SPOTIFY_CLIENT_ID":     c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  c.Credentials.Spotify.RedirectURI,
	})
}

// RequireTidal reports which Tidal client credentials are missing.
func (c *Config) RequireTidal() error {
	return requireFields(map[string]string{"TIDAL_CLIENT_ID": c.Credentials.Tidal.ClientID})
}

func requireFields(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if v == "" || strings.HasPrefix(v, "your_") {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
}
