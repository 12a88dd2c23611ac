package shared

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// envOverrides maps environment variables onto configuration fields.
var envOverrides = []struct {
	key   string
	field func(*Config) *string
}{
	{"SPOTIFY_CLIENT_ID", func(c *Config) *string { return &c.Credentials.Spotify.ClientID }},
	{"SPOTIFY_CLIENT_SECRET", func(c *Config) *string { return &c.Credentials.Spotify.ClientSecret }},
	{"SPOTIFY_REDIRECT_URI", func(c *Config) *string { return &c.Credentials.Spotify.RedirectURI }},
	{"TIDAL_CLIENT_ID", func(c *Config) *string { return &c.Credentials.Tidal.ClientID }},
	{"TIDAL_CLIENT_SECRET", func(c *Config) *string { return &c.Credentials.Tidal.ClientSecret }},
	{"SPOTIDAL_DATABASE", func(c *Config) *string { return &c.Database.Path }},
}

// LoadEnvFiles loads the given dotenv files into the process environment without overriding
// variables that are already set. Missing files are skipped.
func LoadEnvFiles(paths ...string) error {
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv overrides config fields with any non-empty environment variable from [envOverrides].
//
// Returns the names of the variables that were applied.
func ApplyEnv(c *Config) []string {
	return applyEnv(c, os.Getenv)
}

func applyEnv(c *Config, getenv func(string) string) []string {
	var applied []string
	for _, o := range envOverrides {
		if v := getenv(o.key); v != "" {
			*o.field(c) = v
			applied = append(applied, o.key)
		}
	}
	return applied
}
