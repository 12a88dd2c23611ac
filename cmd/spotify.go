package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/desertthunder/spotidal/internal/formatter"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/server"
	"github.com/desertthunder/spotidal/internal/services"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// SpotifyAuth performs OAuth2 authentication flow for Spotify.
//
// Starts a local HTTP server, opens browser for user authorization, and exchanges auth code for tokens.
func (r *Runner) SpotifyAuth(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.RequireSpotify(); err != nil {
		return err
	}

	state, err := shared.GenerateState()
	if err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}

	auth := services.NewSpotifyAuthenticator(r.config.Credentials.Spotify)
	handler := server.NewOAuthHandler(auth, state, callbackPath(r.config.Credentials.Spotify.RedirectURI))
	authURL := auth.AuthURL(state)

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := r.browser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}
	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	ctx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	token, err := server.WaitForToken(ctx, addr, handler, r.logger)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%w: authorization timed out after 2 minutes", shared.ErrTimeout)
		}
		return fmt.Errorf("authorization failed: %w", err)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	return nil
}

// callbackPath extracts the path the redirect URI points at.
func callbackPath(redirectURI string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Path == "" {
		return "/callback"
	}
	return u.Path
}

// SpotifyPlaylists lists every playlist as "name (N Tracks)".
func (r *Runner) SpotifyPlaylists(ctx context.Context, cmd *cli.Command) error {
	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(client, nil)

	r.logger.Info("listing spotify playlists")
	playlists, err := services.Collect(client.ListPlaylists(ctx))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(playlists, true)
	}
	return r.writeBytes(formatter.PlaylistsToText(playlists))
}

// SpotifyLiked lists liked tracks, newest first, up to --limit.
func (r *Runner) SpotifyLiked(ctx context.Context, cmd *cli.Command) error {
	limit := cmd.Int("limit")

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(client, nil)

	var tracks []models.Track
	for liked, err := range client.ListLikedTracks(ctx) {
		if err != nil {
			return err
		}
		tracks = append(tracks, liked.Track)
		if limit > 0 && len(tracks) >= limit {
			break
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}
	return r.writeBytes(formatter.TracksToText("LIKED TRACKS", tracks))
}

// SpotifyTopTracks shows the most played tracks for --range.
func (r *Runner) SpotifyTopTracks(ctx context.Context, cmd *cli.Command) error {
	tr, err := models.ParseTimeRange(cmd.String("range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(client, nil)

	tracks, err := client.TopTracks(ctx, tr, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(tracks, true)
	}
	return r.writeBytes(formatter.TracksToText("TOP TRACKS: "+tr.Label(), tracks))
}

// SpotifyTopArtists shows the most played artists for --range.
func (r *Runner) SpotifyTopArtists(ctx context.Context, cmd *cli.Command) error {
	tr, err := models.ParseTimeRange(cmd.String("range"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	client, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(client, nil)

	artists, err := client.TopArtists(ctx, tr, cmd.Int("limit"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(artists, true)
	}
	return r.writeBytes(formatter.ArtistsToText("TOP ARTISTS: "+tr.Label(), artists))
}
