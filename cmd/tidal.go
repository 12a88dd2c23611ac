package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotidal/internal/matcher"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/urfave/cli/v3"
)

// TidalLogin runs the device authorization flow and stores the issued token.
func (r *Runner) TidalLogin(ctx context.Context, cmd *cli.Command) error {
	if err := r.config.RequireTidal(); err != nil {
		return err
	}

	auth := r.tidalAuth(r.config.Credentials.Tidal)
	da, err := auth.DeviceAuth(ctx)
	if err != nil {
		return err
	}

	link := da.VerificationURIComplete
	if link == "" {
		link = da.VerificationURI
	}
	r.writePlain("→ Visit %s and confirm the code %s\n", link, da.UserCode)
	if err := r.browser(link); err != nil {
		r.logger.Debug("failed to open browser", "error", err)
	}
	r.writePlain("→ Waiting for confirmation...\n")

	token, err := auth.Poll(ctx, da)
	if err != nil {
		return err
	}

	if err := r.config.Credentials.Tidal.Update(token); err != nil {
		return fmt.Errorf("failed to update tidal configuration: %w", err)
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	r.writePlainln("✓ Tidal login successful")
	r.writePlain("✓ Tokens saved to %s\n", r.configPath)
	return nil
}

// TidalSearch prints catalog search results in Tidal's order.
func (r *Runner) TidalSearch(ctx context.Context, cmd *cli.Command) error {
	query := strings.TrimSpace(cmd.StringArg("query"))
	if query == "" {
		return fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	client, err := r.tidalClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(nil, client)

	results, err := client.SearchTracks(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(results, true)
	}
	if len(results) == 0 {
		return r.writePlain("No results for %q\n", query)
	}
	for i, t := range results {
		r.writePlain("%d. %s", i+1, t.String())
		if t.ISRC != "" {
			r.writePlain(" [%s]", t.ISRC)
		}
		r.writePlain("  (id %s)\n", t.ID)
	}
	return nil
}

// TidalMatch shows which Tidal track a migration would choose, without adding anything.
func (r *Runner) TidalMatch(ctx context.Context, cmd *cli.Command) error {
	migration := r.config.Migration
	if s := cmd.String("strategy"); s != "" {
		migration.SearchStrategy = s
	}
	if c := cmd.String("candidate"); c != "" {
		migration.Candidate = c
	}

	track := models.Track{
		Title: cmd.String("title"),
		ISRC:  cmd.String("isrc"),
	}
	if a := cmd.String("artist"); a != "" {
		track.Artists = []string{a}
	}

	client, err := r.tidalClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(nil, client)

	m := matcher.New(client, matcher.OptionsFrom(migration, r.logger))
	res, err := m.Lookup(ctx, track)
	if err != nil {
		return err
	}

	r.writePlain("Track: %s\n", track.String())
	if res.Query != "" {
		r.writePlain("Query: %s\n", res.Query)
	}
	if !res.IsMatched() {
		return r.writePlain("✗ Not found: %s\n", res.Reason)
	}

	r.writePlain("✓ Matched via %s: %s (id %s)\n", res.Via, res.Dest.String(), res.Dest.ID)
	if res.Via == models.ViaSearch {
		destArtist := ""
		if len(res.Dest.Artists) > 0 {
			destArtist = res.Dest.Artists[0]
		}
		score := m.Similarity(matchKey(track.PrimaryArtist(), track.Title), matchKey(destArtist, res.Dest.Title))
		r.writePlain("  Similarity: %.2f\n", score)
	}
	return nil
}

func matchKey(artist, title string) string {
	return shared.NormalizeText(artist + " " + title)
}
