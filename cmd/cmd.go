// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create config.toml and, when the journal is enabled, the run database",
		Action: r.Setup,
	}
}

func rangeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "range",
		Aliases: []string{"r"},
		Usage:   "Time range: short (4 weeks), medium (6 months) or long (all time)",
		Value:   "medium",
	}
}

func limitFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "limit",
		Usage: "Maximum number of items to show",
		Value: 20,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// spotifyCommand handles Spotify operations
func spotifyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "spotify",
		Aliases: []string{"spot"},
		Usage:   "Spotify library operations",
		Commands: []*cli.Command{
			{
				Name:   "auth",
				Usage:  "Authenticate with Spotify using OAuth2",
				Action: r.SpotifyAuth,
			},
			{
				Name:   "playlists",
				Usage:  "List Spotify playlists",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.SpotifyPlaylists,
			},
			{
				Name:   "liked",
				Usage:  "List liked tracks",
				Flags:  []cli.Flag{limitFlag(), jsonFlag()},
				Action: r.SpotifyLiked,
			},
			{
				Name:   "top-tracks",
				Usage:  "Show your most played tracks",
				Flags:  []cli.Flag{rangeFlag(), limitFlag(), jsonFlag()},
				Action: r.SpotifyTopTracks,
			},
			{
				Name:   "top-artists",
				Usage:  "Show your most played artists",
				Flags:  []cli.Flag{rangeFlag(), limitFlag(), jsonFlag()},
				Action: r.SpotifyTopArtists,
			},
		},
	}
}

// tidalCommand handles Tidal operations
func tidalCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tidal",
		Usage: "Tidal catalog operations",
		Commands: []*cli.Command{
			{
				Name:   "login",
				Usage:  "Authenticate with Tidal using the device flow",
				Action: r.TidalLogin,
			},
			{
				Name:  "search",
				Usage: "Search the Tidal catalog",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "query"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.TidalSearch,
			},
			{
				Name:  "match",
				Usage: "Show what a migration would pick for a track, without adding it",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Track title", Required: true},
					&cli.StringFlag{Name: "artist", Usage: "Artist name"},
					&cli.StringFlag{Name: "isrc", Usage: "International Standard Recording Code"},
					&cli.StringFlag{Name: "strategy", Usage: "Search strategy: title or title_artist"},
					&cli.StringFlag{Name: "candidate", Usage: "Candidate pick: first or best"},
				},
				Action: r.TidalMatch,
			},
		},
	}
}

// migrateCommand runs a migration
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Copy Spotify playlists and liked tracks to Tidal",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "liked",
				Usage: "Migrate liked tracks",
			},
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Playlist name to migrate (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "all-playlists",
				Usage: "Migrate every playlist",
			},
			&cli.StringFlag{
				Name:  "strategy",
				Usage: "Search strategy: title or title_artist",
			},
			&cli.StringFlag{
				Name:  "candidate",
				Usage: "Candidate pick: first or best",
			},
			&cli.StringFlag{
				Name:  "duplicates",
				Usage: "Existing playlist names: rename or reuse",
			},
			&cli.BoolFlag{
				Name:  "journal",
				Usage: "Record the run in the database",
			},
			&cli.StringFlag{
				Name:  "unmatched",
				Usage: "Write tracks that were not found to this CSV file",
			},
			&cli.BoolFlag{
				Name:  "no-tui",
				Usage: "Never prompt; migrate only what the flags select",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Log file used while the interactive prompt owns the terminal",
				Value: "./tmp/spotidal.log",
			},
		},
		Action: r.Migrate,
	}
}

// historyCommand lists journaled runs
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent migration runs from the journal",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 10,
			},
			&cli.StringFlag{
				Name:  "status",
				Usage: "Only show runs with this status (done or failed)",
			},
		},
		Action: r.History,
	}
}
