package main

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/desertthunder/spotidal/internal/formatter"
	"github.com/desertthunder/spotidal/internal/matcher"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/repositories"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/desertthunder/spotidal/internal/tasks"
	"github.com/desertthunder/spotidal/internal/ui"
	"github.com/urfave/cli/v3"
)

// Migrate copies the selected Spotify playlists and liked tracks to Tidal.
//
// Without selection flags the user is prompted with checklists, and logs go to --log-file so they
// do not draw over the prompt. The report is printed in both terminal states.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	migration := r.config.Migration
	if s := cmd.String("strategy"); s != "" {
		migration.SearchStrategy = s
	}
	if c := cmd.String("candidate"); c != "" {
		migration.Candidate = c
	}
	if d := cmd.String("duplicates"); d != "" {
		migration.DuplicatePlaylists = d
	}
	r.config.Migration = migration
	if err := r.config.Validate(); err != nil {
		return err
	}

	static := tasks.StaticSelector{
		Liked:        cmd.Bool("liked"),
		AllPlaylists: cmd.Bool("all-playlists"),
		Playlists:    cmd.StringSlice("playlist"),
	}
	interactive := static.Empty() && !cmd.Bool("no-tui")

	if interactive {
		fileLogger, closer, err := shared.NewFileLogger(cmd.String("log-file"))
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		defer closer.Close()
		r.SetLogger(fileLogger)
	} else if static.Empty() {
		r.logger.Warn("nothing selected; pass --liked, --playlist or --all-playlists")
	}

	source, err := r.spotifyClient(ctx)
	if err != nil {
		return err
	}
	dest, err := r.tidalClient(ctx)
	if err != nil {
		return err
	}
	defer r.saveTokens(source, dest)

	journal, db, err := r.openJournal(cmd.Bool("journal"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// Progress lines and the checklist share the terminal.
	var lock sync.Mutex
	var selector tasks.Selector = static
	if interactive {
		selector = ui.NewSelector(&lock, r.logger)
	}

	m := matcher.New(dest, matcher.OptionsFrom(migration, r.logger))
	migrator := tasks.NewMigrator(source, dest, m, selector, tasks.MigratorOpts{
		Duplicates: migration.DuplicatePlaylists,
		Journal:    journal,
		Logger:     r.logger,
	})

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			lock.Lock()
			r.printProgress(update)
			lock.Unlock()
		}
	}()

	report, runErr := migrator.Run(ctx, progress)
	close(progress)
	<-done

	if report == nil {
		return runErr
	}

	r.writePlain("\n")
	if err := formatter.WriteReport(r.output, report); err != nil {
		return err
	}

	if path := cmd.String("unmatched"); path != "" {
		n, err := formatter.WriteUnmatchedCSV(report, path)
		if err != nil {
			r.logger.Error("failed to write unmatched tracks", "path", path, "error", err)
		} else {
			r.writePlain("\n%d unmatched track(s) written to %s\n", n, path)
		}
	}

	return runErr
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.Authenticate:
		r.writePlain("✓ %s\n", update.Message)
	case tasks.FetchPlaylists, tasks.SelectEntities:
		r.writePlain("→ %s\n", update.Message)
	case tasks.CreatePlaylist:
		if _, starting := update.Data.(models.Playlist); starting {
			r.writePlain("\n")
		}
		r.writePlain("%s\n", update.Message)
	case tasks.MatchTracks, tasks.MigrateLiked:
		r.writePlain("   %s\n", update.Message)
	case tasks.Finish:
		r.writePlain("\n%s\n", update.Message)
	}
}

// openJournal opens the run journal when enabled by config or --journal. The returned journal is
// nil when disabled.
func (r *Runner) openJournal(force bool) (tasks.Journal, *sql.DB, error) {
	if !force && !r.config.Database.Enabled {
		return nil, nil, nil
	}

	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open journal: %w", err)
	}
	r.logger.Debug("journal enabled", "path", r.config.Database.Path)
	return repositories.NewRunRepository(db), db, nil
}
