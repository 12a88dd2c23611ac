package main

import (
	"context"

	"github.com/desertthunder/spotidal/internal/formatter"
	"github.com/desertthunder/spotidal/internal/repositories"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists journaled runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.OpenJournal(r.config.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repositories.NewRunRepository(db).List(map[string]any{
		"limit":  cmd.Int("limit"),
		"status": cmd.String("status"),
	})
	if err != nil {
		return err
	}
	return r.writeBytes(formatter.RunsToText(runs))
}
