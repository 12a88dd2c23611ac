package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
)

var _ models.Repository[*models.MigrationRun] = (*RunRepository)(nil)

// RunRepository implements models.Repository[*models.MigrationRun] for the run journal.
//
// A run's entities are stored in run_entities and replaced wholesale on every update.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, sequence, status, source_user, dest_user, search_strategy,
	tracks_attempted, tracks_matched, tracks_not_found, tracks_failed,
	error_message, started_at, completed_at, created_at, updated_at
`

// Create inserts a new run with a generated ID and sequence.
func (r *RunRepository) Create(run *models.MigrationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	return withTx(r.db, func(tx *sql.Tx) error {
		sequence, err := NextSequence(tx, "runs")
		if err != nil {
			return fmt.Errorf("failed to generate sequence: %w", err)
		}
		run.SetID(shared.GenerateID())
		run.Sequence = sequence

		_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID(),
			run.Sequence,
			string(run.Status),
			nullable(run.SourceUser),
			nullable(run.DestUser),
			run.SearchStrategy,
			run.Counts.Attempted,
			run.Counts.Matched,
			run.Counts.NotFound,
			run.Counts.Failed,
			nullable(run.ErrorMessage),
			run.StartedAt,
			run.CompletedAt,
			run.CreatedAt(),
			run.UpdatedAt(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		return insertEntities(tx, run)
	})
}

// Get retrieves a run and its entities by ID.
func (r *RunRepository) Get(id string) (*models.MigrationRun, error) {
	run, err := scanRun(r.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}

	if err := r.loadEntities(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Update stores the run's status, counts and entities.
func (r *RunRepository) Update(run *models.MigrationRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	err := withTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE runs
			SET status = ?, source_user = ?, dest_user = ?, tracks_attempted = ?,
				tracks_matched = ?, tracks_not_found = ?, tracks_failed = ?,
				error_message = ?, completed_at = ?, updated_at = ?
			WHERE id = ?
		`,
			string(run.Status),
			nullable(run.SourceUser),
			nullable(run.DestUser),
			run.Counts.Attempted,
			run.Counts.Matched,
			run.Counts.NotFound,
			run.Counts.Failed,
			nullable(run.ErrorMessage),
			run.CompletedAt,
			now,
			run.ID(),
		)
		if err != nil {
			return fmt.Errorf("failed to update run: %w", err)
		}
		if err := expectRow(result, "run", run.ID()); err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM run_entities WHERE run_id = ?`, run.ID()); err != nil {
			return fmt.Errorf("failed to clear run entities: %w", err)
		}
		return insertEntities(tx, run)
	})
	if err != nil {
		return err
	}

	run.SetTimestamps(run.CreatedAt(), now)
	return nil
}

// Delete removes a run; its entities are removed by the foreign key cascade.
func (r *RunRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	return expectRow(result, "run", id)
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.MigrationRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1 = 1`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []*models.MigrationRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	// Entities are loaded after the cursor is closed so a single-connection pool is enough.
	for _, run := range runs {
		if err := r.loadEntities(run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (r *RunRepository) loadEntities(run *models.MigrationRun) error {
	rows, err := r.db.Query(`
		SELECT position, kind, name, dest_id, attempted, matched, not_found, failed, aborted
		FROM run_entities
		WHERE run_id = ?
		ORDER BY position
	`, run.ID())
	if err != nil {
		return fmt.Errorf("failed to query run entities: %w", err)
	}
	defer rows.Close()

	run.Entities = nil
	for rows.Next() {
		var (
			e      models.RunEntity
			kind   string
			destID sql.NullString
		)
		if err := rows.Scan(&e.Position, &kind, &e.Name, &destID, &e.Counts.Attempted, &e.Counts.Matched,
			&e.Counts.NotFound, &e.Counts.Failed, &e.Aborted); err != nil {
			return fmt.Errorf("failed to scan run entity: %w", err)
		}
		e.Kind = models.EntityKind(kind)
		e.DestID = destID.String
		run.Entities = append(run.Entities, e)
	}
	return rows.Err()
}

func insertEntities(tx *sql.Tx, run *models.MigrationRun) error {
	for _, e := range run.Entities {
		_, err := tx.Exec(`
			INSERT INTO run_entities (run_id, position, kind, name, dest_id, attempted, matched, not_found, failed, aborted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID(), e.Position, string(e.Kind), e.Name, nullable(e.DestID),
			e.Counts.Attempted, e.Counts.Matched, e.Counts.NotFound, e.Counts.Failed, e.Aborted)
		if err != nil {
			return fmt.Errorf("failed to insert run entity %q: %w", e.Name, err)
		}
	}
	return nil
}

func scanRun(s scanner) (*models.MigrationRun, error) {
	var (
		id           string
		sequence     int
		status       string
		sourceUser   sql.NullString
		destUser     sql.NullString
		strategy     string
		counts       models.Counts
		errorMessage sql.NullString
		startedAt    time.Time
		completedAt  sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
	)

	err := s.Scan(
		&id, &sequence, &status, &sourceUser, &destUser, &strategy,
		&counts.Attempted, &counts.Matched, &counts.NotFound, &counts.Failed,
		&errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	run := models.NewMigrationRun(strategy, startedAt)
	run.SetID(id)
	run.SetTimestamps(createdAt, updatedAt)
	run.Sequence = sequence
	run.Status = models.RunStatus(status)
	run.SourceUser = sourceUser.String
	run.DestUser = destUser.String
	run.Counts = counts
	run.ErrorMessage = errorMessage.String
	if completedAt.Valid {
		t := completedAt.Time
		run.CompletedAt = &t
	}
	return run, nil
}
