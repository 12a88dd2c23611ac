package repositories

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func newRun(started time.Time) *models.MigrationRun {
	return models.NewMigrationRun(shared.StrategyTitle, started)
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "runs")
		if err != nil {
			t.Fatalf("NextSequence() error = %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown table")
	}

	t.Run("rolled back with its transaction", func(t *testing.T) {
		tx, err := db.Begin()
		if err != nil {
			t.Fatal(err)
		}
		if got, err := NextSequence(tx, "runs"); err != nil || got != 4 {
			t.Fatalf("NextSequence(tx) = %d, %v, want 4", got, err)
		}
		if err := tx.Rollback(); err != nil {
			t.Fatal(err)
		}

		if got, err := NextSequence(db, "runs"); err != nil || got != 4 {
			t.Errorf("NextSequence() after rollback = %d, %v, want 4", got, err)
		}
	})
}

func TestRunRepository(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newRun(started)

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence)
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newRun(started)
		run.SourceUser = "alice"
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunRunning {
			t.Errorf("expected status running, got %s", got.Status)
		}
		if got.SourceUser != "alice" || got.DestUser != "" {
			t.Errorf("unexpected users %q/%q", got.SourceUser, got.DestUser)
		}
		if !got.StartedAt.Equal(started) {
			t.Errorf("expected started_at %v, got %v", started, got.StartedAt)
		}
		if got.CompletedAt != nil {
			t.Errorf("expected nil completed_at, got %v", got.CompletedAt)
		}
		if len(got.Entities) != 0 {
			t.Errorf("expected no entities, got %d", len(got.Entities))
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := newRun(started)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		report := models.NewMigrationReport(started)
		report.SourceUser = "alice"
		report.DestUser = "bob"
		report.State = "done"
		report.CompletedAt = started.Add(time.Minute)
		report.Entities = []*models.EntityReport{
			{Kind: models.KindPlaylist, Name: "Road", Dest: models.PlaylistHandle{ID: "pl-1"},
				Counts: models.Counts{Attempted: 3, Matched: 2, NotFound: 1}},
			{Kind: models.KindLiked, Name: "Liked Tracks",
				Counts: models.Counts{Attempted: 2, Matched: 1, Failed: 1}, Aborted: true},
		}
		run.Complete(report)

		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status != models.RunDone {
			t.Errorf("expected status done, got %s", got.Status)
		}
		if got.Counts != (models.Counts{Attempted: 5, Matched: 3, NotFound: 1, Failed: 1}) {
			t.Errorf("unexpected counts %+v", got.Counts)
		}
		if got.CompletedAt == nil || !got.CompletedAt.Equal(report.CompletedAt) {
			t.Errorf("expected completed_at %v, got %v", report.CompletedAt, got.CompletedAt)
		}
		if len(got.Entities) != 2 {
			t.Fatalf("expected 2 entities, got %d", len(got.Entities))
		}
		if got.Entities[0].Name != "Road" || got.Entities[0].DestID != "pl-1" || got.Entities[0].Kind != models.KindPlaylist {
			t.Errorf("unexpected first entity %+v", got.Entities[0])
		}
		if !got.Entities[1].Aborted || got.Entities[1].DestID != "" {
			t.Errorf("unexpected second entity %+v", got.Entities[1])
		}

		// A second update replaces rather than appends entities.
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run again: %v", err)
		}
		got, _ = repo.Get(run.ID())
		if len(got.Entities) != 2 {
			t.Errorf("expected entities to be replaced, got %d", len(got.Entities))
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		run := newRun(started)
		run.Entities = []models.RunEntity{{Position: 0, Kind: models.KindLiked, Name: "Liked Tracks"}}
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); err == nil {
			t.Error("expected error getting deleted run")
		}

		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM run_entities`).Scan(&n); err != nil {
			t.Fatalf("failed to count entities: %v", err)
		}
		if n != 0 {
			t.Errorf("expected entities to cascade, %d left", n)
		}
	})

	t.Run("List", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		for i := range 3 {
			run := newRun(started.Add(time.Duration(i) * time.Hour))
			run.Entities = []models.RunEntity{{Position: 0, Kind: models.KindPlaylist, Name: "p"}}
			if i == 1 {
				run.Status = models.RunFailed
				run.ErrorMessage = "boom"
			}
			if err := repo.Create(run); err != nil {
				t.Fatalf("failed to create run %d: %v", i, err)
			}
		}

		all, err := repo.List(nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(all))
		}
		for i, want := range []int{3, 2, 1} {
			if all[i].Sequence != want {
				t.Errorf("run %d: expected sequence %d, got %d", i, want, all[i].Sequence)
			}
			if len(all[i].Entities) != 1 {
				t.Errorf("run %d: expected 1 entity, got %d", i, len(all[i].Entities))
			}
		}

		failed, err := repo.List(map[string]any{"status": "failed"})
		if err != nil {
			t.Fatalf("failed to list failed runs: %v", err)
		}
		if len(failed) != 1 || failed[0].ErrorMessage != "boom" {
			t.Errorf("unexpected failed runs %+v", failed)
		}

		limited, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list limited runs: %v", err)
		}
		if len(limited) != 2 || limited[0].Sequence != 3 {
			t.Errorf("unexpected limited runs (%d)", len(limited))
		}
	})
}

func TestRunRepositoryErrors(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		op      func(repo *RunRepository) error
		wantErr string
	}{
		{
			name: "create without strategy",
			op: func(repo *RunRepository) error {
				return repo.Create(models.NewMigrationRun("", started))
			},
			wantErr: "validation failed",
		},
		{
			name: "create with unbalanced counts",
			op: func(repo *RunRepository) error {
				run := newRun(started)
				run.Counts = models.Counts{Attempted: 2, Matched: 1}
				return repo.Create(run)
			},
			wantErr: "validation failed",
		},
		{
			name: "update unknown run",
			op: func(repo *RunRepository) error {
				run := newRun(started)
				run.SetID("nope")
				return repo.Update(run)
			},
			wantErr: "run not found",
		},
		{
			name:    "get unknown run",
			op:      func(repo *RunRepository) error { _, err := repo.Get("nope"); return err },
			wantErr: "run not found",
		},
		{
			name:    "delete unknown run",
			op:      func(repo *RunRepository) error { return repo.Delete("nope") },
			wantErr: "run not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRunRepository(setupTestDB(t))
			err := tt.op(repo)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRunRepositoryIsJournal(t *testing.T) {
	var _ interface {
		Create(*models.MigrationRun) error
		Update(*models.MigrationRun) error
	} = NewRunRepository(nil)
}
