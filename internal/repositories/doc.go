// Package repositories implements SQLite persistence for the run journal.
//
// [RunRepository] implements models.Repository[*models.MigrationRun]. A run's per-entity
// summaries live in run_entities and are rewritten whenever the run is updated.
//
// Sequence numbers give runs a stable, human-readable order (run #1, run #2) independent of UUIDs.
// [NextSequence] bumps the counter inside the inserting transaction, so numbers are only spent on
// committed runs.
package repositories
