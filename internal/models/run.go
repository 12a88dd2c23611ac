package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle of a journaled run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunDone    RunStatus = "done"
	RunFailed  RunStatus = "failed"
)

// RunEntity is the stored summary of one entity in a run.
type RunEntity struct {
	Position int
	Kind     EntityKind
	Name     string
	DestID   string
	Counts   Counts
	Aborted  bool
}

// MigrationRun is the journal record of one migrate invocation.
type MigrationRun struct {
	id             string
	Sequence       int
	Status         RunStatus
	SourceUser     string
	DestUser       string
	SearchStrategy string
	Counts         Counts
	ErrorMessage   string
	StartedAt      time.Time
	CompletedAt    *time.Time
	Entities       []RunEntity
	createdAt      time.Time
	updatedAt      time.Time
}

var _ Model = (*MigrationRun)(nil)

// NewMigrationRun creates a running record.
func NewMigrationRun(strategy string, started time.Time) *MigrationRun {
	return &MigrationRun{
		Status:         RunRunning,
		SearchStrategy: strategy,
		StartedAt:      started,
		createdAt:      started,
		updatedAt:      started,
	}
}

func (m *MigrationRun) ID() string           { return m.id }
func (m *MigrationRun) SetID(id string)      { m.id = id }
func (m *MigrationRun) CreatedAt() time.Time { return m.createdAt }
func (m *MigrationRun) UpdatedAt() time.Time { return m.updatedAt }

// SetTimestamps is used by repositories when scanning rows.
func (m *MigrationRun) SetTimestamps(created, updated time.Time) {
	m.createdAt = created
	m.updatedAt = updated
}

// Validate checks the status and the count invariants.
func (m *MigrationRun) Validate() error {
	switch m.Status {
	case RunRunning, RunDone, RunFailed:
	default:
		return fmt.Errorf("invalid status %q", m.Status)
	}
	if m.SearchStrategy == "" {
		return fmt.Errorf("search strategy is required")
	}
	if m.StartedAt.IsZero() {
		return fmt.Errorf("started_at is required")
	}
	c := m.Counts
	if c.Matched+c.NotFound+c.Failed != c.Attempted {
		return fmt.Errorf("counts do not add up: %d matched + %d not found + %d failed != %d attempted",
			c.Matched, c.NotFound, c.Failed, c.Attempted)
	}
	return nil
}

// Complete copies the final state of report into the run.
func (m *MigrationRun) Complete(report *MigrationReport) {
	m.SourceUser = report.SourceUser
	m.DestUser = report.DestUser
	m.Counts = report.Totals()
	m.ErrorMessage = report.Error
	m.Status = RunDone
	if report.State == string(RunFailed) {
		m.Status = RunFailed
	}

	completed := report.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	m.CompletedAt = &completed

	m.Entities = m.Entities[:0]
	for i, e := range report.Entities {
		m.Entities = append(m.Entities, RunEntity{
			Position: i,
			Kind:     e.Kind,
			Name:     e.Name,
			DestID:   e.Dest.ID,
			Counts:   e.Counts,
			Aborted:  e.Aborted,
		})
	}
}
