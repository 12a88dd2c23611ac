package models

import (
	"time"
)

// EntityKind distinguishes playlists from the liked-tracks collection in a report.
type EntityKind string

const (
	KindPlaylist EntityKind = "playlist"
	KindLiked    EntityKind = "liked"
)

// Counts are the per-track tallies kept for every entity and for the whole run.
type Counts struct {
	Attempted int `json:"attempted"`
	Matched   int `json:"matched"`
	NotFound  int `json:"not_found"`
	Failed    int `json:"failed"`
}

// Add returns the sum of c and o.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Attempted: c.Attempted + o.Attempted,
		Matched:   c.Matched + o.Matched,
		NotFound:  c.NotFound + o.NotFound,
		Failed:    c.Failed + o.Failed,
	}
}

// MatchRate is Matched as a percentage of Attempted, 0 when nothing was attempted.
func (c Counts) MatchRate() float64 {
	if c.Attempted == 0 {
		return 0
	}
	return float64(c.Matched) / float64(c.Attempted) * 100
}

// TrackFailure is a track that errored (rather than not matching).
type TrackFailure struct {
	Track Track  `json:"track"`
	Error string `json:"error"`
}

// EntityReport holds the results for one migrated playlist or the liked tracks.
type EntityReport struct {
	Kind     EntityKind     `json:"kind"`
	Name     string         `json:"name"`
	Dest     PlaylistHandle `json:"dest"`
	Counts   Counts         `json:"counts"`
	Misses   []MatchResult  `json:"-"`
	Failures []TrackFailure `json:"failures,omitempty"`
	Aborted  bool           `json:"aborted"`
	Error    string         `json:"error,omitempty"`
}

// Record tallies one match outcome.
func (e *EntityReport) Record(r MatchResult) {
	e.Counts.Attempted++
	switch r.Status {
	case Matched:
		e.Counts.Matched++
	case NotFound:
		e.Counts.NotFound++
		e.Misses = append(e.Misses, r)
	}
}

// RecordFailure tallies a track whose match or placement returned an error.
func (e *EntityReport) RecordFailure(t Track, err error) {
	e.Counts.Attempted++
	e.Counts.Failed++
	e.Failures = append(e.Failures, TrackFailure{Track: t, Error: err.Error()})
}

// Abort marks the entity as stopped before all of its tracks were attempted.
func (e *EntityReport) Abort(err error) {
	e.Aborted = true
	if err != nil {
		e.Error = err.Error()
	}
}

// MigrationReport aggregates a single run. It is built incrementally and never reused.
type MigrationReport struct {
	RunID       string          `json:"run_id,omitempty"`
	SourceUser  string          `json:"source_user,omitempty"`
	DestUser    string          `json:"dest_user,omitempty"`
	Entities    []*EntityReport `json:"entities"`
	State       string          `json:"state"`
	Error       string          `json:"error,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
}

// NewMigrationReport starts an empty report.
func NewMigrationReport(started time.Time) *MigrationReport {
	return &MigrationReport{StartedAt: started}
}

// Begin appends and returns a new entity section.
func (r *MigrationReport) Begin(kind EntityKind, name string) *EntityReport {
	e := &EntityReport{Kind: kind, Name: name}
	r.Entities = append(r.Entities, e)
	return e
}

// Totals sums the counts of every entity.
func (r *MigrationReport) Totals() Counts {
	var c Counts
	for _, e := range r.Entities {
		c = c.Add(e.Counts)
	}
	return c
}

// Misses returns every NotFound result across entities, in report order.
func (r *MigrationReport) Misses() []EntityMiss {
	var out []EntityMiss
	for _, e := range r.Entities {
		for _, m := range e.Misses {
			out = append(out, EntityMiss{Entity: e.Name, Kind: e.Kind, Result: m})
		}
	}
	return out
}

// EntityMiss pairs a NotFound result with the entity it came from.
type EntityMiss struct {
	Entity string
	Kind   EntityKind
	Result MatchResult
}
