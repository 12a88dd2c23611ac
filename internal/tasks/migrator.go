package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/matcher"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/services"
	"github.com/desertthunder/spotidal/internal/shared"
)

// LikedTracksName is the entity name used for liked tracks in reports.
const LikedTracksName = "Liked Tracks"

// maxRenames bounds the " (n)" suffixes tried when a playlist name is taken.
const maxRenames = 10

// State is the lifecycle of a migration run.
type State int

const (
	Idle State = iota
	Authenticating
	Selecting
	Migrating
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Authenticating:
		return "authenticating"
	case Selecting:
		return "selecting"
	case Migrating:
		return "migrating"
	case Done:
		return string(models.RunDone)
	case Failed:
		return string(models.RunFailed)
	default:
		return ""
	}
}

// Terminal reports whether s is Done or Failed.
func (s State) Terminal() bool {
	return s == Done || s == Failed
}

// Journal records runs. [repositories.RunRepository] implements it.
type Journal interface {
	Create(run *models.MigrationRun) error
	Update(run *models.MigrationRun) error
}

// MigratorOpts configures a [Migrator].
type MigratorOpts struct {
	Duplicates string           // shared.DuplicateRename (default) or shared.DuplicateReuse
	Journal    Journal          // Optional
	Logger     *log.Logger      // Optional
	Now        func() time.Time // Optional clock
}

// Migrator drives one Spotify → Tidal migration from authentication to the final report.
//
// Work is strictly sequential: tracks are matched and placed one at a time in source order.
type Migrator struct {
	source   services.Source
	dest     services.Destination
	matcher  *matcher.Matcher
	selector Selector
	opts     MigratorOpts
	state    State
}

// NewMigrator creates a migrator in the Idle state.
func NewMigrator(source services.Source, dest services.Destination, m *matcher.Matcher, selector Selector, opts MigratorOpts) *Migrator {
	if opts.Duplicates == "" {
		opts.Duplicates = shared.DuplicateRename
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Migrator{source: source, dest: dest, matcher: m, selector: selector, opts: opts}
}

// State returns the current state.
func (m *Migrator) State() State { return m.state }

// IsFatal reports whether err must stop the run: authentication failures, exhausted rate limit
// retries and cancellation.
func IsFatal(err error) bool {
	return errors.Is(err, shared.ErrAuth) ||
		errors.Is(err, shared.ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// Run performs the migration. The report is returned in both terminal states; the error is
// non-nil only when the run ends Failed.
//
// Destination entities completed before a fatal error are left in place.
func (m *Migrator) Run(ctx context.Context, progress chan<- ProgressUpdate) (*models.MigrationReport, error) {
	if m.state != Idle {
		return nil, fmt.Errorf("%w: migrator already used (state %s)", shared.ErrInvalidInput, m.state)
	}

	report := models.NewMigrationReport(m.opts.Now())
	run := m.startJournal(report)

	m.state = Authenticating
	if err := m.authenticate(ctx, report, progress); err != nil {
		return m.finish(report, run, progress, err)
	}

	m.state = Selecting
	playlists, liked, err := m.selectEntities(ctx, progress)
	if err != nil {
		return m.finish(report, run, progress, err)
	}
	if len(playlists) == 0 && !liked {
		m.opts.Logger.Info("nothing selected")
		return m.finish(report, run, progress, nil)
	}
	m.sendProgress(progress, selectedUpdate(len(playlists), liked))

	m.state = Migrating
	for i, pl := range playlists {
		if err := m.migratePlaylist(ctx, report, pl, i+1, len(playlists), progress); err != nil {
			return m.finish(report, run, progress, err)
		}
	}

	if liked {
		if err := m.migrateLiked(ctx, report, progress); err != nil {
			return m.finish(report, run, progress, err)
		}
	}

	return m.finish(report, run, progress, nil)
}

func (m *Migrator) authenticate(ctx context.Context, report *models.MigrationReport, progress chan<- ProgressUpdate) error {
	srcUser, err := m.source.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", m.source.Name(), err)
	}
	report.SourceUser = srcUser
	m.sendProgress(progress, signedInUpdate(m.source.Name(), srcUser))

	destUser, err := m.dest.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", m.dest.Name(), err)
	}
	report.DestUser = destUser
	m.sendProgress(progress, signedInUpdate(m.dest.Name(), destUser))

	m.opts.Logger.Info("authenticated", "source_user", srcUser, "dest_user", destUser)
	return nil
}

func (m *Migrator) selectEntities(ctx context.Context, progress chan<- ProgressUpdate) ([]models.Playlist, bool, error) {
	categories, err := m.selector.SelectCategories(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to select categories: %w", err)
	}

	var playlists []models.Playlist
	var liked bool
	for _, c := range categories {
		switch c {
		case models.CategoryLiked:
			liked = true
		case models.CategoryPlaylists:
			m.sendProgress(progress, fetchPlaylistsUpdate(m.source.Name()))
			candidates, err := services.Collect(m.source.ListPlaylists(ctx))
			if err != nil {
				return nil, false, err
			}

			playlists, err = m.selector.SelectPlaylists(ctx, candidates)
			if err != nil {
				return nil, false, fmt.Errorf("failed to select playlists: %w", err)
			}
		}
	}
	return playlists, liked, nil
}

// migratePlaylist creates the destination playlist and places each matched track in source order.
//
// A non-fatal creation or listing failure stops this playlist only; any fatal error is returned.
func (m *Migrator) migratePlaylist(ctx context.Context, report *models.MigrationReport, pl models.Playlist, step, total int, progress chan<- ProgressUpdate) error {
	entity := report.Begin(models.KindPlaylist, pl.Name)
	logger := shared.WithLogger(m.opts.Logger, "playlist", pl.Name)

	m.sendProgress(progress, createPlaylistUpdate(step, total, pl))
	handle, err := m.createPlaylist(ctx, pl)
	if err != nil {
		entity.Abort(err)
		if IsFatal(err) {
			return err
		}
		logger.Warn("skipping playlist", "error", err)
		return nil
	}
	entity.Dest = handle
	m.sendProgress(progress, createdPlaylistUpdate(step, total, handle))

	target := playlistTarget{dest: m.dest, handle: handle}
	n := 0
	for track, err := range m.source.ListPlaylistTracks(ctx, pl.ID) {
		if err != nil {
			entity.Abort(err)
			if IsFatal(err) {
				return err
			}
			logger.Warn("stopped reading playlist", "attempted", entity.Counts.Attempted, "error", err)
			return nil
		}
		n++

		if err := m.matchTrack(ctx, entity, track, target, MatchTracks, n, pl.TrackCount, progress); err != nil {
			return err
		}
	}

	logger.Info("playlist migrated", "matched", entity.Counts.Matched, "attempted", entity.Counts.Attempted)
	return nil
}

// migrateLiked adds every liked track to the destination favorites.
func (m *Migrator) migrateLiked(ctx context.Context, report *models.MigrationReport, progress chan<- ProgressUpdate) error {
	entity := report.Begin(models.KindLiked, LikedTracksName)
	target := favoritesTarget{dest: m.dest}

	n := 0
	for liked, err := range m.source.ListLikedTracks(ctx) {
		if err != nil {
			entity.Abort(err)
			if IsFatal(err) {
				return err
			}
			m.opts.Logger.Warn("stopped reading liked tracks", "attempted", entity.Counts.Attempted, "error", err)
			return nil
		}
		n++

		if err := m.matchTrack(ctx, entity, liked.Track, target, MigrateLiked, n, 0, progress); err != nil {
			return err
		}
	}

	m.opts.Logger.Info("liked tracks migrated", "matched", entity.Counts.Matched, "attempted", entity.Counts.Attempted)
	return nil
}

// matchTrack records one track outcome and returns an error only when it is fatal.
func (m *Migrator) matchTrack(ctx context.Context, entity *models.EntityReport, track models.Track, target matcher.Target, phase Phase, step, total int, progress chan<- ProgressUpdate) error {
	res, err := m.matcher.Match(ctx, track, target)
	if err != nil {
		entity.RecordFailure(track, err)
		m.sendProgress(progress, trackFailedUpdate(phase, step, total, track, err))
		if IsFatal(err) {
			entity.Abort(err)
			return err
		}
		m.opts.Logger.Warn("track failed", "entity", entity.Name, "track", track.String(), "error", err)
		return nil
	}

	entity.Record(res)
	m.sendProgress(progress, trackUpdate(phase, step, total, res))
	return nil
}

// createPlaylist applies the duplicate-name policy uniformly to every playlist.
func (m *Migrator) createPlaylist(ctx context.Context, pl models.Playlist) (models.PlaylistHandle, error) {
	name := pl.Name
	for attempt := 1; ; attempt++ {
		handle, err := m.dest.CreatePlaylist(ctx, name, pl.Description)
		if err == nil {
			return handle, nil
		}

		var dup *services.DuplicateNameError
		if !errors.As(err, &dup) {
			return models.PlaylistHandle{}, err
		}

		if m.opts.Duplicates == shared.DuplicateReuse {
			m.opts.Logger.Info("reusing existing playlist", "name", name, "id", dup.Existing.ID)
			return dup.Existing, nil
		}
		if attempt >= maxRenames {
			return models.PlaylistHandle{}, fmt.Errorf("%w: %q and %d alternatives are taken", shared.ErrDuplicateName, pl.Name, maxRenames-1)
		}

		name = fmt.Sprintf("%s (%d)", pl.Name, attempt+1)
		m.opts.Logger.Debug("playlist name taken, renaming", "name", dup.Name, "next", name)
	}
}

func (m *Migrator) finish(report *models.MigrationReport, run *models.MigrationRun, progress chan<- ProgressUpdate, err error) (*models.MigrationReport, error) {
	m.state = Done
	if err != nil {
		m.state = Failed
		report.Error = err.Error()
		m.opts.Logger.Error("migration failed", "error", err)
	}
	report.State = m.state.String()
	report.CompletedAt = m.opts.Now()

	m.finishJournal(report, run)
	m.sendProgress(progress, finishedUpdate(report))
	return report, err
}

func (m *Migrator) startJournal(report *models.MigrationReport) *models.MigrationRun {
	if m.opts.Journal == nil {
		return nil
	}

	run := models.NewMigrationRun(string(m.matcher.Strategy()), report.StartedAt)
	if err := m.opts.Journal.Create(run); err != nil {
		m.opts.Logger.Warn("failed to record run", "error", err)
		return nil
	}
	report.RunID = run.ID()
	return run
}

func (m *Migrator) finishJournal(report *models.MigrationReport, run *models.MigrationRun) {
	if run == nil {
		return
	}

	run.Complete(report)
	if err := m.opts.Journal.Update(run); err != nil {
		m.opts.Logger.Warn("failed to update run", "id", run.ID(), "error", err)
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (m *Migrator) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// playlistTarget places matched tracks at the end of one destination playlist.
type playlistTarget struct {
	dest   services.Destination
	handle models.PlaylistHandle
}

func (t playlistTarget) AddByISRC(ctx context.Context, isrc string) (bool, error) {
	return t.dest.AddTrackByISRC(ctx, t.handle, isrc)
}

func (t playlistTarget) AddByID(ctx context.Context, id string) error {
	return t.dest.AddTrack(ctx, t.handle, id)
}

// favoritesTarget places matched tracks into the destination favorites.
type favoritesTarget struct {
	dest services.Destination
}

func (t favoritesTarget) AddByISRC(ctx context.Context, isrc string) (bool, error) {
	return t.dest.AddFavoriteByISRC(ctx, isrc)
}

func (t favoritesTarget) AddByID(ctx context.Context, id string) error {
	return t.dest.AddFavorite(ctx, id)
}
