package tasks

import (
	"fmt"

	"github.com/desertthunder/spotidal/internal/models"
)

// ProgressUpdate represents a progress event during a migration.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase, 0 when unknown
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Authenticate Phase = iota
	SelectEntities
	FetchPlaylists
	CreatePlaylist
	MatchTracks
	MigrateLiked
	Finish
)

func (p Phase) String() string {
	switch p {
	case Authenticate:
		return "authenticate"
	case SelectEntities:
		return "select"
	case FetchPlaylists:
		return "fetch_playlists"
	case CreatePlaylist:
		return "create_playlist"
	case MatchTracks:
		return "match_tracks"
	case MigrateLiked:
		return "migrate_liked"
	case Finish:
		return "finish"
	default:
		return ""
	}
}

func signedInUpdate(service, user string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authenticate,
		Message: fmt.Sprintf("Signed in to %s as %s", service, user),
	}
}

func fetchPlaylistsUpdate(service string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPlaylists,
		Message: fmt.Sprintf("Fetching playlists from %s...", service),
	}
}

func selectedUpdate(playlists int, liked bool) ProgressUpdate {
	msg := fmt.Sprintf("Selected %d playlist(s)", playlists)
	if liked {
		msg += " and liked tracks"
	}
	return ProgressUpdate{Phase: SelectEntities, Total: playlists, Message: msg}
}

func createPlaylistUpdate(step, total int, pl models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Creating playlist %s...", step, total, pl.Label()),
		Data:    pl,
	}
}

func createdPlaylistUpdate(step, total int, h models.PlaylistHandle) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s)", h.Name, h.ID),
		Data:    h,
	}
}

func trackUpdate(phase Phase, step, total int, res models.MatchResult) ProgressUpdate {
	mark := "✗"
	if res.IsMatched() {
		mark = "✓"
	}
	prefix := fmt.Sprintf("[%d]", step)
	if total > 0 {
		prefix = fmt.Sprintf("[%d/%d]", step, total)
	}
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("%s %s %s", prefix, mark, res.Source.String()),
		Data:    res,
	}
}

func trackFailedUpdate(phase Phase, step, total int, t models.Track, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d] ✗ %s: %v", step, t.String(), err),
	}
}

func finishedUpdate(report *models.MigrationReport) ProgressUpdate {
	totals := report.Totals()
	return ProgressUpdate{
		Phase:   Finish,
		Step:    totals.Matched,
		Total:   totals.Attempted,
		Message: fmt.Sprintf("Migration %s: %d/%d tracks matched", report.State, totals.Matched, totals.Attempted),
		Data:    report,
	}
}
