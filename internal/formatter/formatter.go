// package formatter renders migration reports and library listings as plain text and CSV.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/spotidal/internal/models"
)

// ReportToText renders a migration report: one block per entity, the overall totals, every track
// that was not found and the final state.
func ReportToText(report *models.MigrationReport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("Migration Report\n")
	buf.WriteString(strings.Repeat("═", 40) + "\n")
	if report.SourceUser != "" || report.DestUser != "" {
		fmt.Fprintf(&buf, "From: %s (Spotify)\nTo:   %s (Tidal)\n", report.SourceUser, report.DestUser)
	}
	if report.RunID != "" {
		fmt.Fprintf(&buf, "Run:  %s\n", report.RunID)
	}
	buf.WriteString("\n")

	if len(report.Entities) == 0 {
		buf.WriteString("Nothing was migrated.\n\n")
	}

	for _, e := range report.Entities {
		fmt.Fprintf(&buf, "%s\n", entityHeading(e))
		writeCounts(&buf, e.Counts)
		if e.Aborted {
			reason := "stopped early"
			if e.Error != "" {
				reason = fmt.Sprintf("stopped early: %s", e.Error)
			}
			fmt.Fprintf(&buf, "  ! %s\n", reason)
		}
		for _, f := range e.Failures {
			fmt.Fprintf(&buf, "  ✗ %s: %s\n", f.Track.String(), f.Error)
		}
		buf.WriteString("\n")
	}

	totals := report.Totals()
	buf.WriteString("Total\n")
	writeCounts(&buf, totals)
	fmt.Fprintf(&buf, "  Match rate: %.1f%%\n", totals.MatchRate())

	if misses := report.Misses(); len(misses) > 0 {
		fmt.Fprintf(&buf, "\nNot found (%d):\n", len(misses))
		for _, m := range misses {
			fmt.Fprintf(&buf, "  • [%s] %s (%s)\n", m.Entity, m.Result.Source.String(), m.Result.Reason)
		}
	}

	fmt.Fprintf(&buf, "\nStatus: %s", strings.ToUpper(report.State))
	if !report.CompletedAt.IsZero() && !report.StartedAt.IsZero() {
		fmt.Fprintf(&buf, " in %s", report.CompletedAt.Sub(report.StartedAt).Round(time.Second))
	}
	buf.WriteString("\n")
	if report.Error != "" {
		fmt.Fprintf(&buf, "Error: %s\n", report.Error)
	}

	return buf.Bytes(), nil
}

// WriteReport writes [ReportToText] output to w.
func WriteReport(w io.Writer, report *models.MigrationReport) error {
	data, err := ReportToText(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func entityHeading(e *models.EntityReport) string {
	if e.Kind == models.KindLiked {
		return e.Name
	}
	if e.Dest.Name != "" && e.Dest.Name != e.Name {
		return fmt.Sprintf("Playlist: %s → %s", e.Name, e.Dest.Name)
	}
	return fmt.Sprintf("Playlist: %s", e.Name)
}

func writeCounts(buf *bytes.Buffer, c models.Counts) {
	fmt.Fprintf(buf, "  Attempted: %d  Matched: %d  Not found: %d  Failed: %d\n", c.Attempted, c.Matched, c.NotFound, c.Failed)
}

// UnmatchedCSV lists every track that was not found with columns: Entity, Title, Artists, Album,
// ISRC, Reason.
func UnmatchedCSV(report *models.MigrationReport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Entity", "Title", "Artists", "Album", "ISRC", "Reason"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, m := range report.Misses() {
		src := m.Result.Source
		record := []string{m.Entity, src.Title, src.Artist(), src.Album, src.ISRC, m.Result.Reason}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteUnmatchedCSV writes [UnmatchedCSV] to path and returns the number of tracks listed.
func WriteUnmatchedCSV(report *models.MigrationReport, path string) (int, error) {
	data, err := UnmatchedCSV(report)
	if err != nil {
		return 0, fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("failed to write CSV file: %w", err)
	}
	return len(report.Misses()), nil
}

// PlaylistsToText lists playlists the way the selector shows them.
func PlaylistsToText(playlists []models.Playlist) []byte {
	var buf bytes.Buffer
	for i, p := range playlists {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, p.Label())
	}
	fmt.Fprintf(&buf, "\nTotal: %d playlists\n", len(playlists))
	return buf.Bytes()
}

// TracksToText lists tracks as "n. Artist - Title", with the ISRC when known.
func TracksToText(title string, tracks []models.Track) []byte {
	var buf bytes.Buffer
	if title != "" {
		fmt.Fprintf(&buf, "%s\n\n", title)
	}
	for i, t := range tracks {
		fmt.Fprintf(&buf, "%d. %s", i+1, t.String())
		if t.HasISRC() {
			fmt.Fprintf(&buf, " [%s]", t.ISRC)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// ArtistsToText lists artists with their genres.
func ArtistsToText(title string, artists []models.Artist) []byte {
	var buf bytes.Buffer
	if title != "" {
		fmt.Fprintf(&buf, "%s\n\n", title)
	}
	for i, a := range artists {
		fmt.Fprintf(&buf, "%d. %s", i+1, a.Name)
		if len(a.Genres) > 0 {
			fmt.Fprintf(&buf, " (%s)", strings.Join(a.Genres, ", "))
		}
		buf.WriteString("\n")
	}
	return buf.Bytes()
}

// RunsToText lists journaled runs, newest first as given.
func RunsToText(runs []*models.MigrationRun) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	for _, r := range runs {
		fmt.Fprintf(&buf, "#%d  %s  %-7s  %d/%d matched", r.Sequence, r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Status, r.Counts.Matched, r.Counts.Attempted)
		if r.SourceUser != "" {
			fmt.Fprintf(&buf, "  %s → %s", r.SourceUser, r.DestUser)
		}
		buf.WriteString("\n")
		for _, e := range r.Entities {
			mark := ""
			if e.Aborted {
				mark = " (aborted)"
			}
			fmt.Fprintf(&buf, "     %s %s: %d/%d%s\n", e.Kind, e.Name, e.Counts.Matched, e.Counts.Attempted, mark)
		}
		if r.ErrorMessage != "" {
			fmt.Fprintf(&buf, "     error: %s\n", r.ErrorMessage)
		}
	}
	return buf.Bytes()
}
