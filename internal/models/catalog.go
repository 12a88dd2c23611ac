package models

import (
	"fmt"
	"strings"
	"time"
)

// Track is a recording as read from the source catalog. Immutable once fetched.
type Track struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Artists  []string `json:"artists"`
	Album    string   `json:"album,omitempty"`
	ISRC     string   `json:"isrc,omitempty"`
	Duration int      `json:"duration_ms,omitempty"`
}

// Artist joins all artist names with ", ".
func (t Track) Artist() string {
	return strings.Join(t.Artists, ", ")
}

// PrimaryArtist returns the first credited artist, or "".
func (t Track) PrimaryArtist() string {
	if len(t.Artists) == 0 {
		return ""
	}
	return t.Artists[0]
}

// HasISRC reports whether the track carries a standardized recording identifier.
func (t Track) HasISRC() bool {
	return strings.TrimSpace(t.ISRC) != ""
}

func (t Track) String() string {
	if a := t.Artist(); a != "" {
		return a + " - " + t.Title
	}
	return t.Title
}

// Playlist is a named, ordered list of tracks. Duplicates are allowed.
//
// Tracks are streamed separately; TrackCount is the total the provider reports.
type Playlist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrackCount  int    `json:"track_count"`
}

// Label renders the playlist the way selection prompts show it.
func (p Playlist) Label() string {
	return fmt.Sprintf("%s (%d Tracks)", p.Name, p.TrackCount)
}

// LikedTrack is a saved track and the time it was saved.
type LikedTrack struct {
	Track   Track     `json:"track"`
	AddedAt time.Time `json:"added_at"`
}

// DestTrack is a track in the destination catalog.
type DestTrack struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Artists []string `json:"artists,omitempty"`
	Album   string   `json:"album,omitempty"`
	ISRC    string   `json:"isrc,omitempty"`
}

// Artist joins all artist names with ", ".
func (t DestTrack) Artist() string {
	return strings.Join(t.Artists, ", ")
}

func (t DestTrack) String() string {
	if a := t.Artist(); a != "" {
		return a + " - " + t.Title
	}
	if t.Title == "" {
		return "isrc:" + t.ISRC
	}
	return t.Title
}

// PlaylistHandle references a playlist on the destination.
type PlaylistHandle struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Category is a top-level kind of library entity offered for migration.
type Category string

const (
	CategoryPlaylists Category = "playlists"
	CategoryLiked     Category = "liked-tracks"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryPlaylists, CategoryLiked}
}

// Label is the prompt text for c.
func (c Category) Label() string {
	switch c {
	case CategoryPlaylists:
		return "Playlists"
	case CategoryLiked:
		return "Liked tracks"
	default:
		return string(c)
	}
}

// TimeRange selects the window for top tracks and artists.
type TimeRange string

const (
	ShortTerm  TimeRange = "short_term"
	MediumTerm TimeRange = "medium_term"
	LongTerm   TimeRange = "long_term"
)

// ParseTimeRange accepts "short", "medium", "long" or the provider's own names.
func ParseTimeRange(s string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "short", "short_term", "4w":
		return ShortTerm, nil
	case "medium", "medium_term", "", "6m":
		return MediumTerm, nil
	case "long", "long_term", "all":
		return LongTerm, nil
	default:
		return "", fmt.Errorf("unknown time range %q (want short, medium or long)", s)
	}
}

// Label is the heading printed above a top-items listing.
func (r TimeRange) Label() string {
	switch r {
	case ShortTerm:
		return "LAST 4 WEEKS"
	case MediumTerm:
		return "LAST 6 MONTHS"
	case LongTerm:
		return "ALL TIME"
	default:
		return strings.ToUpper(string(r))
	}
}

// Artist is a performer from a top-artists listing.
type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres,omitempty"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
}
