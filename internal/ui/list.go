package ui

import (
	"github.com/desertthunder/spotidal/internal/models"
)

// checkItem is one row of a [Checklist].
type checkItem struct {
	label   string
	checked bool
}

func categoryItems(categories []models.Category) []string {
	labels := make([]string, len(categories))
	for i, c := range categories {
		labels[i] = c.Label()
	}
	return labels
}

func playlistItems(playlists []models.Playlist) []string {
	labels := make([]string, len(playlists))
	for i, p := range playlists {
		labels[i] = p.Label()
	}
	return labels
}
