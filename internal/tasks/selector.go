package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
)

// Selector gathers which entities the user wants to migrate.
//
// An empty result (with a nil error) means the user cancelled or chose nothing.
type Selector interface {
	SelectCategories(ctx context.Context) ([]models.Category, error)
	SelectPlaylists(ctx context.Context, candidates []models.Playlist) ([]models.Playlist, error)
}

// StaticSelector answers from flags instead of prompting.
type StaticSelector struct {
	Liked        bool
	AllPlaylists bool
	Playlists    []string // Names, matched case-insensitively
}

// Empty reports whether nothing was requested.
func (s StaticSelector) Empty() bool {
	return !s.Liked && !s.AllPlaylists && len(s.Playlists) == 0
}

func (s StaticSelector) SelectCategories(context.Context) ([]models.Category, error) {
	var out []models.Category
	if s.AllPlaylists || len(s.Playlists) > 0 {
		out = append(out, models.CategoryPlaylists)
	}
	if s.Liked {
		out = append(out, models.CategoryLiked)
	}
	return out, nil
}

// SelectPlaylists keeps candidates in their listed order. Requested names that match no candidate
// are reported as [shared.ErrPlaylistNotFound].
func (s StaticSelector) SelectPlaylists(_ context.Context, candidates []models.Playlist) ([]models.Playlist, error) {
	if s.AllPlaylists {
		return candidates, nil
	}

	wanted := make(map[string]bool, len(s.Playlists))
	for _, name := range s.Playlists {
		wanted[strings.ToLower(strings.TrimSpace(name))] = false
	}

	var out []models.Playlist
	for _, p := range candidates {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			out = append(out, p)
		}
	}

	var missing []string
	for _, name := range s.Playlists {
		if !wanted[strings.ToLower(strings.TrimSpace(name))] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, strings.Join(missing, ", "))
	}
	return out, nil
}
