package tasks

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
)

func TestStaticSelector(t *testing.T) {
	ctx := context.Background()
	candidates := []models.Playlist{{Name: "Road Trip"}, {Name: "Focus"}, {Name: "Gym"}}

	tests := []struct {
		name      string
		sel       StaticSelector
		wantCats  []models.Category
		wantNames []string
		wantErr   error
	}{
		{name: "nothing", sel: StaticSelector{}},
		{
			name:     "liked only",
			sel:      StaticSelector{Liked: true},
			wantCats: []models.Category{models.CategoryLiked},
		},
		{
			name:      "all playlists",
			sel:       StaticSelector{AllPlaylists: true, Liked: true},
			wantCats:  []models.Category{models.CategoryPlaylists, models.CategoryLiked},
			wantNames: []string{"Road Trip", "Focus", "Gym"},
		},
		{
			name:      "named playlists keep listing order",
			sel:       StaticSelector{Playlists: []string{"gym", " road trip "}},
			wantCats:  []models.Category{models.CategoryPlaylists},
			wantNames: []string{"Road Trip", "Gym"},
		},
		{
			name:     "unknown playlist",
			sel:      StaticSelector{Playlists: []string{"Focus", "Sleep"}},
			wantCats: []models.Category{models.CategoryPlaylists},
			wantErr:  shared.ErrPlaylistNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cats, err := tt.sel.SelectCategories(ctx)
			if err != nil || !slices.Equal(cats, tt.wantCats) {
				t.Errorf("SelectCategories() = %v, %v; want %v", cats, err, tt.wantCats)
			}
			if tt.sel.Empty() != (len(tt.wantCats) == 0) {
				t.Errorf("Empty() = %v", tt.sel.Empty())
			}
			if !slices.Contains(cats, models.CategoryPlaylists) {
				return
			}

			selected, err := tt.sel.SelectPlaylists(ctx, candidates)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}

			var names []string
			for _, p := range selected {
				names = append(names, p.Name)
			}
			if !slices.Equal(names, tt.wantNames) {
				t.Errorf("SelectPlaylists() = %v, want %v", names, tt.wantNames)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Idle: "idle", Authenticating: "authenticating", Selecting: "selecting",
		Migrating: "migrating", Done: "done", Failed: "failed",
	} {
		if s.String() != want {
			t.Errorf("%d.String() = %q, want %q", s, s.String(), want)
		}
	}
	if !Done.Terminal() || !Failed.Terminal() || Migrating.Terminal() {
		t.Error("only Done and Failed are terminal")
	}
}
