package ui

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotidal/internal/models"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "space":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(m *Checklist, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = m.Update(keyMsg(k))
	}
	return cmd
}

func TestChecklist(t *testing.T) {
	labels := []string{"Road Trip (12 Tracks)", "Focus (40 Tracks)", "Gym (7 Tracks)"}

	tests := []struct {
		name       string
		keys       []string
		want       []int
		wantCancel bool
	}{
		{name: "confirm nothing", keys: []string{"enter"}},
		{name: "toggle first and third", keys: []string{"space", "down", "down", "space", "enter"}, want: []int{0, 2}},
		{name: "toggle twice", keys: []string{"space", "space", "enter"}},
		{name: "vim keys", keys: []string{"j", "x", "k", "enter"}, want: []int{1}},
		{name: "cursor stays in bounds", keys: []string{"up", "down", "down", "down", "down", "space", "enter"}, want: []int{2}},
		{name: "select all", keys: []string{"a", "enter"}, want: []int{0, 1, 2}},
		{name: "select all then none", keys: []string{"a", "a", "enter"}},
		{name: "all after partial", keys: []string{"space", "a", "enter"}, want: []int{0, 1, 2}},
		{name: "escape cancels", keys: []string{"a", "esc"}, wantCancel: true},
		{name: "q cancels", keys: []string{"space", "q"}, wantCancel: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChecklist("Pick", labels)
			cmd := press(m, tt.keys...)

			if cmd == nil {
				t.Fatal("expected the final key to quit the program")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("expected a quit command")
			}
			if m.Cancelled() != tt.wantCancel {
				t.Errorf("Cancelled() = %v, want %v", m.Cancelled(), tt.wantCancel)
			}
			if got := m.Selected(); !slices.Equal(got, tt.want) {
				t.Errorf("Selected() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChecklistView(t *testing.T) {
	m := NewChecklist("Select playlists", []string{"Road Trip (12 Tracks)", "Focus (40 Tracks)"})
	press(m, "down", "space")

	view := m.View()
	for _, want := range []string{"Select playlists", "Road Trip (12 Tracks)", "Focus (40 Tracks)", "[x]", "[ ]", "1 of 2 selected"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	if m.Selected() != nil {
		t.Error("an open checklist has no selection")
	}
}

func TestChecklistScrolls(t *testing.T) {
	labels := make([]string, 30)
	for i := range labels {
		labels[i] = fmt.Sprintf("row-%02d", i)
	}
	m := NewChecklist("Long", labels)
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 12})

	for range 20 {
		press(m, "down")
	}

	if m.cursor != 20 {
		t.Fatalf("cursor = %d", m.cursor)
	}
	if m.cursor < m.offset || m.cursor >= m.offset+m.visibleRows() {
		t.Errorf("cursor %d outside visible window starting at %d", m.cursor, m.offset)
	}
	if strings.Contains(m.View(), "row-00") {
		t.Error("first row should have scrolled out of view")
	}
}

// scripted returns a run func that feeds keys to each prompt in turn.
func scripted(t *testing.T, prompts ...[]string) (func(*Checklist) error, *[]string) {
	t.Helper()
	var titles []string
	return func(m *Checklist) error {
		if len(titles) >= len(prompts) {
			t.Fatalf("unexpected prompt %q", m.title)
		}
		keys := prompts[len(titles)]
		titles = append(titles, m.title)
		press(m, keys...)
		return nil
	}, &titles
}

func TestSelector(t *testing.T) {
	ctx := context.Background()
	playlists := []models.Playlist{{Name: "Road Trip", TrackCount: 12}, {Name: "Focus", TrackCount: 40}}

	t.Run("categories", func(t *testing.T) {
		run, _ := scripted(t, []string{"down", "space", "enter"})
		s := &Selector{run: run}

		got, err := s.SelectCategories(ctx)
		if err != nil || !slices.Equal(got, []models.Category{models.CategoryLiked}) {
			t.Errorf("SelectCategories() = %v, %v", got, err)
		}
	})

	t.Run("playlists", func(t *testing.T) {
		run, titles := scripted(t, []string{"down", "space", "enter"})
		lock := &countingLock{}
		s := &Selector{run: run, Lock: lock}

		got, err := s.SelectPlaylists(ctx, playlists)
		if err != nil || len(got) != 1 || got[0].Name != "Focus" {
			t.Errorf("SelectPlaylists() = %v, %v", got, err)
		}
		if (*titles)[0] != "Select playlists (2 available)" {
			t.Errorf("title = %q", (*titles)[0])
		}
		if lock.locks != 1 || lock.held {
			t.Errorf("expected the lock to be taken and released once, got %+v", lock)
		}
	})

	t.Run("cancel returns empty", func(t *testing.T) {
		run, _ := scripted(t, []string{"a", "esc"})
		s := &Selector{run: run}

		got, err := s.SelectPlaylists(ctx, playlists)
		if err != nil || len(got) != 0 {
			t.Errorf("SelectPlaylists() = %v, %v; want empty", got, err)
		}
	})

	t.Run("no candidates skips the prompt", func(t *testing.T) {
		run, titles := scripted(t)
		s := &Selector{run: run}

		if got, err := s.SelectPlaylists(ctx, nil); err != nil || got != nil {
			t.Errorf("SelectPlaylists(nil) = %v, %v", got, err)
		}
		if len(*titles) != 0 {
			t.Errorf("expected no prompt, got %v", *titles)
		}
	})

	t.Run("program error", func(t *testing.T) {
		boom := errors.New("no tty")
		s := &Selector{run: func(*Checklist) error { return boom }}

		if _, err := s.SelectCategories(ctx); !errors.Is(err, boom) {
			t.Errorf("expected wrapped program error, got %v", err)
		}
	})
}

type countingLock struct {
	mu    sync.Mutex
	locks int
	held  bool
}

func (l *countingLock) Lock() {
	l.mu.Lock()
	l.locks++
	l.held = true
}

func (l *countingLock) Unlock() {
	l.held = false
	l.mu.Unlock()
}

func TestPaletteRenders(t *testing.T) {
	p := Styles()
	for _, s := range []string{p.Title("t"), p.OK("o"), p.Err("e"), p.Warn("w"), p.Help("h")} {
		if s == "" {
			t.Error("expected rendered text")
		}
	}
}
