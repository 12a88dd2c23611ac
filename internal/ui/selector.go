package ui

import (
	"context"
	"fmt"
	"io"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/tasks"
)

var _ tasks.Selector = (*Selector)(nil)

// Selector prompts for migration choices with a [Checklist].
type Selector struct {
	In     io.Reader   // Defaults to the terminal
	Out    io.Writer   // Defaults to the terminal
	Lock   sync.Locker // Optional, held while a prompt owns the terminal
	Logger *log.Logger // Optional

	run func(m *Checklist) error
}

// NewSelector creates a selector bound to the terminal.
func NewSelector(lock sync.Locker, logger *log.Logger) *Selector {
	return &Selector{Lock: lock, Logger: logger}
}

// SelectCategories asks which kinds of entities to migrate.
func (s *Selector) SelectCategories(ctx context.Context) ([]models.Category, error) {
	all := models.Categories()
	picked, err := s.prompt(ctx, "What do you want to migrate to Tidal?", categoryItems(all))
	if err != nil {
		return nil, err
	}

	out := make([]models.Category, 0, len(picked))
	for _, i := range picked {
		out = append(out, all[i])
	}
	return out, nil
}

// SelectPlaylists asks which playlists to migrate. Rows read "name (N Tracks)".
func (s *Selector) SelectPlaylists(ctx context.Context, candidates []models.Playlist) ([]models.Playlist, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	title := fmt.Sprintf("Select playlists (%d available)", len(candidates))
	picked, err := s.prompt(ctx, title, playlistItems(candidates))
	if err != nil {
		return nil, err
	}

	out := make([]models.Playlist, 0, len(picked))
	for _, i := range picked {
		out = append(out, candidates[i])
	}
	return out, nil
}

func (s *Selector) prompt(ctx context.Context, title string, labels []string) ([]int, error) {
	if s.Lock != nil {
		s.Lock.Lock()
		defer s.Lock.Unlock()
	}

	m := NewChecklist(title, labels)
	run := s.run
	if run == nil {
		run = func(m *Checklist) error { return s.runProgram(ctx, m) }
	}
	if err := run(m); err != nil {
		return nil, fmt.Errorf("selection prompt failed: %w", err)
	}

	if s.Logger != nil {
		s.Logger.Debug("selection", "title", title, "cancelled", m.Cancelled(), "picked", len(m.Selected()))
	}
	return m.Selected(), nil
}

func (s *Selector) runProgram(ctx context.Context, m *Checklist) error {
	opts := []tea.ProgramOption{tea.WithContext(ctx)}
	if s.In != nil {
		opts = append(opts, tea.WithInput(s.In))
	}
	if s.Out != nil {
		opts = append(opts, tea.WithOutput(s.Out))
	}

	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
