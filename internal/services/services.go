package services

import (
	"context"
	"fmt"
	"io"
	"iter"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
	"golang.org/x/time/rate"
)

// Source reads the signed-in user's library. Every List call returns a fresh lazy sequence that
// pages through the provider in server order; iteration stops after the first error.
type Source interface {
	Name() string

	// CurrentUser returns the display name of the signed-in user.
	CurrentUser(ctx context.Context) (string, error)

	ListPlaylists(ctx context.Context) iter.Seq2[models.Playlist, error]
	ListPlaylistTracks(ctx context.Context, playlistID string) iter.Seq2[models.Track, error]
	ListLikedTracks(ctx context.Context) iter.Seq2[models.LikedTrack, error]
}

// Destination writes into the signed-in user's library and searches the catalog.
//
// The bool returned by the ISRC methods is false when no track with that identifier exists;
// that case is not an error.
type Destination interface {
	Name() string

	// CurrentUser returns the display name of the signed-in user.
	CurrentUser(ctx context.Context) (string, error)

	// CreatePlaylist fails with [*DuplicateNameError] when a playlist with name already exists.
	CreatePlaylist(ctx context.Context, name, description string) (models.PlaylistHandle, error)

	AddTrackByISRC(ctx context.Context, playlist models.PlaylistHandle, isrc string) (bool, error)
	AddTrack(ctx context.Context, playlist models.PlaylistHandle, trackID string) error

	// SearchTracks returns candidates in the destination's relevance order, possibly none.
	SearchTracks(ctx context.Context, query string) ([]models.DestTrack, error)

	AddFavoriteByISRC(ctx context.Context, isrc string) (bool, error)
	AddFavorite(ctx context.Context, trackID string) error
}

// DuplicateNameError reports that a destination playlist already uses Name.
type DuplicateNameError struct {
	Name     string
	Existing models.PlaylistHandle
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("playlist %q already exists (id %s)", e.Name, e.Existing.ID)
}

// Is reports a match against [shared.ErrDuplicateName].
func (e *DuplicateNameError) Is(target error) bool {
	return target == shared.ErrDuplicateName
}

// StatusError is a non-success HTTP response that has no more specific meaning.
type StatusError struct {
	Service string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Service, e.Status, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Service, e.Status)
}

// Is reports a match against [shared.ErrAPIRequest].
func (e *StatusError) Is(target error) bool {
	return target == shared.ErrAPIRequest
}

// ClientOptions carries the request policy shared by both catalog clients.
type ClientOptions struct {
	Retry   shared.RetryPolicy
	Limiter *rate.Limiter
	Logger  *log.Logger
}

// NewClientOptions builds options from the migration settings.
func NewClientOptions(cfg shared.MigrationConfig, logger *log.Logger) (ClientOptions, error) {
	policy, err := cfg.RetryPolicy()
	if err != nil {
		return ClientOptions{}, err
	}
	return ClientOptions{Retry: policy, Limiter: NewLimiter(cfg.RequestsPerSecond), Logger: logger}, nil
}

// NewLimiter paces requests at rps per second; zero or negative disables pacing.
func NewLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}

func (o ClientOptions) withDefaults(service string) ClientOptions {
	if o.Limiter == nil {
		o.Limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	o.Logger = shared.WithLogger(o.Logger, "service", service)
	return o
}

// call paces and retries fn under the client policy.
func (o ClientOptions) call(ctx context.Context, fn func() error) error {
	return shared.RetryNotify(ctx, o.Retry, func() error {
		if err := o.Limiter.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err != nil {
			o.Logger.Debug("request failed", "error", err)
		}
		return err
	}, func(err error, wait time.Duration) {
		o.Logger.Warn("rate limited, backing off", "wait", wait)
	})
}

// Collect drains seq into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
