package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// SpotifyScopes are the permissions requested during authorization.
var SpotifyScopes = []string{
	spotifyauth.ScopeUserLibraryRead,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopeUserReadPrivate,
}

// PageSizes sets how many items each list endpoint returns per request.
type PageSizes struct {
	Playlists      int
	PlaylistTracks int
	Liked          int
}

// DefaultPageSizes uses the largest page each endpoint accepts.
func DefaultPageSizes() PageSizes {
	return PageSizes{Playlists: 50, PlaylistTracks: 100, Liked: 50}
}

// PageSizesFrom reads page sizes from the migration settings, falling back to the defaults.
func PageSizesFrom(cfg shared.MigrationConfig) PageSizes {
	p := DefaultPageSizes()
	if cfg.PlaylistPageSize > 0 {
		p.Playlists = min(cfg.PlaylistPageSize, 50)
	}
	if cfg.TrackPageSize > 0 {
		p.PlaylistTracks = min(cfg.TrackPageSize, 100)
	}
	if cfg.LikedPageSize > 0 {
		p.Liked = min(cfg.LikedPageSize, 50)
	}
	return p
}

// NewSpotifyAuthenticator builds the code-grant authenticator for the configured application.
func NewSpotifyAuthenticator(cfg shared.SpotifyConfig) *spotifyauth.Authenticator {
	return spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURI),
		spotifyauth.WithScopes(SpotifyScopes...),
	)
}

// SpotifyOAuthConfig mirrors the authenticator as an [oauth2.Config] so refreshed tokens can be read back.
func SpotifyOAuthConfig(cfg shared.SpotifyConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       SpotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyauth.AuthURL,
			TokenURL: spotifyauth.TokenURL,
		},
	}
}

// SpotifySource reads a Spotify library through the Web API.
type SpotifySource struct {
	client  *spotify.Client
	tokens  oauth2.TokenSource
	pages   PageSizes
	opts    ClientOptions
	limited *retryAfterTransport
}

// NewSpotifySource wraps an API client. tokens may be nil when the caller does not persist refreshes.
//
// Rate limits reported through this client carry no Retry-After; use [NewSpotifySourceFromHTTP]
// to keep it.
func NewSpotifySource(client *spotify.Client, tokens oauth2.TokenSource, pages PageSizes, opts ClientOptions) *SpotifySource {
	return &SpotifySource{client: client, tokens: tokens, pages: pages, opts: opts.withDefaults("spotify")}
}

// NewSpotifySourceFromHTTP builds the API client over hc, recording the Retry-After of throttled
// responses so the retry policy can wait as long as Spotify asks.
func NewSpotifySourceFromHTTP(hc *http.Client, tokens oauth2.TokenSource, pages PageSizes, opts ClientOptions, clientOpts ...spotify.ClientOption) *SpotifySource {
	limited := &retryAfterTransport{base: hc.Transport}
	if limited.base == nil {
		limited.base = http.DefaultTransport
	}
	wrapped := *hc
	wrapped.Transport = limited

	s := NewSpotifySource(spotify.New(&wrapped, clientOpts...), tokens, pages, opts)
	s.limited = limited
	return s
}

// NewSpotifySourceFromConfig builds a source authenticated with the stored token.
//
// Returns [shared.ErrNotAuthenticated] when no token has been stored yet.
func NewSpotifySourceFromConfig(ctx context.Context, cfg *shared.Config, opts ClientOptions) (*SpotifySource, error) {
	tok := cfg.Credentials.Spotify.Token()
	if tok == nil {
		return nil, fmt.Errorf("%w: run `spotidal spotify auth` first", shared.ErrNotAuthenticated)
	}

	ts := oauth2.ReuseTokenSource(tok, SpotifyOAuthConfig(cfg.Credentials.Spotify).TokenSource(ctx, tok))
	return NewSpotifySourceFromHTTP(oauth2.NewClient(ctx, ts), ts, PageSizesFrom(cfg.Migration), opts), nil
}

// Name returns the service name.
func (s *SpotifySource) Name() string { return "Spotify" }

// Token returns the current (possibly refreshed) token.
func (s *SpotifySource) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return s.tokens.Token()
}

// CurrentUser returns the display name, or the user id when no display name is set.
func (s *SpotifySource) CurrentUser(ctx context.Context) (string, error) {
	var user *spotify.PrivateUser
	err := s.opts.call(ctx, func() error {
		var err error
		user, err = s.client.CurrentUser(ctx)
		return s.classify(err)
	})
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}

	if user.DisplayName != "" {
		return user.DisplayName, nil
	}
	return user.ID, nil
}

// ListPlaylists pages through the user's playlists.
func (s *SpotifySource) ListPlaylists(ctx context.Context) iter.Seq2[models.Playlist, error] {
	return paginate(ctx, s, "playlists", s.pages.Playlists, func(offset, limit int) ([]models.Playlist, bool, error) {
		page, err := s.client.CurrentUsersPlaylists(ctx, spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, false, err
		}

		items := make([]models.Playlist, 0, len(page.Playlists))
		for _, p := range page.Playlists {
			items = append(items, models.Playlist{
				ID:          string(p.ID),
				Name:        p.Name,
				Description: p.Description,
				TrackCount:  int(p.Tracks.Total),
			})
		}
		return items, page.Next != "", nil
	})
}

// ListPlaylistTracks pages through a playlist's tracks.
//
// Local files are yielded without an id or ISRC so they still go through search. Entries with
// no track payload (removed or unavailable items) are skipped.
func (s *SpotifySource) ListPlaylistTracks(ctx context.Context, playlistID string) iter.Seq2[models.Track, error] {
	what := "playlist " + playlistID
	return paginate(ctx, s, what, s.pages.PlaylistTracks, func(offset, limit int) ([]models.Track, bool, error) {
		page, err := s.client.GetPlaylistTracks(ctx, spotify.ID(playlistID), spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, false, err
		}

		items := make([]models.Track, 0, len(page.Tracks))
		for _, item := range page.Tracks {
			if item.Track.Name == "" {
				continue
			}
			items = append(items, convertSpotifyTrack(item.Track))
		}
		return items, page.Next != "", nil
	})
}

// ListLikedTracks pages through the user's saved tracks.
func (s *SpotifySource) ListLikedTracks(ctx context.Context) iter.Seq2[models.LikedTrack, error] {
	return paginate(ctx, s, "liked tracks", s.pages.Liked, func(offset, limit int) ([]models.LikedTrack, bool, error) {
		page, err := s.client.CurrentUsersTracks(ctx, spotify.Limit(limit), spotify.Offset(offset))
		if err != nil {
			return nil, false, err
		}

		items := make([]models.LikedTrack, 0, len(page.Tracks))
		for _, saved := range page.Tracks {
			added, _ := time.Parse(time.RFC3339, saved.AddedAt)
			items = append(items, models.LikedTrack{Track: convertSpotifyTrack(saved.FullTrack), AddedAt: added})
		}
		return items, page.Next != "", nil
	})
}

// TopTracks returns up to limit of the user's most played tracks in the time range.
func (s *SpotifySource) TopTracks(ctx context.Context, tr models.TimeRange, limit int) ([]models.Track, error) {
	var page *spotify.FullTrackPage
	err := s.opts.call(ctx, func() error {
		var err error
		page, err = s.client.CurrentUsersTopTracks(ctx, spotify.Limit(clampLimit(limit)), spotify.Timerange(spotify.Range(tr)))
		return s.classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get top tracks: %w", err)
	}

	tracks := make([]models.Track, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		tracks = append(tracks, convertSpotifyTrack(t))
	}
	return tracks, nil
}

// TopArtists returns up to limit of the user's most played artists in the time range.
func (s *SpotifySource) TopArtists(ctx context.Context, tr models.TimeRange, limit int) ([]models.Artist, error) {
	var page *spotify.FullArtistPage
	err := s.opts.call(ctx, func() error {
		var err error
		page, err = s.client.CurrentUsersTopArtists(ctx, spotify.Limit(clampLimit(limit)), spotify.Timerange(spotify.Range(tr)))
		return s.classify(err)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get top artists: %w", err)
	}

	artists := make([]models.Artist, 0, len(page.Artists))
	for _, a := range page.Artists {
		artists = append(artists, models.Artist{
			ID:         string(a.ID),
			Name:       a.Name,
			Genres:     a.Genres,
			Popularity: int(a.Popularity),
			Followers:  int(a.Followers.Count),
		})
	}
	return artists, nil
}

// paginate yields items page by page until the provider reports no next page.
//
// Each page request is paced and retried under the client policy.
func paginate[T any](ctx context.Context, s *SpotifySource, what string, size int, fetch func(offset, limit int) ([]T, bool, error)) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for offset := 0; ; offset += size {
			var items []T
			var more bool
			err := s.opts.call(ctx, func() error {
				var err error
				items, more, err = fetch(offset, size)
				return s.classify(err)
			})
			if err != nil {
				var zero T
				yield(zero, fmt.Errorf("failed to list %s at offset %d: %w", what, offset, err))
				return
			}

			s.opts.Logger.Debug("fetched page", "what", what, "offset", offset, "items", len(items))
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}

			if !more {
				return
			}
		}
	}
}

func convertSpotifyTrack(t spotify.FullTrack) models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	return models.Track{
		ID:       string(t.ID),
		Title:    t.Name,
		Artists:  artists,
		Album:    t.Album.Name,
		ISRC:     t.ExternalIDs["isrc"],
		Duration: int(t.Duration),
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 50 {
		return 50
	}
	return limit
}

var spotifyHTTPStatus = regexp.MustCompile(`HTTP (\d{3})`)

func (s *SpotifySource) classify(err error) error {
	var retryAfter time.Duration
	if s.limited != nil {
		retryAfter = s.limited.take()
	}
	return classifySpotifyError(err, retryAfter)
}

// classifySpotifyError maps client errors onto the shared taxonomy.
func classifySpotifyError(err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}

	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	switch spotifyStatus(err) {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %v", shared.ErrTokenExpired, err)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	case http.StatusTooManyRequests:
		return &shared.RateLimitError{Service: "spotify", RetryAfter: retryAfter}
	case 0:
		return err
	default:
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
}

func spotifyStatus(err error) int {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotify.Error
	if errors.As(err, &apiErrPtr) {
		return apiErrPtr.Status
	}
	if m := spotifyHTTPStatus.FindStringSubmatch(err.Error()); m != nil {
		status, _ := strconv.Atoi(m[1])
		return status
	}
	return 0
}

// retryAfterTransport remembers the Retry-After of the latest throttled response, which the
// spotify client drops when it decodes the error body.
type retryAfterTransport struct {
	base http.RoundTripper
	last atomic.Int64
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		t.last.Store(int64(parseRetryAfter(resp.Header.Get("Retry-After"))))
	}
	return resp, err
}

// take returns and clears the recorded delay.
func (t *retryAfterTransport) take() time.Duration {
	return time.Duration(t.last.Swap(0))
}
