package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
	"golang.org/x/oauth2"
)

const defaultTidalBaseURL = "https://api.tidal.com/v1"

type tidalArtist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type tidalAlbum struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// TidalTrack is a track as returned by the Tidal API.
type TidalTrack struct {
	ID      int64         `json:"id"`
	Title   string        `json:"title"`
	ISRC    string        `json:"isrc"`
	Artists []tidalArtist `json:"artists"`
	Album   tidalAlbum    `json:"album"`
}

// TidalPlaylist is a playlist as returned by the Tidal API.
type TidalPlaylist struct {
	UUID           string `json:"uuid"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	NumberOfTracks int    `json:"numberOfTracks"`
}

type tidalPage[T any] struct {
	Limit              int `json:"limit"`
	Offset             int `json:"offset"`
	TotalNumberOfItems int `json:"totalNumberOfItems"`
	Items              []T `json:"items"`
}

type tidalSession struct {
	UserID      int64  `json:"userId"`
	CountryCode string `json:"countryCode"`
	Username    string `json:"-"`
}

// TidalDestination writes into a Tidal library through the v1 REST API.
type TidalDestination struct {
	baseURL     string
	httpClient  *http.Client
	tokens      oauth2.TokenSource
	opts        ClientOptions
	searchLimit int
	session     *tidalSession
}

// TidalOptions configures a [TidalDestination].
type TidalOptions struct {
	BaseURL     string
	HTTPClient  *http.Client       // Must add authorization; see [TidalAuth.Client]
	Tokens      oauth2.TokenSource // Optional, used to persist refreshed tokens
	SearchLimit int
	ClientOptions
}

// NewTidalDestination creates a client; the session is resolved on first use.
func NewTidalDestination(opts TidalOptions) *TidalDestination {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultTidalBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}

	return &TidalDestination{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  opts.HTTPClient,
		tokens:      opts.Tokens,
		opts:        opts.ClientOptions.withDefaults("tidal"),
		searchLimit: opts.SearchLimit,
	}
}

// NewTidalDestinationFromConfig builds a destination authenticated with the stored token.
//
// Returns [shared.ErrNotAuthenticated] when no token has been stored yet.
func NewTidalDestinationFromConfig(ctx context.Context, cfg *shared.Config, opts ClientOptions) (*TidalDestination, error) {
	tok := cfg.Credentials.Tidal.Token()
	if tok == nil {
		return nil, fmt.Errorf("%w: run `spotidal tidal login` first", shared.ErrNotAuthenticated)
	}

	client, ts := NewTidalAuth(cfg.Credentials.Tidal).Client(ctx, tok)
	return NewTidalDestination(TidalOptions{HTTPClient: client, Tokens: ts, ClientOptions: opts}), nil
}

// Name returns the service name.
func (t *TidalDestination) Name() string { return "Tidal" }

// Token returns the current (possibly refreshed) token.
func (t *TidalDestination) Token() (*oauth2.Token, error) {
	if t.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	return t.tokens.Token()
}

// CurrentUser resolves the session and returns the username.
func (t *TidalDestination) CurrentUser(ctx context.Context) (string, error) {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	if s.Username != "" {
		return s.Username, nil
	}
	return strconv.FormatInt(s.UserID, 10), nil
}

// CreatePlaylist creates a playlist unless the user already owns one with the same name.
func (t *TidalDestination) CreatePlaylist(ctx context.Context, name, description string) (models.PlaylistHandle, error) {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return models.PlaylistHandle{}, err
	}

	existing, err := t.findPlaylist(ctx, s, name)
	if err != nil {
		return models.PlaylistHandle{}, err
	}
	if existing != nil {
		return models.PlaylistHandle{}, &DuplicateNameError{Name: name, Existing: *existing}
	}

	form := url.Values{"title": {name}, "description": {description}}
	var created TidalPlaylist
	if _, err := t.doRequest(ctx, http.MethodPost, fmt.Sprintf("/users/%d/playlists", s.UserID), t.query(s, nil), form, nil, &created); err != nil {
		return models.PlaylistHandle{}, fmt.Errorf("failed to create playlist %q: %w", name, err)
	}

	t.opts.Logger.Info("created playlist", "name", name, "id", created.UUID)
	return models.PlaylistHandle{ID: created.UUID, Name: created.Title}, nil
}

// AddTrackByISRC appends the track with isrc; false when the catalog has no such track.
func (t *TidalDestination) AddTrackByISRC(ctx context.Context, playlist models.PlaylistHandle, isrc string) (bool, error) {
	track, err := t.lookupISRC(ctx, isrc)
	if err != nil || track == nil {
		return false, err
	}
	if err := t.AddTrack(ctx, playlist, strconv.FormatInt(track.ID, 10)); err != nil {
		return false, err
	}
	return true, nil
}

// AddTrack appends trackID to the end of playlist.
func (t *TidalDestination) AddTrack(ctx context.Context, playlist models.PlaylistHandle, trackID string) error {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return err
	}

	path := "/playlists/" + url.PathEscape(playlist.ID)
	header, err := t.doRequest(ctx, http.MethodGet, path, t.query(s, nil), nil, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to read playlist %s: %w", playlist.ID, err)
	}

	form := url.Values{
		"trackIds":           {trackID},
		"onDupes":            {"ADD"},
		"onArtifactNotFound": {"FAIL"},
	}
	extra := http.Header{}
	if etag := header.Get("ETag"); etag != "" {
		extra.Set("If-None-Match", etag)
	}

	if _, err := t.doRequest(ctx, http.MethodPost, path+"/items", t.query(s, nil), form, extra, nil); err != nil {
		return fmt.Errorf("failed to add track %s to playlist %s: %w", trackID, playlist.ID, err)
	}
	return nil
}

// SearchTracks queries the catalog and keeps the server's ordering.
func (t *TidalDestination) SearchTracks(ctx context.Context, query string) ([]models.DestTrack, error) {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	q := t.query(s, url.Values{"query": {query}, "limit": {strconv.Itoa(t.searchLimit)}})
	var page tidalPage[TidalTrack]
	if _, err := t.doRequest(ctx, http.MethodGet, "/search/tracks", q, nil, nil, &page); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	out := make([]models.DestTrack, 0, len(page.Items))
	for _, tr := range page.Items {
		out = append(out, tr.toModel())
	}
	return out, nil
}

// AddFavoriteByISRC favorites the track with isrc; false when the catalog has no such track.
func (t *TidalDestination) AddFavoriteByISRC(ctx context.Context, isrc string) (bool, error) {
	track, err := t.lookupISRC(ctx, isrc)
	if err != nil || track == nil {
		return false, err
	}
	if err := t.AddFavorite(ctx, strconv.FormatInt(track.ID, 10)); err != nil {
		return false, err
	}
	return true, nil
}

// AddFavorite adds trackID to the user's favorite tracks.
func (t *TidalDestination) AddFavorite(ctx context.Context, trackID string) error {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return err
	}

	form := url.Values{"trackIds": {trackID}, "onArtifactNotFound": {"FAIL"}}
	path := fmt.Sprintf("/users/%d/favorites/tracks", s.UserID)
	if _, err := t.doRequest(ctx, http.MethodPost, path, t.query(s, nil), form, nil, nil); err != nil {
		return fmt.Errorf("failed to favorite track %s: %w", trackID, err)
	}
	return nil
}

// LookupISRC returns the catalog track for isrc, or nil when there is none. Nothing is modified.
func (t *TidalDestination) LookupISRC(ctx context.Context, isrc string) (*models.DestTrack, error) {
	track, err := t.lookupISRC(ctx, isrc)
	if err != nil || track == nil {
		return nil, err
	}
	m := track.toModel()
	return &m, nil
}

func (t *TidalDestination) lookupISRC(ctx context.Context, isrc string) (*TidalTrack, error) {
	s, err := t.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var page tidalPage[TidalTrack]
	_, err = t.doRequest(ctx, http.MethodGet, "/tracks", t.query(s, url.Values{"isrc": {isrc}}), nil, nil, &page)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up isrc %s: %w", isrc, err)
	}

	for i := range page.Items {
		if strings.EqualFold(page.Items[i].ISRC, isrc) {
			return &page.Items[i], nil
		}
	}
	return nil, nil
}

func (t *TidalDestination) findPlaylist(ctx context.Context, s *tidalSession, name string) (*models.PlaylistHandle, error) {
	const limit = 50
	for offset := 0; ; offset += limit {
		q := t.query(s, url.Values{"limit": {strconv.Itoa(limit)}, "offset": {strconv.Itoa(offset)}})
		var page tidalPage[TidalPlaylist]
		if _, err := t.doRequest(ctx, http.MethodGet, fmt.Sprintf("/users/%d/playlists", s.UserID), q, nil, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}

		for _, p := range page.Items {
			if p.Title == name {
				return &models.PlaylistHandle{ID: p.UUID, Name: p.Title}, nil
			}
		}

		if len(page.Items) < limit || offset+limit >= page.TotalNumberOfItems {
			return nil, nil
		}
	}
}

func (t *TidalDestination) ensureSession(ctx context.Context) (*tidalSession, error) {
	if t.session != nil {
		return t.session, nil
	}

	var s tidalSession
	if _, err := t.doRequest(ctx, http.MethodGet, "/sessions", nil, nil, nil, &s); err != nil {
		return nil, fmt.Errorf("failed to resolve tidal session: %w", err)
	}
	if s.UserID == 0 {
		return nil, fmt.Errorf("%w: session has no user", shared.ErrNotAuthenticated)
	}

	var user struct {
		Username string `json:"username"`
	}
	if _, err := t.doRequest(ctx, http.MethodGet, fmt.Sprintf("/users/%d", s.UserID), t.query(&s, nil), nil, nil, &user); err != nil {
		return nil, fmt.Errorf("failed to load tidal user: %w", err)
	}
	s.Username = user.Username

	t.session = &s
	return t.session, nil
}

func (t *TidalDestination) query(s *tidalSession, q url.Values) url.Values {
	if q == nil {
		q = url.Values{}
	}
	if s != nil && s.CountryCode != "" {
		q.Set("countryCode", s.CountryCode)
	}
	return q
}

// doRequest performs one paced, retried API call and decodes a JSON body into result when non-nil.
func (t *TidalDestination) doRequest(ctx context.Context, method, path string, query, form url.Values, header http.Header, result any) (http.Header, error) {
	var respHeader http.Header
	err := t.opts.call(ctx, func() error {
		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}

		apiURL := t.baseURL + path
		if len(query) > 0 {
			apiURL += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, apiURL, body)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return classifyTransportError(err)
		}
		defer resp.Body.Close()

		if err := tidalStatusError(resp); err != nil {
			return err
		}

		respHeader = resp.Header
		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}
		return nil
	})
	return respHeader, err
}

func tidalStatusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp struct {
		Status      int    `json:"status"`
		UserMessage string `json:"userMessage"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", shared.ErrTokenExpired, errResp.UserMessage)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", shared.ErrAuthFailed, errResp.UserMessage)
	case http.StatusTooManyRequests:
		return &shared.RateLimitError{Service: "tidal", RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	default:
		return &StatusError{Service: "tidal", Status: resp.StatusCode, Message: errResp.UserMessage}
	}
}

func classifyTransportError(err error) error {
	var retrieve *oauth2.RetrieveError
	if errors.As(err, &retrieve) {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	return fmt.Errorf("request failed: %w", err)
}

// parseRetryAfter accepts either delay-seconds or an HTTP date.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func isNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusNotFound
}

func (tr TidalTrack) toModel() models.DestTrack {
	artists := make([]string, 0, len(tr.Artists))
	for _, a := range tr.Artists {
		artists = append(artists, a.Name)
	}
	return models.DestTrack{
		ID:      strconv.FormatInt(tr.ID, 10),
		Title:   tr.Title,
		Artists: artists,
		Album:   tr.Album.Title,
		ISRC:    tr.ISRC,
	}
}
