package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/services"
	"github.com/desertthunder/spotidal/internal/shared"
	"github.com/desertthunder/spotidal/internal/tasks"
	tu "github.com/desertthunder/spotidal/internal/testing"
	"golang.org/x/oauth2"
)

func seqOf[T any](items []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
	}
}

type fakeSpotify struct {
	playlists []models.Playlist
	tracks    map[string][]models.Track
	liked     []models.LikedTrack
	top       []models.Track
	artists   []models.Artist
	gotRange  models.TimeRange
	gotLimit  int
}

func (f *fakeSpotify) Name() string { return "Spotify" }

func (f *fakeSpotify) CurrentUser(context.Context) (string, error) { return "alice", nil }

func (f *fakeSpotify) ListPlaylists(context.Context) iter.Seq2[models.Playlist, error] {
	return seqOf(f.playlists)
}

func (f *fakeSpotify) ListPlaylistTracks(_ context.Context, id string) iter.Seq2[models.Track, error] {
	return seqOf(f.tracks[id])
}

func (f *fakeSpotify) ListLikedTracks(context.Context) iter.Seq2[models.LikedTrack, error] {
	return seqOf(f.liked)
}

func (f *fakeSpotify) TopTracks(_ context.Context, tr models.TimeRange, limit int) ([]models.Track, error) {
	f.gotRange, f.gotLimit = tr, limit
	return f.top, nil
}

func (f *fakeSpotify) TopArtists(_ context.Context, tr models.TimeRange, limit int) ([]models.Artist, error) {
	f.gotRange, f.gotLimit = tr, limit
	return f.artists, nil
}

func (f *fakeSpotify) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "fresh-spotify", RefreshToken: "r"}, nil
}

type fakeTidal struct {
	byISRC    map[string]models.DestTrack
	search    map[string][]models.DestTrack
	created   []string
	added     map[string][]string
	favorites []string
	queries   []string
}

func newFakeTidal() *fakeTidal {
	return &fakeTidal{
		byISRC: map[string]models.DestTrack{},
		search: map[string][]models.DestTrack{},
		added:  map[string][]string{},
	}
}

func (f *fakeTidal) Name() string { return "Tidal" }

func (f *fakeTidal) CurrentUser(context.Context) (string, error) { return "bob", nil }

func (f *fakeTidal) CreatePlaylist(_ context.Context, name, _ string) (models.PlaylistHandle, error) {
	f.created = append(f.created, name)
	return models.PlaylistHandle{ID: "pl-" + name, Name: name}, nil
}

func (f *fakeTidal) AddTrackByISRC(_ context.Context, pl models.PlaylistHandle, isrc string) (bool, error) {
	if _, ok := f.byISRC[isrc]; !ok {
		return false, nil
	}
	f.added[pl.ID] = append(f.added[pl.ID], isrc)
	return true, nil
}

func (f *fakeTidal) AddTrack(_ context.Context, pl models.PlaylistHandle, id string) error {
	f.added[pl.ID] = append(f.added[pl.ID], id)
	return nil
}

func (f *fakeTidal) SearchTracks(_ context.Context, query string) ([]models.DestTrack, error) {
	f.queries = append(f.queries, query)
	return f.search[query], nil
}

func (f *fakeTidal) AddFavoriteByISRC(_ context.Context, isrc string) (bool, error) {
	if _, ok := f.byISRC[isrc]; !ok {
		return false, nil
	}
	f.favorites = append(f.favorites, isrc)
	return true, nil
}

func (f *fakeTidal) AddFavorite(_ context.Context, id string) error {
	f.favorites = append(f.favorites, id)
	return nil
}

func (f *fakeTidal) LookupISRC(_ context.Context, isrc string) (*models.DestTrack, error) {
	if t, ok := f.byISRC[isrc]; ok {
		return &t, nil
	}
	return nil, nil
}

func (f *fakeTidal) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "fresh-tidal"}, nil
}

type harness struct {
	runner  *Runner
	out     *bytes.Buffer
	dir     string
	path    string
	spotify *fakeSpotify
	tidal   *fakeTidal
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := shared.DefaultConfig()
	cfg.Credentials.Spotify.ClientID = "sp-id"
	cfg.Credentials.Spotify.ClientSecret = "sp-secret"
	cfg.Credentials.Tidal.ClientID = "td-id"
	cfg.Database.Path = filepath.Join(dir, "runs.db")
	cfg.Migration.RequestsPerSecond = 0
	if err := shared.SaveConfig(path, cfg); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	h := &harness{out: &bytes.Buffer{}, dir: dir, path: path, spotify: &fakeSpotify{}, tidal: newFakeTidal()}
	h.runner = NewRunner(RunnerOpts{
		Logger: log.New(io.Discard),
		Output: h.out,
		Spotify: func(context.Context, *shared.Config, services.ClientOptions) (SpotifyClient, error) {
			return h.spotify, nil
		},
		Tidal: func(context.Context, *shared.Config, services.ClientOptions) (TidalClient, error) {
			return h.tidal, nil
		},
		Browser: func(string) error { return nil },
	})
	return h
}

func (h *harness) run(args ...string) error {
	return newApp(h.runner).Run(context.Background(), append([]string{"spotidal", "--config", h.path}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil options uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.spotify == nil || runner.tidal == nil || runner.tidalAuth == nil || runner.browser == nil {
				t.Error("expected default factories to be set")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{ConfigPath: "/test/path/config.toml"})
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{Output: output})

		if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result := output.String(); !strings.Contains(result, `"key": "value"`) || !strings.HasSuffix(result, "\n") {
			t.Errorf("unexpected JSON output %q", result)
		}

		if err := runner.writeJSON(make(chan int), false); err == nil {
			t.Error("expected marshal error")
		}
	})

	t.Run("write errors", func(t *testing.T) {
		tests := []struct {
			name   string
			output io.Writer
			write  func(r *Runner) error
		}{
			{"writePlain", &tu.FWriter{}, func(r *Runner) error { return r.writePlain("x") }},
			{"writePlainln", &tu.FWriter{}, func(r *Runner) error { return r.writePlainln("x") }},
			{"writeBytes", &tu.FWriter{}, func(r *Runner) error { return r.writeBytes([]byte("x")) }},
			{"writeJSON newline", tu.NewLimitedWriter(1, io.Discard), func(r *Runner) error { return r.writeJSON(1, false) }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.write(NewRunner(RunnerOpts{Output: tt.output})); err == nil {
					t.Error("expected write error")
				}
			})
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		t.Run("applies environment overrides", func(t *testing.T) {
			h := newHarness(t)
			t.Setenv("TIDAL_CLIENT_ID", "env-id")

			if err := h.run("history", "--limit", "1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := h.runner.config.Credentials.Tidal.ClientID; got != "env-id" {
				t.Errorf("expected env override, got %q", got)
			}
			if h.runner.configPath != h.path {
				t.Errorf("expected config path %q, got %q", h.path, h.runner.configPath)
			}
		})

		t.Run("missing file uses defaults", func(t *testing.T) {
			h := newHarness(t)
			h.path = filepath.Join(h.dir, "absent.toml")

			err := h.run("spotify", "playlists")
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("invalid file fails", func(t *testing.T) {
			h := newHarness(t)
			if err := os.WriteFile(h.path, []byte("not = [toml"), 0600); err != nil {
				t.Fatal(err)
			}
			if err := h.run("spotify", "playlists"); err == nil {
				t.Error("expected parse error")
			}
		})
	})
}

func TestSetup(t *testing.T) {
	t.Run("creates config from template", func(t *testing.T) {
		h := newHarness(t)
		h.path = filepath.Join(h.dir, "fresh.toml")

		if err := h.run("setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, h.path)
		if !strings.Contains(tu.MustReadFile(t, h.path), "[migration]") {
			t.Error("expected template contents in created config")
		}
		for _, want := range []string{"Created " + h.path, "Next steps:", "spotidal migrate"} {
			if !strings.Contains(h.out.String(), want) {
				t.Errorf("expected %q in output:\n%s", want, h.out.String())
			}
		}
	})

	t.Run("initializes journal when enabled", func(t *testing.T) {
		h := newHarness(t)
		cfg, err := shared.LoadConfig(h.path)
		if err != nil {
			t.Fatal(err)
		}
		cfg.Database.Enabled = true
		if err := shared.SaveConfig(h.path, cfg); err != nil {
			t.Fatal(err)
		}

		if err := h.run("setup"); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		tu.AssertFileExists(t, cfg.Database.Path)
		if strings.Contains(h.out.String(), "Created") {
			t.Error("existing config must not be recreated")
		}
	})
}

func TestSpotifyCommands(t *testing.T) {
	t.Run("playlists", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.playlists = []models.Playlist{{ID: "p1", Name: "Road", TrackCount: 2}, {ID: "p2", Name: "Gym", TrackCount: 10}}

		if err := h.run("spotify", "playlists"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, "1. Road (2 Tracks)") || !strings.Contains(out, "2. Gym (10 Tracks)") {
			t.Errorf("unexpected output:\n%s", out)
		}

		saved, err := shared.LoadConfig(h.path)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if saved.Credentials.Spotify.AccessToken != "fresh-spotify" {
			t.Errorf("expected refreshed token to be saved, got %q", saved.Credentials.Spotify.AccessToken)
		}
	})

	t.Run("playlists json", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.playlists = []models.Playlist{{ID: "p1", Name: "Road"}}

		if err := h.run("spotify", "playlists", "--json"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var got []models.Playlist
		if err := json.Unmarshal(h.out.Bytes(), &got); err != nil {
			t.Fatalf("output is not JSON: %v", err)
		}
		if len(got) != 1 || got[0].ID != "p1" {
			t.Errorf("unexpected playlists %+v", got)
		}
	})

	t.Run("liked honours limit", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.liked = []models.LikedTrack{
			{Track: models.Track{Title: "One", Artists: []string{"A"}}},
			{Track: models.Track{Title: "Two", Artists: []string{"B"}}},
		}

		if err := h.run("spotify", "liked", "--limit", "1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, "A - One") || strings.Contains(out, "Two") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("top tracks", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.top = []models.Track{{Title: "Hit", Artists: []string{"Star"}}}

		if err := h.run("spotify", "top-tracks", "--range", "short", "--limit", "5"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if h.spotify.gotRange != models.ShortTerm || h.spotify.gotLimit != 5 {
			t.Errorf("unexpected request range=%s limit=%d", h.spotify.gotRange, h.spotify.gotLimit)
		}
		if out := h.out.String(); !strings.Contains(out, "LAST 4 WEEKS") || !strings.Contains(out, "Star - Hit") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("top artists", func(t *testing.T) {
		h := newHarness(t)
		h.spotify.artists = []models.Artist{{Name: "Star", Genres: []string{"pop"}}}

		if err := h.run("spotify", "top-artists", "--range", "long"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, "ALL TIME") || !strings.Contains(out, "Star (pop)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("invalid range", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("spotify", "top-tracks", "--range", "decade"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestCallbackPath(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"http://127.0.0.1:8080/callback", "/callback"},
		{"http://localhost:3000/auth/spotify", "/auth/spotify"},
		{"http://localhost:3000", "/callback"},
		{"", "/callback"},
	}

	for _, tt := range tests {
		if got := callbackPath(tt.uri); got != tt.want {
			t.Errorf("callbackPath(%q) = %q, want %q", tt.uri, got, tt.want)
		}
	}
}

func TestTidalCommands(t *testing.T) {
	song := models.DestTrack{ID: "t-1", Title: "Song", Artists: []string{"Band"}, ISRC: "US1"}

	t.Run("search", func(t *testing.T) {
		h := newHarness(t)
		h.tidal.search["song"] = []models.DestTrack{song}

		if err := h.run("tidal", "search", "song"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out := h.out.String(); !strings.Contains(out, "1. Band - Song [US1]  (id t-1)") {
			t.Errorf("unexpected output:\n%s", out)
		}
	})

	t.Run("search requires query", func(t *testing.T) {
		h := newHarness(t)
		if err := h.run("tidal", "search"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("match", func(t *testing.T) {
		tests := []struct {
			name     string
			args     []string
			setup    func(f *fakeTidal)
			contains []string
		}{
			{
				name:     "by isrc",
				args:     []string{"--title", "Song", "--isrc", "US1"},
				setup:    func(f *fakeTidal) { f.byISRC["US1"] = song },
				contains: []string{"Matched via isrc", "(id t-1)"},
			},
			{
				name:     "by search",
				args:     []string{"--title", "Song", "--artist", "Band", "--strategy", "title_artist"},
				setup:    func(f *fakeTidal) { f.search["Song Band"] = []models.DestTrack{song} },
				contains: []string{"Query: Song Band", "Matched via search", "Similarity: 1.00"},
			},
			{
				name:     "not found",
				args:     []string{"--title", "Missing"},
				setup:    func(*fakeTidal) {},
				contains: []string{"Not found"},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h := newHarness(t)
				tt.setup(h.tidal)

				if err := h.run(append([]string{"tidal", "match"}, tt.args...)...); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				out := h.out.String()
				for _, want := range tt.contains {
					if !strings.Contains(out, want) {
						t.Errorf("expected %q in output:\n%s", want, out)
					}
				}
				if len(h.tidal.added) != 0 || len(h.tidal.favorites) != 0 {
					t.Error("match must not modify the library")
				}
			})
		}
	})

	t.Run("login", func(t *testing.T) {
		mux := http.NewServeMux()
		mux.HandleFunc("POST /device_authorization", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"deviceCode": "dev", "userCode": "ABCDE", "verificationUri": "link.tidal.com",
				"expiresIn": 300, "interval": 1,
			})
		})
		mux.HandleFunc("POST /token", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "access", "refresh_token": "refresh", "token_type": "Bearer", "expires_in": 3600,
			})
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		h := newHarness(t)
		var opened string
		h.runner.browser = func(url string) error { opened = url; return nil }
		h.runner.tidalAuth = func(cfg shared.TidalConfig) *services.TidalAuth {
			return services.NewTidalAuthWithURL(cfg, srv.URL, srv.Client())
		}

		if err := h.run("tidal", "login"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if opened != "https://link.tidal.com" {
			t.Errorf("unexpected browser URL %q", opened)
		}
		if !strings.Contains(h.out.String(), "ABCDE") {
			t.Errorf("expected user code in output:\n%s", h.out.String())
		}

		saved, err := shared.LoadConfig(h.path)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}
		if saved.Credentials.Tidal.AccessToken != "access" || saved.Credentials.Tidal.RefreshToken != "refresh" {
			t.Errorf("unexpected stored token %+v", saved.Credentials.Tidal.OAuthToken)
		}
	})
}

func migrationHarness(t *testing.T) *harness {
	h := newHarness(t)
	h.spotify.playlists = []models.Playlist{
		{ID: "p1", Name: "Road", TrackCount: 2},
		{ID: "p2", Name: "Gym", TrackCount: 1},
	}
	h.spotify.tracks = map[string][]models.Track{
		"p1": {
			{Title: "Known", Artists: []string{"A"}, ISRC: "US1"},
			{Title: "Searched", Artists: []string{"B"}},
		},
		"p2": {{Title: "Other", Artists: []string{"C"}}},
	}
	h.spotify.liked = []models.LikedTrack{{Track: models.Track{Title: "Lost", Artists: []string{"D"}, ISRC: "XX9"}}}

	h.tidal.byISRC["US1"] = models.DestTrack{ID: "t-1", ISRC: "US1"}
	h.tidal.search["Searched"] = []models.DestTrack{{ID: "t-2", Title: "Searched"}}
	return h
}

func TestMigrate(t *testing.T) {
	t.Run("selected playlist and liked tracks", func(t *testing.T) {
		h := migrationHarness(t)
		csvPath := filepath.Join(h.dir, "missing.csv")

		err := h.run("migrate", "--no-tui", "--playlist", "road", "--liked", "--unmatched", csvPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(h.tidal.created) != 1 || h.tidal.created[0] != "Road" {
			t.Errorf("expected only Road to be created, got %v", h.tidal.created)
		}
		if got := strings.Join(h.tidal.added["pl-Road"], ","); got != "US1,t-2" {
			t.Errorf("expected tracks in source order, got %q", got)
		}
		if len(h.tidal.favorites) != 0 {
			t.Errorf("expected no favorites, got %v", h.tidal.favorites)
		}

		out := h.out.String()
		for _, want := range []string{"Signed in to Spotify as alice", "Playlist: Road", "Liked Tracks", "Not found (1)", "Status: DONE"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}

		tu.AssertFileExists(t, csvPath)
		csv := tu.MustReadFile(t, csvPath)
		if !strings.Contains(csv, "Lost") || strings.Contains(csv, "Searched") {
			t.Errorf("unexpected unmatched CSV:\n%s", csv)
		}
	})

	t.Run("unknown playlist fails", func(t *testing.T) {
		h := migrationHarness(t)

		err := h.run("migrate", "--no-tui", "--playlist", "nope")
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Fatalf("expected ErrPlaylistNotFound, got %v", err)
		}
		if len(h.tidal.created) != 0 {
			t.Errorf("expected no playlists created, got %v", h.tidal.created)
		}
		if !strings.Contains(h.out.String(), "FAILED") {
			t.Errorf("expected failed report:\n%s", h.out.String())
		}
	})

	t.Run("nothing selected", func(t *testing.T) {
		h := migrationHarness(t)

		if err := h.run("migrate", "--no-tui"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(h.tidal.created) != 0 || len(h.tidal.queries) != 0 {
			t.Error("expected no destination calls")
		}
		if !strings.Contains(h.out.String(), "Nothing was migrated.") {
			t.Errorf("unexpected output:\n%s", h.out.String())
		}
		tu.AssertNoFile(t, filepath.Join(h.dir, "runs.db"))
	})

	t.Run("invalid strategy", func(t *testing.T) {
		h := migrationHarness(t)
		if err := h.run("migrate", "--all-playlists", "--strategy", "fuzzy"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("journal and history", func(t *testing.T) {
		h := migrationHarness(t)

		if err := h.run("migrate", "--all-playlists", "--journal"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(h.tidal.created) != 2 {
			t.Errorf("expected 2 playlists, got %v", h.tidal.created)
		}

		h.out.Reset()
		if err := h.run("history"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := h.out.String()
		if !strings.Contains(out, "#1") || !strings.Contains(out, "done") || !strings.Contains(out, "Road") {
			t.Errorf("unexpected history:\n%s", out)
		}
	})
}

func TestPrintProgress(t *testing.T) {
	out := &bytes.Buffer{}
	r := NewRunner(RunnerOpts{Output: out})

	r.printProgress(tasks.ProgressUpdate{Phase: tasks.Authenticate, Message: "Signed in"})
	r.printProgress(tasks.ProgressUpdate{Phase: tasks.CreatePlaylist, Message: "Creating", Data: models.Playlist{Name: "Road"}})
	r.printProgress(tasks.ProgressUpdate{Phase: tasks.CreatePlaylist, Message: "Created", Data: models.PlaylistHandle{ID: "1"}})
	r.printProgress(tasks.ProgressUpdate{Phase: tasks.MatchTracks, Message: "[1/1] ✓ A - B"})

	want := "✓ Signed in\n\nCreating\nCreated\n   [1/1] ✓ A - B\n"
	if got := out.String(); got != want {
		t.Errorf("printProgress output = %q, want %q", got, want)
	}
}
