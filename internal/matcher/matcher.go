// Package matcher resolves source tracks to destination catalog tracks.
//
// A track with an ISRC is first offered to the destination by identifier. When the track has no
// ISRC, or the destination does not know it, the matcher falls back to a text search and takes a
// candidate from the results. Matching is stateless per track.
package matcher

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotidal/internal/models"
	"github.com/desertthunder/spotidal/internal/shared"
)

// Strategy selects how the fallback search query is built.
type Strategy string

const (
	SearchTitle       Strategy = shared.StrategyTitle       // Title only
	SearchTitleArtist Strategy = shared.StrategyTitleArtist // Title followed by the primary artist
)

// Pick selects which search candidate becomes the match.
type Pick string

const (
	PickFirst Pick = shared.CandidateFirst // Destination's top-ranked result
	PickBest  Pick = shared.CandidateBest  // Highest Jaro-Winkler similarity above the threshold
)

const (
	ReasonNoMatch   = "no identifier match and no search result"
	ReasonNoTitle   = "no identifier match and no title to search"
	reasonTooFarFmt = "no search result above similarity %.2f"
)

// Target is where a matched track is placed: a destination playlist or the favorites collection.
type Target interface {
	// AddByISRC places the track with isrc; false when the destination has no such track.
	AddByISRC(ctx context.Context, isrc string) (bool, error)
	// AddByID places a destination track found by search.
	AddByID(ctx context.Context, id string) error
}

// Catalog is the search side of the destination.
type Catalog interface {
	SearchTracks(ctx context.Context, query string) ([]models.DestTrack, error)
}

// ISRCLookup is implemented by catalogs that can resolve an identifier without modifying anything.
type ISRCLookup interface {
	LookupISRC(ctx context.Context, isrc string) (*models.DestTrack, error)
}

// Options configures a [Matcher].
type Options struct {
	Strategy      Strategy
	Pick          Pick
	MinSimilarity float64
	Logger        *log.Logger
}

// OptionsFrom reads matcher options from the migration settings.
func OptionsFrom(cfg shared.MigrationConfig, logger *log.Logger) Options {
	return Options{
		Strategy:      Strategy(cfg.SearchStrategy),
		Pick:          Pick(cfg.Candidate),
		MinSimilarity: cfg.MinSimilarity,
		Logger:        logger,
	}
}

// Matcher maps one source track to zero or one destination track.
type Matcher struct {
	catalog Catalog
	opts    Options
	metric  *metrics.JaroWinkler
}

// New creates a matcher searching catalog. Unset options fall back to title search, first candidate
// and a similarity threshold of 0.85.
func New(catalog Catalog, opts Options) *Matcher {
	if opts.Strategy == "" {
		opts.Strategy = SearchTitle
	}
	if opts.Pick == "" {
		opts.Pick = PickFirst
	}
	if opts.MinSimilarity <= 0 {
		opts.MinSimilarity = 0.85
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}

	jw := metrics.NewJaroWinkler()
	jw.CaseSensitive = false
	return &Matcher{catalog: catalog, opts: opts, metric: jw}
}

// Strategy returns the configured search strategy.
func (m *Matcher) Strategy() Strategy { return m.opts.Strategy }

// Match resolves track and places it into target.
//
// The identifier path never searches when the destination accepts the ISRC. A search match is
// placed with [Target.AddByID]. Errors from the target or catalog are returned as-is; a track that
// cannot be resolved is a NotFound result, not an error.
func (m *Matcher) Match(ctx context.Context, track models.Track, target Target) (models.MatchResult, error) {
	if track.HasISRC() {
		ok, err := target.AddByISRC(ctx, track.ISRC)
		if err != nil {
			return models.MatchResult{}, err
		}
		if ok {
			m.opts.Logger.Debug("matched by isrc", "track", track.String(), "isrc", track.ISRC)
			return models.MatchedResult(track, models.DestTrack{ISRC: track.ISRC}, models.ViaISRC, true), nil
		}
	}

	res, err := m.search(ctx, track)
	if err != nil || !res.IsMatched() {
		return res, err
	}

	if err := target.AddByID(ctx, res.Dest.ID); err != nil {
		return models.MatchResult{}, err
	}
	res.Placed = true
	return res, nil
}

// Lookup resolves track without placing it anywhere.
func (m *Matcher) Lookup(ctx context.Context, track models.Track) (models.MatchResult, error) {
	if lookup, ok := m.catalog.(ISRCLookup); ok && track.HasISRC() {
		dest, err := lookup.LookupISRC(ctx, track.ISRC)
		if err != nil {
			return models.MatchResult{}, err
		}
		if dest != nil {
			return models.MatchedResult(track, *dest, models.ViaISRC, false), nil
		}
	}
	return m.search(ctx, track)
}

// Query builds the fallback search text for track.
func (m *Matcher) Query(track models.Track) string {
	title := strings.TrimSpace(track.Title)
	if m.opts.Strategy == SearchTitleArtist {
		if artist := track.PrimaryArtist(); artist != "" && title != "" {
			return title + " " + artist
		}
	}
	return title
}

func (m *Matcher) search(ctx context.Context, track models.Track) (models.MatchResult, error) {
	query := m.Query(track)
	if query == "" {
		return models.NotFoundResult(track, "", ReasonNoTitle), nil
	}

	candidates, err := m.catalog.SearchTracks(ctx, query)
	if err != nil {
		return models.MatchResult{}, err
	}
	if len(candidates) == 0 {
		m.opts.Logger.Debug("no search results", "track", track.String(), "query", query)
		return models.NotFoundResult(track, query, ReasonNoMatch), nil
	}

	best, ok := m.pick(track, candidates)
	if !ok {
		return models.NotFoundResult(track, query, fmt.Sprintf(reasonTooFarFmt, m.opts.MinSimilarity)), nil
	}

	res := models.MatchedResult(track, best, models.ViaSearch, false)
	res.Query = query
	return res, nil
}

func (m *Matcher) pick(track models.Track, candidates []models.DestTrack) (models.DestTrack, bool) {
	if m.opts.Pick != PickBest {
		return candidates[0], true
	}

	want := shared.NormalizeText(track.PrimaryArtist() + " " + track.Title)
	var best models.DestTrack
	var highest float64
	for _, c := range candidates {
		got := shared.NormalizeText(firstOf(c.Artists) + " " + c.Title)
		score := m.Similarity(want, got)
		if score >= m.opts.MinSimilarity && score > highest {
			best, highest = c, score
		}
	}
	return best, highest > 0
}

// Similarity scores a against b between 0 and 1.
func (m *Matcher) Similarity(a, b string) float64 {
	return strutil.Similarity(a, b, m.metric)
}

func firstOf(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
