package models

// MatchStatus tags a [MatchResult].
type MatchStatus int

const (
	Matched MatchStatus = iota
	NotFound
)

func (s MatchStatus) String() string {
	switch s {
	case Matched:
		return "matched"
	case NotFound:
		return "not_found"
	default:
		return ""
	}
}

// MatchVia records which path produced a match.
type MatchVia int

const (
	ViaNone MatchVia = iota
	ViaISRC
	ViaSearch
)

func (v MatchVia) String() string {
	switch v {
	case ViaISRC:
		return "isrc"
	case ViaSearch:
		return "search"
	default:
		return "none"
	}
}

// MatchResult is the outcome of resolving one source track against the destination catalog.
//
// A Matched result carries Dest; when Placed is set the track was already added by the
// identifier path and needs no further call. A NotFound result carries Reason.
type MatchResult struct {
	Status MatchStatus
	Source Track
	Dest   *DestTrack
	Via    MatchVia
	Placed bool
	Query  string
	Reason string
}

// MatchedResult builds a Matched result.
func MatchedResult(src Track, dest DestTrack, via MatchVia, placed bool) MatchResult {
	return MatchResult{Status: Matched, Source: src, Dest: &dest, Via: via, Placed: placed}
}

// NotFoundResult builds a NotFound result.
func NotFoundResult(src Track, query, reason string) MatchResult {
	return MatchResult{Status: NotFound, Source: src, Query: query, Reason: reason}
}

// IsMatched reports whether r is Matched.
func (r MatchResult) IsMatched() bool {
	return r.Status == Matched
}
