// Package models defines the records that flow through a migration and the persistence interfaces
// for the optional run journal.
//
// Catalog records are converted from provider responses at the client boundary:
//   - [Track] : a recording with title, artists, album and an optional ISRC
//   - [Playlist] : name, description and the ordered tracks it owns
//   - [LikedTrack] : a saved track with the time it was added
//   - [DestTrack] : a candidate from the destination catalog
//   - [PlaylistHandle] : opaque reference to a playlist created on the destination
//
// Per-run results:
//   - [MatchResult] : Matched or NotFound for one source track
//   - [MigrationReport] : per-entity and overall counts, built while the run progresses
//
// [MigrationRun] is the only persistent entity. It implements [Model] and is stored through a
// [Repository] when the journal is enabled.
package models
