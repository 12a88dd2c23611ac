// Package tasks runs library migrations with real-time progress reporting.
//
// # Migrator
//
// [Migrator] moves through Idle → Authenticating → Selecting → Migrating and ends in Done or Failed:
//
//  1. Authenticating: both clients resolve the signed-in user. Any failure ends the run before a
//     single mutation.
//  2. Selecting: the [Selector] picks categories and, for playlists, which ones. Nothing selected
//     ends the run as Done.
//  3. Migrating: each playlist is created on the destination (see the duplicate policy below) and
//     its tracks are matched and placed in source order. Liked tracks are matched into favorites.
//
// A track that does not match is recorded as not found. A track whose match fails with a
// non-fatal error is recorded as failed and the run continues. Errors accepted by [IsFatal] stop
// the current entity and the run ends Failed; entities already migrated stay on the destination.
//
// # Duplicate Playlists
//
// When the destination already has a playlist with the same name, "rename" tries "Name (2)",
// "Name (3)" and so on, while "reuse" appends to the existing playlist. The policy applies to
// every playlist in a run.
//
// # Progress Reporting
//
// Progress is sent on an optional channel of [ProgressUpdate] using select with default, so a slow
// consumer drops updates instead of stalling the migration.
package tasks
