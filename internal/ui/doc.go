// Package ui implements the interactive selection prompts using bubbletea's Elm architecture.
//
// [Checklist] is a multi-select list: ↑/↓ (or k/j) move, space toggles, a selects everything
// (or clears it when everything is already selected), enter confirms and esc/q cancels.
// A cancelled prompt returns no selection, which the migrator treats as "nothing to do".
//
// [Selector] implements tasks.Selector with two checklists: one for the categories and one for the
// playlists, whose rows read "name (N Tracks)". While a prompt is open it holds the optional lock so
// progress output does not interleave with the prompt.
package ui
