// Package services defines the [Source] and [Destination] interfaces for music streaming providers
// and implements them for Spotify and Tidal.
//
// # Spotify
//
// [SpotifySource] reads playlists, playlist tracks and liked tracks through the Spotify Web API
// (github.com/zmb3/spotify/v2). Authorization uses the code grant; the [oauth2.TokenSource] refreshes
// expired tokens and [SpotifySource.Token] exposes the refreshed token so callers can save it.
//
// Every List method returns an [iter.Seq2] that fetches one page per request on demand.
//
// # Tidal
//
// [TidalDestination] talks to the Tidal v1 REST API. The session (user id and country code) is
// resolved on first use. Playlist additions read the playlist ETag first and send it back with
// If-None-Match. [TidalAuth] runs the device authorization flow used by `spotidal tidal login`.
//
// # Request Policy
//
// Both clients share [ClientOptions]: requests are paced by a token bucket and rate-limited
// responses are retried with exponential backoff, honoring Retry-After when the server sends it.
//
// # Error Handling
//
// Provider failures are mapped onto the shared taxonomy:
//   - [shared.ErrTokenExpired], [shared.ErrAuthFailed], [shared.ErrRefreshFailed] : all match [shared.ErrAuth]
//   - [shared.ErrRateLimited] : retries were spent, see [shared.RateLimitError]
//   - [shared.ErrDuplicateName] : see [DuplicateNameError]
//   - [shared.ErrAPIRequest] : any other non-success response, see [StatusError]
package services
