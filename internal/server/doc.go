// Package server runs the short-lived localhost listener used by the Spotify authorization code grant.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [Middleware] wraps handlers in reverse order (last added executes first), and the
// [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
// [Logging] records one debug line per request without the query string.
//
// # OAuth Callback Handler
//
// [OAuthHandler] validates the state parameter, exchanges the authorization code through an
// [Exchanger] and sends the result through a channel. It only processes one callback.
//
// [WaitForToken] starts an [http.Server] for the handler, blocks until a token, an error or
// context cancellation, and shuts the listener down before returning.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
