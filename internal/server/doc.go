// Package server runs the short-lived localhost listener that receives the Spotify OAuth redirect.
//
// A [BasicRouter] maps "METHOD path" patterns onto an [http.ServeMux] and wraps each handler in
// the registered [Middleware]. [OAuthHandler] is a [Handler]: it reports its own callback route,
// checks the state, exchanges the code using PKCE and publishes one [OAuthResult].
//
// `qbsync spotify auth` binds a [CallbackServer] to the host and port of the configured redirect
// URI, opens the consent page and shuts the server down after the first callback.
package server
