// Package auth provides authentication middleware for the slacknotify HTTP API.
//
// APIKey(mode, header, key, exempt...) wraps an http.Handler and validates the
// API key from the named request header.
//
// When mode != "apikey" or key == "", all requests pass through (useful for
// local development with auth disabled). When the key is incorrect or absent,
// the middleware answers 401 with a JSON error body. Paths listed in exempt
// (e.g. the health check) are never checked.
package auth
