// Package auth provides API key middleware for the HTTP API.
//
// APIKey(mode, header, key) wraps an http.Handler and compares the named
// request header against key. When mode != "apikey" or key == "", all
// requests pass through, which keeps local development free of setup. A
// missing or wrong key gets 401 with a JSON error body.
package auth
