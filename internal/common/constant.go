// Package common contains shared constants and sentinel errors used across
// examvault components.
package common

// AuthorizationHeaderName is the HTTP header carrying the bearer access token.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header value.
const BearerPrefix = "Bearer "

// RequestIDHeaderName carries the per-request correlation id. Incoming values
// are kept, otherwise the server generates one.
const RequestIDHeaderName = "X-Request-ID"
