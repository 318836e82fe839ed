package portalguard

import "errors"

// Session and identity errors
var (
	// ErrInvalidCredentials indicates the identity API rejected a login
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNetwork indicates a transient connectivity failure
	ErrNetwork = errors.New("network error")

	// ErrRefreshFailed indicates the refresh token was rejected or could not be used
	ErrRefreshFailed = errors.New("refresh failed")

	// ErrTokenRejected indicates the identity API refused an access token
	ErrTokenRejected = errors.New("access token rejected")

	// ErrUnknownRole indicates role data did not resolve to a registered role
	ErrUnknownRole = errors.New("unknown role")

	// ErrSessionClosed indicates the session ended while an operation was in flight
	ErrSessionClosed = errors.New("session closed")

	// ErrNoSession indicates there is no authenticated principal
	ErrNoSession = errors.New("no session")
)
