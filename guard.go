// Package portalguard provides role resolution, route authorization and the
// authenticated session lifecycle for the visitor management dashboard, with
// pluggable identity and persistence backends.
package portalguard

import "context"

// IdentityAPI is the remote identity service the session talks to.
type IdentityAPI interface {
	// Login exchanges credentials for a token pair and the user payload.
	Login(ctx context.Context, credentials PasswordCredentials) (*LoginResult, error)

	// CurrentUser confirms an access token and returns the current user.
	CurrentUser(ctx context.Context, accessToken string) (*User, error)

	// Refresh exchanges a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)

	// Logout invalidates the access token remotely (best effort).
	Logout(ctx context.Context, accessToken string) error
}

// SessionStore persists the three session slots between process runs.
// Implementations treat the user payload as an opaque blob.
type SessionStore interface {
	// Save writes the non-empty slots of entry and leaves the others untouched.
	Save(ctx context.Context, entry SessionEntry) error

	// Load returns whatever slots exist; a missing session is an empty entry.
	Load(ctx context.Context) (SessionEntry, error)

	// Clear removes all slots. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}

// SessionEntry holds the persisted session slots.
type SessionEntry struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	User         []byte `json:"user,omitempty"`
}

// IsEmpty reports whether no slot is populated.
func (e SessionEntry) IsEmpty() bool {
	return e.AccessToken == "" && e.RefreshToken == "" && len(e.User) == 0
}
