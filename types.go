package portalguard

import (
	"encoding/json"
	"strings"
	"time"

	"portalguard/roles"
)

// User is the user payload returned by the identity API.
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	Name           string    `json:"name,omitempty"`
	FirstName      string    `json:"first_name,omitempty"`
	LastName       string    `json:"last_name,omitempty"`
	Role           roles.Raw `json:"role"`
	OrganizationID string    `json:"organization_id,omitempty"`
}

// UnmarshalJSON also accepts the camel-cased organizationId spelling some
// endpoints use.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	aux := struct {
		*plain
		OrganizationIDCamel string `json:"organizationId"`
	}{plain: (*plain)(u)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if u.OrganizationID == "" {
		u.OrganizationID = aux.OrganizationIDCamel
	}
	return nil
}

// FullName returns the display name, falling back to first/last name and
// then the username.
func (u *User) FullName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.FirstName != "" || u.LastName != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return u.Username
}

// TokenPair represents access and refresh tokens.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"` // Usually "Bearer"
	ExpiresIn    int64     `json:"expires_in,omitempty"` // Seconds until access token expires
	IssuedAt     time.Time `json:"issued_at,omitzero"`
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	TokenPair
	User User `json:"user"`
}

// Profile holds display-only principal fields.
type Profile struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Principal is the authenticated user with credentials and canonical role.
type Principal struct {
	RawRole        roles.Raw
	RoleKey        string
	OrganizationID string
	AccessToken    string
	RefreshToken   string
	Profile        Profile
}

// NewPrincipal builds a principal from a user payload and tokens. The role
// key is always derived from the raw role.
func NewPrincipal(user User, accessToken, refreshToken string) *Principal {
	return &Principal{
		RawRole:        user.Role,
		RoleKey:        roles.Normalize(user.Role),
		OrganizationID: strings.TrimSpace(user.OrganizationID),
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		Profile: Profile{
			ID:       user.ID,
			Name:     user.FullName(),
			Email:    user.Email,
			Username: user.Username,
		},
	}
}

// Clone returns a copy that can be handed to callers.
func (p *Principal) Clone() *Principal {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

// HasRole reports whether the principal's role matches key after normalization.
func (p *Principal) HasRole(key string) bool {
	if p == nil || p.RoleKey == "" {
		return false
	}
	return roles.EqualsKey(p.RawRole, key)
}

// AccessRequirement lists the canonical role keys allowed to use a guarded
// resource. Membership is the only rule; roles never inherit from each other.
type AccessRequirement struct {
	AllowedRoleKeys []string `json:"allowed_role_keys" mapstructure:"roles"`
}

// Require builds a requirement from role keys.
func Require(keys ...string) AccessRequirement {
	return AccessRequirement{AllowedRoleKeys: keys}
}

// IsEmpty reports whether the requirement lists no roles.
func (r AccessRequirement) IsEmpty() bool {
	return len(r.AllowedRoleKeys) == 0
}

// NavigationItem is one entry of a role's menu.
type NavigationItem struct {
	ID          string `json:"id" mapstructure:"id"`
	Label       string `json:"label" mapstructure:"label"`
	Path        string `json:"path" mapstructure:"path"`
	Icon        string `json:"icon,omitempty" mapstructure:"icon"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}
