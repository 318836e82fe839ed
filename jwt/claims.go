package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the token_type claim.
const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

// Claims is the decoded content of a portal token.
type Claims struct {
	UserID         string
	Username       string
	RoleKey        string
	OrganizationID string
	TokenType      string
	TokenID        string
	Issuer         string
	Audience       string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	NotBefore      time.Time
}

// IsAccessToken reports whether the claims belong to an access token.
func (c *Claims) IsAccessToken() bool { return c.TokenType == AccessToken }

// IsRefreshToken reports whether the claims belong to a refresh token.
func (c *Claims) IsRefreshToken() bool { return c.TokenType == RefreshToken }

// wireClaims is the JSON shape signed into the token.
type wireClaims struct {
	jwt.RegisteredClaims
	Username       string `json:"username,omitempty"`
	Role           string `json:"role,omitempty"`
	OrganizationID string `json:"organization_id,omitempty"`
	TokenType      string `json:"token_type,omitempty"`
}

func newWireClaims(c *Claims) *wireClaims {
	w := &wireClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.Issuer,
			Subject:   c.UserID,
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			NotBefore: jwt.NewNumericDate(c.NotBefore),
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ID:        c.TokenID,
		},
		Username:       c.Username,
		Role:           c.RoleKey,
		OrganizationID: c.OrganizationID,
		TokenType:      c.TokenType,
	}
	if c.Audience != "" {
		w.Audience = jwt.ClaimStrings{c.Audience}
	}
	return w
}

func (w *wireClaims) claims() *Claims {
	c := &Claims{
		UserID:         w.Subject,
		Username:       w.Username,
		RoleKey:        w.Role,
		OrganizationID: w.OrganizationID,
		TokenType:      w.TokenType,
		TokenID:        w.ID,
		Issuer:         w.Issuer,
	}
	if w.ExpiresAt != nil {
		c.ExpiresAt = w.ExpiresAt.Time
	}
	if w.NotBefore != nil {
		c.NotBefore = w.NotBefore.Time
	}
	if w.IssuedAt != nil {
		c.IssuedAt = w.IssuedAt.Time
	}
	if len(w.Audience) > 0 {
		c.Audience = w.Audience[0]
	}
	return c
}
