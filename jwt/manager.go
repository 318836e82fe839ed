// Package jwt issues and validates the portal's signed tokens.
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"portalguard"
)

// Manager handles JWT token operations.
type Manager struct {
	config     Config
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	now        func() time.Time
}

// NewManager creates a new JWT manager with the given configuration.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	manager := &Manager{config: config, now: time.Now}

	if config.Algorithm == RS256 {
		privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		manager.privateKey = privateKey

		if config.PublicKey != "" {
			publicKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(config.PublicKey))
			if err != nil {
				return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
			}
			manager.publicKey = publicKey
		} else {
			manager.publicKey = &privateKey.PublicKey
		}
	}

	return manager, nil
}

// GenerateTokens creates an access and a refresh token for user.
func (m *Manager) GenerateTokens(user portalguard.User) (*portalguard.TokenPair, error) {
	now := m.now()
	roleKey := portalguard.NewPrincipal(user, "", "").RoleKey

	accessToken, err := m.sign(&Claims{
		UserID:         user.ID,
		Username:       user.Username,
		RoleKey:        roleKey,
		OrganizationID: user.OrganizationID,
		TokenType:      AccessToken,
		TokenID:        uuid.NewString(),
		Issuer:         m.config.Issuer,
		Audience:       m.config.Audience,
		IssuedAt:       now,
		NotBefore:      now,
		ExpiresAt:      now.Add(m.config.AccessTokenExpiry),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := m.sign(&Claims{
		UserID:    user.ID,
		TokenType: RefreshToken,
		TokenID:   uuid.NewString(),
		Issuer:    m.config.Issuer,
		Audience:  m.config.Audience,
		IssuedAt:  now,
		NotBefore: now,
		ExpiresAt: now.Add(m.config.RefreshTokenExpiry),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &portalguard.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.config.AccessTokenExpiry.Seconds()),
		IssuedAt:     now,
	}, nil
}

// ValidateToken verifies signature and time claims and returns the claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithLeeway(m.config.ClockSkew),
		jwt.WithTimeFunc(m.now),
	}
	if m.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(m.config.Audience))
	}

	token, err := jwt.ParseWithClaims(tokenString, &wireClaims{}, m.keyFunc, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, fmt.Errorf("%w: %v", ErrTokenNotYetValid, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	w, ok := token.Claims.(*wireClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return w.claims(), nil
}

// ValidateTokenType is ValidateToken plus a check of the token_type claim.
func (m *Manager) ValidateTokenType(tokenString, tokenType string) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != tokenType {
		return nil, fmt.Errorf("%w: got %q", ErrWrongTokenType, claims.TokenType)
	}
	return claims, nil
}

// ParseToken decodes a token without verifying it.
func ParseToken(tokenString string) (*Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &wireClaims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	w, ok := token.Claims.(*wireClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return w.claims(), nil
}

// ExpiresAt reads the exp claim of any JWT without verifying it. Opaque
// tokens and tokens without exp report false.
func ExpiresAt(tokenString string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (m *Manager) sign(claims *Claims) (string, error) {
	var (
		token *jwt.Token
		key   any
	)
	switch m.config.Algorithm {
	case HS256:
		token = jwt.NewWithClaims(jwt.SigningMethodHS256, newWireClaims(claims))
		key = []byte(m.config.SecretKey)
	case RS256:
		token = jwt.NewWithClaims(jwt.SigningMethodRS256, newWireClaims(claims))
		key = m.privateKey
	default:
		return "", fmt.Errorf("unsupported algorithm: %s", m.config.Algorithm)
	}

	tokenString, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// keyFunc returns the key for token validation.
func (m *Manager) keyFunc(token *jwt.Token) (any, error) {
	switch m.config.Algorithm {
	case HS256:
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.SecretKey), nil
	case RS256:
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	default:
		return nil, fmt.Errorf("unsupported algorithm: %s", m.config.Algorithm)
	}
}
