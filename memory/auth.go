package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portalguard"
	"portalguard/jwt"
)

// Login validates credentials and issues a token pair.
func (s *Service) Login(ctx context.Context, credentials portalguard.PasswordCredentials) (*portalguard.LoginResult, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}

	user, err := s.authenticatePassword(credentials)
	if err != nil {
		return nil, err
	}

	pair, err := s.jwtManager.GenerateTokens(*user)
	if err != nil {
		return nil, err
	}
	return &portalguard.LoginResult{TokenPair: *pair, User: *user}, nil
}

// CurrentUser returns the user an access token was issued to.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*portalguard.User, error) {
	claims, err := s.validate(accessToken, jwt.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", portalguard.ErrTokenRejected, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[claims.UserID]
	if !ok || !rec.active {
		return nil, fmt.Errorf("%w: user is gone or inactive", portalguard.ErrTokenRejected)
	}
	u := rec.user
	return &u, nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair issued with the user's current role.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*portalguard.TokenPair, error) {
	claims, err := s.validate(refreshToken, jwt.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", portalguard.ErrRefreshFailed, err)
	}

	s.mu.Lock()
	rec, ok := s.users[claims.UserID]
	if !ok || !rec.active {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: user is gone or inactive", portalguard.ErrRefreshFailed)
	}
	if s.revoked.Contains(claims.TokenID) {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: refresh token already used", portalguard.ErrRefreshFailed)
	}
	s.revoked.Add(claims.TokenID, struct{}{})
	user := rec.user
	s.mu.Unlock()

	return s.jwtManager.GenerateTokens(user)
}

// Logout revokes the access token. Unknown or invalid tokens are ignored.
func (s *Service) Logout(ctx context.Context, accessToken string) error {
	claims, err := jwt.ParseToken(accessToken)
	if err != nil || claims.TokenID == "" {
		return nil
	}
	s.revoked.Add(claims.TokenID, struct{}{})
	return nil
}

// IsRevoked reports whether the token's id is on the revocation list.
func (s *Service) IsRevoked(token string) bool {
	claims, err := jwt.ParseToken(token)
	if err != nil {
		return false
	}
	return s.revoked.Contains(claims.TokenID)
}

func (s *Service) validate(token, tokenType string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.ValidateTokenType(token, tokenType)
	if err != nil {
		return nil, err
	}
	if s.revoked.Contains(claims.TokenID) {
		return nil, fmt.Errorf("%w: token has been revoked", jwt.ErrInvalidToken)
	}
	return claims, nil
}

// authenticatePassword validates username/password credentials. Usernames
// containing "@" are looked up by email.
func (s *Service) authenticatePassword(creds portalguard.PasswordCredentials) (*portalguard.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	login := strings.TrimSpace(creds.Username)
	var userID string
	var exists bool
	if strings.Contains(login, "@") {
		userID, exists = s.usersByEmail[strings.ToLower(login)]
	} else {
		userID, exists = s.usersByName[login]
	}
	if !exists {
		return nil, portalguard.ErrInvalidCredentials
	}

	rec, exists := s.users[userID]
	if !exists {
		return nil, portalguard.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(creds.Password)); err != nil {
		return nil, portalguard.ErrInvalidCredentials
	}

	if !rec.active {
		return nil, fmt.Errorf("%w: account is inactive", portalguard.ErrInvalidCredentials)
	}

	rec.lastLoginAt = time.Now()
	u := rec.user
	return &u, nil
}
