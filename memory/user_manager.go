package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"portalguard"
	"portalguard/roles"
)

// NewUser holds the fields of a user to create.
type NewUser struct {
	Username       string
	Email          string
	Password       string
	Name           string
	Role           roles.Raw
	OrganizationID string
}

// UserUpdate lists the fields to change; nil fields are left alone.
type UserUpdate struct {
	Email          *string
	Name           *string
	Role           *roles.Raw
	OrganizationID *string
	IsActive       *bool
}

// CreateUser creates a new active user.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (*portalguard.User, error) {
	username := strings.TrimSpace(nu.Username)
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	if username == "" || nu.Password == "" {
		return nil, fmt.Errorf("username and password are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByName[username]; exists {
		return nil, fmt.Errorf("%w: username '%s' already exists", ErrUserExists, username)
	}
	if email != "" {
		if _, exists := s.usersByEmail[email]; exists {
			return nil, fmt.Errorf("%w: email '%s' already exists", ErrUserExists, email)
		}
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(nu.Password), s.config.BCryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	rec := &userRecord{
		user: portalguard.User{
			ID:             uuid.NewString(),
			Username:       username,
			Email:          email,
			Name:           nu.Name,
			Role:           nu.Role,
			OrganizationID: strings.TrimSpace(nu.OrganizationID),
		},
		passwordHash: hashedPassword,
		active:       true,
		createdAt:    now,
		updatedAt:    now,
	}

	s.users[rec.user.ID] = rec
	s.usersByName[username] = rec.user.ID
	if email != "" {
		s.usersByEmail[email] = rec.user.ID
	}

	u := rec.user
	return &u, nil
}

// GetUser retrieves a user by ID.
func (s *Service) GetUser(ctx context.Context, userID string) (*portalguard.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.users[userID]
	if !exists {
		return nil, ErrUserNotFound
	}
	u := rec.user
	return &u, nil
}

// GetUserByUsername retrieves a user by username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*portalguard.User, error) {
	s.mu.RLock()
	userID, exists := s.usersByName[username]
	s.mu.RUnlock()

	if !exists {
		return nil, ErrUserNotFound
	}

	return s.GetUser(ctx, userID)
}

// UpdateUser updates user information. Role and organization changes are
// seen by the next CurrentUser or Refresh call.
func (s *Service) UpdateUser(ctx context.Context, userID string, updates UserUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}

	if updates.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*updates.Email))
		if existingUserID, exists := s.usersByEmail[email]; exists && existingUserID != userID {
			return fmt.Errorf("%w: email '%s' already exists", ErrUserExists, email)
		}
		delete(s.usersByEmail, rec.user.Email)
		rec.user.Email = email
		if email != "" {
			s.usersByEmail[email] = userID
		}
	}

	if updates.Name != nil {
		rec.user.Name = *updates.Name
	}

	if updates.Role != nil {
		rec.user.Role = *updates.Role
	}

	if updates.OrganizationID != nil {
		rec.user.OrganizationID = strings.TrimSpace(*updates.OrganizationID)
	}

	if updates.IsActive != nil {
		rec.active = *updates.IsActive
	}

	rec.updatedAt = time.Now()
	return nil
}

// DeleteUser deletes a user.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}

	delete(s.users, userID)
	delete(s.usersByName, rec.user.Username)
	delete(s.usersByEmail, rec.user.Email)

	return nil
}

// ChangePassword changes a user's password.
func (s *Service) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, exists := s.users[userID]
	if !exists {
		return ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(oldPassword)); err != nil {
		return portalguard.ErrInvalidCredentials
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.config.BCryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	rec.passwordHash = hashedPassword
	rec.updatedAt = time.Now()
	return nil
}
