// Package memory is an in-process identity service: bcrypt password hashes,
// signed JWT token pairs and a bounded revocation list. It backs tests and
// the development identity server.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"portalguard"
	"portalguard/jwt"
	"portalguard/roles"
)

type userRecord struct {
	user         portalguard.User
	passwordHash []byte
	active       bool
	createdAt    time.Time
	updatedAt    time.Time
	lastLoginAt  time.Time
}

// Service implements portalguard.IdentityAPI using in-memory storage.
type Service struct {
	config Config

	jwtManager *jwt.Manager

	// revoked token ids
	revoked *expirable.LRU[string, struct{}]

	mu           sync.RWMutex
	users        map[string]*userRecord // userID -> record
	usersByName  map[string]string      // username -> userID
	usersByEmail map[string]string      // email -> userID
}

var _ portalguard.IdentityAPI = (*Service)(nil)

// NewService creates a new in-memory service with the given configuration
// and creates the configured seed users.
func NewService(config Config) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	jwtManager, err := jwt.NewManager(config.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT manager: %w", err)
	}

	s := &Service{
		config:       config,
		jwtManager:   jwtManager,
		revoked:      expirable.NewLRU[string, struct{}](config.RevocationSize, nil, config.revocationTTL()),
		users:        make(map[string]*userRecord),
		usersByName:  make(map[string]string),
		usersByEmail: make(map[string]string),
	}

	for _, seed := range config.Users {
		_, err := s.CreateUser(context.Background(), NewUser{
			Username:       seed.Username,
			Email:          seed.Email,
			Password:       seed.Password,
			Name:           seed.Name,
			Role:           roles.String(seed.Role),
			OrganizationID: seed.OrganizationID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to seed user %q: %w", seed.Username, err)
		}
	}

	return s, nil
}

// Tokens exposes the token manager, e.g. for resource servers sharing the key.
func (s *Service) Tokens() *jwt.Manager { return s.jwtManager }
