package memory

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portalguard/jwt"
	"portalguard/roles"
)

// SeedUser is a user created when the service starts.
type SeedUser struct {
	Username       string `mapstructure:"username"`
	Email          string `mapstructure:"email"`
	Password       string `mapstructure:"password"`
	Name           string `mapstructure:"name"`
	Role           string `mapstructure:"role"`
	OrganizationID string `mapstructure:"organization_id"`
}

// Config holds configuration for the in-memory identity service.
type Config struct {
	JWT            jwt.Config `mapstructure:"jwt"`
	BCryptCost     int        `mapstructure:"bcrypt_cost"`
	RevocationSize int        `mapstructure:"revocation_size"`
	Users          []SeedUser `mapstructure:"users"`
}

// DefaultConfig returns a default configuration for development.
func DefaultConfig() Config {
	j := jwt.DefaultConfig()
	j.SecretKey = "dev-secret-key-change-in-production"
	j.Issuer = "portal-dev"
	j.Audience = "portal-dashboard"
	return Config{
		JWT:            j,
		BCryptCost:     bcrypt.MinCost,
		RevocationSize: 10_000,
	}
}

// DemoUsers returns one seed user per built-in role, all with password
// "password".
func DemoUsers() []SeedUser {
	return []SeedUser{
		{Username: "root", Email: "root@example.com", Password: "password", Name: "Platform Admin", Role: roles.SuperAdmin},
		{Username: "acme-admin", Email: "admin@acme.example", Password: "password", Name: "Acme Admin", Role: roles.OrgAdmin, OrganizationID: "42"},
		{Username: "acme-manager", Email: "manager@acme.example", Password: "password", Name: "Acme Manager", Role: roles.Manager, OrganizationID: "42"},
		{Username: "acme-employee", Email: "employee@acme.example", Password: "password", Name: "Acme Employee", Role: roles.Employee, OrganizationID: "42"},
	}
}

// Validate validates the service configuration.
func (c *Config) Validate() error {
	if err := c.JWT.Validate(); err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	if c.BCryptCost < bcrypt.MinCost || c.BCryptCost > bcrypt.MaxCost {
		return errors.New("bcrypt cost must be between 4 and 31")
	}

	if c.RevocationSize <= 0 {
		return errors.New("revocation size must be positive")
	}

	for i, u := range c.Users {
		if u.Username == "" || u.Password == "" {
			return fmt.Errorf("users[%d]: username and password are required", i)
		}
	}

	return nil
}

// revocationTTL covers the longest-lived token so a revoked id never
// becomes valid again before the token itself expires.
func (c *Config) revocationTTL() time.Duration {
	ttl := c.JWT.RefreshTokenExpiry
	if c.JWT.AccessTokenExpiry > ttl {
		ttl = c.JWT.AccessTokenExpiry
	}
	return ttl + c.JWT.ClockSkew
}
