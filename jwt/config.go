package jwt

import (
	"fmt"
	"time"
)

// Algorithm names the signing method of issued tokens.
type Algorithm string

// Supported signing methods.
const (
	HS256 Algorithm = "HS256"
	RS256 Algorithm = "RS256"
)

// Config describes how the development identity service signs its tokens.
type Config struct {
	Algorithm Algorithm `mapstructure:"algorithm"`

	// SecretKey signs HS256 tokens.
	SecretKey string `mapstructure:"secret_key"`

	// PrivateKey and PublicKey are PEM encoded RSA keys for RS256. The public
	// key is derived from the private one when empty.
	PrivateKey string `mapstructure:"private_key"`
	PublicKey  string `mapstructure:"public_key"`

	Issuer   string `mapstructure:"issuer"`
	Audience string `mapstructure:"audience"`

	AccessTokenExpiry  time.Duration `mapstructure:"access_token_expiry"`
	RefreshTokenExpiry time.Duration `mapstructure:"refresh_token_expiry"`

	// ClockSkew is tolerated on exp and nbf checks.
	ClockSkew time.Duration `mapstructure:"clock_skew"`
}

// DefaultConfig returns HS256 settings with a 15 minute access token and a
// week-long refresh token. SecretKey is left empty.
func DefaultConfig() Config {
	return Config{
		Algorithm:          HS256,
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
		ClockSkew:          30 * time.Second,
	}
}

// Validate reports the first problem found in c, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var problem string
	switch {
	case c.Algorithm != HS256 && c.Algorithm != RS256:
		problem = fmt.Sprintf("unsupported algorithm %q", c.Algorithm)
	case c.Algorithm == HS256 && c.SecretKey == "":
		problem = "secret_key is required for HS256"
	case c.Algorithm == RS256 && c.PrivateKey == "":
		problem = "private_key is required for RS256"
	case c.AccessTokenExpiry <= 0 || c.RefreshTokenExpiry <= 0:
		problem = "token expiries must be positive"
	case c.ClockSkew < 0:
		problem = "clock_skew must not be negative"
	default:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, problem)
}
