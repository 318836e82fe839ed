package jwt

import (
	"errors"
	"testing"
	"time"
)

func TestConfig_Validate(t *testing.T) {
	valid := func(mutate func(*Config)) Config {
		c := DefaultConfig()
		c.SecretKey = "k"
		if mutate != nil {
			mutate(&c)
		}
		return c
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "defaults with secret", cfg: valid(nil)},
		{name: "rs256 derives public key", cfg: valid(func(c *Config) { c.Algorithm = RS256; c.PrivateKey = dummyRSAPrivate })},
		{name: "empty algorithm", cfg: valid(func(c *Config) { c.Algorithm = "" }), wantErr: true},
		{name: "unknown algorithm", cfg: valid(func(c *Config) { c.Algorithm = "ES512" }), wantErr: true},
		{name: "hs256 without secret", cfg: valid(func(c *Config) { c.SecretKey = "" }), wantErr: true},
		{name: "rs256 without private key", cfg: valid(func(c *Config) { c.Algorithm = RS256 }), wantErr: true},
		{name: "zero access expiry", cfg: valid(func(c *Config) { c.AccessTokenExpiry = 0 }), wantErr: true},
		{name: "zero refresh expiry", cfg: valid(func(c *Config) { c.RefreshTokenExpiry = 0 }), wantErr: true},
		{name: "negative skew", cfg: valid(func(c *Config) { c.ClockSkew = -time.Second }), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err=%v wantErr=%v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
