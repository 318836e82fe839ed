package jwt

import "errors"

var (
	// ErrInvalidConfig is returned by Config.Validate and NewManager.
	ErrInvalidConfig = errors.New("invalid token config")

	// ErrInvalidToken covers malformed tokens and bad signatures.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenNotYetValid is returned while nbf lies ahead, beyond the clock skew.
	ErrTokenNotYetValid = errors.New("token not yet valid")
	// ErrWrongTokenType is returned when a refresh token is presented as an
	// access token or the other way round.
	ErrWrongTokenType = errors.New("wrong token type")
)
