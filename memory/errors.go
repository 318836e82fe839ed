package memory

import "errors"

var (
	// ErrUserNotFound indicates no user has the given id or username
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists indicates the username or email is taken
	ErrUserExists = errors.New("user already exists")
)
