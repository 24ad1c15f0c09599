package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrMissingExpiry  = errors.New("token has no expiry claim")
	ErrTokenExpired   = errors.New("token expired")
	ErrNoAccessToken  = errors.New("no access token")

	// Refresh errors
	ErrRefreshRejected = errors.New("refresh rejected")
	ErrEmptyRefresh    = errors.New("refresh response carried no access token")

	// Session errors
	ErrNoSession        = errors.New("no active session")
	ErrInvalidLoginData = errors.New("invalid login response")

	// Credential errors (dev server)
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// General errors
	ErrNotFound = errors.New("not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}
