package auth

import "errors"

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenNotFound = errors.New("token not found")
	ErrStateMismatch = errors.New("oauth state mismatch")
)
