package auth

import (
	"context"
	"time"
)

// Database defines the interface for persistence operations needed by the auth package.
type Database interface {
	StoreRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error
	ValidateRefreshToken(ctx context.Context, token string) (userID string, err error)
	RevokeRefreshToken(ctx context.Context, token string) error

	AddBlacklistedToken(ctx context.Context, token string, expiresAt int64) error
	IsTokenBlacklisted(ctx context.Context, token string) (bool, error)

	StoreProviderTokens(ctx context.Context, userID, provider string, tokens ProviderTokens) error
	GetProviderTokens(ctx context.Context, userID, provider string) (ProviderTokens, error)
	UpdateProviderTokens(ctx context.Context, userID, provider string, tokens ProviderTokens) error
}

// Notifier receives sign-in events. The webserver wires a shoutrrr-backed
// implementation; a nil Notifier disables notifications.
type Notifier interface {
	Send(title, message string)
}
