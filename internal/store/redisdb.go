package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hive-tools/intragate/pkg/auth"
)

// RedisStore implements the auth.Database interface using Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore initializes a new RedisStore instance.
func NewRedisStore(addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}

	return &RedisStore{client: rdb}, nil
}

// Close closes the Redis client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// AddBlacklistedToken adds a token string to the blacklist with its expiration time.
func (r *RedisStore) AddBlacklistedToken(ctx context.Context, tokenString string, exp int64) error {
	// Calculate TTL
	expirationTime := time.Unix(exp, 0)
	ttl := time.Until(expirationTime)
	if ttl <= 0 {
		// Token already expired; no need to blacklist
		return nil
	}

	key := fmt.Sprintf("blacklist:%s", tokenString)
	return r.client.Set(ctx, key, "1", ttl).Err()
}

// IsTokenBlacklisted checks whether a session token has been revoked.
func (r *RedisStore) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", tokenString)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// StoreRefreshToken stores a session refresh token with its owner and expiration.
func (r *RedisStore) StoreRefreshToken(ctx context.Context, token string, userID string, expiresAt time.Time) error {
	key := fmt.Sprintf("refresh_token:%s", token)

	data := struct {
		UserID    string    `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
	}{
		UserID:    userID,
		ExpiresAt: expiresAt,
	}

	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token data: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("invalid expiration time for refresh token")
	}

	return r.client.Set(ctx, key, encoded, ttl).Err()
}

// ValidateRefreshToken checks if a refresh token is valid and not expired.
// Returns the associated userID if valid.
func (r *RedisStore) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	key := fmt.Sprintf("refresh_token:%s", token)

	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", auth.ErrTokenNotFound
		}
		return "", err
	}

	var data struct {
		UserID    string    `json:"user_id"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	err = json.Unmarshal([]byte(val), &data)
	if err != nil {
		return "", fmt.Errorf("failed to unmarshal refresh token data: %w", err)
	}

	// Check if the token has expired
	if time.Now().After(data.ExpiresAt) {
		r.RevokeRefreshToken(ctx, token)
		return "", auth.ErrInvalidToken
	}

	return data.UserID, nil
}

// RevokeRefreshToken removes a refresh token from the store.
func (r *RedisStore) RevokeRefreshToken(ctx context.Context, token string) error {
	key := fmt.Sprintf("refresh_token:%s", token)
	return r.client.Del(ctx, key).Err()
}

// StoreProviderTokens stores the provider's tokens for a user.
func (r *RedisStore) StoreProviderTokens(ctx context.Context, userID, provider string, tokens auth.ProviderTokens) error {
	key := fmt.Sprintf("provider_tokens:%s:%s", provider, userID)
	encoded, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal ProviderTokens: %w", err)
	}

	// Provider tokens without an expiry are kept until overwritten
	var ttl time.Duration
	if !tokens.ExpiresAt.IsZero() {
		ttl = time.Until(tokens.ExpiresAt)
		if ttl <= 0 {
			return fmt.Errorf("invalid expiration time for provider tokens")
		}
	}
	return r.client.Set(ctx, key, encoded, ttl).Err()
}

// GetProviderTokens retrieves the provider's tokens for a user.
func (r *RedisStore) GetProviderTokens(ctx context.Context, userID, provider string) (auth.ProviderTokens, error) {
	var tokens auth.ProviderTokens

	key := fmt.Sprintf("provider_tokens:%s:%s", provider, userID)
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return tokens, auth.ErrTokenNotFound
		}
		return tokens, err
	}

	err = json.Unmarshal([]byte(val), &tokens)
	if err != nil {
		return tokens, fmt.Errorf("failed to unmarshal ProviderTokens: %w", err)
	}

	return tokens, nil
}

// UpdateProviderTokens updates the provider's tokens for a user.
func (r *RedisStore) UpdateProviderTokens(ctx context.Context, userID, provider string, tokens auth.ProviderTokens) error {
	return r.StoreProviderTokens(ctx, userID, provider, tokens)
}
