package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hive-tools/intragate/pkg/auth"
)

const (
	bucketBlacklistedTokens = "BlacklistedTokens"
	bucketRefreshTokens     = "RefreshTokens"
	bucketProviderTokens    = "ProviderTokens"
)

// BoltStore implements the auth.Database interface using bbolt.
type BoltStore struct {
	db   *bbolt.DB
	path string
	mu   sync.RWMutex
}

// NewBoltStore initializes a new BoltStore instance.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}

	store := &BoltStore{
		db:   db,
		path: path,
	}

	if err := store.initialize(); err != nil {
		return nil, err
	}

	return store, nil
}

// initialize sets up the necessary buckets.
func (b *BoltStore) initialize() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketBlacklistedTokens, bucketRefreshTokens, bucketProviderTokens} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %v", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying bolt database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}

// AddBlacklistedToken records a revoked session token until its expiration.
func (b *BoltStore) AddBlacklistedToken(ctx context.Context, tokenString string, exp int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBlacklistedTokens))
		return bucket.Put([]byte(tokenString), []byte(strconv.FormatInt(exp, 10)))
	})
}

// IsTokenBlacklisted checks whether a session token has been revoked.
// Expired entries are pruned on read.
func (b *BoltStore) IsTokenBlacklisted(ctx context.Context, tokenString string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var blacklisted bool
	var expired bool
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketBlacklistedTokens))
		val := bucket.Get([]byte(tokenString))
		if val == nil {
			return nil
		}
		exp, err := strconv.ParseInt(string(val), 10, 64)
		if err != nil {
			return fmt.Errorf("corrupt blacklist entry: %w", err)
		}
		if time.Now().Unix() > exp {
			expired = true
			return nil
		}
		blacklisted = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if expired {
		err = b.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(bucketBlacklistedTokens)).Delete([]byte(tokenString))
		})
	}
	return blacklisted, err
}

type refreshTokenRecord struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// StoreRefreshToken stores a session refresh token with its owner and expiration.
func (b *BoltStore) StoreRefreshToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(refreshTokenRecord{UserID: userID, ExpiresAt: expiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal refresh token record: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRefreshTokens)).Put([]byte(token), data)
	})
}

// ValidateRefreshToken checks if a refresh token is valid and not expired.
// Returns the associated userID if valid.
func (b *BoltStore) ValidateRefreshToken(ctx context.Context, token string) (string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var record refreshTokenRecord
	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketRefreshTokens)).Get([]byte(token))
		if val == nil {
			return auth.ErrTokenNotFound
		}
		return json.Unmarshal(val, &record)
	})
	if err != nil {
		return "", err
	}

	if time.Now().After(record.ExpiresAt) {
		b.db.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(bucketRefreshTokens)).Delete([]byte(token))
		})
		return "", auth.ErrInvalidToken
	}

	return record.UserID, nil
}

// RevokeRefreshToken removes a refresh token from the store.
func (b *BoltStore) RevokeRefreshToken(ctx context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRefreshTokens)).Delete([]byte(token))
	})
}

func providerTokensKey(userID, provider string) []byte {
	return []byte(fmt.Sprintf("%s:%s", provider, userID))
}

// StoreProviderTokens stores the provider's tokens for a user.
func (b *BoltStore) StoreProviderTokens(ctx context.Context, userID, provider string, tokens auth.ProviderTokens) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("failed to marshal ProviderTokens: %w", err)
	}

	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketProviderTokens)).Put(providerTokensKey(userID, provider), data)
	})
}

// GetProviderTokens retrieves the provider's tokens for a user.
func (b *BoltStore) GetProviderTokens(ctx context.Context, userID, provider string) (auth.ProviderTokens, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var tokens auth.ProviderTokens
	err := b.db.View(func(tx *bbolt.Tx) error {
		val := tx.Bucket([]byte(bucketProviderTokens)).Get(providerTokensKey(userID, provider))
		if val == nil {
			return auth.ErrTokenNotFound
		}
		return json.Unmarshal(val, &tokens)
	})
	return tokens, err
}

// UpdateProviderTokens updates the provider's tokens for a user.
func (b *BoltStore) UpdateProviderTokens(ctx context.Context, userID, provider string, tokens auth.ProviderTokens) error {
	return b.StoreProviderTokens(ctx, userID, provider, tokens)
}
