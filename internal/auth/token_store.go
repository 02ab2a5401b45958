package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// TokenTTL bounds how long an issued API token resolves before the
	// tenant has to rotate it.
	TokenTTL = 90 * 24 * time.Hour

	tokenPrefix = "api_token:"
)

// TokenStore wraps Redis for opaque API-token to tenant-scope resolution.
type TokenStore struct {
	rdb *redis.Client
}

func NewTokenStore(rdb *redis.Client) *TokenStore {
	return &TokenStore{rdb: rdb}
}

// Issue mints a new opaque token mapping to tenantID.
func (s *TokenStore) Issue(ctx context.Context, tenantID string) (string, error) {
	token := uuid.New().String()
	err := s.rdb.Set(ctx, tokenPrefix+token, tenantID, TokenTTL).Err()
	return token, err
}

// Resolve returns the tenant id for a token, or "" if unknown / expired.
func (s *TokenStore) Resolve(ctx context.Context, token string) (string, error) {
	val, err := s.rdb.Get(ctx, tokenPrefix+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// Revoke deletes a token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.rdb.Del(ctx, tokenPrefix+token).Err()
}
