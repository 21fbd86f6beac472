package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/munsociety/munsociety/internal/shared"
)

// TokenStore issues and resolves opaque bearer tokens backed by Redis.
// Tokens are 256-bit random values; the mapping to the user profile lives
// server-side with a TTL, so validation is a cheap read and revocation is
// immediate.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// TTL exposes the configured session lifetime.
func (ts *TokenStore) TTL() time.Duration {
	return ts.ttl
}

// Issue mints a new token for the given user.
func (ts *TokenStore) Issue(ctx context.Context, user shared.SessionUser) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	payload, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("auth: marshal session: %w", err)
	}
	if err := ts.client.Set(ctx, ts.key(token), payload, ts.ttl).Err(); err != nil {
		return "", fmt.Errorf("auth: store session: %w", err)
	}
	return token, nil
}

// Validate resolves a token to its session user. Unknown and expired tokens
// both return shared.ErrUnauthorized.
func (ts *TokenStore) Validate(ctx context.Context, token string) (*shared.SessionUser, error) {
	if token == "" {
		return nil, shared.ErrUnauthorized
	}
	payload, err := ts.client.Get(ctx, ts.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrUnauthorized
		}
		return nil, fmt.Errorf("auth: load session: %w", err)
	}
	var user shared.SessionUser
	if err := json.Unmarshal(payload, &user); err != nil {
		// A corrupt entry is treated as no session; drop it.
		_ = ts.client.Del(ctx, ts.key(token)).Err()
		return nil, shared.ErrUnauthorized
	}
	return &user, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (ts *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := ts.client.Del(ctx, ts.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("auth: revoke session: %w", err)
	}
	return nil
}

func (ts *TokenStore) key(token string) string {
	return "session:" + token
}
