package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabline/fabline/internal/shared"
)

// TokenStore keeps bearer sessions in Redis. Only an HMAC of the token is
// used as the key, so a Redis dump does not leak usable credentials.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
	secret []byte
}

type tokenPayload struct {
	Principal
	IssuedAt time.Time `json:"issuedAt"`
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, secret string, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{client: client, ttl: ttl, secret: []byte(secret)}
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// Issue creates a new token for p.
func (s *TokenStore) Issue(ctx context.Context, p Principal) (string, time.Time, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	now := time.Now().UTC()
	data, err := json.Marshal(tokenPayload{Principal: p, IssuedAt: now})
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.client.Set(ctx, s.redisKey(token), data, s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: store token: %v", shared.ErrPersistence, err)
	}
	return token, now.Add(s.ttl), nil
}

// Lookup resolves a token to its principal.
func (s *TokenStore) Lookup(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, fmt.Errorf("%w: missing token", shared.ErrUnauthenticated)
	}
	data, err := s.client.Get(ctx, s.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Principal{}, fmt.Errorf("%w: unknown or expired token", shared.ErrUnauthenticated)
		}
		return Principal{}, fmt.Errorf("%w: load token: %v", shared.ErrPersistence, err)
	}
	var payload tokenPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Principal{}, fmt.Errorf("%w: corrupt token payload", shared.ErrUnauthenticated)
	}
	return payload.Principal, nil
}

// Revoke deletes a token. Unknown tokens are ignored.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%w: revoke token: %v", shared.ErrPersistence, err)
	}
	return nil
}

func (s *TokenStore) redisKey(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return "session:" + hex.EncodeToString(mac.Sum(nil))
}
