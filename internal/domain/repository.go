package domain

import (
	"context"
	"time"
)

// RefreshTokenRepository stores hashed refresh tokens.
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	FindByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllByUserID(ctx context.Context, userID string) error
}

// CacheRepository is a generic TTL cache used for derived conversation
// summaries and idempotent-response replay. Never the source of truth.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MediaStore persists completion proof images and returns a public URL.
type MediaStore interface {
	Upload(ctx context.Context, data []byte, filename, contentType string) (string, error)
}
