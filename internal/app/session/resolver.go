package session

import (
	"context"
	"fmt"
	"strconv"

	"backend/internal/apperr"
	redisprovider "backend/internal/providers/redis"

	"github.com/redis/go-redis/v9"
)

type Session struct {
	UserID uint64 `json:"user_id"`
}

// Resolver is the seam to the surrounding platform's auth. Session
// issuance happens elsewhere; this core only needs key -> user resolution.
type Resolver interface {
	Resolve(ctx context.Context, sessionKey string) (*Session, error)
}

type redisResolver struct {
	redisP *redisprovider.RedisProvider
}

func NewRedisResolver(redisP *redisprovider.RedisProvider) Resolver {
	return &redisResolver{redisP: redisP}
}

func (r *redisResolver) Resolve(ctx context.Context, sessionKey string) (*Session, error) {
	if sessionKey == "" {
		return nil, apperr.ErrUnauthorized
	}

	val, err := r.redisP.Get(ctx, "session:"+sessionKey).Result()
	if err == redis.Nil {
		return nil, apperr.ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	userID, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return nil, apperr.ErrUnauthorized
	}

	return &Session{UserID: userID}, nil
}

// StaticResolver resolves sessions from a fixed map. Test use only.
type StaticResolver map[string]uint64

func (r StaticResolver) Resolve(_ context.Context, sessionKey string) (*Session, error) {
	userID, ok := r[sessionKey]
	if !ok {
		return nil, apperr.ErrUnauthorized
	}
	return &Session{UserID: userID}, nil
}
