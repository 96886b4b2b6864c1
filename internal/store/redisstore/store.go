package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suPer8Hu/genie-chat/internal/auth"
	"github.com/suPer8Hu/genie-chat/internal/threadcache"
)

const refreshPrefix = "genie:refresh:"

type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

// SaveRefreshToken maps token to userID until ttl elapses.
func (s *Store) SaveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	return s.rdb.Set(ctx, refreshPrefix+token, userID, ttl).Err()
}

// ConsumeRefreshToken returns the owner of token and deletes it, so each
// refresh token is single use.
func (s *Store) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	uid, err := s.rdb.GetDel(ctx, refreshPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", auth.ErrInvalidToken
	}
	return uid, err
}

// Get and Set let a Store back the persistent thread cache.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, threadcache.ErrMiss
	}
	return b, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

var (
	_ threadcache.Storage = (*Store)(nil)
	_ auth.RefreshStore   = (*Store)(nil)
)
