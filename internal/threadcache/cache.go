package threadcache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"go.uber.org/zap"
)

const (
	// Key is shared by every user of one installation; the payload names its owner.
	Key = "project-genie-threads"

	// MaxAge is the staleness ceiling past which an entry is ignored.
	MaxAge = time.Hour
)

type entry struct {
	UserID    string                 `json:"userId"`
	Threads   *[]threadclient.Thread `json:"threads"`
	Timestamp int64                  `json:"timestamp"`
}

// Cache is the persistent fallback copy of one user's thread list.
type Cache struct {
	store Storage
	log   *zap.Logger
	now   func() time.Time
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func New(store Storage, opts ...Option) *Cache {
	c := &Cache{store: store, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Load returns the cached threads for userID. Any entry that is missing,
// corrupt, owned by another user, stamped in the future, or at least MaxAge
// old is a miss.
func (c *Cache) Load(ctx context.Context, userID string) ([]threadclient.Thread, bool) {
	raw, err := c.store.Get(ctx, Key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			c.log.Warn("thread cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.log.Warn("thread cache corrupt", zap.Error(err))
		return nil, false
	}
	if e.UserID == "" || e.UserID != userID || e.Threads == nil || e.Timestamp <= 0 {
		return nil, false
	}
	// a timestamp ahead of the clock cannot be aged, so it is not trusted
	age := c.now().Sub(time.UnixMilli(e.Timestamp))
	if age < 0 || age >= MaxAge {
		return nil, false
	}
	return *e.Threads, true
}

// Save replaces the entry with userID's current list.
func (c *Cache) Save(ctx context.Context, userID string, threads []threadclient.Thread) error {
	if threads == nil {
		threads = []threadclient.Thread{}
	}
	raw, err := json.Marshal(entry{
		UserID:    userID,
		Threads:   &threads,
		Timestamp: c.now().UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, Key, raw); err != nil {
		c.log.Warn("thread cache write failed", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	return nil
}
