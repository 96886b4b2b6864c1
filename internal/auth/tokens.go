package auth

import (
	"context"
	"sync"
	"time"
)

// RefreshStore keeps refresh tokens. ConsumeRefreshToken must return
// ErrInvalidToken for unknown or expired tokens.
type RefreshStore interface {
	SaveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error
	ConsumeRefreshToken(ctx context.Context, token string) (string, error)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Issuer mints access/refresh token pairs and rotates refresh tokens.
type Issuer struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Store      RefreshStore
}

func (i *Issuer) Issue(ctx context.Context, userID string) (TokenPair, error) {
	access, err := SignJWT(userID, i.Secret, i.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := NewRefreshToken()
	if err != nil {
		return TokenPair{}, err
	}
	if err := i.Store.SaveRefreshToken(ctx, refresh, userID, i.RefreshTTL); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(i.AccessTTL / time.Second),
	}, nil
}

// Refresh consumes refreshToken and issues a new pair for its owner.
func (i *Issuer) Refresh(ctx context.Context, refreshToken string) (string, TokenPair, error) {
	if refreshToken == "" {
		return "", TokenPair{}, ErrInvalidToken
	}
	userID, err := i.Store.ConsumeRefreshToken(ctx, refreshToken)
	if err != nil {
		return "", TokenPair{}, err
	}
	pair, err := i.Issue(ctx, userID)
	return userID, pair, err
}

type memoryEntry struct {
	userID  string
	expires time.Time
}

// MemoryRefreshStore is a process-local RefreshStore for tests and
// single-node development without Redis.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]memoryEntry
	now    func() time.Time
}

func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{tokens: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryRefreshStore) SaveRefreshToken(ctx context.Context, token, userID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = memoryEntry{userID: userID, expires: m.now().Add(ttl)}
	return nil
}

func (m *MemoryRefreshStore) ConsumeRefreshToken(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tokens[token]
	delete(m.tokens, token)
	if !ok || !m.now().Before(e.expires) {
		return "", ErrInvalidToken
	}
	return e.userID, nil
}
