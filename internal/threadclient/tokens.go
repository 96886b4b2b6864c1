package threadclient

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// TokenSource supplies the bearer credential and renews it after an
// ErrAuth rejection.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// SessionTokens holds an access/refresh pair and rotates it through
// /auth/refresh. Persist, when set, is called with every new pair.
type SessionTokens struct {
	Client  *Client
	Persist func(Session) error

	mu      sync.Mutex
	session Session
}

func NewSessionTokens(c *Client, s Session) *SessionTokens {
	return &SessionTokens{Client: c, session: s}
}

func (t *SessionTokens) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session.AccessToken == "" {
		return "", fmt.Errorf("%w: not logged in", ErrAuth)
	}
	return t.session.AccessToken, nil
}

// Refresh exchanges the refresh token. A rejected refresh token is reported
// as ErrAuth so callers treat it as terminal.
func (t *SessionTokens) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrAuth)
	}
	next, err := t.Client.Refresh(ctx, t.session.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrAuth) {
			t.session.AccessToken = ""
			t.session.RefreshToken = ""
		}
		return "", err
	}
	// refresh responses carry no user
	next.User = t.session.User
	t.session = next
	if t.Persist != nil {
		if err := t.Persist(next); err != nil {
			t.Client.log().Warn("persist session failed", zap.Error(err))
		}
	}
	return next.AccessToken, nil
}

func (t *SessionTokens) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}
