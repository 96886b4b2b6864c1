package threadclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTokens struct {
	mu         sync.Mutex
	current    string
	next       string
	refreshErr error
	refreshes  int
	// when set, Refresh waits for it before answering
	hold chan struct{}
}

func (s *stubTokens) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *stubTokens) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	s.refreshes++
	hold := s.hold
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.current = s.next
	return s.current, nil
}

// acceptOnly rejects every token except want.
func acceptOnly(want string, seen *[]string, mu *sync.Mutex) func(string) error {
	return func(tok string) error {
		mu.Lock()
		*seen = append(*seen, tok)
		mu.Unlock()
		if tok != want {
			return &APIError{Status: 401, Code: 40101, Message: "unauthorized"}
		}
		return nil
	}
}

func TestAuthorizer_RefreshesOnceThenRetries(t *testing.T) {
	tokens := &stubTokens{current: "old", next: "new"}
	a := NewAuthorizer(tokens)

	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, a.Do(context.Background(), acceptOnly("new", &seen, &mu)))
	assert.Equal(t, []string{"old", "new"}, seen)
	assert.Equal(t, 1, tokens.refreshes)
}

func TestAuthorizer_ConcurrentRejectionsShareOneRefresh(t *testing.T) {
	tokens := &stubTokens{current: "old", next: "new", hold: make(chan struct{})}
	a := NewAuthorizer(tokens)

	var (
		mu   sync.Mutex
		seen []string
	)
	rejected := make(chan struct{}, 2)
	call := func(tok string) error {
		err := acceptOnly("new", &seen, &mu)(tok)
		if err != nil {
			rejected <- struct{}{}
		}
		return err
	}

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- a.Do(context.Background(), call) }()
	}
	<-rejected
	<-rejected
	// let the second caller join the refresh already in flight
	time.Sleep(20 * time.Millisecond)
	close(tokens.hold)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	assert.Equal(t, 1, tokens.refreshes)
}

func TestAuthorizer_SecondRejectionIsTerminal(t *testing.T) {
	tokens := &stubTokens{current: "old", next: "still-bad"}
	a := NewAuthorizer(tokens)

	var (
		mu   sync.Mutex
		seen []string
	)
	err := a.Do(context.Background(), acceptOnly("new", &seen, &mu))
	assert.ErrorIs(t, err, ErrAuth)
	assert.Equal(t, []string{"old", "still-bad"}, seen)
	assert.Equal(t, 1, tokens.refreshes)
}

func TestAuthorizer_RefreshFailureWrapsBoth(t *testing.T) {
	boom := errors.New("refresh endpoint down")
	tokens := &stubTokens{current: "old", refreshErr: boom}
	a := NewAuthorizer(tokens)

	var (
		mu   sync.Mutex
		seen []string
	)
	err := a.Do(context.Background(), acceptOnly("new", &seen, &mu))
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"old"}, seen)
}

func TestAuthorizer_OtherErrorsSkipRefresh(t *testing.T) {
	tokens := &stubTokens{current: "old", next: "new"}
	a := NewAuthorizer(tokens)

	err := a.Do(context.Background(), func(string) error { return ErrNetwork })
	assert.ErrorIs(t, err, ErrNetwork)
	assert.Equal(t, 0, tokens.refreshes)
}
