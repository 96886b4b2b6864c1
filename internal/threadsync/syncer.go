package threadsync

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/suPer8Hu/genie-chat/internal/threadcache"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StaleAfter is how long fetched data is served before a background
// revalidation is started.
const StaleAfter = 5 * time.Minute

// ErrSuperseded is returned to callers whose fetch was cancelled or
// replaced before it resolved.
var ErrSuperseded = errors.New("threadsync: fetch superseded")

// Remote is the subset of *threadclient.Client the syncer drives.
type Remote interface {
	List(ctx context.Context, token, userID string) ([]threadclient.Thread, error)
	Create(ctx context.Context, token, title string) (threadclient.Thread, error)
	Delete(ctx context.Context, token, id string) error
}

type Listener func(userID string, snap Snapshot)

// Syncer owns the visible thread list of each user. All mutation of that
// list goes through it; everything it hands out is a copy.
type Syncer struct {
	remote Remote
	cache  *threadcache.Cache
	log    *zap.Logger
	now    func() time.Time

	staleAfter time.Duration

	auth    *threadclient.Authorizer
	fetches singleflight.Group
	bg      sync.WaitGroup

	mu        sync.Mutex
	users     map[string]*userState
	listeners map[int]Listener
	nextLn    int

	persistMu sync.Mutex
}

type Option func(*Syncer)

func WithLogger(l *zap.Logger) Option {
	return func(s *Syncer) { s.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func WithStaleAfter(d time.Duration) Option {
	return func(s *Syncer) { s.staleAfter = d }
}

// WithAuthorizer shares a refresh policy with other callers of the same
// credentials. By default the Syncer builds its own from tokens.
func WithAuthorizer(a *threadclient.Authorizer) Option {
	return func(s *Syncer) { s.auth = a }
}

// New builds a Syncer. cache may be nil, which disables the offline fallback.
func New(remote Remote, tokens threadclient.TokenSource, cache *threadcache.Cache, opts ...Option) *Syncer {
	s := &Syncer{
		remote:     remote,
		cache:      cache,
		log:        zap.NewNop(),
		now:        time.Now,
		staleAfter: StaleAfter,
		users:      make(map[string]*userState),
		listeners:  make(map[int]Listener),
	}
	for _, o := range opts {
		o(s)
	}
	if s.auth == nil {
		s.auth = threadclient.NewAuthorizer(tokens)
	}
	return s
}

// Subscribe registers fn for every visible change. fn runs on the goroutine
// that made the change, outside the Syncer's lock.
func (s *Syncer) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextLn
	s.nextLn++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Snapshot returns the current state without triggering a fetch.
func (s *Syncer) Snapshot(userID string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state(userID).snapshot(userID)
}

// Load returns the user's threads. Data already fetched is returned at once,
// and if it is older than the stale threshold a background revalidation is
// started. Otherwise Load joins or starts the user's single in-flight fetch.
func (s *Syncer) Load(ctx context.Context, userID string) (Snapshot, error) {
	s.mu.Lock()
	st := s.state(userID)
	if st.hasData() {
		snap := st.snapshot(userID)
		if (st.stale || s.now().Sub(st.fetchedAt) >= s.staleAfter) && !st.fetching {
			token := s.beginFetch(st)
			s.mu.Unlock()
			s.revalidate(userID, token)
			return snap, nil
		}
		s.mu.Unlock()
		return snap, nil
	}
	token := s.beginFetch(st)
	snap := st.snapshot(userID)
	s.mu.Unlock()

	s.notify(userID, snap)
	return s.join(ctx, userID, token)
}

// Refresh fetches regardless of freshness, joining a fetch already in flight.
func (s *Syncer) Refresh(ctx context.Context, userID string) (Snapshot, error) {
	s.mu.Lock()
	token := s.beginFetch(s.state(userID))
	s.mu.Unlock()
	return s.join(ctx, userID, token)
}

// Cancel supersedes the user's in-flight fetch. Its result is discarded when
// it arrives and its waiters receive ErrSuperseded.
func (s *Syncer) Cancel(userID string) {
	s.mu.Lock()
	st := s.state(userID)
	if !st.fetching {
		s.mu.Unlock()
		return
	}
	st.token++
	st.fetching = false
	st.journal = dropSettled(st.journal)
	st.version++
	snap := st.snapshot(userID)
	s.mu.Unlock()
	s.notify(userID, snap)
}

// Wait blocks until background revalidations have finished.
func (s *Syncer) Wait() {
	s.bg.Wait()
}

func (s *Syncer) state(userID string) *userState {
	st, ok := s.users[userID]
	if !ok {
		st = &userState{base: Idle}
		s.users[userID] = st
	}
	return st
}

// beginFetch returns the request token of the fetch callers should join,
// issuing a new one unless a fetch is already running. Caller holds s.mu.
func (s *Syncer) beginFetch(st *userState) uint64 {
	if !st.fetching {
		st.token++
		st.fetching = true
	}
	return st.token
}

func (s *Syncer) revalidate(userID string, token uint64) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		if _, err := s.join(context.Background(), userID, token); err != nil && !errors.Is(err, ErrSuperseded) {
			s.log.Debug("background revalidation failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

func (s *Syncer) join(ctx context.Context, userID string, token uint64) (Snapshot, error) {
	key := userID + "#" + strconv.FormatUint(token, 10)
	// the shared fetch outlives any single waiter
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.fetches.DoChan(key, func() (any, error) {
		return s.fetch(fetchCtx, userID, token)
	})
	select {
	case r := <-ch:
		snap, _ := r.Val.(Snapshot)
		return snap, r.Err
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

func (s *Syncer) fetch(ctx context.Context, userID string, token uint64) (Snapshot, error) {
	s.mu.Lock()
	st := s.state(userID)
	switch {
	case st.token != token:
		s.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	case !st.fetching:
		// a late joiner of a fetch that already resolved
		snap := st.snapshot(userID)
		s.mu.Unlock()
		if snap.Phase == Failed {
			return snap, snap.Err
		}
		return snap, nil
	}
	s.mu.Unlock()

	var threads []threadclient.Thread
	err := s.withAuth(ctx, func(tok string) error {
		var err error
		threads, err = s.remote.List(ctx, tok, userID)
		return err
	})

	s.mu.Lock()
	st = s.state(userID)
	if st.token != token || !st.fetching {
		s.mu.Unlock()
		s.log.Debug("discarding superseded fetch", zap.String("user_id", userID), zap.Uint64("token", token))
		return Snapshot{}, ErrSuperseded
	}

	if err == nil {
		st.fetching = false
		st.threads = replay(threads, st.journal)
		st.journal = dropSettled(st.journal)
		st.base = Ready
		st.fetchedAt = s.now()
		st.stale = false
		st.err = nil
		st.failures = 0
		st.version++
		snap := st.snapshot(userID)
		s.mu.Unlock()

		s.notify(userID, snap)
		s.persist(ctx, userID)
		return snap, nil
	}

	st.failures++
	if st.hasData() {
		// keep serving what we have; the next Load retries
		st.fetching = false
		st.journal = dropSettled(st.journal)
		st.stale = true
		st.err = err
		st.version++
		snap := st.snapshot(userID)
		s.mu.Unlock()
		s.notify(userID, snap)
		if errors.Is(err, threadclient.ErrNetwork) {
			return snap, nil
		}
		return snap, err
	}

	if !errors.Is(err, threadclient.ErrNetwork) {
		st.fetching = false
		st.journal = dropSettled(st.journal)
		st.base = Failed
		st.err = err
		st.version++
		snap := st.snapshot(userID)
		s.mu.Unlock()
		s.notify(userID, snap)
		return snap, err
	}

	st.base = Degraded
	st.err = err
	st.version++
	snap := st.snapshot(userID)
	s.mu.Unlock()
	s.notify(userID, snap)

	return s.fallback(ctx, userID, token, err)
}

// fallback serves the persistent cache after a network failure. A cache miss
// leaves the user Failed until the next Load.
func (s *Syncer) fallback(ctx context.Context, userID string, token uint64, cause error) (Snapshot, error) {
	var (
		cached []threadclient.Thread
		ok     bool
	)
	if s.cache != nil {
		cached, ok = s.cache.Load(ctx, userID)
	}

	s.mu.Lock()
	st := s.state(userID)
	if st.token != token || !st.fetching {
		s.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	}
	st.fetching = false
	st.version++
	if !ok {
		st.journal = dropSettled(st.journal)
		st.base = Failed
		snap := st.snapshot(userID)
		s.mu.Unlock()
		s.notify(userID, snap)
		return snap, cause
	}

	// settled mutations are confirmed by the server but missing from the
	// cached list, so they are replayed before being dropped
	st.threads = replay(cached, st.journal)
	before := len(st.journal)
	st.journal = dropSettled(st.journal)
	settled := before - len(st.journal)
	st.base = Ready
	st.stale = true
	// fetchedAt stays zero-aged so the next Load revalidates
	st.fetchedAt = time.Time{}
	snap := st.snapshot(userID)
	s.mu.Unlock()

	s.log.Info("serving cached threads after network failure", zap.String("user_id", userID), zap.Int("threads", len(cached)))
	s.notify(userID, snap)
	if settled > 0 {
		s.persist(ctx, userID)
	}
	return snap, nil
}

func (s *Syncer) withAuth(ctx context.Context, call func(token string) error) error {
	return s.auth.Do(ctx, call)
}

func (s *Syncer) notify(userID string, snap Snapshot) {
	s.mu.Lock()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(userID, snap)
	}
}

// persist mirrors the confirmed part of the visible list into the cache.
// persistMu serialises writers and each one reads the newest state, so the
// last write always wins with current data.
func (s *Syncer) persist(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	st := s.state(userID)
	if !st.hasData() {
		// a partial list must not clobber a full cached one
		s.mu.Unlock()
		return
	}
	view := confirmedView(st.threads, st.journal)
	s.mu.Unlock()

	_ = s.cache.Save(ctx, userID, view)
}
