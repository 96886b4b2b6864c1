package threadsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/genie-chat/internal/threadcache"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

type harness struct {
	remote *fakeRemote
	tokens *fakeTokens
	store  *threadcache.MemoryStorage
	cache  *threadcache.Cache
	clock  *fakeClock
	rec    *recorder
	s      *Syncer
}

func newHarness(t *testing.T, server ...threadclient.Thread) *harness {
	t.Helper()
	h := &harness{
		remote: newFakeRemote(server...),
		tokens: &fakeTokens{current: "good", next: "good"},
		store:  threadcache.NewMemoryStorage(),
		clock:  &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)},
		rec:    &recorder{},
	}
	h.remote.now = h.clock.now
	h.cache = threadcache.New(h.store, threadcache.WithClock(h.clock.now))
	h.s = New(h.remote, h.tokens, h.cache, WithClock(h.clock.now))
	unsub := h.s.Subscribe(h.rec.listen)
	t.Cleanup(func() {
		unsub()
		h.s.Wait()
	})
	return h
}

func (h *harness) serverThreads() []threadclient.Thread {
	base := h.clock.now()
	return []threadclient.Thread{
		thread("t3", "newest", base.Add(-time.Minute)),
		thread("t2", "middle", base.Add(-time.Hour)),
		thread("t1", "oldest", base.Add(-48*time.Hour)),
	}
}

func TestLoad_FetchesAndMirrorsToCache(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()
	ctx := context.Background()

	snap, err := h.s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Ready, snap.Phase)
	assert.False(t, snap.Stale)
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(snap.Threads))
	assert.Equal(t, h.clock.now(), snap.FetchedAt)

	cached, ok := h.cache.Load(ctx, "u1")
	require.True(t, ok)
	assert.Equal(t, ids(snap.Threads), ids(cached))

	snaps := h.rec.all()
	require.NotEmpty(t, snaps)
	assert.Equal(t, Fetching, snaps[0].Phase)
	assert.Equal(t, Ready, snaps[len(snaps)-1].Phase)
}

func TestLoad_CoalescesConcurrentFetches(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()
	h.remote.listStarted = make(chan struct{}, 4)
	h.remote.listGate = make(chan struct{})
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]Snapshot, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = h.s.Load(ctx, "u1")
	}()
	<-h.remote.listStarted

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = h.s.Load(ctx, "u1")
	}()
	time.Sleep(50 * time.Millisecond)
	close(h.remote.listGate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, h.remote.listCalls)
	assert.Equal(t, ids(results[0].Threads), ids(results[1].Threads))
}

func TestLoad_FreshDataIsNotRefetched(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.s.Load(ctx, "u1")
	require.NoError(t, err)
	h.clock.advance(StaleAfter - time.Second)
	_, err = h.s.Load(ctx, "u1")
	require.NoError(t, err)
	h.s.Wait()

	assert.Equal(t, 1, h.remote.listCalls)
}

func TestLoad_StaleServedWhileRevalidating(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()[1:]
	ctx := context.Background()

	_, err := h.s.Load(ctx, "u1")
	require.NoError(t, err)

	h.remote.set(func(r *fakeRemote) { r.threads = h.serverThreads() })
	h.clock.advance(StaleAfter)

	snap, err := h.s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t1"}, ids(snap.Threads), "stale data returned without waiting")

	h.s.Wait()
	assert.Equal(t, 2, h.remote.listCalls)
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(h.s.Snapshot("u1").Threads))
}

func TestLoad_NetworkFailureFallsBackToCache(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.cache.Save(ctx, "u1", h.serverThreads()))
	h.remote.listErr = threadclient.ErrNetwork

	snap, err := h.s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Ready, snap.Phase)
	assert.True(t, snap.Stale)
	assert.ErrorIs(t, snap.Err, threadclient.ErrNetwork)
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(snap.Threads))

	var sawDegraded bool
	for _, s := range h.rec.all() {
		sawDegraded = sawDegraded || s.Phase == Degraded
	}
	assert.True(t, sawDegraded)

	// stale data triggers revalidation on the next access
	h.remote.set(func(r *fakeRemote) { r.listErr = nil })
	_, err = h.s.Load(ctx, "u1")
	require.NoError(t, err)
	h.s.Wait()
	final := h.s.Snapshot("u1")
	assert.False(t, final.Stale)
	assert.NoError(t, final.Err)
}

func TestLoad_NetworkFailureWithoutCacheFails(t *testing.T) {
	h := newHarness(t, thread("t1", "one", time.Now()))
	h.remote.listErr = threadclient.ErrNetwork
	ctx := context.Background()

	// another user's entry does not count
	require.NoError(t, h.cache.Save(ctx, "someone-else", h.serverThreads()))

	snap, err := h.s.Load(ctx, "u1")
	assert.ErrorIs(t, err, threadclient.ErrNetwork)
	assert.Equal(t, Failed, snap.Phase)
	assert.Empty(t, snap.Threads)
	assert.Equal(t, 1, snap.Failures)

	h.remote.set(func(r *fakeRemote) { r.listErr = nil })
	snap, err = h.s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, Ready, snap.Phase)
	assert.Equal(t, 0, snap.Failures)
	assert.Equal(t, 2, h.remote.listCalls)
}

func TestLoad_ExpiredCacheIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.cache.Save(ctx, "u1", h.serverThreads()))
	h.clock.advance(threadcache.MaxAge)
	h.remote.listErr = threadclient.ErrNetwork

	_, err := h.s.Load(ctx, "u1")
	assert.ErrorIs(t, err, threadclient.ErrNetwork)
}

func TestLoad_StoreErrorDoesNotFallBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.cache.Save(ctx, "u1", h.serverThreads()))
	h.remote.listErr = &threadclient.APIError{Status: 500, Code: 50001}

	snap, err := h.s.Load(ctx, "u1")
	assert.ErrorIs(t, err, threadclient.ErrStore)
	assert.Equal(t, Failed, snap.Phase)
	assert.Empty(t, snap.Threads)
}

func TestCancel_DiscardsSupersededFetch(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()
	h.remote.listStarted = make(chan struct{}, 1)
	h.remote.listGate = make(chan struct{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := h.s.Load(ctx, "u1")
		done <- err
	}()
	<-h.remote.listStarted

	h.s.Cancel("u1")
	close(h.remote.listGate)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	snap := h.s.Snapshot("u1")
	assert.Equal(t, Idle, snap.Phase)
	assert.Empty(t, snap.Threads)

	_, ok := h.cache.Load(ctx, "u1")
	assert.False(t, ok, "superseded result must not reach the cache")
}

func TestLoad_WaiterContextCancelDoesNotAbortSharedFetch(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()
	h.remote.listStarted = make(chan struct{}, 1)
	h.remote.listGate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := h.s.Load(ctx, "u1")
		done <- err
	}()
	<-h.remote.listStarted
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(h.remote.listGate)
	snap, err := h.s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Threads, 3)
	assert.Equal(t, 1, h.remote.listCalls)
}

func TestAuth_RefreshesOnceThenRetries(t *testing.T) {
	h := newHarness(t)
	h.remote.threads = h.serverThreads()
	h.tokens.current = "expired"
	h.tokens.next = "good"

	snap, err := h.s.Load(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Threads, 3)
	assert.Equal(t, 1, h.tokens.refreshes)
	assert.Equal(t, 2, h.remote.listCalls)
}

func TestAuth_SecondRejectionIsTerminal(t *testing.T) {
	h := newHarness(t)
	h.tokens.current = "expired"
	h.tokens.next = "also-expired"

	snap, err := h.s.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, threadclient.ErrAuth)
	assert.Equal(t, Failed, snap.Phase)
	assert.Equal(t, 1, h.tokens.refreshes)
	assert.Equal(t, 2, h.remote.listCalls)
}

func TestAuth_RefreshFailureIsSurfaced(t *testing.T) {
	h := newHarness(t)
	h.tokens.current = "expired"
	h.tokens.refreshErr = threadclient.ErrAuth

	_, err := h.s.Create(context.Background(), "u1", "x")
	assert.ErrorIs(t, err, threadclient.ErrAuth)
	assert.Equal(t, 1, h.remote.createCalls)
	assert.Empty(t, h.s.Snapshot("u1").Threads)
}
