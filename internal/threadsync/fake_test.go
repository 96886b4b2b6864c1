package threadsync

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

var errUnauthorized = &threadclient.APIError{Status: http.StatusUnauthorized, Code: 40101, Message: "unauthorized"}

type fakeRemote struct {
	mu sync.Mutex

	validToken string
	threads    []threadclient.Thread
	seq        int
	now        func() time.Time

	listCalls   int
	createCalls int
	deleteCalls int

	listErr   error
	createErr error
	deleteErr error

	// when set, calls block on the gate after announcing on started
	listStarted   chan struct{}
	listGate      chan struct{}
	createStarted chan struct{}
	createGate    chan struct{}
	deleteStarted chan struct{}
	deleteGate    chan struct{}
}

func newFakeRemote(threads ...threadclient.Thread) *fakeRemote {
	return &fakeRemote{validToken: "good", threads: threads, now: time.Now}
}

func (r *fakeRemote) List(ctx context.Context, token, userID string) ([]threadclient.Thread, error) {
	r.mu.Lock()
	r.listCalls++
	if token != r.validToken {
		r.mu.Unlock()
		return nil, errUnauthorized
	}
	out := cloneThreads(r.threads)
	err := r.listErr
	started, gate := r.listStarted, r.listGate
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fakeRemote) Create(ctx context.Context, token, title string) (threadclient.Thread, error) {
	r.mu.Lock()
	r.createCalls++
	if token != r.validToken {
		r.mu.Unlock()
		return threadclient.Thread{}, errUnauthorized
	}
	err := r.createErr
	started, gate := r.createStarted, r.createGate
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return threadclient.Thread{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	now := r.now()
	t := threadclient.Thread{
		ID:        fmt.Sprintf("srv-%03d", r.seq),
		UserID:    "u1",
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.threads = append([]threadclient.Thread{t}, r.threads...)
	return t, nil
}

func (r *fakeRemote) Delete(ctx context.Context, token, id string) error {
	r.mu.Lock()
	r.deleteCalls++
	started, gate := r.deleteStarted, r.deleteGate
	r.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if token != r.validToken {
		return errUnauthorized
	}
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if indexOf(r.threads, id) < 0 {
		return &threadclient.APIError{Status: http.StatusNotFound, Code: 40401, Message: "thread not found"}
	}
	r.threads = removeID(r.threads, id)
	return nil
}

func (r *fakeRemote) set(fn func(r *fakeRemote)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

type fakeTokens struct {
	mu         sync.Mutex
	current    string
	next       string
	refreshErr error
	refreshes  int
}

func (f *fakeTokens) Token(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		return "", threadclient.ErrAuth
	}
	return f.current, nil
}

func (f *fakeTokens) Refresh(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	f.current = f.next
	return f.current, nil
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) listen(userID string, snap Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, snap)
}

func (r *recorder) all() []Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Snapshot(nil), r.snaps...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func thread(id, title string, updated time.Time) threadclient.Thread {
	return threadclient.Thread{ID: id, UserID: "u1", Title: title, CreatedAt: updated, UpdatedAt: updated}
}

func ids(threads []threadclient.Thread) []string {
	out := make([]string, 0, len(threads))
	for _, t := range threads {
		out = append(out, t.ID)
	}
	return out
}
