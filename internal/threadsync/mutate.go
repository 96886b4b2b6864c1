package threadsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"go.uber.org/zap"
)

// TempPrefix marks placeholder ids of threads the server has not confirmed.
const TempPrefix = "temp-"

func IsPlaceholder(id string) bool {
	return strings.HasPrefix(id, TempPrefix)
}

// Create shows a placeholder thread at the top of the list at once, then
// replaces it with the server's thread. On failure the list is rolled back
// and the error returned.
func (s *Syncer) Create(ctx context.Context, userID, title string) (threadclient.Thread, error) {
	if strings.TrimSpace(title) == "" {
		return threadclient.Thread{}, fmt.Errorf("%w: title is required", threadclient.ErrValidation)
	}

	now := s.now()
	m := &mutation{
		kind: opCreate,
		placeholder: threadclient.Thread{
			ID:        TempPrefix + uuid.NewString(),
			UserID:    userID,
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	s.mu.Lock()
	st := s.state(userID)
	m.prev = cloneThreads(st.threads)
	st.threads = slices.Insert(cloneThreads(st.threads), 0, m.placeholder)
	s.track(st, m)
	snap := st.snapshot(userID)
	s.mu.Unlock()
	s.notify(userID, snap)

	var created threadclient.Thread
	err := s.withAuth(ctx, func(tok string) error {
		var err error
		created, err = s.remote.Create(ctx, tok, title)
		return err
	})

	s.mu.Lock()
	st = s.state(userID)
	st.pending--
	if err != nil {
		s.rollback(st, m)
		snap = st.snapshot(userID)
		s.mu.Unlock()
		s.log.Warn("create thread failed", zap.String("user_id", userID), zap.Error(err))
		s.notify(userID, snap)
		return threadclient.Thread{}, err
	}

	// matched by placeholder id, never by title
	if i := indexOf(st.threads, m.placeholder.ID); i >= 0 {
		st.threads[i] = created
	} else if indexOf(st.threads, created.ID) < 0 {
		st.threads = slices.Insert(st.threads, 0, created)
	}
	m.settled = true
	m.result = created
	s.settle(st, m)
	snap = st.snapshot(userID)
	s.mu.Unlock()

	s.notify(userID, snap)
	s.persist(ctx, userID)
	return created, nil
}

// Delete removes the thread from the list at once. A thread the server no
// longer has counts as deleted. Placeholders cannot be deleted until their
// create settles. A failed delete puts the thread back where it was.
func (s *Syncer) Delete(ctx context.Context, userID, id string) error {
	if IsPlaceholder(id) {
		return fmt.Errorf("%w: thread %s is not saved yet", threadclient.ErrValidation, id)
	}

	m := &mutation{kind: opDelete, id: id}

	s.mu.Lock()
	st := s.state(userID)
	m.prev = cloneThreads(st.threads)
	if i := indexOf(st.threads, id); i >= 0 {
		t := st.threads[i]
		m.removed = &t
		st.threads = removeID(cloneThreads(st.threads), id)
	}
	s.track(st, m)
	snap := st.snapshot(userID)
	s.mu.Unlock()
	s.notify(userID, snap)

	err := s.withAuth(ctx, func(tok string) error {
		return s.remote.Delete(ctx, tok, id)
	})

	s.mu.Lock()
	st = s.state(userID)
	st.pending--
	if err != nil && !errors.Is(err, threadclient.ErrNotFound) {
		s.rollback(st, m)
		snap = st.snapshot(userID)
		s.mu.Unlock()
		s.log.Warn("delete thread failed", zap.String("user_id", userID), zap.String("thread_id", id), zap.Error(err))
		s.notify(userID, snap)
		return err
	}

	st.threads = removeID(st.threads, id)
	m.settled = true
	s.settle(st, m)
	snap = st.snapshot(userID)
	s.mu.Unlock()

	s.notify(userID, snap)
	s.persist(ctx, userID)
	return nil
}

// track journals an applied optimistic mutation. Caller holds s.mu.
func (s *Syncer) track(st *userState, m *mutation) {
	st.version++
	m.appliedVersion = st.version
	st.pending++
	st.journal = append(st.journal, m)
}

// settle keeps m journalled only while a fetch that may not reflect it is
// outstanding. Caller holds s.mu.
func (s *Syncer) settle(st *userState, m *mutation) {
	if !st.fetching {
		st.journal = dropMutation(st.journal, m)
	}
	st.version++
}

// rollback undoes m. When nothing else touched the list since m was applied
// the pre-mutation snapshot is restored exactly; otherwise only m's own
// effect is reverted. Caller holds s.mu.
func (s *Syncer) rollback(st *userState, m *mutation) {
	if st.version == m.appliedVersion {
		st.threads = m.prev
	} else {
		switch m.kind {
		case opCreate:
			st.threads = removeID(st.threads, m.placeholder.ID)
		case opDelete:
			st.threads = reinsert(st.threads, m.removed)
		}
	}
	st.journal = dropMutation(st.journal, m)
	st.version++
}
