package threadsync

import (
	"time"

	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

type Phase int

const (
	Idle Phase = iota
	Fetching
	Ready
	Mutating
	Degraded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	case Mutating:
		return "mutating"
	case Degraded:
		return "degraded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Snapshot is a copy of one user's visible state. Version increases with
// every visible change, so listeners can drop out-of-order deliveries.
type Snapshot struct {
	UserID    string
	Phase     Phase
	Threads   []threadclient.Thread
	Stale     bool
	FetchedAt time.Time
	Err       error
	Failures  int
	Version   uint64
}

type userState struct {
	// base is Idle, Ready, Degraded or Failed; Fetching and Mutating are
	// derived from the in-flight work below.
	base      Phase
	threads   []threadclient.Thread
	fetchedAt time.Time
	stale     bool
	err       error
	failures  int
	version   uint64

	token    uint64 // request token of the current fetch
	fetching bool
	pending  int
	journal  []*mutation
}

func (st *userState) phase() Phase {
	switch {
	case st.pending > 0:
		return Mutating
	case st.fetching && (st.base == Idle || st.base == Failed):
		return Fetching
	}
	return st.base
}

func (st *userState) hasData() bool {
	return st.base == Ready
}

func (st *userState) snapshot(userID string) Snapshot {
	return Snapshot{
		UserID:    userID,
		Phase:     st.phase(),
		Threads:   cloneThreads(st.threads),
		Stale:     st.stale,
		FetchedAt: st.fetchedAt,
		Err:       st.err,
		Failures:  st.failures,
		Version:   st.version,
	}
}

func cloneThreads(in []threadclient.Thread) []threadclient.Thread {
	out := make([]threadclient.Thread, len(in))
	copy(out, in)
	return out
}
