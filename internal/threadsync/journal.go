package threadsync

import (
	"slices"

	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

type opKind int

const (
	opCreate opKind = iota
	opDelete
)

// mutation is one optimistic create or delete. It stays in the user's
// journal while in flight, and after settling for as long as a fetch that
// may predate it is outstanding.
type mutation struct {
	kind opKind

	// create
	placeholder threadclient.Thread
	result      threadclient.Thread

	// delete
	id      string
	removed *threadclient.Thread

	prev           []threadclient.Thread
	appliedVersion uint64
	settled        bool
}

// replay applies journalled mutations, oldest first, onto a list that came
// from the server or the persistent cache. Every step is idempotent so a
// mutation the list already reflects is not applied twice.
func replay(base []threadclient.Thread, journal []*mutation) []threadclient.Thread {
	out := cloneThreads(base)
	for _, m := range journal {
		switch m.kind {
		case opCreate:
			t := m.placeholder
			if m.settled {
				t = m.result
			}
			if indexOf(out, t.ID) < 0 {
				out = slices.Insert(out, 0, t)
			}
		case opDelete:
			out = removeID(out, m.id)
		}
	}
	return out
}

// confirmedView is the visible list minus effects still awaiting the server.
func confirmedView(visible []threadclient.Thread, journal []*mutation) []threadclient.Thread {
	out := cloneThreads(visible)
	for i := len(journal) - 1; i >= 0; i-- {
		m := journal[i]
		if m.settled {
			continue
		}
		switch m.kind {
		case opCreate:
			out = removeID(out, m.placeholder.ID)
		case opDelete:
			out = reinsert(out, m.removed)
		}
	}
	return out
}

func dropMutation(journal []*mutation, m *mutation) []*mutation {
	return slices.DeleteFunc(journal, func(x *mutation) bool { return x == m })
}

func dropSettled(journal []*mutation) []*mutation {
	return slices.DeleteFunc(journal, func(x *mutation) bool { return x.settled })
}

func indexOf(threads []threadclient.Thread, id string) int {
	return slices.IndexFunc(threads, func(t threadclient.Thread) bool { return t.ID == id })
}

func removeID(threads []threadclient.Thread, id string) []threadclient.Thread {
	if i := indexOf(threads, id); i >= 0 {
		return slices.Delete(threads, i, i+1)
	}
	return threads
}

// reinsert puts t back at its place in the most-recently-updated-first order.
func reinsert(threads []threadclient.Thread, t *threadclient.Thread) []threadclient.Thread {
	if t == nil || indexOf(threads, t.ID) >= 0 {
		return threads
	}
	i := slices.IndexFunc(threads, func(x threadclient.Thread) bool { return x.UpdatedAt.Before(t.UpdatedAt) })
	if i < 0 {
		i = len(threads)
	}
	return slices.Insert(threads, i, *t)
}
