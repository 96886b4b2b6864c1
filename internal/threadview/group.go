package threadview

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

type Bucket int

const (
	Today Bucket = iota
	Yesterday
	ThisWeek
	Older
)

func (b Bucket) String() string {
	switch b {
	case Today:
		return "Today"
	case Yesterday:
		return "Yesterday"
	case ThisWeek:
		return "This Week"
	}
	return "Older"
}

// Groups holds the threads of each bucket in their input order.
type Groups struct {
	Today     []threadclient.Thread
	Yesterday []threadclient.Thread
	ThisWeek  []threadclient.Thread
	Older     []threadclient.Thread
}

func (g Groups) Bucket(b Bucket) []threadclient.Thread {
	switch b {
	case Today:
		return g.Today
	case Yesterday:
		return g.Yesterday
	case ThisWeek:
		return g.ThisWeek
	}
	return g.Older
}

func (g Groups) Len() int {
	return len(g.Today) + len(g.Yesterday) + len(g.ThisWeek) + len(g.Older)
}

// BucketOf places updatedAt relative to the calendar day of now, in now's
// location. Anything after local midnight, future times included, is Today.
func BucketOf(updatedAt, now time.Time) Bucket {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case !updatedAt.Before(midnight):
		return Today
	case !updatedAt.Before(midnight.AddDate(0, 0, -1)):
		return Yesterday
	case !updatedAt.Before(midnight.AddDate(0, 0, -7)):
		return ThisWeek
	}
	return Older
}

func Group(threads []threadclient.Thread, now time.Time) Groups {
	return collect(threads, func(i int) Bucket { return BucketOf(threads[i].UpdatedAt, now) })
}

func collect(threads []threadclient.Thread, bucketOf func(i int) Bucket) Groups {
	var g Groups
	for i, t := range threads {
		switch bucketOf(i) {
		case Today:
			g.Today = append(g.Today, t)
		case Yesterday:
			g.Yesterday = append(g.Yesterday, t)
		case ThisWeek:
			g.ThisWeek = append(g.ThisWeek, t)
		default:
			g.Older = append(g.Older, t)
		}
	}
	return g
}

// Fingerprint identifies a list by the ids and update times of its threads,
// in order. Titles and counts do not contribute.
func Fingerprint(threads []threadclient.Thread) uint64 {
	d := xxhash.New()
	var buf [8]byte
	for _, t := range threads {
		_, _ = d.WriteString(t.ID)
		_, _ = d.Write([]byte{0})
		binary.LittleEndian.PutUint64(buf[:], uint64(t.UpdatedAt.UnixNano()))
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}
