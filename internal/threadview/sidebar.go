package threadview

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
	"github.com/suPer8Hu/genie-chat/internal/threadsync"
)

const EmptyText = "No chat threads yet"

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	activeStyle = lipgloss.NewStyle().
			PaddingLeft(2).
			Bold(true).
			Foreground(lipgloss.Color("212"))

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true)
)

// Sidebar renders the bucketed thread list. Its own state (collapsed, active
// thread) never causes a regroup: groups are recomputed only when the list
// fingerprint or the calendar day changes.
type Sidebar struct {
	Collapsed bool
	ActiveID  string

	memo     sidebarMemo
	regroups int
}

// sidebarMemo keeps bucket assignments by position, not thread copies, so
// titles and counts always render from the current list.
type sidebarMemo struct {
	ok          bool
	fingerprint uint64
	day         string
	assign      []Bucket
}

func (s *Sidebar) Toggle() {
	s.Collapsed = !s.Collapsed
}

func (s *Sidebar) SetActive(id string) {
	s.ActiveID = id
}

// Groups returns the memoized grouping for threads at now.
func (s *Sidebar) Groups(threads []threadclient.Thread, now time.Time) Groups {
	fp := Fingerprint(threads)
	day := now.Format("2006-01-02") + now.Location().String()
	if !s.memo.ok || s.memo.fingerprint != fp || s.memo.day != day {
		assign := make([]Bucket, len(threads))
		for i, t := range threads {
			assign[i] = BucketOf(t.UpdatedAt, now)
		}
		s.memo = sidebarMemo{ok: true, fingerprint: fp, day: day, assign: assign}
		s.regroups++
	}

	return collect(threads, func(i int) Bucket { return s.memo.assign[i] })
}

// Regroups reports how many times the grouping has been recomputed.
func (s *Sidebar) Regroups() int {
	return s.regroups
}

func (s *Sidebar) Render(threads []threadclient.Thread, now time.Time) string {
	g := s.Groups(threads, now)

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("History (%d)", g.Len())))
	if s.Collapsed {
		return b.String()
	}
	if g.Len() == 0 {
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render(EmptyText))
		return b.String()
	}

	for _, bucket := range []Bucket{Today, Yesterday, ThisWeek, Older} {
		items := g.Bucket(bucket)
		if len(items) == 0 {
			continue
		}
		b.WriteString("\n")
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s (%d)", bucket, len(items))))
		for _, t := range items {
			b.WriteString("\n")
			b.WriteString(s.renderItem(t))
		}
	}
	return b.String()
}

func (s *Sidebar) renderItem(t threadclient.Thread) string {
	style := itemStyle
	if t.ID == s.ActiveID {
		style = activeStyle
	}
	line := style.Render(t.Title) + " " + countStyle.Render(fmt.Sprintf("%d", t.MessageCount))
	if threadsync.IsPlaceholder(t.ID) {
		line += " " + mutedStyle.Render("saving…")
	}
	return line
}
