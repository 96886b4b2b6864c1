package threadview

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/suPer8Hu/genie-chat/internal/threadclient"
)

// Search keeps threads whose title contains term, ignoring case, in input
// order. An empty term matches nothing.
func Search(threads []threadclient.Thread, term string) []threadclient.Thread {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []threadclient.Thread
	for _, t := range threads {
		if strings.Contains(strings.ToLower(t.Title), term) {
			out = append(out, t)
		}
	}
	return out
}

// FuzzySearch matches term as a subsequence of each title, folding case and
// diacritics, and orders the hits best match first. Ties keep input order.
func FuzzySearch(threads []threadclient.Thread, term string) []threadclient.Thread {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil
	}
	titles := make([]string, len(threads))
	for i, t := range threads {
		titles[i] = t.Title
	}
	ranks := fuzzy.RankFindNormalizedFold(term, titles)
	sort.SliceStable(ranks, func(i, j int) bool {
		if ranks[i].Distance != ranks[j].Distance {
			return ranks[i].Distance < ranks[j].Distance
		}
		return ranks[i].OriginalIndex < ranks[j].OriginalIndex
	})

	out := make([]threadclient.Thread, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, threads[r.OriginalIndex])
	}
	return out
}

const titleLimit = 50

// TitleFromMessage derives a thread title from the first message: the first
// 50 characters followed by "...".
func TitleFromMessage(msg string) string {
	msg = strings.TrimSpace(msg)
	if utf8.RuneCountInString(msg) > titleLimit {
		msg = string([]rune(msg)[:titleLimit])
	}
	return msg + "..."
}
