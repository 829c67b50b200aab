// Package graph derives backlinks, statistics, and node/edge graphs from a
// note collection. Nothing here is persisted; every result is recomputed
// from the collection passed in.
package graph

import (
	"sort"

	"github.com/starford/mindweave/internal/parser"
)

// NoteView is the read projection of a note the aggregator works on.
type NoteView struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Links     []string `json:"links"`
	Backlinks []string `json:"backlinks"`
	Tags      []string `json:"tags"`
}

// Connections is len(Links) + len(Backlinks).
func (n NoteView) Connections() int {
	return len(n.Links) + len(n.Backlinks)
}

// TagCount is the number of notes carrying a tag.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarises a note collection.
type Stats struct {
	TagCounts        []TagCount `json:"tag_counts"`
	MostConnected    []NoteView `json:"most_connected"`
	TotalConnections int        `json:"total_connections"`
}

// ComputeBacklinks returns a copy of notes where each Backlinks holds the
// ids of notes linking to that note's title, in collection order. A note
// linking to the same title twice is listed once.
func ComputeBacklinks(notes []NoteView) []NoteView {
	byTitle := titleIndex(notes)
	backlinks := make([][]string, len(notes))
	for _, src := range notes {
		seen := make(map[int]struct{})
		for _, target := range src.Links {
			for _, i := range byTitle[target] {
				if _, dup := seen[i]; dup {
					continue
				}
				seen[i] = struct{}{}
				backlinks[i] = append(backlinks[i], src.ID)
			}
		}
	}

	out := make([]NoteView, len(notes))
	for i, n := range notes {
		n.Backlinks = backlinks[i]
		if n.Backlinks == nil {
			n.Backlinks = []string{}
		}
		out[i] = n
	}
	return out
}

// Aggregate computes tag frequencies, the connection ranking, and the total
// outbound link count. Backlinks are taken as given.
func Aggregate(notes []NoteView) Stats {
	stats := Stats{
		TagCounts:     []TagCount{},
		MostConnected: make([]NoteView, len(notes)),
	}

	counts := make(map[string]int)
	var order []string
	for _, n := range notes {
		stats.TotalConnections += len(n.Links)
		for _, tag := range parser.Unique(n.Tags) {
			if _, ok := counts[tag]; !ok {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}
	for _, tag := range order {
		stats.TagCounts = append(stats.TagCounts, TagCount{Tag: tag, Count: counts[tag]})
	}
	sort.SliceStable(stats.TagCounts, func(i, j int) bool {
		return stats.TagCounts[i].Count > stats.TagCounts[j].Count
	})

	copy(stats.MostConnected, notes)
	sort.SliceStable(stats.MostConnected, func(i, j int) bool {
		return stats.MostConnected[i].Connections() > stats.MostConnected[j].Connections()
	})
	return stats
}

func titleIndex(notes []NoteView) map[string][]int {
	idx := make(map[string][]int, len(notes))
	for i, n := range notes {
		idx[n.Title] = append(idx[n.Title], i)
	}
	return idx
}
