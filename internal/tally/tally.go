// Package tally counts the dominant emotion of each sampled frame.
package tally

import (
	"encoding/json"
	"fmt"
	"sort"

	"moodreel/internal/emotion"
)

// Aggregator accumulates label counts in first-seen order. It is not safe for
// concurrent use; a run owns its aggregator.
type Aggregator struct {
	counts map[emotion.Label]int
	order  []emotion.Label
}

// NewAggregator returns an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[emotion.Label]int)}
}

// Record increments the count for label.
func (a *Aggregator) Record(label emotion.Label) {
	if a.counts == nil {
		a.counts = make(map[emotion.Label]int)
	}
	if _, seen := a.counts[label]; !seen {
		a.order = append(a.order, label)
	}
	a.counts[label]++
}

// Finalize returns an immutable snapshot. The aggregator may keep recording
// without affecting earlier snapshots.
func (a *Aggregator) Finalize() Snapshot {
	entries := make([]Entry, 0, len(a.order))
	total := 0
	for _, label := range a.order {
		n := a.counts[label]
		entries = append(entries, Entry{Label: label, Count: n})
		total += n
	}
	for i := range entries {
		entries[i].Percent = percent(entries[i].Count, total)
	}
	return Snapshot{entries: entries, total: total}
}

// Entry is one label row.
type Entry struct {
	Label   emotion.Label `json:"label"`
	Count   int           `json:"count"`
	Percent float64       `json:"percent"`
}

// Snapshot is a finished tally.
type Snapshot struct {
	entries []Entry
	total   int
}

// Total is the number of recorded samples.
func (s Snapshot) Total() int { return s.total }

// Empty reports whether nothing was recorded.
func (s Snapshot) Empty() bool { return s.total == 0 }

// Count returns the count for label.
func (s Snapshot) Count(label emotion.Label) int {
	for _, e := range s.entries {
		if e.Label == label {
			return e.Count
		}
	}
	return 0
}

// Percent returns label's share of all samples, from 0 to 100.
func (s Snapshot) Percent(label emotion.Label) float64 {
	return percent(s.Count(label), s.total)
}

// Dominant returns the most frequent label. Ties go to the label seen first.
func (s Snapshot) Dominant() (emotion.Label, bool) {
	if len(s.entries) == 0 {
		return "", false
	}
	best := s.entries[0]
	for _, e := range s.entries[1:] {
		if e.Count > best.Count {
			best = e
		}
	}
	return best.Label, true
}

// Entries returns rows in first-seen order.
func (s Snapshot) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Ranked returns rows by descending count, first-seen order breaking ties.
func (s Snapshot) Ranked() []Entry {
	out := s.Entries()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

type snapshotJSON struct {
	Total    int           `json:"total"`
	Dominant emotion.Label `json:"dominant,omitempty"`
	Entries  []Entry       `json:"entries"`
}

// MarshalJSON encodes the snapshot with ranked entries.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	dominant, _ := s.Dominant()
	return json.Marshal(snapshotJSON{Total: s.total, Dominant: dominant, Entries: s.Ranked()})
}

// UnmarshalJSON restores a snapshot produced by MarshalJSON. First-seen order
// becomes the encoded order, repeated labels are merged and the encoded
// total and percentages are recomputed from the counts.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var payload snapshotJSON
	if err := json.Unmarshal(data, &payload); err != nil {
		return err
	}
	index := make(map[emotion.Label]int, len(payload.Entries))
	entries := make([]Entry, 0, len(payload.Entries))
	total := 0
	for _, e := range payload.Entries {
		if e.Count < 0 {
			return fmt.Errorf("tally: negative count %d for %q", e.Count, e.Label)
		}
		if e.Count == 0 {
			continue
		}
		if i, ok := index[e.Label]; ok {
			entries[i].Count += e.Count
		} else {
			index[e.Label] = len(entries)
			entries = append(entries, Entry{Label: e.Label, Count: e.Count})
		}
		total += e.Count
	}
	for i := range entries {
		entries[i].Percent = percent(entries[i].Count, total)
	}
	*s = Snapshot{entries: entries, total: total}
	return nil
}

func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}
