// Package ordering provides an ordered list of unique identifiers whose positions
// are always contiguous and 1-based. Every mutation renumbers the list, so callers
// never observe gaps or duplicate positions.
package ordering

import (
	"fmt"
	"math"
	"sort"
)

// Entry is an identifier with a position as loaded from storage or requested by a client.
// Positions may be fractional, duplicated or non-contiguous; they are normalized on load.
type Entry struct {
	ID       string
	Position float64
}

// node is an arena slot.
type node struct {
	id  string
	pos int // 1-based, valid while the node is linked
}

// List is an arena of nodes plus an index slice describing the current order.
// Removed nodes stay in the arena but are unlinked from index and byID.
type List struct {
	arena []node
	index []int          // position-1 -> arena slot
	byID  map[string]int // id -> arena slot
}

// New creates a list in the given order.
func New(ids ...string) (*List, error) {
	l := &List{byID: make(map[string]int, len(ids))}
	for _, id := range ids {
		if err := l.Append(id); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// FromEntries creates a list ordered by entry position. Equal positions keep their input order.
func FromEntries(entries []Entry) (*List, error) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Position < sorted[j].Position })

	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.ID
	}
	return New(ids...)
}

// Len returns the number of members.
func (l *List) Len() int {
	return len(l.index)
}

// IDs returns the members in order.
func (l *List) IDs() []string {
	ids := make([]string, len(l.index))
	for i, slot := range l.index {
		ids[i] = l.arena[slot].id
	}
	return ids
}

// Contains reports whether id is a member.
func (l *List) Contains(id string) bool {
	_, ok := l.byID[id]
	return ok
}

// Position returns the 1-based position of id.
func (l *List) Position(id string) (int, bool) {
	slot, ok := l.byID[id]
	if !ok {
		return 0, false
	}
	return l.arena[slot].pos, true
}

// Append adds id at the end.
func (l *List) Append(id string) error {
	return l.Insert(id, len(l.index)+1)
}

// Insert adds id so that it ends up at position at. Positions outside [1, Len()+1] are clamped.
func (l *List) Insert(id string, at int) error {
	if id == "" {
		return fmt.Errorf("ordering: empty id")
	}
	if _, exists := l.byID[id]; exists {
		return fmt.Errorf("ordering: duplicate id %q", id)
	}
	at = clamp(at, 1, len(l.index)+1)

	l.arena = append(l.arena, node{id: id})
	slot := len(l.arena) - 1
	l.byID[id] = slot

	l.index = append(l.index, 0)
	copy(l.index[at:], l.index[at-1:])
	l.index[at-1] = slot
	l.renumber(at - 1)
	return nil
}

// Remove unlinks id. Members after it move up by one.
func (l *List) Remove(id string) error {
	slot, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("ordering: unknown id %q", id)
	}
	i := l.arena[slot].pos - 1
	l.index = append(l.index[:i], l.index[i+1:]...)
	delete(l.byID, id)
	l.arena[slot].pos = 0
	l.renumber(i)
	return nil
}

// Move relocates id to position to. Positions outside [1, Len()] are clamped.
func (l *List) Move(id string, to int) error {
	slot, ok := l.byID[id]
	if !ok {
		return fmt.Errorf("ordering: unknown id %q", id)
	}
	from := l.arena[slot].pos - 1
	to = clamp(to, 1, len(l.index)) - 1
	if from == to {
		return nil
	}
	l.index = append(l.index[:from], l.index[from+1:]...)
	l.index = append(l.index, 0)
	copy(l.index[to+1:], l.index[to:])
	l.index[to] = slot
	l.renumber(min(from, to))
	return nil
}

// Reorder applies requested positions to a subset of members and renumbers the list.
//
// Members are sorted by their requested position, or their current position when not
// requested. On equal positions a member moving up is placed before the occupant and
// a member moving down after it; remaining ties keep the previous order.
func (l *List) Reorder(requested map[string]float64) error {
	for id, p := range requested {
		if _, ok := l.byID[id]; !ok {
			return fmt.Errorf("ordering: unknown id %q", id)
		}
		if math.IsNaN(p) || math.IsInf(p, 0) {
			return fmt.Errorf("ordering: invalid position %v for %q", p, id)
		}
	}

	type sortKey struct {
		slot int
		key  float64
		bias int
		prev int
	}
	keys := make([]sortKey, len(l.index))
	for i, slot := range l.index {
		prev := i + 1
		k := sortKey{slot: slot, key: float64(prev), prev: prev}
		if p, ok := requested[l.arena[slot].id]; ok {
			k.key = p
			switch {
			case p < float64(prev):
				k.bias = -1
			case p > float64(prev):
				k.bias = 1
			}
		}
		keys[i] = k
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].key != keys[j].key {
			return keys[i].key < keys[j].key
		}
		if keys[i].bias != keys[j].bias {
			return keys[i].bias < keys[j].bias
		}
		return keys[i].prev < keys[j].prev
	})
	for i, k := range keys {
		l.index[i] = k.slot
	}
	l.renumber(0)
	return nil
}

// Assignments returns the 1-based position of every member.
func (l *List) Assignments() map[string]int {
	out := make(map[string]int, len(l.index))
	for _, slot := range l.index {
		out[l.arena[slot].id] = l.arena[slot].pos
	}
	return out
}

// Validate checks that positions are contiguous, unique and consistent with the index.
func (l *List) Validate() error {
	if len(l.byID) != len(l.index) {
		return fmt.Errorf("ordering: %d ids indexed but %d linked", len(l.byID), len(l.index))
	}
	seen := make(map[int]bool, len(l.index))
	for i, slot := range l.index {
		n := l.arena[slot]
		if n.pos != i+1 {
			return fmt.Errorf("ordering: %q has position %d at index %d", n.id, n.pos, i)
		}
		if seen[slot] {
			return fmt.Errorf("ordering: slot %d linked twice", slot)
		}
		seen[slot] = true
		if l.byID[n.id] != slot {
			return fmt.Errorf("ordering: %q maps to slot %d, linked at %d", n.id, l.byID[n.id], slot)
		}
	}
	return nil
}

func (l *List) renumber(from int) {
	for i := from; i < len(l.index); i++ {
		l.arena[l.index[i]].pos = i + 1
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
