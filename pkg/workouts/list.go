package workouts

import (
	"sort"
	"sync"
	"time"

	"fitverse/pkg/workoutapi"
)

// List is the held snapshot of the current user's workouts. It is only ever replaced
// wholesale; callers never patch individual entries.
type List struct {
	mu          sync.RWMutex
	items       []workoutapi.Workout
	refreshedAt time.Time
}

// NewList returns an empty List.
func NewList() *List {
	return &List{}
}

// Replace swaps the snapshot for items, sorted newest first by DateAdded. Entries with equal
// timestamps keep their server order.
func (l *List) Replace(items []workoutapi.Workout, at time.Time) {
	sorted := make([]workoutapi.Workout, len(items))
	copy(sorted, items)
	SortNewestFirst(sorted)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = sorted
	l.refreshedAt = at
}

// All returns a copy of the snapshot.
func (l *List) All() []workoutapi.Workout {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]workoutapi.Workout, len(l.items))
	copy(out, l.items)
	return out
}

// Lookup finds a workout by id.
func (l *List) Lookup(id string) (workoutapi.Workout, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, w := range l.items {
		if w.ID == id {
			return w, true
		}
	}
	return workoutapi.Workout{}, false
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// RefreshedAt reports when the snapshot was last replaced. Zero means never.
func (l *List) RefreshedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.refreshedAt
}

// SortNewestFirst orders items by DateAdded descending, keeping the relative order of ties.
func SortNewestFirst(items []workoutapi.Workout) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].DateAdded.After(items[j].DateAdded.Time)
	})
}
