package index

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Window is a committed half-open reservation interval [Start, End) tied to a
// booking.
type Window struct {
	BookingID string
	Start     time.Time
	End       time.Time
}

// ConflictError reports the committed bookings that intersect a rejected
// insert.
type ConflictError struct {
	ResourceID string
	BookingIDs []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("window conflicts with %d existing booking(s) on resource %s", len(e.BookingIDs), e.ResourceID)
}

// Index holds the committed windows per resource, sorted by start time.
// Inserting is a compare-and-commit: the overlap check and the append happen
// under the same lock, so two racing inserts for intersecting windows cannot
// both succeed.
//
// Lookups scan the resource's slice linearly from the first candidate; fine
// for up to a few thousand windows per resource, beyond that an interval tree
// would be needed.
type Index struct {
	mu      sync.RWMutex
	windows map[string][]Window
}

func New() *Index {
	return &Index{
		windows: make(map[string][]Window),
	}
}

// Overlaps returns the ids of all committed bookings whose window intersects
// [start, end). Adjacent windows do not intersect under half-open semantics.
func (idx *Index) Overlaps(resourceID string, start, end time.Time) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return overlapping(idx.windows[resourceID], start, end)
}

// Insert commits a window for bookingID. It fails with *ConflictError when any
// committed window intersects [start, end) at call time.
func (idx *Index) Insert(resourceID, bookingID string, start, end time.Time) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	windows := idx.windows[resourceID]
	if conflicts := overlapping(windows, start, end); len(conflicts) > 0 {
		return &ConflictError{ResourceID: resourceID, BookingIDs: conflicts}
	}

	at := sort.Search(len(windows), func(i int) bool {
		return windows[i].Start.After(start)
	})

	windows = append(windows, Window{})
	copy(windows[at+1:], windows[at:])
	windows[at] = Window{BookingID: bookingID, Start: start, End: end}
	idx.windows[resourceID] = windows

	return nil
}

// Remove drops the window committed for bookingID. Removing an unknown id is a
// no-op.
func (idx *Index) Remove(resourceID, bookingID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	windows := idx.windows[resourceID]
	for i, w := range windows {
		if w.BookingID == bookingID {
			idx.windows[resourceID] = append(windows[:i], windows[i+1:]...)
			return
		}
	}
}

// Windows returns a copy of the committed windows for a resource, in start
// order.
func (idx *Index) Windows(resourceID string) []Window {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	windows := idx.windows[resourceID]
	out := make([]Window, len(windows))
	copy(out, windows)
	return out
}

// Size returns the number of committed windows for a resource.
func (idx *Index) Size(resourceID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.windows[resourceID])
}

// overlapping assumes the caller holds at least a read lock. The overlap test
// is existing.Start < end && start < existing.End.
func overlapping(windows []Window, start, end time.Time) []string {
	var ids []string
	for _, w := range windows {
		if !end.After(w.Start) {
			// windows are sorted by start; nothing later can intersect
			break
		}
		if start.Before(w.End) {
			ids = append(ids, w.BookingID)
		}
	}
	return ids
}
