package scheduler

import (
	"math"
	"path/filepath"
	"sync"

	"scribe/internal/queue"
)

// Entry is the live progress of a job keyed by its normalized media path.
// Entries are ephemeral: rebuilt by a job's own execution and cleared when it
// leaves the running/paused states.
type Entry struct {
	Current  float64
	Duration *float64
	Percent  *float64
	Status   queue.Status
}

// Tracker holds live progress entries for progress-polling requests.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{entries: make(map[string]Entry)}
}

// Set stores the entry for a normalized path.
func (t *Tracker) Set(path string, entry Entry) {
	t.mu.Lock()
	t.entries[path] = entry
	t.mu.Unlock()
}

// Get returns the entry for a normalized path.
func (t *Tracker) Get(path string) (Entry, bool) {
	t.mu.RLock()
	entry, ok := t.entries[path]
	t.mu.RUnlock()
	return entry, ok
}

// Clear removes the entry for a normalized path.
func (t *Tracker) Clear(path string) {
	t.mu.Lock()
	delete(t.entries, path)
	t.mu.Unlock()
}

// NormalizePath canonicalizes a media path so identity re-derived from a path
// always finds the same live state.
func NormalizePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// liveEntry builds a progress entry enforcing current <= duration and
// percent = min(current/duration*100, 100) when the duration is known.
func liveEntry(current float64, duration *float64, status queue.Status) Entry {
	if duration != nil && *duration > 0 && current > *duration {
		current = *duration
	}
	return Entry{
		Current:  current,
		Duration: duration,
		Percent:  percentOf(current, duration),
		Status:   status,
	}
}

func percentOf(current float64, duration *float64) *float64 {
	if duration == nil || *duration <= 0 {
		return nil
	}
	p := math.Min(current / *duration * 100, 100)
	return &p
}
