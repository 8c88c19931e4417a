package scheduler

import (
	"sync"
	"time"
)

// Stopwatch accumulates active transcription time. It reads only the
// monotonic clock, so elapsed values are immune to wall-clock adjustments and
// exclude however long a pause lasted.
type Stopwatch struct {
	mu      sync.Mutex
	base    float64
	start   time.Time
	running bool
}

// NewStopwatch returns a stopped stopwatch at zero.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{}
}

// Set seeds the accumulated seconds and optionally starts the watch.
func (w *Stopwatch) Set(base float64, running bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.base = base
	w.running = running
	if running {
		w.start = time.Now()
	}
}

// Elapsed returns the accumulated active seconds.
func (w *Stopwatch) Elapsed() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return w.base + time.Since(w.start).Seconds()
	}
	return w.base
}

// Pause freezes the watch and returns the elapsed seconds at the freeze.
func (w *Stopwatch) Pause() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		w.base += time.Since(w.start).Seconds()
		w.running = false
	}
	return w.base
}

// Resume restarts accumulation. No-op while running.
func (w *Stopwatch) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		w.running = true
		w.start = time.Now()
	}
}

// Reset clears the watch back to a stopped zero state.
func (w *Stopwatch) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.base = 0
	w.running = false
}
