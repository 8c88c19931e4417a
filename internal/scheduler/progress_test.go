package scheduler

import (
	"path/filepath"
	"testing"

	"scribe/internal/queue"
)

func TestTrackerLifecycle(t *testing.T) {
	tracker := NewTracker()
	path := NormalizePath("/media/episode.mkv")

	if _, ok := tracker.Get(path); ok {
		t.Fatal("empty tracker returned an entry")
	}

	tracker.Set(path, Entry{Current: 3, Status: queue.StatusTranscribing})
	entry, ok := tracker.Get(path)
	if !ok || entry.Current != 3 {
		t.Fatalf("Get = %+v, %v", entry, ok)
	}

	tracker.Clear(path)
	if _, ok := tracker.Get(path); ok {
		t.Fatal("entry survived Clear")
	}
}

func TestNormalizePathCanonicalizes(t *testing.T) {
	a := NormalizePath("/media/../media/show/./episode.mkv")
	b := NormalizePath("/media/show/episode.mkv")
	if a != b {
		t.Fatalf("NormalizePath mismatch: %q vs %q", a, b)
	}
	if rel := NormalizePath("episode.mkv"); !filepath.IsAbs(rel) {
		t.Fatalf("relative path not absolutized: %q", rel)
	}
}

func TestLiveEntryClampsCurrent(t *testing.T) {
	duration := 10.0
	entry := liveEntry(12, &duration, queue.StatusTranscribing)
	if entry.Current != 10 {
		t.Fatalf("current = %v, want clamped to 10", entry.Current)
	}
	if entry.Percent == nil || *entry.Percent != 100 {
		t.Fatalf("percent = %v, want 100", entry.Percent)
	}
}

func TestLiveEntryPercent(t *testing.T) {
	duration := 200.0
	entry := liveEntry(50, &duration, queue.StatusTranscribing)
	if entry.Percent == nil || *entry.Percent != 25 {
		t.Fatalf("percent = %v, want 25", entry.Percent)
	}

	// Unknown duration yields no percentage rather than a guess.
	entry = liveEntry(50, nil, queue.StatusTranscribing)
	if entry.Percent != nil {
		t.Fatalf("percent without duration = %v, want nil", *entry.Percent)
	}
	zero := 0.0
	entry = liveEntry(50, &zero, queue.StatusTranscribing)
	if entry.Percent != nil {
		t.Fatalf("percent with zero duration = %v, want nil", *entry.Percent)
	}
}
