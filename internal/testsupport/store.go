package testsupport

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"scribe/internal/config"
	"scribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob inserts a waiting job for the given media path and returns it.
func NewJob(t testing.TB, store *queue.Store, path string) *queue.Job {
	t.Helper()

	job := &queue.Job{
		ID:         strings.ReplaceAll(uuid.NewString(), "-", ""),
		Name:       "Test Media",
		SourcePath: path,
		MediaType:  "audio",
		Status:     queue.StatusWaiting,
	}
	if err := store.Insert(context.Background(), job); err != nil {
		t.Fatalf("store.Insert: %v", err)
	}
	return job
}

// MustGet fetches a job by id and fails the test when it is absent.
func MustGet(t testing.TB, store *queue.Store, id string) *queue.Job {
	t.Helper()

	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("store.GetByID: %v", err)
	}
	if job == nil {
		t.Fatalf("job %s not found", id)
	}
	return job
}
