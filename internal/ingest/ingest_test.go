package ingest_test

import (
	"context"
	"path/filepath"
	"testing"

	"scribe/internal/ingest"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/testsupport"
)

func TestRegisterCreatesWaitingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registrar := ingest.New(store, logging.NewNop())

	path := filepath.Join(cfg.Paths.MediaDir, "team_standup-notes.mp3")
	testsupport.WriteFile(t, path, 1024)

	result, err := registrar.Register(context.Background(), path)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if result.Duplicate {
		t.Fatal("fresh file reported as duplicate")
	}

	job := result.Job
	if job.ID == "" || len(job.ID) != 32 {
		t.Fatalf("job id = %q, want 32 hex chars", job.ID)
	}
	if job.Name != "Team Standup Notes" {
		t.Fatalf("name = %q, want %q", job.Name, "Team Standup Notes")
	}
	if job.MediaType != "audio" {
		t.Fatalf("media type = %q, want audio", job.MediaType)
	}
	if job.FileSize != 1024 {
		t.Fatalf("file size = %d, want 1024", job.FileSize)
	}
	if job.FileHash == "" {
		t.Fatal("file hash empty")
	}
	if job.Status != queue.StatusWaiting {
		t.Fatalf("status = %s, want waiting", job.Status)
	}

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.FileHash != job.FileHash {
		t.Fatal("hash not persisted")
	}
}

func TestRegisterDetectsDuplicateContent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registrar := ingest.New(store, logging.NewNop())
	ctx := context.Background()

	original := filepath.Join(cfg.Paths.MediaDir, "lecture.mp4")
	testsupport.WriteFile(t, original, 2048)
	first, err := registrar.Register(ctx, original)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Same bytes under a different name resolve to the existing job.
	copyPath := filepath.Join(cfg.Paths.MediaDir, "lecture_copy.mp4")
	testsupport.WriteFile(t, copyPath, 2048)
	second, err := registrar.Register(ctx, copyPath)
	if err != nil {
		t.Fatalf("Register duplicate: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("duplicate content not detected")
	}
	if second.Job.ID != first.Job.ID {
		t.Fatalf("duplicate resolved to %s, want %s", second.Job.ID, first.Job.ID)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("jobs = %d, want 1", len(jobs))
	}
}

func TestRegisterRejectsUnsupportedType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registrar := ingest.New(store, logging.NewNop())

	path := filepath.Join(cfg.Paths.MediaDir, "notes.txt")
	testsupport.WriteFile(t, path, 16)
	if _, err := registrar.Register(context.Background(), path); err == nil {
		t.Fatal("unsupported extension accepted")
	}
}

func TestRegisterMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	registrar := ingest.New(store, logging.NewNop())

	if _, err := registrar.Register(context.Background(), filepath.Join(cfg.Paths.MediaDir, "ghost.mp3")); err == nil {
		t.Fatal("missing file accepted")
	}
}

func TestMediaTypeFor(t *testing.T) {
	cases := map[string]string{
		"a.MP4":  "video",
		"b.mkv":  "video",
		"c.flac": "audio",
		"d.OPUS": "audio",
		"e.txt":  "",
		"f":      "",
	}
	for path, want := range cases {
		if got := ingest.MediaTypeFor(path); got != want {
			t.Errorf("MediaTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestInferName(t *testing.T) {
	cases := map[string]string{
		"/media/quarterly_review-2024.mkv": "Quarterly Review 2024",
		"/media/already Nice Name.wav":     "Already Nice Name",
		"/media/....mp3":                   "Untitled",
	}
	for path, want := range cases {
		if got := ingest.InferName(path); got != want {
			t.Errorf("InferName(%q) = %q, want %q", path, got, want)
		}
	}
}
