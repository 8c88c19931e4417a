package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribe/internal/config"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/scheduler"
	"scribe/internal/testsupport"
)

func newScheduler(t *testing.T, eng *testsupport.ScriptedEngine) (*scheduler.Scheduler, *queue.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return scheduler.New(cfg, store, eng, logging.NewNop()), store, cfg
}

func newMediaJob(t *testing.T, store *queue.Store, cfg *config.Config, name string) *queue.Job {
	t.Helper()
	path := filepath.Join(cfg.Paths.MediaDir, name)
	testsupport.WriteFile(t, path, 256)
	return testsupport.NewJob(t, store, path)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// assertContiguous verifies a transcript has no duplicated or skipped spans.
func assertContiguous(t *testing.T, segments []queue.Segment) {
	t.Helper()
	for i := 1; i < len(segments); i++ {
		if segments[i].Start != segments[i-1].End {
			t.Fatalf("segment %d starts at %v, previous ended at %v", i, segments[i].Start, segments[i-1].End)
		}
	}
}

func TestSubmitCompletesJob(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(4, 2.0, "hello"),
		Duration: 8,
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "episode.mkv")

	segments, err := sched.Submit(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(segments) != 4 {
		t.Fatalf("segments = %d, want 4", len(segments))
	}
	assertContiguous(t, segments)

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", stored.Status)
	}
	if len(stored.Segments) != 4 {
		t.Fatalf("persisted segments = %d, want 4", len(stored.Segments))
	}
	if stored.ProgressCurrent != 8 {
		t.Fatalf("progress current = %v, want 8", stored.ProgressCurrent)
	}
	if stored.ProgressPercent == nil || *stored.ProgressPercent != 100 {
		t.Fatalf("progress percent = %v, want 100", stored.ProgressPercent)
	}
	if sched.RunningJobID() != "" {
		t.Fatal("slot still occupied after completion")
	}
}

func TestSubmitUnknownJob(t *testing.T) {
	sched, _, _ := newScheduler(t, &testsupport.ScriptedEngine{})
	if _, err := sched.Submit(context.Background(), "missing"); !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("Submit unknown = %v, want ErrNotFound", err)
	}
}

func TestSubmitMissingMediaFile(t *testing.T) {
	sched, store, cfg := newScheduler(t, &testsupport.ScriptedEngine{})
	job := testsupport.NewJob(t, store, filepath.Join(cfg.Paths.MediaDir, "gone.mkv"))
	if _, err := sched.Submit(context.Background(), job.ID); !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("Submit missing file = %v, want ErrNotFound", err)
	}
}

func TestSubmitRejectsWhenSlotBusy(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(3, 1.0, "busy"),
		Duration: 3,
		Step:     make(chan struct{}, 8),
	}
	sched, store, cfg := newScheduler(t, eng)
	first := newMediaJob(t, store, cfg, "first.mkv")
	second := newMediaJob(t, store, cfg, "second.mkv")

	done := make(chan error, 1)
	go func() {
		_, err := sched.Submit(context.Background(), first.ID)
		done <- err
	}()
	waitFor(t, "first job to hold the slot", func() bool {
		return sched.RunningJobID() == first.ID
	})

	if _, err := sched.Submit(context.Background(), second.ID); !errors.Is(err, scheduler.ErrAlreadyRunning) {
		t.Fatalf("concurrent Submit = %v, want ErrAlreadyRunning", err)
	}

	// Release the script: one token per segment plus one for end-of-stream.
	for i := 0; i < 4; i++ {
		eng.Step <- struct{}{}
	}
	if err := <-done; err != nil {
		t.Fatalf("first Submit: %v", err)
	}
}

func TestPauseAndResumeInPlace(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(5, 2.0, "take five"),
		Duration: 10,
		Step:     make(chan struct{}, 16),
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "long.mkv")
	ctx := context.Background()

	done := make(chan error, 1)
	var segments []queue.Segment
	go func() {
		var err error
		segments, err = sched.Submit(ctx, job.ID)
		done <- err
	}()

	eng.Step <- struct{}{}
	eng.Step <- struct{}{}
	waitFor(t, "two segments consumed", func() bool {
		entry, err := sched.Progress(ctx, job.ID)
		return err == nil && entry.Current >= 4
	})

	if err := sched.Pause(ctx, job.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := sched.Pause(ctx, job.ID); !errors.Is(err, scheduler.ErrPrecondition) {
		t.Fatalf("second Pause = %v, want ErrPrecondition", err)
	}

	paused := testsupport.MustGet(t, store, job.ID)
	if paused.Status != queue.StatusPaused {
		t.Fatalf("persisted status = %s, want paused", paused.Status)
	}
	if paused.ElapsedSeconds <= 0 {
		t.Fatalf("paused elapsed = %v, want > 0", paused.ElapsedSeconds)
	}

	// A segment already in flight when the pause landed must not flip the
	// visible status back to transcribing. Depending on where the consumer
	// parked, the token may or may not be consumed; either way the status
	// stays paused.
	eng.Step <- struct{}{}
	time.Sleep(100 * time.Millisecond)
	entry, err := sched.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if entry.Status != queue.StatusPaused {
		t.Fatalf("live status after race = %s, want paused", entry.Status)
	}

	result, err := sched.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !result.Reopened {
		t.Fatal("Resume did not reopen the live session")
	}

	for i := 0; i < 3; i++ {
		eng.Step <- struct{}{}
	}
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(segments) != 5 {
		t.Fatalf("segments = %d, want 5 (no duplicates)", len(segments))
	}
	assertContiguous(t, segments)

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusDone {
		t.Fatalf("final status = %s, want done", stored.Status)
	}
}

func TestPausePreconditions(t *testing.T) {
	sched, store, cfg := newScheduler(t, &testsupport.ScriptedEngine{})
	job := newMediaJob(t, store, cfg, "idle.mkv")
	ctx := context.Background()

	if err := sched.Pause(ctx, "missing"); !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("Pause unknown = %v, want ErrNotFound", err)
	}
	if err := sched.Pause(ctx, job.ID); !errors.Is(err, scheduler.ErrPrecondition) {
		t.Fatalf("Pause idle job = %v, want ErrPrecondition", err)
	}
}

func TestCancelInterruptsRun(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:    testsupport.Transcript(100, 1.0, "endless"),
		Duration:  100,
		StepDelay: 20 * time.Millisecond,
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "cancelme.mkv")
	ctx := context.Background()

	// Cancelling an idle job is a no-op.
	if err := sched.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel idle: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := sched.Submit(ctx, job.ID)
		done <- err
	}()
	waitFor(t, "some progress", func() bool {
		entry, err := sched.Progress(ctx, job.ID)
		return err == nil && entry.Current > 0
	})

	if err := sched.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, scheduler.ErrCancelled) {
			t.Fatalf("Submit after cancel = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not settle after cancel")
	}

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusInterrupted {
		t.Fatalf("status = %s, want interrupted", stored.Status)
	}
	if len(stored.Segments) == 0 {
		t.Fatal("interrupted job lost its accumulated segments")
	}
	if stored.LastSegmentEnd() <= 0 {
		t.Fatal("interrupted job has no resume point")
	}
}

func TestCancelWhilePaused(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(10, 1.0, "parked"),
		Duration: 10,
		Step:     make(chan struct{}, 16),
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "paused.mkv")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := sched.Submit(ctx, job.ID)
		done <- err
	}()
	eng.Step <- struct{}{}
	waitFor(t, "first segment", func() bool {
		entry, err := sched.Progress(ctx, job.ID)
		return err == nil && entry.Current >= 1
	})
	if err := sched.Pause(ctx, job.ID); err != nil {
		t.Fatalf("Pause: %v", err)
	}

	// Drain any read that was mid-flight when the pause landed so the
	// consumer ends up parked at the gate.
	eng.Step <- struct{}{}
	time.Sleep(50 * time.Millisecond)

	// Cancel must force the gate open and unwind without waiting for
	// another segment.
	start := time.Now()
	if err := sched.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if waited := time.Since(start); waited > 2*time.Second {
		t.Fatalf("cancel of paused job took %v", waited)
	}

	if err := <-done; !errors.Is(err, scheduler.ErrCancelled) {
		t.Fatalf("Submit = %v, want ErrCancelled", err)
	}
	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusInterrupted {
		t.Fatalf("status = %s, want interrupted", stored.Status)
	}
}

func TestCancelAllDemotesQueued(t *testing.T) {
	sched, store, cfg := newScheduler(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()

	first := newMediaJob(t, store, cfg, "a.mkv")
	second := newMediaJob(t, store, cfg, "b.mkv")

	// No worker spawns before Start, so the jobs stay queued.
	queued, err := sched.Enqueue(ctx, first.ID, second.ID)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if queued != 2 {
		t.Fatalf("queued = %d, want 2", queued)
	}

	interrupted, demoted, err := sched.CancelAll(ctx)
	if err != nil {
		t.Fatalf("CancelAll: %v", err)
	}
	if interrupted != "" {
		t.Fatalf("interrupted = %q, want none", interrupted)
	}
	if demoted != 2 {
		t.Fatalf("demoted = %d, want 2", demoted)
	}
	for _, id := range []string{first.ID, second.ID} {
		if got := testsupport.MustGet(t, store, id).Status; got != queue.StatusWaiting {
			t.Fatalf("job %s status = %s, want waiting", id, got)
		}
	}
}

func TestResumeRerunsFromLastSegment(t *testing.T) {
	script := testsupport.Transcript(4, 2.0, "resumed")
	eng := &testsupport.ScriptedEngine{Script: script, Duration: 8}
	sched, store, cfg := newScheduler(t, eng)
	ctx := context.Background()

	path := filepath.Join(cfg.Paths.MediaDir, "restart.mkv")
	testsupport.WriteFile(t, path, 256)
	job := &queue.Job{
		ID:             "resumable01",
		Name:           "Restart",
		SourcePath:     path,
		MediaType:      "video",
		Status:         queue.StatusInterrupted,
		Segments:       script[:2],
		ElapsedSeconds: 3.5,
	}
	if err := store.Insert(ctx, job); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	result, err := sched.Resume(ctx, job.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if result.Reopened {
		t.Fatal("Resume claimed a live session after restart")
	}
	if len(result.Segments) != 4 {
		t.Fatalf("segments = %d, want 4 (2 prior + 2 new)", len(result.Segments))
	}
	assertContiguous(t, result.Segments)

	offsets := eng.Offsets()
	if len(offsets) != 1 || offsets[0] != 4.0 {
		t.Fatalf("engine offsets = %v, want [4]", offsets)
	}

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", stored.Status)
	}
	if stored.ElapsedSeconds < 3.5 {
		t.Fatalf("elapsed = %v, want prior 3.5 carried forward", stored.ElapsedSeconds)
	}
}

func TestResumePreconditions(t *testing.T) {
	sched, store, cfg := newScheduler(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()

	if _, err := sched.Resume(ctx, "missing"); !errors.Is(err, scheduler.ErrNotFound) {
		t.Fatalf("Resume unknown = %v, want ErrNotFound", err)
	}

	job := newMediaJob(t, store, cfg, "finished.mkv")
	if err := store.SetStatus(ctx, job.ID, queue.StatusDone); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if _, err := sched.Resume(ctx, job.ID); !errors.Is(err, scheduler.ErrPrecondition) {
		t.Fatalf("Resume done job = %v, want ErrPrecondition", err)
	}
}

func TestEngineFailureMarksError(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:    testsupport.Transcript(5, 1.0, "doomed"),
		Duration:  5,
		FailAfter: 2,
		FailErr:   errors.New("decoder exploded"),
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "broken.mkv")

	_, err := sched.Submit(context.Background(), job.ID)
	if !errors.Is(err, scheduler.ErrEngine) {
		t.Fatalf("Submit = %v, want ErrEngine", err)
	}

	stored := testsupport.MustGet(t, store, job.ID)
	if stored.Status != queue.StatusError {
		t.Fatalf("status = %s, want error", stored.Status)
	}
	if !strings.Contains(stored.ErrorMessage, "decoder exploded") {
		t.Fatalf("error message = %q", stored.ErrorMessage)
	}
	if len(stored.Segments) != 2 {
		t.Fatalf("partial segments = %d, want 2", len(stored.Segments))
	}
}

func TestWorkerDrainsQueueInOrder(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(2, 1.0, "queued"),
		Duration: 2,
	}
	sched, store, cfg := newScheduler(t, eng)
	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	jobs := []*queue.Job{
		newMediaJob(t, store, cfg, "q1.mkv"),
		newMediaJob(t, store, cfg, "q2.mkv"),
		newMediaJob(t, store, cfg, "q3.mkv"),
	}
	ids := []string{jobs[0].ID, jobs[1].ID, jobs[2].ID}
	if _, err := sched.Enqueue(ctx, ids...); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	waitFor(t, "queue to drain", func() bool {
		for _, id := range ids {
			if testsupport.MustGet(t, store, id).Status != queue.StatusDone {
				return false
			}
		}
		return true
	})
}

func TestWorkerContinuesPastFailedJob(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:    testsupport.Transcript(3, 1.0, "flaky"),
		Duration:  3,
		FailAfter: 1,
		FailErr:   errors.New("bad stream"),
	}
	sched, store, cfg := newScheduler(t, eng)
	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	first := newMediaJob(t, store, cfg, "f1.mkv")
	second := newMediaJob(t, store, cfg, "f2.mkv")
	if _, err := sched.Enqueue(ctx, first.ID, second.ID); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// One bad file must not stall the queue: both jobs settle as errors.
	waitFor(t, "both jobs to settle", func() bool {
		return testsupport.MustGet(t, store, first.ID).Status == queue.StatusError &&
			testsupport.MustGet(t, store, second.ID).Status == queue.StatusError
	})
}

func TestStartRevivesQueuedBacklog(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(2, 1.0, "revived"),
		Duration: 2,
	}
	sched, store, cfg := newScheduler(t, eng)
	ctx := context.Background()

	job := newMediaJob(t, store, cfg, "backlog.mkv")
	if _, err := store.MarkQueued(ctx, job.ID); err != nil {
		t.Fatalf("MarkQueued: %v", err)
	}

	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()

	waitFor(t, "backlog job to finish", func() bool {
		return testsupport.MustGet(t, store, job.ID).Status == queue.StatusDone
	})
}

func TestStopInterruptsInFlight(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:    testsupport.Transcript(100, 1.0, "stopped"),
		Duration:  100,
		StepDelay: 20 * time.Millisecond,
	}
	sched, store, cfg := newScheduler(t, eng)
	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	job := newMediaJob(t, store, cfg, "daemonstop.mkv")

	done := make(chan error, 1)
	go func() {
		_, err := sched.Submit(ctx, job.ID)
		done <- err
	}()
	waitFor(t, "run to make progress", func() bool {
		entry, err := sched.Progress(ctx, job.ID)
		return err == nil && entry.Current > 0
	})

	sched.Stop()

	select {
	case err := <-done:
		if !errors.Is(err, scheduler.ErrCancelled) {
			t.Fatalf("Submit after Stop = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not settle after Stop")
	}
	if got := testsupport.MustGet(t, store, job.ID).Status; got != queue.StatusInterrupted {
		t.Fatalf("status = %s, want interrupted", got)
	}
}

func TestStartTwiceFails(t *testing.T) {
	sched, _, _ := newScheduler(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer sched.Stop()
	if err := sched.Start(ctx); err == nil {
		t.Fatal("second Start succeeded")
	}
}

func TestProgressFallsBackToPersisted(t *testing.T) {
	eng := &testsupport.ScriptedEngine{
		Script:   testsupport.Transcript(2, 3.0, "fallback"),
		Duration: 6,
	}
	sched, store, cfg := newScheduler(t, eng)
	job := newMediaJob(t, store, cfg, "fallback.mkv")
	ctx := context.Background()

	if _, err := sched.Submit(ctx, job.ID); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// No live session remains; the entry comes from the store.
	entry, err := sched.Progress(ctx, job.ID)
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if entry.Status != queue.StatusDone {
		t.Fatalf("status = %s, want done", entry.Status)
	}
	if entry.Current != 6 {
		t.Fatalf("current = %v, want 6", entry.Current)
	}
	if entry.Percent == nil || *entry.Percent != 100 {
		t.Fatalf("percent = %v, want 100", entry.Percent)
	}
}
