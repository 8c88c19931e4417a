package daemon

import (
	"context"
	"testing"

	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	d, store, _ := newTestDaemon(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("daemon not reported running")
	}
	if status.LeaseOwner == "" {
		t.Fatal("lease owner empty while running")
	}
	if d.APIAddr() == "" {
		t.Fatal("api server not bound")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("daemon still reported running after Stop")
	}
	owner, err := store.LeaseOwner(ctx)
	if err != nil {
		t.Fatalf("LeaseOwner: %v", err)
	}
	if owner != "" {
		t.Fatalf("lease still held by %q after Stop", owner)
	}
}

func TestDaemonSecondInstanceRefused(t *testing.T) {
	d, _, cfg := newTestDaemon(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	secondStore := testsupport.MustOpenStore(t, cfg)
	second, err := New(cfg, secondStore, &testsupport.ScriptedEngine{}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon instance started")
	}
}

func TestDaemonResetsStrandedJobs(t *testing.T) {
	d, store, _ := newTestDaemon(t, &testsupport.ScriptedEngine{})
	ctx := context.Background()

	stranded := testsupport.NewJob(t, store, "/media/stranded.mkv")
	if err := store.SetStatus(ctx, stranded.ID, queue.StatusTranscribing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	if got := testsupport.MustGet(t, store, stranded.ID).Status; got != queue.StatusInterrupted {
		t.Fatalf("stranded job status = %s, want interrupted", got)
	}
}
