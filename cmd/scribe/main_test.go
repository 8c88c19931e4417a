package main

import (
	"strings"
	"testing"

	"scribe/internal/api"
)

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand()
	want := []string{"daemon", "add", "queue", "job", "stop", "status", "export", "config"}
	for _, name := range want {
		found := false
		for _, cmd := range root.Commands() {
			if cmd.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestFormatProgress(t *testing.T) {
	if got := formatProgress(nil); got != "-" {
		t.Fatalf("formatProgress(nil) = %q", got)
	}
	value := 37.25
	if got := formatProgress(&value); got != "37.2%" {
		t.Fatalf("formatProgress = %q", got)
	}
}

func TestRenderJobTableIncludesFields(t *testing.T) {
	percent := 50.0
	out := renderJobTable([]api.JobView{{
		ID:              "abc123",
		Name:            "Board Meeting",
		MediaType:       "audio",
		Status:          "transcribing",
		ProgressPercent: &percent,
		ElapsedSeconds:  12.5,
	}})
	for _, want := range []string{"abc123", "Board Meeting", "transcribing", "50.0%", "12.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}
