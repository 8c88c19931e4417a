package export_test

import (
	"strings"
	"testing"

	"scribe/internal/export"
	"scribe/internal/queue"
)

var transcript = []queue.Segment{
	{Start: 0, End: 4.5, Text: "Welcome back."},
	{Start: 4.5, End: 3661.25, Text: "That took a while."},
}

func TestParseFormat(t *testing.T) {
	for _, value := range []string{"srt", "SRT", " vtt ", "txt"} {
		if _, err := export.ParseFormat(value); err != nil {
			t.Errorf("ParseFormat(%q): %v", value, err)
		}
	}
	if _, err := export.ParseFormat("docx"); err == nil {
		t.Error("ParseFormat accepted docx")
	}
}

func TestRenderSRT(t *testing.T) {
	got, err := export.Render(export.FormatSRT, transcript)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := "1\n00:00:00,000 --> 00:00:04,500\nWelcome back.\n\n" +
		"2\n00:00:04,500 --> 01:01:01,250\nThat took a while.\n\n"
	if got != want {
		t.Fatalf("SRT output:\n%q\nwant:\n%q", got, want)
	}
}

func TestRenderVTT(t *testing.T) {
	got, err := export.Render(export.FormatVTT, transcript)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.HasPrefix(got, "WEBVTT\n\n") {
		t.Fatalf("VTT output missing header: %q", got)
	}
	if !strings.Contains(got, "00:00:00.000 --> 00:00:04.500\nWelcome back.\n\n") {
		t.Fatalf("VTT cue malformed: %q", got)
	}
	if strings.Contains(got, ",") {
		t.Fatal("VTT timestamps must use dot separators")
	}
}

func TestRenderTXT(t *testing.T) {
	got, err := export.Render(export.FormatTXT, transcript)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "Welcome back.\nThat took a while." {
		t.Fatalf("TXT output: %q", got)
	}
}

func TestRenderEmptyTranscript(t *testing.T) {
	if got, err := export.Render(export.FormatSRT, nil); err != nil || got != "" {
		t.Fatalf("empty SRT = %q, %v", got, err)
	}
	if got, err := export.Render(export.FormatVTT, nil); err != nil || got != "WEBVTT\n\n" {
		t.Fatalf("empty VTT = %q, %v", got, err)
	}
}

func TestMIMETypes(t *testing.T) {
	if export.FormatSRT.MIMEType() != "application/x-subrip" {
		t.Error("srt mime mismatch")
	}
	if export.FormatVTT.MIMEType() != "text/vtt" {
		t.Error("vtt mime mismatch")
	}
	if export.FormatTXT.MIMEType() != "text/plain" {
		t.Error("txt mime mismatch")
	}
}
