// Package export renders completed transcripts as subtitle or plain text
// documents.
package export

import (
	"fmt"
	"strings"

	"scribe/internal/queue"
)

// Format identifies a transcript output format.
type Format string

const (
	FormatSRT Format = "srt"
	FormatVTT Format = "vtt"
	FormatTXT Format = "txt"
)

// ParseFormat validates a format name.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case FormatSRT:
		return FormatSRT, nil
	case FormatVTT:
		return FormatVTT, nil
	case FormatTXT:
		return FormatTXT, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", value)
	}
}

// MIMEType returns the content type served for a format.
func (f Format) MIMEType() string {
	switch f {
	case FormatSRT:
		return "application/x-subrip"
	case FormatVTT:
		return "text/vtt"
	default:
		return "text/plain"
	}
}

// Render produces the transcript document for the given format.
func Render(format Format, segments []queue.Segment) (string, error) {
	switch format {
	case FormatSRT:
		return renderSRT(segments), nil
	case FormatVTT:
		return renderVTT(segments), nil
	case FormatTXT:
		return renderTXT(segments), nil
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}
}

// renderSRT numbers cues from 1 and uses comma-separated milliseconds.
func renderSRT(segments []queue.Segment) string {
	var b strings.Builder
	for i, segment := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n",
			i+1,
			formatTimestamp(segment.Start, ","),
			formatTimestamp(segment.End, ","),
			segment.Text,
		)
	}
	return b.String()
}

func renderVTT(segments []queue.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, segment := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n",
			formatTimestamp(segment.Start, "."),
			formatTimestamp(segment.End, "."),
			segment.Text,
		)
	}
	return b.String()
}

func renderTXT(segments []queue.Segment) string {
	lines := make([]string, 0, len(segments))
	for _, segment := range segments {
		lines = append(lines, segment.Text)
	}
	return strings.Join(lines, "\n")
}

// formatTimestamp renders seconds as HH:MM:SS<sep>mmm with truncation, not
// rounding, to stay byte-compatible with existing subtitle consumers.
func formatTimestamp(seconds float64, sep string) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	hours := whole / 3600
	minutes := (whole % 3600) / 60
	secs := whole % 60
	millis := int((seconds - float64(whole)) * 1000)
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", hours, minutes, secs, sep, millis)
}
