package engine

import (
	"context"

	"scribe/internal/queue"
)

// Stream is a lazy, finite sequence of transcription segments. Streams are
// not restartable mid-flight; resuming requires a new Transcribe call with an
// offset.
type Stream interface {
	// Next blocks until the engine produces the next segment. It returns
	// io.EOF when the media is exhausted.
	Next(ctx context.Context) (queue.Segment, error)
	// Close tears down the underlying engine resources.
	Close() error
}

// Engine wraps an external speech-to-text engine. Given a media file and a
// start offset it produces a segment stream plus the total media duration in
// seconds (0 when unknown).
type Engine interface {
	Transcribe(ctx context.Context, path string, offsetSeconds float64) (Stream, float64, error)
}
