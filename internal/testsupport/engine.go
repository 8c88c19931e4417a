package testsupport

import (
	"context"
	"io"
	"sync"
	"time"

	"scribe/internal/engine"
	"scribe/internal/queue"
)

// ScriptedEngine replays a fixed segment script and honors resume offsets the
// same way the real adapter does: segments that end at or before the offset
// are never re-emitted.
type ScriptedEngine struct {
	// Script is the complete ordered transcript of the media.
	Script []queue.Segment
	// Duration is reported to the caller; zero means unknown.
	Duration float64
	// StartErr fails Transcribe itself when set.
	StartErr error
	// FailAfter makes the stream error out after emitting that many segments
	// in a single call. Zero disables the failure.
	FailAfter int
	// FailErr is the error returned when FailAfter triggers.
	FailErr error
	// StepDelay inserts a fixed pause before every emitted segment.
	StepDelay time.Duration
	// Step, when non-nil, makes every Next consume one token first so the
	// test controls pacing segment by segment.
	Step chan struct{}

	mu      sync.Mutex
	offsets []float64
}

var _ engine.Engine = (*ScriptedEngine)(nil)

// Transcribe records the requested offset and returns a stream over the
// remaining script.
func (e *ScriptedEngine) Transcribe(ctx context.Context, path string, offsetSeconds float64) (engine.Stream, float64, error) {
	e.mu.Lock()
	e.offsets = append(e.offsets, offsetSeconds)
	e.mu.Unlock()

	if e.StartErr != nil {
		return nil, 0, e.StartErr
	}

	var remaining []queue.Segment
	for _, segment := range e.Script {
		if segment.End <= offsetSeconds {
			continue
		}
		remaining = append(remaining, segment)
	}
	return &scriptedStream{eng: e, remaining: remaining}, e.Duration, nil
}

// Offsets returns the offsets observed by every Transcribe call, in order.
func (e *ScriptedEngine) Offsets() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]float64, len(e.offsets))
	copy(out, e.offsets)
	return out
}

type scriptedStream struct {
	eng       *ScriptedEngine
	remaining []queue.Segment
	emitted   int
	closed    bool
}

func (s *scriptedStream) Next(ctx context.Context) (queue.Segment, error) {
	if s.closed {
		return queue.Segment{}, io.EOF
	}
	if s.eng.Step != nil {
		select {
		case <-s.eng.Step:
		case <-ctx.Done():
			return queue.Segment{}, ctx.Err()
		}
	}
	if s.eng.StepDelay > 0 {
		select {
		case <-time.After(s.eng.StepDelay):
		case <-ctx.Done():
			return queue.Segment{}, ctx.Err()
		}
	}
	if s.eng.FailAfter > 0 && s.emitted >= s.eng.FailAfter {
		return queue.Segment{}, s.eng.FailErr
	}
	if len(s.remaining) == 0 {
		return queue.Segment{}, io.EOF
	}
	segment := s.remaining[0]
	s.remaining = s.remaining[1:]
	s.emitted++
	return segment, nil
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

// Transcript builds an evenly spaced segment script for tests.
func Transcript(count int, step float64, text string) []queue.Segment {
	segments := make([]queue.Segment, 0, count)
	for i := 0; i < count; i++ {
		segments = append(segments, queue.Segment{
			Start: float64(i) * step,
			End:   float64(i+1) * step,
			Text:  text,
		})
	}
	return segments
}
