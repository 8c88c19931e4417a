// Package scheduler coordinates transcription jobs through a single
// cooperative executor slot: FIFO queue draining, pause/resume via a blocking
// gate, cooperative cancellation, live progress tracking, and bounded
// snapshot persistence so interrupted jobs resume from their last segment.
package scheduler
