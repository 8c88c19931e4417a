// Package queue persists transcription jobs and the scheduler exclusivity
// lease in SQLite.
package queue
