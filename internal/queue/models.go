package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusWaiting      Status = "waiting"
	StatusQueued       Status = "queued"
	StatusTranscribing Status = "transcribing"
	StatusPaused       Status = "paused"
	StatusInterrupted  Status = "interrupted"
	StatusDone         Status = "done"
	StatusError        Status = "error"
)

var allStatuses = []Status{
	StatusWaiting,
	StatusQueued,
	StatusTranscribing,
	StatusPaused,
	StatusInterrupted,
	StatusDone,
	StatusError,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Segment is one timestamped text span produced by the engine.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Job represents one media file's transcription unit of work.
type Job struct {
	ID               string
	Name             string
	SourcePath       string
	MediaType        string
	FileSize         int64
	FileHash         string
	Status           Status
	Segments         []Segment
	Duration         float64
	ElapsedSeconds   float64
	ProgressPercent  *float64
	ProgressCurrent  float64
	ProgressDuration *float64
	ErrorMessage     string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ResumeEligible reports whether a job may be resumed. A job whose persisted
// status still says transcribing but has no live session is treated the same
// as interrupted.
func (j *Job) ResumeEligible() bool {
	switch j.Status {
	case StatusPaused, StatusInterrupted, StatusTranscribing:
		return true
	default:
		return false
	}
}

// LastSegmentEnd returns the end timestamp of the last accumulated segment,
// or 0 when none exist.
func (j *Job) LastSegmentEnd() float64 {
	if len(j.Segments) == 0 {
		return 0
	}
	return j.Segments[len(j.Segments)-1].End
}

// Snapshot is the partial persistence of an in-flight job: its status,
// accumulated segments, elapsed time, and last known progress.
type Snapshot struct {
	JobID        string
	Status       Status
	Segments     []Segment
	Elapsed      float64
	Current      float64
	Duration     *float64
	Percent      *float64
	ErrorMessage string
}
