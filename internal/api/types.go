// Package api defines the wire types shared by the daemon's HTTP server and
// the CLI client.
package api

import (
	"time"

	"scribe/internal/queue"
)

// JobView is the API projection of a queue job. The transcript itself is
// omitted from listings and returned only where a handler includes it.
type JobView struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	SourcePath       string   `json:"source_path"`
	MediaType        string   `json:"media_type"`
	FileSize         int64    `json:"file_size"`
	Status           string   `json:"status"`
	SegmentCount     int      `json:"segment_count"`
	Duration         float64  `json:"duration,omitempty"`
	ElapsedSeconds   float64  `json:"transcribe_elapsed"`
	ProgressCurrent  float64  `json:"progress_current"`
	ProgressDuration *float64 `json:"progress_duration,omitempty"`
	ProgressPercent  *float64 `json:"progress_percent,omitempty"`
	ErrorMessage     string   `json:"error_message,omitempty"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// FromJob converts a queue job into its API view.
func FromJob(job *queue.Job) JobView {
	return JobView{
		ID:               job.ID,
		Name:             job.Name,
		SourcePath:       job.SourcePath,
		MediaType:        job.MediaType,
		FileSize:         job.FileSize,
		Status:           string(job.Status),
		SegmentCount:     len(job.Segments),
		Duration:         job.Duration,
		ElapsedSeconds:   job.ElapsedSeconds,
		ProgressCurrent:  job.ProgressCurrent,
		ProgressDuration: job.ProgressDuration,
		ProgressPercent:  job.ProgressPercent,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// FromJobs converts a slice of queue jobs.
func FromJobs(jobs []*queue.Job) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, FromJob(job))
	}
	return views
}

// RegisterRequest asks the daemon to ingest a media file already on disk.
type RegisterRequest struct {
	Path string `json:"path"`
}

// RegisterResponse reports the created (or pre-existing) job.
type RegisterResponse struct {
	Job       JobView `json:"job"`
	Duplicate bool    `json:"duplicate,omitempty"`
}

// JobListResponse wraps a job listing.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// JobResponse wraps a single job with its transcript.
type JobResponse struct {
	Job           JobView         `json:"job"`
	Transcription []queue.Segment `json:"transcription,omitempty"`
}

// TranscribeResponse carries a finished transcript.
type TranscribeResponse struct {
	Transcription []queue.Segment `json:"transcription"`
}

// InterruptedResponse is the distinct payload for a cooperatively stopped
// run. It travels with HTTP status 499.
type InterruptedResponse struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// StatusClientClosedRequest mirrors nginx's non-standard code for a request
// the client abandoned; here it marks interrupted transcriptions.
const StatusClientClosedRequest = 499

// ResumeResponse reports how a resume was satisfied: a live paused session
// reopens in place, otherwise the job re-runs and returns its transcript.
type ResumeResponse struct {
	Reopened      bool            `json:"reopened"`
	Transcription []queue.Segment `json:"transcription,omitempty"`
}

// ProgressResponse is the polling payload for a job's progress.
type ProgressResponse struct {
	Current  float64  `json:"current"`
	Duration *float64 `json:"duration,omitempty"`
	Percent  *float64 `json:"percent,omitempty"`
	Status   string   `json:"status"`
}

// EnqueueRequest names the jobs to put on the FIFO queue.
type EnqueueRequest struct {
	IDs []string `json:"ids"`
}

// EnqueueResponse reports how many jobs were transitioned to queued.
type EnqueueResponse struct {
	Queued int64 `json:"queued"`
}

// ClearResponse reports how many job records a bulk delete removed.
type ClearResponse struct {
	Removed int64 `json:"removed"`
}

// StopResponse reports the effect of a global stop.
type StopResponse struct {
	InterruptedJob string `json:"interrupted_job,omitempty"`
	Demoted        int64  `json:"demoted"`
}

// DaemonStatus reports daemon runtime information.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queue_db_path"`
	LockFilePath string         `json:"lock_file_path"`
	LeaseOwner   string         `json:"lease_owner,omitempty"`
	RunningJobID string         `json:"running_job_id,omitempty"`
	QueueStats   map[string]int `json:"queue_stats"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
