package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"scribe/internal/api"
	"scribe/internal/config"
	"scribe/internal/export"
	"scribe/internal/logging"
	"scribe/internal/queue"
	"scribe/internal/scheduler"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/jobs", srv.handleRegister)
	mux.HandleFunc("GET /api/jobs", srv.handleListJobs)
	mux.HandleFunc("DELETE /api/jobs", srv.handleClearJobs)
	mux.HandleFunc("GET /api/jobs/{id}", srv.handleGetJob)
	mux.HandleFunc("DELETE /api/jobs/{id}", srv.handleDeleteJob)
	mux.HandleFunc("POST /api/jobs/enqueue", srv.handleEnqueue)
	mux.HandleFunc("POST /api/jobs/{id}/transcribe", srv.handleTranscribe)
	mux.HandleFunc("POST /api/jobs/{id}/pause", srv.handlePause)
	mux.HandleFunc("POST /api/jobs/{id}/resume", srv.handleResume)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", srv.handleCancel)
	mux.HandleFunc("GET /api/jobs/{id}/progress", srv.handleProgress)
	mux.HandleFunc("GET /api/jobs/{id}/export", srv.handleExport)
	mux.HandleFunc("POST /api/transcribe/stop", srv.handleStop)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	stats := make(map[string]int, len(status.QueueStats))
	for state, count := range status.QueueStats {
		stats[string(state)] = count
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:      status.Running,
		PID:          status.PID,
		QueueDBPath:  status.QueueDBPath,
		LockFilePath: status.LockFilePath,
		LeaseOwner:   status.LeaseOwner,
		RunningJobID: status.RunningJobID,
		QueueStats:   stats,
	})
}

func (s *apiServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	result, err := s.daemon.registrar.Register(r.Context(), req.Path)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	code := http.StatusCreated
	if result.Duplicate {
		code = http.StatusOK
	}
	s.writeJSON(w, code, api.RegisterResponse{
		Job:       api.FromJob(result.Job),
		Duplicate: result.Duplicate,
	})
}

func (s *apiServer) handleListJobs(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", value))
			return
		}
		statuses = append(statuses, status)
	}

	jobs, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: api.FromJobs(jobs)})
}

func (s *apiServer) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobResponse{
		Job:           api.FromJob(job),
		Transcription: job.Segments,
	})
}

func (s *apiServer) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}

	// A running job is stopped before its record goes away.
	if err := s.daemon.scheduler.Cancel(r.Context(), job.ID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	removed, err := s.daemon.store.Remove(r.Context(), job.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) handleClearJobs(w http.ResponseWriter, r *http.Request) {
	var removed int64
	var err error
	switch scope := r.URL.Query().Get("scope"); scope {
	case "", "all":
		// Anything still running is stopped first so the executor does not
		// keep snapshotting a deleted record.
		if _, _, demoteErr := s.daemon.scheduler.CancelAll(r.Context()); demoteErr != nil {
			s.writeError(w, http.StatusInternalServerError, demoteErr.Error())
			return
		}
		removed, err = s.daemon.store.Clear(r.Context())
	case "done":
		removed, err = s.daemon.store.ClearDone(r.Context())
	case "failed":
		removed, err = s.daemon.store.ClearFailed(r.Context())
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown clear scope %q", scope))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.ClearResponse{Removed: removed})
}

func (s *apiServer) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req api.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "ids are required")
		return
	}

	queued, err := s.daemon.scheduler.Enqueue(r.Context(), req.IDs...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.EnqueueResponse{Queued: queued})
}

func (s *apiServer) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	segments, err := s.daemon.scheduler.Submit(r.Context(), id)
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TranscribeResponse{Transcription: segments})
}

func (s *apiServer) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.scheduler.Pause(r.Context(), r.PathValue("id")); err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *apiServer) handleResume(w http.ResponseWriter, r *http.Request) {
	result, err := s.daemon.scheduler.Resume(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ResumeResponse{
		Reopened:      result.Reopened,
		Transcription: result.Segments,
	})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if err := s.daemon.scheduler.Cancel(r.Context(), job.ID); err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	entry, err := s.daemon.scheduler.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeSchedulerError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.ProgressResponse{
		Current:  entry.Current,
		Duration: entry.Duration,
		Percent:  entry.Percent,
		Status:   string(entry.Status),
	})
}

func (s *apiServer) handleExport(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, r)
	if !ok {
		return
	}
	if len(job.Segments) == 0 {
		s.writeError(w, http.StatusBadRequest, "no transcription data available")
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	document, err := export.Render(format, job.Segments)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", format.MIMEType()+"; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s.%s", job.ID, format)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(document))
}

func (s *apiServer) handleStop(w http.ResponseWriter, r *http.Request) {
	interrupted, demoted, err := s.daemon.scheduler.CancelAll(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.StopResponse{
		InterruptedJob: interrupted,
		Demoted:        demoted,
	})
}

func (s *apiServer) lookupJob(w http.ResponseWriter, r *http.Request) (*queue.Job, bool) {
	job, err := s.daemon.store.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

// writeSchedulerError maps scheduler sentinels onto HTTP semantics. An
// interrupted run is a distinct outcome, not a server error.
func (s *apiServer) writeSchedulerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, scheduler.ErrAlreadyRunning):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, scheduler.ErrPrecondition):
		s.writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, scheduler.ErrCancelled):
		s.writeJSON(w, api.StatusClientClosedRequest, api.InterruptedResponse{
			Status: "interrupted",
			Detail: "transcription interrupted",
		})
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("api response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}
