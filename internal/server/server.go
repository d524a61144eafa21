package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cwbudde/facefit/internal/config"
	"github.com/cwbudde/facefit/internal/imageio"
	"github.com/cwbudde/facefit/internal/runner"
	"github.com/cwbudde/facefit/internal/store"
)

// Server exposes fitting jobs over HTTP
type Server struct {
	jobManager *JobManager
	base       config.Config
	store      store.Store
	addr       string
	server     *http.Server

	// ctx is the parent of every job context; cancelled on Shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer creates a server. base supplies render settings and the defaults
// of submitted jobs; st may be nil to disable checkpoints and artifacts.
func NewServer(addr string, base config.Config, st store.Store) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		jobManager: NewJobManager(),
		base:       base,
		store:      st,
		addr:       addr,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Handler returns the routed HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/checkpoints", s.handleListCheckpoints)
	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start listens until Shutdown is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("Starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown cancels all jobs, waits for their workers and stops the listener
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	s.cancel()
	s.jobManager.CancelAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.jobManager.ListJobs())
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID routes /api/v1/jobs/{id}[/action]
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/"), "/")
	parts := strings.Split(path, "/")
	if parts[0] == "" || len(parts) > 2 {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}
	jobID := parts[0]
	action := "status"
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "cancel" || action == "resume":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if action == "cancel" {
			s.handleCancelJob(w, r, jobID)
		} else {
			s.handleResumeJob(w, r, jobID)
		}
	case r.Method != http.MethodGet:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	case action == "status":
		s.handleGetJobStatus(w, r, jobID)
	case action == "stream":
		s.handleJobStream(w, r, jobID)
	case action == "trace":
		s.handleGetTrace(w, r, jobID)
	case action == runner.BestImage || action == runner.DiffImage:
		s.handleGetImage(w, r, jobID, action)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// handleCreateJob decodes a fit description over the server defaults
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	cfg := s.base.Fit
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	if cfg.TargetPath == "" {
		http.Error(w, "targetPath is required", http.StatusBadRequest)
		return
	}
	if err := cfg.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(cfg)
	s.startJob(job.ID, nil)
	slog.Info("Job submitted", "job_id", job.ID, "method", cfg.Method, "target", cfg.TargetPath)
	writeJSON(w, http.StatusCreated, job)
}

// jobStatus is the status view of a job
type jobStatus struct {
	*Job
	Elapsed float64 `json:"elapsed"`
}

func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	end := time.Now()
	if job.EndTime != nil {
		end = *job.EndTime
	}
	writeJSON(w, http.StatusOK, jobStatus{Job: job, Elapsed: end.Sub(job.StartTime).Seconds()})
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, ok := s.jobManager.GetJob(jobID); !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job is not active", http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleResumeJob restarts a job from its checkpoint under the same ID
func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.store == nil {
		http.Error(w, "Checkpoints are disabled", http.StatusNotImplemented)
		return
	}
	cp, err := s.store.LoadCheckpoint(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	job, err := s.jobManager.CreateJobWithID(jobID, cp.Config)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.startJob(jobID, &resumePoint{params: cp.Params, loop: cp.Loop, initialCost: cp.InitialCost})
	slog.Info("Job resumed", "job_id", jobID, "loop", cp.Loop, "cost", cp.Cost)
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.store == nil {
		http.Error(w, "Checkpoints are disabled", http.StatusNotImplemented)
		return
	}
	entries, err := s.store.ReadTrace(jobID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Trace not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetImage renders the job's current face, or its difference to the target
func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request, jobID, name string) {
	job, ok := s.jobManager.GetJob(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if job.Params == nil {
		http.Error(w, "No results yet", http.StatusNotFound)
		return
	}

	cfg := s.base
	cfg.Fit = job.Config
	obs, target, err := runner.Preview(r.Context(), runner.Job{ID: jobID, Config: cfg}, *job.Params)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to render: %v", err), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if name == runner.BestImage {
		err = imageio.WriteObservationPNG(&buf, obs, job.Config.Channel)
	} else {
		err = imageio.WriteDiffPNG(&buf, obs, target, job.Config.Channel)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode image: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Debug("Failed to send PNG", "job_id", jobID, "error", err)
	}
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, []store.CheckpointInfo{})
		return
	}
	infos, err := s.store.ListCheckpoints()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
