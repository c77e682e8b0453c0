package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleRebuild queues a decoration pass over the whole site on disk.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "rebuild unavailable", http.StatusServiceUnavailable)
		return
	}

	job, err := s.orchestrator.Submit()
	if err != nil {
		s.log.Warn("rebuild rejected", "error", err)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Snapshot().Status,
		"poll_url": fmt.Sprintf("/_api/rebuild/%s", job.ID),
	})
}

func (s *Server) handleRebuildStatus(w http.ResponseWriter, r *http.Request) {
	if s.orchestrator == nil {
		jsonError(w, "rebuild unavailable", http.StatusServiceUnavailable)
		return
	}

	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}
