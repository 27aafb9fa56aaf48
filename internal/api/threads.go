package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/graph"
)

type threadSummary struct {
	ThreadID  string         `json:"thread_id"`
	Title     string         `json:"title,omitempty"`
	UpdatedAt string         `json:"updated_at,omitempty"`
	State     graph.Snapshot `json:"state"`
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	threads, err := s.store.ListThreads(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summaries := make([]threadSummary, 0, len(threads))
	for _, thread := range threads {
		snapshot, err := graph.LoadSnapshot(ctx, s.store, thread.ID)
		if errors.Is(err, graph.ErrNoCheckpoint) {
			continue
		}
		if err != nil {
			s.logger.Warn("skipping unreadable thread", zap.String("thread_id", thread.ID), zap.Error(err))
			continue
		}
		summaries = append(summaries, threadSummary{
			ThreadID:  thread.ID,
			Title:     thread.Title,
			UpdatedAt: thread.UpdatedAt,
			State:     snapshot,
		})
	}
	writeJSON(w, summaries)
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	snapshot, err := graph.LoadSnapshot(r.Context(), s.store, threadID)
	if errors.Is(err, graph.ErrNoCheckpoint) {
		writeJSONStatus(w, map[string]string{"error": "thread not found"}, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, snapshot)
}

func (s *Server) deleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if s.workflows != nil {
		if err := s.workflows.CancelThread(r.Context(), threadID); err != nil {
			s.logger.Warn("failed to cancel thread workflow", zap.String("thread_id", threadID), zap.Error(err))
		}
	}
	if err := s.store.DeleteThread(r.Context(), threadID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
