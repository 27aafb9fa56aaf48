package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vishalm/LlamaBot/internal/agents"
)

func (s *Server) availableAgents(w http.ResponseWriter, r *http.Request) {
	manifest, err := agents.LoadManifest(s.cfg.AgentsManifest)
	if err != nil {
		var notFound agents.ManifestNotFoundError
		if !errors.As(err, &notFound) {
			s.logger.Sugar().Warnw("failed to load agents manifest", "path", s.cfg.AgentsManifest, "error", err)
		}
		writeJSON(w, map[string]any{"agents": []string{}, "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{"agents": manifest.AgentNames()})
}

func (s *Server) listModels(w http.ResponseWriter, r *http.Request) {
	current := s.cfg.LLMModel
	if s.models == nil || !s.cfg.OllamaEnabled() {
		writeJSON(w, map[string]any{"provider": s.cfg.LLMProvider, "models": []string{current}, "current": current})
		return
	}
	models, err := s.models.ListModels(r.Context())
	if err != nil {
		writeJSON(w, map[string]any{"error": err.Error(), "current": current})
		return
	}
	writeJSON(w, map[string]any{
		"provider": "ollama",
		"models":   models,
		"current":  current,
		"base_url": s.models.BaseURL(),
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.models == nil || !s.cfg.OllamaEnabled() {
		writeJSON(w, map[string]any{"status": "healthy", "model": s.cfg.LLMModel})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if _, err := s.models.ListModels(ctx); err != nil {
		writeJSON(w, map[string]any{"status": "unhealthy", "error": err.Error()})
		return
	}
	writeJSON(w, map[string]any{
		"status":       "healthy",
		"ollama_model": s.cfg.LLMModel,
		"ollama_url":   s.models.BaseURL(),
		"direct_api":   true,
	})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK
	check := func(name string, err error) {
		if err != nil {
			subsystems[name] = subsystemStatus{Status: "error", Error: err.Error()}
			overall = http.StatusServiceUnavailable
			return
		}
		subsystems[name] = subsystemStatus{Status: "ok"}
	}

	_, err := s.store.ListThreads(ctx)
	check("store", err)

	if s.models == nil || !s.cfg.OllamaEnabled() {
		subsystems["llm"] = subsystemStatus{Status: "skipped"}
	} else {
		_, err := s.models.ListModels(ctx)
		check("llm", err)
	}

	if s.workflows == nil {
		subsystems["temporal"] = subsystemStatus{Status: "skipped"}
	} else {
		check("temporal", s.workflows.CheckHealth(ctx))
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}
