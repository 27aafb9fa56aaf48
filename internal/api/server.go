package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vishalm/LlamaBot/internal/config"
	"github.com/vishalm/LlamaBot/internal/events"
	"github.com/vishalm/LlamaBot/internal/relay"
	"github.com/vishalm/LlamaBot/internal/store"
	"github.com/vishalm/LlamaBot/internal/workflows"
)

type Server struct {
	store     store.Store
	broker    Broker
	workflows WorkflowService
	journal   *relay.Journal
	runner    relay.Turner
	models    ModelLister
	cfg       config.Config
	logger    *zap.Logger
}

type Broker interface {
	Publish(event events.Event)
	Subscribe(ctx context.Context, threadID string) <-chan events.Event
}

// WorkflowService is set only in temporal execution mode.
type WorkflowService interface {
	StartTurn(ctx context.Context, input workflows.TurnInput) error
	CancelThread(ctx context.Context, threadID string) error
	CheckHealth(ctx context.Context) error
}

// ModelLister reports the models an Ollama server has pulled.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
	BaseURL() string
}

type Option func(*Server)

func WithRunner(runner relay.Turner) Option {
	return func(s *Server) {
		s.runner = runner
	}
}

func WithModelLister(models ModelLister) Option {
	return func(s *Server) {
		s.models = models
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewServer(store store.Store, broker Broker, workflows WorkflowService, cfg config.Config, opts ...Option) *Server {
	s := &Server{
		store:     store,
		broker:    broker,
		workflows: workflows,
		cfg:       cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	var publisher relay.Publisher
	if broker != nil {
		publisher = broker
	}
	s.journal = relay.NewJournal(store, publisher, s.logger)
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.corsMiddleware)

	r.Get("/", s.home)
	r.Get("/chat", s.chatPage)
	r.Get("/page", s.page)
	r.Get("/conversations", s.conversations)
	r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(s.cfg.AssetsDir))))

	r.Post("/chat-message", s.chatMessage)
	r.Get("/threads", s.listThreads)
	r.Get("/chat-history/{id}", s.chatHistory)
	r.Delete("/threads/{id}", s.deleteThread)
	r.Post("/threads/{id}/events", s.ingestEvent)
	r.Get("/threads/{id}/events", s.streamEvents)
	r.Get("/available-agents", s.availableAgents)
	r.Get("/models", s.listModels)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func (s *Server) quietRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if strings.HasSuffix(cleanPath, "/events") && (method == http.MethodPost || method == http.MethodGet) {
		return true
	}
	if method == http.MethodGet && cleanPath == "/health" {
		return true
	}
	return false
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(s.cfg.CORSAllowedOrigins))
	for _, origin := range s.cfg.CORSAllowedOrigins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if _, ok := allowed[origin]; ok && origin != "" {
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			headers := r.Header.Get("Access-Control-Request-Headers")
			if headers == "" {
				headers = "Content-Type, Last-Event-ID"
			}
			w.Header().Set("Access-Control-Allow-Headers", headers)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, value any) {
	writeJSONStatus(w, value, http.StatusOK)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Server) ingestEvent(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	var event events.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(event.Type) == "" {
		http.Error(w, "event type required", http.StatusBadRequest)
		return
	}
	event.ThreadID = threadID
	event.Seq = 0
	if _, err := s.journal.Record(r.Context(), event); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	afterSeq := parseAfterSeq(threadID, r)
	// Subscribe before the replay so nothing published in between is lost.
	eventsChan := s.broker.Subscribe(ctx, threadID)
	stored, err := s.store.ListEvents(ctx, threadID, afterSeq)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	lastSeq := afterSeq
	for _, record := range stored {
		if record.Seq > lastSeq {
			lastSeq = record.Seq
		}
		event, err := relay.FromRecord(record)
		if err != nil {
			s.logger.Warn("skipping undecodable thread event", zap.String("thread_id", threadID), zap.Int64("seq", record.Seq), zap.Error(err))
			continue
		}
		sendSSE(w, event)
		flusher.Flush()
	}

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			if event.Seq > 0 && event.Seq <= lastSeq {
				continue
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}

func sendSSE(w http.ResponseWriter, event events.Event) {
	payload, _ := json.Marshal(event)
	if event.Seq > 0 {
		fmt.Fprintf(w, "id: %s:%d\n", event.ThreadID, event.Seq)
	}
	fmt.Fprint(w, "event: thread_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func parseAfterSeq(threadID string, r *http.Request) int64 {
	afterParam := strings.TrimSpace(r.URL.Query().Get("after_seq"))
	if afterParam != "" {
		if parsed, err := strconv.ParseInt(afterParam, 10, 64); err == nil {
			return parsed
		}
	}
	lastEventID := r.Header.Get("Last-Event-ID")
	if lastEventID == "" {
		return 0
	}
	idx := strings.LastIndex(lastEventID, ":")
	if idx < 0 || lastEventID[:idx] != threadID {
		return 0
	}
	seq, err := strconv.ParseInt(lastEventID[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return seq
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
