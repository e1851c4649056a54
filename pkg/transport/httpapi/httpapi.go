// Package httpapi serves the chat pipeline over HTTP.
//
// Routes:
//
//	GET    /                          welcome message
//	POST   /v1/chat                   {"session_id"?, "question"} -> {"session_id", "answer"}
//	GET    /v1/sessions/{id}/history  stored turns, oldest first
//	DELETE /v1/sessions/{id}          forget a session
//	GET    /healthz                   backend health report
//	GET    /metrics                   Prometheus metrics
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/calque-ai/medrag/pkg/calque"
	"github.com/calque-ai/medrag/pkg/middleware/memory"
	"github.com/calque-ai/medrag/pkg/rag"
)

// MaxBodyBytes caps a chat request body.
const MaxBodyBytes = 64 << 10

// Answerer answers a question within a session and records the exchange.
type Answerer interface {
	Ask(ctx context.Context, sessionID, question string) string
}

// Sessions reads and clears stored history.
type Sessions interface {
	History(ctx context.Context, sessionID string) ([]memory.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

// ChatRequest is the POST /v1/chat body.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

// ChatResponse is the POST /v1/chat reply. Welcome is set when the request
// started a new session.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
	Welcome   string `json:"welcome,omitempty"`
}

// HistoryResponse lists a session's turns.
type HistoryResponse struct {
	SessionID string           `json:"session_id"`
	Messages  []memory.Message `json:"messages"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server routes requests to the pipeline.
type Server struct {
	answerer Answerer
	sessions Sessions
	logger   *slog.Logger
	health   http.Handler
	metrics  http.Handler
	newID    func() string
}

// Option configures a Server.
type Option func(*Server)

// WithLogger attaches logger to every request context.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithHealth serves h on /healthz.
func WithHealth(h http.Handler) Option {
	return func(s *Server) { s.health = h }
}

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithSessionIDs replaces the session id generator.
func WithSessionIDs(newID func() string) Option {
	return func(s *Server) { s.newID = newID }
}

// New creates a Server.
func New(answerer Answerer, sessions Sessions, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		sessions: sessions,
		logger:   slog.Default(),
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.withLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleWelcome)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/sessions/{id}/history", s.handleHistory)
		r.Delete("/sessions/{id}", s.handleClear)
	})
	if s.health != nil {
		r.Method(http.MethodGet, "/healthz", s.health)
	}
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := calque.WithLogger(r.Context(), s.logger)
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = calque.WithTraceID(ctx, id)
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		calque.LogDebug(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": rag.Welcome})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	resp := ChatResponse{SessionID: strings.TrimSpace(req.SessionID)}
	if resp.SessionID == "" {
		resp.SessionID = s.newID()
		resp.Welcome = rag.Welcome
	}
	resp.Answer = s.answerer.Ask(r.Context(), resp.SessionID, req.Question)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msgs, err := s.sessions.History(r.Context(), id)
	if err != nil {
		calque.LogError(r.Context(), "history lookup failed", err, "session_id", id)
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	if msgs == nil {
		msgs = []memory.Message{}
	}
	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: id, Messages: msgs})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Clear(r.Context(), id); err != nil {
		calque.LogError(r.Context(), "history clear failed", err, "session_id", id)
		writeError(w, http.StatusServiceUnavailable, "history unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// Serve runs handler on addr until ctx is cancelled, then shuts down
// gracefully within shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, readTimeout, writeTimeout, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		calque.LogInfo(ctx, "http server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	calque.LogInfo(ctx, "http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
