// Package server exposes the engine over a JSON management API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rcliao/lore-memory/internal/engine"
	"github.com/rcliao/lore-memory/internal/model"
)

const (
	defaultLimit  = 20
	defaultBudget = 1000
	maxBodyBytes  = 1 << 20
)

var errBadRequest = errors.New("bad request")

// Server routes HTTP requests to one engine.
type Server struct {
	eng    *engine.Engine
	logger *slog.Logger
	router chi.Router
}

// New builds the router.
func New(eng *engine.Engine, logger *slog.Logger) *Server {
	s := &Server{eng: eng, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.logRequests, middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/stats", s.stats)
	r.Get("/context", s.contextBlock)

	r.Route("/memories", func(r chi.Router) {
		r.Get("/", s.listMemories)
		r.Post("/", s.createMemory)
		r.Get("/search", s.searchMemories)
		r.Get("/{id}", s.getMemory)
		r.Patch("/{id}", s.correctMemory)
		r.Delete("/{id}", s.deleteMemory)
	})

	r.Route("/world-state", func(r chi.Router) {
		r.Get("/", s.worldSnapshot)
		r.Post("/", s.appendWorld)
		r.Get("/current", s.currentWorld)
		r.Get("/{key}", s.worldHistory)
	})

	r.Post("/turns/extract", s.extractTurn)
	r.Get("/turns/{session}", s.turnHistory)

	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.eng.Stats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) contextBlock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.eng.Context(r.Context(), q.Get("q"), intParam(q.Get("budget"), defaultBudget))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// listMemories browses newest first. An unknown type yields an empty list.
func (s *Server) listMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := intParam(q.Get("limit"), defaultLimit)

	var (
		mems []model.Memory
		err  error
	)
	if typ := q.Get("type"); typ != "" {
		mems, err = s.eng.GetByType(r.Context(), model.MemoryType(strings.ToLower(typ)), limit)
	} else {
		mems, err = s.eng.List(r.Context(), limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mems)
}

type createMemoryRequest struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (s *Server) createMemory(w http.ResponseWriter, r *http.Request) {
	var in createMemoryRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	typ, err := model.ParseType(in.Type)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		s.writeError(w, fmt.Errorf("%w: content is required", errBadRequest))
		return
	}
	mem, err := s.eng.Store(r.Context(), typ, in.Name, in.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, mem)
}

// searchMemories ranks by embedding similarity, or matches keywords when
// mode=keyword.
func (s *Server) searchMemories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	limit := intParam(q.Get("limit"), 5)
	typ := model.MemoryType(strings.ToLower(q.Get("type")))

	if q.Get("mode") == "keyword" {
		mems, err := s.eng.Search(r.Context(), query, typ, limit)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mems)
		return
	}

	if strings.TrimSpace(query) == "" {
		s.writeError(w, fmt.Errorf("%w: q is required", errBadRequest))
		return
	}
	var (
		res []model.ScoredMemory
		err error
	)
	if typ == "" {
		res, err = s.eng.RetrieveRelevant(r.Context(), query, limit)
	} else {
		res, err = s.eng.RetrieveRelevantOfType(r.Context(), query, typ, limit)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getMemory(w http.ResponseWriter, r *http.Request) {
	mem, err := s.eng.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) correctMemory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Content string `json:"content"`
	}
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(in.Content) == "" {
		s.writeError(w, fmt.Errorf("%w: content is required", errBadRequest))
		return
	}
	mem, err := s.eng.Correct(r.Context(), chi.URLParam(r, "id"), in.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mem)
}

func (s *Server) deleteMemory(w http.ResponseWriter, r *http.Request) {
	if err := s.eng.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) worldSnapshot(w http.ResponseWriter, r *http.Request) {
	entries, err := s.eng.WorldSnapshot(r.Context(), intParam(r.URL.Query().Get("limit"), defaultLimit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) currentWorld(w http.ResponseWriter, r *http.Request) {
	entries, err := s.eng.CurrentWorld(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) worldHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.eng.WorldHistory(r.Context(), chi.URLParam(r, "key"), intParam(r.URL.Query().Get("limit"), defaultLimit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) appendWorld(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(in.Key) == "" {
		s.writeError(w, fmt.Errorf("%w: key is required", errBadRequest))
		return
	}
	entry, err := s.eng.AppendWorld(r.Context(), in.Key, in.Value)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

type extractRequest struct {
	SessionID string   `json:"session_id"`
	User      string   `json:"user"`
	Response  string   `json:"response"`
	Retrieved []string `json:"retrieved"`
}

type extractResponse struct {
	engine.ExtractResult
	TurnID string `json:"turn_id,omitempty"`
}

// extractTurn runs extraction for one exchange and, when a session id is
// given, logs the turn. Extraction problems come back as warnings with 200.
func (s *Server) extractTurn(w http.ResponseWriter, r *http.Request) {
	var in extractRequest
	if err := decode(w, r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	out := extractResponse{ExtractResult: s.eng.Extract(r.Context(), in.User, in.Response)}
	if in.SessionID != "" {
		turn, err := s.eng.RecordTurn(r.Context(), in.SessionID, in.User, in.Response, in.Retrieved)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("record turn: %v", err))
		} else {
			out.TurnID = turn.ID
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) turnHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.eng.History(r.Context(), chi.URLParam(r, "session"), intParam(r.URL.Query().Get("limit"), defaultLimit))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", errBadRequest, err)
	}
	return nil
}

// intParam parses a query value, falling back to def when absent or malformed.
func intParam(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, model.ErrInvalidType):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrEmbeddingUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
