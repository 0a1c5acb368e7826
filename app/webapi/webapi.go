// Package webapi provides the http surface over the moderation ledger and the
// room aggregates, consumed by the dashboard layer.
package webapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/didip/tollbooth/v8"
	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/go-pkgz/routegroup"

	"github.com/umputun/chat-guard/app/storage"
	"github.com/umputun/chat-guard/lib/modcheck"
)

// Server is the ledger web API server.
type Server struct {
	Config
}

// Config defines server parameters
type Config struct {
	Version    string    // version to show in headers
	ListenAddr string    // listen address
	ModLog     ModLog    // moderation ledger
	Stats      Stats     // room aggregates
	Moderator  Moderator // dry-run message check
	AuthPasswd string    // basic auth password for user "chat-guard", open if empty
	Dbg        bool      // debug mode
}

// ModLog is the ledger interface consumed by the server.
type ModLog interface {
	Get(ctx context.Context, id int64) (storage.ModLogEntry, error)
	Recent(ctx context.Context, limit int) ([]storage.ModLogEntry, error)
	MarkRestored(ctx context.Context, id int64) error
	SetAdminResponse(ctx context.Context, id int64, response string) error
	ClearAll(ctx context.Context) error
}

// Stats is the aggregates interface consumed by the server.
type Stats interface {
	Stats(ctx context.Context, room string, days int) (storage.RoomStats, error)
}

// Moderator runs the moderation pipeline without side effects.
type Moderator interface {
	Check(ctx context.Context, req modcheck.Request) *modcheck.Verdict
}

// NewServer creates a new web API server.
func NewServer(config Config) *Server {
	return &Server{Config: config}
}

// Run starts the server and blocks until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	router := s.routes(routegroup.New(http.NewServeMux()))

	srv := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] web api shutdown failed: %v", err)
		}
	}()

	log.Printf("[INFO] web api started on %s", s.ListenAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web api server failed: %w", err)
	}
	return nil
}

func (s *Server) routes(router *routegroup.Bundle) *routegroup.Bundle {
	router.Use(rest.Recoverer(lgr.Default()))
	router.Use(rest.AppInfo("chat-guard", "umputun", s.Version), rest.Ping)
	router.Use(tollbooth.HTTPMiddleware(tollbooth.NewLimiter(50, nil)))
	router.Use(rest.SizeLimit(1024 * 1024)) // 1M max request size
	if s.Dbg {
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				log.Printf("[DEBUG] %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
				next.ServeHTTP(w, r)
			})
		})
	}
	if s.AuthPasswd != "" {
		router.Use(rest.BasicAuthWithPrompt("chat-guard", s.AuthPasswd))
	}

	router.HandleFunc("POST /check", s.checkHandler)
	router.HandleFunc("GET /logs", s.recentHandler)
	router.HandleFunc("GET /logs/{id}", s.getHandler)
	router.HandleFunc("PUT /logs/{id}/restore", s.restoreHandler)
	router.HandleFunc("PUT /logs/{id}/response", s.responseHandler)
	router.HandleFunc("DELETE /logs", s.clearHandler)
	router.HandleFunc("GET /stats", s.statsHandler)
	return router
}

// checkHandler runs the pipeline on a submitted message, no side effects.
func (s *Server) checkHandler(w http.ResponseWriter, r *http.Request) {
	var req modcheck.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't decode request", "details": err.Error()})
		return
	}
	req.CheckOnly = true // api checks never feed the repeat streaks
	verdict := s.Moderator.Check(r.Context(), req)
	rest.RenderJSON(w, rest.JSON{"flagged": verdict != nil, "verdict": verdict})
}

func (s *Server) recentHandler(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	entries, err := s.ModLog.Recent(r.Context(), limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't get ledger entries", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"entries": entries, "count": len(entries)})
}

func (s *Server) getHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "bad entry id"})
		return
	}
	entry, err := s.ModLog.Get(r.Context(), id)
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		rest.RenderJSON(w, rest.JSON{"error": "entry not found", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, entry)
}

// restoreHandler flips the restored flag, rejecting repeated restores.
func (s *Server) restoreHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "bad entry id"})
		return
	}
	if err := s.ModLog.MarkRestored(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrAlreadyRestored) {
			w.WriteHeader(http.StatusConflict)
			rest.RenderJSON(w, rest.JSON{"error": "already restored"})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't restore entry", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"restored": true, "id": id})
}

func (s *Server) responseHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "bad entry id"})
		return
	}
	var req struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "can't decode request", "details": err.Error()})
		return
	}
	if err := s.ModLog.SetAdminResponse(r.Context(), id, req.Response); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't set admin response", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"updated": true, "id": id})
}

func (s *Server) clearHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.ModLog.ClearAll(r.Context()); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't clear ledger", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, rest.JSON{"cleared": true})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		w.WriteHeader(http.StatusBadRequest)
		rest.RenderJSON(w, rest.JSON{"error": "room parameter required"})
		return
	}
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			days = parsed
		}
	}
	stats, err := s.Stats.Stats(r.Context(), room, days)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		rest.RenderJSON(w, rest.JSON{"error": "can't get stats", "details": err.Error()})
		return
	}
	rest.RenderJSON(w, stats)
}
