// Package server exposes the ledger over HTTP.
//
// Requests are not signed. The caller, from and owner fields of a request
// body are taken as given, so the authority check on generation changes
// and the sender of a transfer are only as trustworthy as the network in
// front of the server. Bind it to loopback or put it behind an
// authenticating proxy.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lazypower/erosion/internal/engine"
)

// Server is the erosion HTTP API server.
type Server struct {
	engine  *engine.Engine
	router  chi.Router
	log     zerolog.Logger
	version string
	started time.Time
}

// New creates a new Server over eng.
func New(eng *engine.Engine, version string, log zerolog.Logger) *Server {
	s := &Server{
		engine:  eng,
		log:     log.With().Str("component", "server").Logger(),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/community", s.handleCommunity)

		r.Get("/generations", s.handleListGenerations)
		r.Post("/generations", s.handleSetGeneration)
		r.Get("/generations/{epoch}", s.handleGetGeneration)
		r.Get("/members/{epoch}/{address}", s.handleGetMember)

		r.Get("/balances/{address}", s.handleGetBalance)
		r.Get("/decay/{address}", s.handleGetDecay)
		r.Get("/erosion", s.handleGetErosion)
		r.Get("/allowances/{owner}/{spender}", s.handleGetAllowance)

		r.Post("/claim", s.handleClaim)
		r.Post("/transfer", s.handleTransfer)
		r.Post("/transfer-from", s.handleTransferFrom)
		r.Post("/approve", s.handleApprove)

		r.Get("/events", s.handleListEvents)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.engine.Metrics.Registry(), promhttp.HandlerOpts{}))

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.engine.DB.Path,
	})
}

// requestLogger writes one zerolog line per request.
func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := log.Debug()
			if status >= http.StatusInternalServerError {
				ev = log.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request")
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
