// Package api provides the read-only HTTP API the presentation layer uses to
// follow a negotiation session.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/talgya/haggle/internal/catalog"
	"github.com/talgya/haggle/internal/engine"
)

// Server serves one session over HTTP.
type Server struct {
	Session *engine.Session
	Port    int
	Limiter *RateLimiter // nil disables rate limiting
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	if s.Limiter != nil {
		api.Use(s.Limiter.Middleware)
	}
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/protocol", s.handleProtocol).Methods("GET")
	api.HandleFunc("/outcomes", s.handleOutcomes).Methods("GET")
	api.HandleFunc("/catalog", s.handleCatalog).Methods("GET")
	api.HandleFunc("/sellers/{seller:[0-9]+}", s.handleSeller).Methods("GET")
	api.HandleFunc("/mailboxes/{buyer:[0-9]+}/{seller:[0-9]+}", s.handleMailbox).Methods("GET")

	router.Handle("/metrics", s.Session.Metrics.Handler()).Methods("GET")
	router.Use(corsMiddleware)
	return router
}

// Start serves the API until ctx is cancelled. The returned channel yields
// the server's exit error, if any.
func (s *Server) Start(ctx context.Context) <-chan error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", srv.Addr, "rate_limited", s.Limiter != nil)

	done := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			slog.Error("HTTP server error", "error", err)
		}
		done <- err
	}()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	return done
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// CORS_ORIGINS adds a comma-separated list to the localhost dev servers.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Status())
}

func (s *Server) handleProtocol(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Proto)
}

func (s *Server) handleOutcomes(w http.ResponseWriter, r *http.Request) {
	outcomes := s.Session.Outcomes()
	deals := 0
	for _, o := range outcomes {
		if o.Deal() {
			deals++
		}
	}
	writeJSON(w, map[string]any{
		"outcomes": outcomes,
		"deals":    deals,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	sums := s.Session.Summaries()
	if sums == nil {
		sums = []catalog.Summary{}
	}
	writeJSON(w, map[string]any{
		"products": sums,
		"count":    len(sums),
	})
}

// handleSeller returns one seller's profile and current inventory.
func (s *Server) handleSeller(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["seller"])
	if id >= len(s.Session.Sellers) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("seller %d not found", id))
		return
	}
	sl := s.Session.Sellers[id]
	writeJSON(w, map[string]any{
		"id":        sl.ID,
		"name":      sl.Name,
		"style":     sl.Style.String(),
		"karma":     sl.Karma,
		"penalties": sl.Penalties(),
		"state":     sl.State(),
		"catalog":   sl.Catalog(),
	})
}

// handleMailbox returns the transcript between a buyer and a seller.
func (s *Server) handleMailbox(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	b, _ := strconv.Atoi(vars["buyer"])
	sl, _ := strconv.Atoi(vars["seller"])

	box, err := s.Session.Mailbox(b, sl)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, engine.Transcript{Buyer: b, Seller: sl, Messages: box.Transcript()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
