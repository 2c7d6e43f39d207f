package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kara-analytics/telelake/internal/rawstore"
)

// Options tunes the read-side query layer.
type Options struct {
	// QueryRetries bounds re-attempts of a failed store query.
	QueryRetries int
	// CacheSize and CacheTTL bound the response cache. The cache is keyed
	// only on the logical query parameters; the store is injected
	// separately and never part of a key.
	CacheSize int
	CacheTTL  time.Duration
}

// Server exposes read-only analytical queries over the raw store.
type Server struct {
	store   *rawstore.Store
	cache   *expirable.LRU[string, any]
	retries int
	router  chi.Router
}

// New creates a server over an injected store.
func New(store *rawstore.Store, opts Options) *Server {
	if opts.QueryRetries <= 0 {
		opts.QueryRetries = 3
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	s := &Server{
		store:   store,
		cache:   expirable.NewLRU[string, any](opts.CacheSize, nil, opts.CacheTTL),
		retries: opts.QueryRetries,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/stats", s.handleStats)
		r.Get("/channels/top", s.handleTopChannels)
		r.Get("/channels/{slug}/activity", s.handleChannelActivity)
		r.Get("/messages/search", s.handleSearch)
	})

	s.router = r
	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve runs the server until the listener fails.
func Serve(store *rawstore.Store, port int, opts Options) error {
	s := New(store, opts)
	addr := fmt.Sprintf(":%d", port)
	return http.ListenAndServe(addr, s.Handler())
}

// withRetry runs fn up to 1+retries times with exponential backoff, logging
// a warning per failed attempt. Query failures here are treated as
// transient; the caller sees only the final error.
func (s *Server) withRetry(op string, fn func() error) error {
	attempt := 0
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(s.retries))
	return backoff.Retry(func() error {
		attempt++
		if err := fn(); err != nil {
			log.Printf("WARN: %s failed (attempt %d/%d): %v", op, attempt, s.retries+1, err)
			return err
		}
		return nil
	}, policy)
}

// cached returns the cached value for key, or computes, caches, and returns
// it via fetch.
func (s *Server) cached(key string, fetch func() (any, error)) (any, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, v)
	return v, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	v, err := s.cached("stats", func() (any, error) {
		var stats *rawstore.Stats
		err := s.withRetry("stats query", func() error {
			var qerr error
			stats, qerr = s.store.GetStats()
			return qerr
		})
		return stats, err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleTopChannels(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	key := fmt.Sprintf("top:%d", limit)

	v, err := s.cached(key, func() (any, error) {
		var channels []rawstore.ChannelSummary
		err := s.withRetry("top channels query", func() error {
			var qerr error
			channels, qerr = s.store.TopChannels(r.Context(), limit)
			return qerr
		})
		return channels, err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleChannelActivity(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("start and end query parameters are required"))
		return
	}
	key := fmt.Sprintf("activity:%s:%s:%s", slug, start, end)

	v, err := s.cached(key, func() (any, error) {
		var days []rawstore.DailyActivity
		err := s.withRetry("channel activity query", func() error {
			var qerr error
			days, qerr = s.store.ChannelActivity(r.Context(), slug, start, end)
			return qerr
		})
		return days, err
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if days, ok := v.([]rawstore.DailyActivity); ok && len(days) == 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("no activity for channel %s in range", slug))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("q query parameter is required"))
		return
	}
	channel := r.URL.Query().Get("channel")
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	limit := queryInt(r, "limit", 10)

	// Search results are not cached: the parameter space is unbounded and
	// hit rates were negligible.
	var hits []rawstore.SearchHit
	err := s.withRetry("message search query", func() error {
		var qerr error
		hits, qerr = s.store.SearchMessages(r.Context(), q, channel, start, end, limit)
		return qerr
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hits == nil {
		hits = []rawstore.SearchHit{}
	}
	writeJSON(w, http.StatusOK, hits)
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
