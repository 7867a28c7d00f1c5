// Package fakeshlink is an in-memory stand-in for a Shlink server, with a
// simulated redirect cache: the first lookup of a code (or the first after
// its cache entry expires) is slow, later lookups are fast. It lets the
// whole pipeline, cache inference included, run without a real deployment.
package fakeshlink

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMissLatency = 80 * time.Millisecond
	DefaultCacheTTL    = 5 * time.Minute
	createPath         = "/rest/v3/short-urls"
)

// Options configures a Server. Zero values pick the defaults.
type Options struct {
	// APIKey, when set, must be presented as X-Api-Key on creation.
	APIKey      string
	HitLatency  time.Duration
	MissLatency time.Duration
	CacheTTL    time.Duration
	// DisableCache makes every lookup a miss.
	DisableCache bool
	Logger       *zap.Logger
}

// Stats counts lookups by cache outcome.
type Stats struct {
	Created  int64 `json:"created"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	NotFound int64 `json:"not_found"`
}

type shortURL struct {
	Code      string    `json:"shortCode"`
	ShortURL  string    `json:"shortUrl"`
	LongURL   string    `json:"longUrl"`
	Title     string    `json:"title,omitempty"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"dateCreated"`
}

type createRequest struct {
	LongURL      string   `json:"longUrl"`
	CustomSlug   string   `json:"customSlug"`
	Title        string   `json:"title"`
	Tags         []string `json:"tags"`
	FindIfExists bool     `json:"findIfExists"`
}

// Server implements the creation and redirect endpoints.
type Server struct {
	opts Options
	log  *zap.Logger

	mu    sync.RWMutex
	urls  map[string]shortURL
	cache map[string]time.Time // code -> expiry

	seq                          atomic.Int64
	created, hits, misses, nf404 atomic.Int64
}

func New(opts Options) *Server {
	if opts.MissLatency <= 0 {
		opts.MissLatency = DefaultMissLatency
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		opts:  opts,
		log:   log,
		urls:  make(map[string]shortURL),
		cache: make(map[string]time.Time),
	}
}

// Handler routes creation and redirect requests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+createPath, s.handleCreate)
	mux.HandleFunc("GET /{code}", s.handleRedirect)
	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, s.Stats())
	})
	return mux
}

// Stats returns the counters so far.
func (s *Server) Stats() Stats {
	return Stats{
		Created:  s.created.Load(),
		Hits:     s.hits.Load(),
		Misses:   s.misses.Load(),
		NotFound: s.nf404.Load(),
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if s.opts.APIKey != "" && r.Header.Get("X-Api-Key") != s.opts.APIKey {
		respondProblem(w, http.StatusUnauthorized, "invalid-api-key", "Invalid API key", "Provided API key does not exist or is invalid.")
		return
	}
	var in createRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.LongURL) == "" {
		respondProblem(w, http.StatusBadRequest, "invalid-data", "Invalid data", "Provided data is not valid.")
		return
	}

	s.mu.Lock()
	if in.CustomSlug != "" {
		if existing, ok := s.urls[in.CustomSlug]; ok {
			s.mu.Unlock()
			if in.FindIfExists && existing.LongURL == in.LongURL {
				respondJSON(w, http.StatusOK, existing)
				return
			}
			respondProblem(w, http.StatusBadRequest, "non-unique-slug", "Invalid custom slug",
				fmt.Sprintf("Provided slug %q is already in use.", in.CustomSlug))
			return
		}
	}
	code := in.CustomSlug
	for code == "" || s.exists(code) {
		code = "f" + strconv.FormatInt(s.seq.Add(1), 36)
	}
	entry := shortURL{
		Code:      code,
		ShortURL:  "http://" + r.Host + "/" + code,
		LongURL:   in.LongURL,
		Title:     in.Title,
		Tags:      in.Tags,
		CreatedAt: time.Now().UTC(),
	}
	if entry.Tags == nil {
		entry.Tags = []string{}
	}
	s.urls[code] = entry
	s.mu.Unlock()

	s.created.Add(1)
	s.log.Debug("created", zap.String("code", code))
	respondJSON(w, http.StatusOK, entry)
}

// exists must be called with mu held.
func (s *Server) exists(code string) bool {
	_, ok := s.urls[code]
	return ok
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	s.mu.RLock()
	entry, ok := s.urls[code]
	s.mu.RUnlock()
	if !ok {
		s.nf404.Add(1)
		http.NotFound(w, r)
		return
	}

	delay := s.opts.MissLatency
	if s.cached(code) {
		s.hits.Add(1)
		delay = s.opts.HitLatency
	} else {
		s.misses.Add(1)
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-r.Context().Done():
			return
		case <-timer.C:
		}
	}

	w.Header().Set("Location", entry.LongURL)
	w.WriteHeader(http.StatusFound)
}

// cached reports whether code was in the cache, and caches it.
func (s *Server) cached(code string) bool {
	if s.opts.DisableCache {
		return false
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.cache[code]
	s.cache[code] = now.Add(s.opts.CacheTTL)
	return ok && now.Before(expiry)
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondProblem(w http.ResponseWriter, status int, kind, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://shlink.io/api/error/" + kind,
		"title":  title,
		"detail": detail,
		"status": status,
	})
}
