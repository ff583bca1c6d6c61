package proxy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/cache"
	"github.com/davidgenn/HttpReplayingProxy/pkg/client"
	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CachedHeader marks responses replayed from the cache.
const CachedHeader = "x-http-replaying-proxy-cached"

// faviconPath is dropped without touching the cache or the backend.
const faviconPath = "/favicon.ico"

// ResponseStore is the subset of *cache.Store used by the handler.
type ResponseStore interface {
	Get(fp string) (*cache.CachedEntry, bool)
	Put(seed string, entry *cache.CachedEntry) (string, error)
	MatchHeaders() fingerprint.MatchHeaders
	Now() time.Time
}

// Backend forwards a request to the recorded backend.
type Backend interface {
	Forward(ctx context.Context, req fingerprint.Request) (*http.Response, error)
}

// Handler replays cached responses and records new ones.
type Handler struct {
	store   ResponseStore
	backend Backend
	logger  zerolog.Logger
}

// NewHandler creates a replay handler over store and backend.
func NewHandler(store ResponseStore, backend Backend) *Handler {
	return &Handler{
		store:   store,
		backend: backend,
		logger:  log.With().Str("component", "replay-handler").Logger(),
	}
}

// ServeReplay answers r from the cache or the backend.
// Errors are returned before anything is written to w, except when writing
// the response body itself fails. The caller maps them to a status code.
func (h *Handler) ServeReplay(w http.ResponseWriter, r *http.Request) error {
	if r.URL.Path == faviconPath {
		requestsTotal.WithLabelValues(outcomeFavicon).Inc()
		h.logger.Debug().Msg("Dropped favicon request")
		return nil
	}

	req, err := fingerprint.FromHTTPRequest(r)
	if err != nil {
		return err
	}

	fp, err := fingerprint.Build(req, h.store.MatchHeaders())
	if err != nil {
		return err
	}

	logger := h.logger.With().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", req.Method).
		Str("path", req.RequestPath()).
		Logger()
	logger.Debug().Str("fingerprint", fp).Msg("Request fingerprinted")

	if entry, ok := h.store.Get(fp); ok {
		requestsTotal.WithLabelValues(outcomeHit).Inc()
		logger.Info().
			Bool("cache_hit", true).
			Int("status_code", entry.StatusCode).
			Msg("Replaying cached response")

		w.Header().Set(CachedHeader, "true")
		return entry.Replay(w)
	}

	entry, path, err := h.record(r.Context(), req)
	if err != nil {
		return err
	}

	requestsTotal.WithLabelValues(outcomeMiss).Inc()
	logger.Info().
		Bool("cache_hit", false).
		Int("status_code", entry.StatusCode).
		Str("file", path).
		Msg("Recorded backend response")

	return entry.Replay(w)
}

// record forwards req to the backend and persists the response.
func (h *Handler) record(ctx context.Context, req fingerprint.Request) (*cache.CachedEntry, string, error) {
	resp, err := h.backend.Forward(ctx, req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	entry, err := cache.ResponseToEntry(req, resp, h.store.Now())
	if err != nil {
		return nil, "", &client.BackendCallError{
			Method: req.Method,
			URL:    req.RequestPath(),
			Class:  client.ErrorClassNetwork,
			Err:    fmt.Errorf("read backend response: %w", err),
		}
	}

	path, err := h.store.Put(req.RequestPath(), entry)
	if err != nil {
		return nil, "", err
	}
	return entry, path, nil
}
