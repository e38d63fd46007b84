package cache

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// Response headers exposing cache outcome and entry age.
const (
	cacheHeader    = "X-Cache"
	cacheAgeHeader = "X-Cache-Age-Ms"

	cacheHit  = "HIT"
	cacheMiss = "MISS"
)

// partitionHeader selects the store partition; absent means default.
const partitionHeader = "X-Partition"

// Handler exposes the internal cache sub-protocol over HTTP:
//
//	GET|PUT /calendars?userId=
//	GET|PUT /events/{calendarId}?userId=
//	GET|PUT /preferences?userId=
//	DELETE  /clear?userId=
//
// GET responses carry X-Cache (HIT or MISS) and, on hits, X-Cache-Age-Ms.
// A miss responds 404 with the MISS marker rather than silence. Clearing
// an owner with no cached entries is also 404.
type Handler struct {
	manager *Manager
	policy  TTLPolicy
	mux     *http.ServeMux
}

// NewHandler creates the internal cache API handler.
func NewHandler(manager *Manager, policy TTLPolicy) *Handler {
	h := &Handler{
		manager: manager,
		policy:  policy,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /calendars", h.category(CategoryCalendars).get)
	h.mux.HandleFunc("PUT /calendars", h.category(CategoryCalendars).put)
	h.mux.HandleFunc("GET /events/{calendarId}", h.category(CategoryEvents).get)
	h.mux.HandleFunc("PUT /events/{calendarId}", h.category(CategoryEvents).put)
	h.mux.HandleFunc("GET /preferences", h.category(CategoryPreferences).get)
	h.mux.HandleFunc("PUT /preferences", h.category(CategoryPreferences).put)
	h.mux.HandleFunc("DELETE /clear", h.handleClear)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// store resolves the partition store for a request.
func (h *Handler) store(r *http.Request) (*Store, error) {
	partition := r.Header.Get(partitionHeader)
	if partition == "" {
		partition = DefaultPartition
	}
	return h.manager.Partition(partition)
}

// categoryHandler serves get/put for one resource category.
type categoryHandler struct {
	h        *Handler
	category string
}

func (h *Handler) category(name string) categoryHandler {
	return categoryHandler{h: h, category: name}
}

// requestKey builds the cache key from the request: the category, the
// userId query parameter, and the calendarId path segment when present.
func (c categoryHandler) requestKey(w http.ResponseWriter, r *http.Request) (Key, bool) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeCacheError(w, http.StatusBadRequest, "missing userId")
		return Key{}, false
	}
	return NewKey(c.category, userID, r.PathValue("calendarId")), true
}

func (c categoryHandler) get(w http.ResponseWriter, r *http.Request) {
	key, ok := c.requestKey(w, r)
	if !ok {
		return
	}

	store, err := c.h.store(r)
	if err != nil {
		writeCacheBackendError(w, "cache: opening partition", err)
		return
	}

	res, err := store.Get(r.Context(), key.String(), c.h.policy.TTLFor(c.category))
	if err != nil {
		writeCacheBackendError(w, "cache: get", err)
		return
	}
	if res == nil {
		w.Header().Set(cacheHeader, cacheMiss)
		writeCacheError(w, http.StatusNotFound, "cache miss")
		return
	}

	w.Header().Set(cacheHeader, cacheHit)
	w.Header().Set(cacheAgeHeader, strconv.FormatInt(res.Age.Milliseconds(), 10))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (c categoryHandler) put(w http.ResponseWriter, r *http.Request) {
	key, ok := c.requestKey(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeCacheError(w, http.StatusBadRequest, "reading request body")
		return
	}
	if !json.Valid(body) {
		writeCacheError(w, http.StatusBadRequest, "body must be valid JSON")
		return
	}

	store, err := c.h.store(r)
	if err != nil {
		writeCacheBackendError(w, "cache: opening partition", err)
		return
	}

	if err := store.Put(r.Context(), key.String(), body); err != nil {
		writeCacheBackendError(w, "cache: put", err)
		return
	}
	writeCacheJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeCacheError(w, http.StatusBadRequest, "missing userId")
		return
	}

	store, err := h.store(r)
	if err != nil {
		writeCacheBackendError(w, "cache: opening partition", err)
		return
	}

	removed, err := store.ClearForOwner(r.Context(), userID)
	if err != nil {
		writeCacheBackendError(w, "cache: clear", err)
		return
	}
	if removed == 0 {
		writeCacheError(w, http.StatusNotFound, "no cached entries for owner")
		return
	}
	writeCacheJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// writeCacheJSON writes a JSON response. A nil body writes headers only.
func writeCacheJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeCacheError writes a JSON error response.
func writeCacheError(w http.ResponseWriter, status int, msg string) {
	writeCacheJSON(w, status, map[string]string{"error": msg})
}

// writeCacheBackendError logs the cause and responds with a generic 500.
func writeCacheBackendError(w http.ResponseWriter, op string, err error) {
	slog.Error(op, "error", err)
	writeCacheError(w, http.StatusInternalServerError, "internal server error")
}
