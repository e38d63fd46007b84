package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

const (
	// partitionHeader selects the store partition; absent means default.
	partitionHeader = "X-Partition"

	// DefaultPartition is the partition used when none is requested.
	DefaultPartition = "default"
)

// Handler exposes the internal session sub-protocol over HTTP:
//
//	POST   /create {userId?, data?}
//	GET    /get?id=
//	POST   /update {sessionId, data}
//	DELETE /delete?id=
//
// All responses are JSON; errors use the {"error": string} shape.
type Handler struct {
	manager *Manager
	mux     *http.ServeMux
}

// NewHandler creates the internal session API handler.
func NewHandler(manager *Manager) *Handler {
	h := &Handler{
		manager: manager,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("POST /create", h.handleCreate)
	h.mux.HandleFunc("GET /get", h.handleGet)
	h.mux.HandleFunc("POST /update", h.handleUpdate)
	h.mux.HandleFunc("DELETE /delete", h.handleDelete)
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

type createRequest struct {
	UserID string         `json:"userId"`
	Data   map[string]any `json:"data"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := h.store(r)
	if err != nil {
		writeBackendError(w, "session: opening partition", err)
		return
	}

	rec, err := store.Create(r.Context(), req.UserID, req.Data)
	if err != nil {
		writeBackendError(w, "session: create", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	store, err := h.store(r)
	if err != nil {
		writeBackendError(w, "session: opening partition", err)
		return
	}

	rec, err := store.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeBackendError(w, "session: get", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

type updateRequest struct {
	SessionID string         `json:"sessionId"`
	Data      map[string]any `json:"data"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	store, err := h.store(r)
	if err != nil {
		writeBackendError(w, "session: opening partition", err)
		return
	}

	rec, err := store.Update(r.Context(), req.SessionID, req.Data)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		writeBackendError(w, "session: update", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}

	store, err := h.store(r)
	if err != nil {
		writeBackendError(w, "session: opening partition", err)
		return
	}

	deleted, err := store.Delete(r.Context(), id)
	if err != nil {
		writeBackendError(w, "session: delete", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeBackendError logs the cause and responds with a generic 500.
// Internal detail never reaches the caller.
func writeBackendError(w http.ResponseWriter, op string, err error) {
	slog.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
