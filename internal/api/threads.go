package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/koopa0/chatrelay/internal/store"
)

// Pagination bounds for list endpoints.
const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// threadHandler serves thread CRUD and item listing.
type threadHandler struct {
	store  store.Store
	logger *slog.Logger
}

// createThreadRequest is the POST /api/v1/threads body. All fields optional.
type createThreadRequest struct {
	Metadata map[string]string `json:"metadata,omitempty"`
}

// createThread handles POST /api/v1/threads.
func (h *threadHandler) createThread(w http.ResponseWriter, r *http.Request) {
	var req createThreadRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}
	}

	thread := &store.Thread{
		ID:        h.store.GenerateThreadID(r.Context()),
		CreatedAt: time.Now().UTC(),
		Metadata:  req.Metadata,
	}
	if err := h.store.SaveThread(r.Context(), thread); err != nil {
		h.logger.Error("create thread failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to create thread")
		return
	}

	h.logger.Info("thread created", "thread", thread.ID)
	WriteJSON(w, http.StatusCreated, thread)
}

// listThreads handles GET /api/v1/threads.
func (h *threadHandler) listThreads(w http.ResponseWriter, r *http.Request) {
	after, limit, order, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	page, err := h.store.ListThreads(r.Context(), after, limit, order)
	if err != nil {
		h.logger.Error("list threads failed", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list threads")
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// getThread handles GET /api/v1/threads/{id}.
// Loading an unknown thread creates it, matching store semantics: ids
// minted by the UI become real on first access.
func (h *threadHandler) getThread(w http.ResponseWriter, r *http.Request) {
	thread, err := h.store.LoadThread(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger.Error("load thread failed", "thread", r.PathValue("id"), "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to load thread")
		return
	}
	WriteJSON(w, http.StatusOK, thread)
}

// listItems handles GET /api/v1/threads/{id}/items.
func (h *threadHandler) listItems(w http.ResponseWriter, r *http.Request) {
	after, limit, order, err := listParams(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	page, err := h.store.LoadThreadItems(r.Context(), r.PathValue("id"), after, limit, order)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "thread not found")
			return
		}
		h.logger.Error("list items failed", "thread", r.PathValue("id"), "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list items")
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

// deleteThread handles DELETE /api/v1/threads/{id}.
func (h *threadHandler) deleteThread(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	if err := h.store.DeleteThread(r.Context(), threadID); err != nil {
		h.logger.Error("delete thread failed", "thread", threadID, "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "failed to delete thread")
		return
	}
	h.logger.Info("thread deleted", "thread", threadID)
	w.WriteHeader(http.StatusNoContent)
}

// listParams parses the shared after/limit/order query parameters.
func listParams(r *http.Request) (after string, limit int, order store.Order, err error) {
	q := r.URL.Query()

	after = q.Get("after")

	limit = defaultPageLimit
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return "", 0, "", errors.New("limit must be a positive integer")
		}
		if limit > maxPageLimit {
			limit = maxPageLimit
		}
	}

	order = store.OrderAsc
	switch q.Get("order") {
	case "", "asc":
	case "desc":
		order = store.OrderDesc
	default:
		return "", 0, "", errors.New("order must be asc or desc")
	}
	return after, limit, order, nil
}
