package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
)

// maxRespondBody limits respond request bodies to 1MB.
const maxRespondBody = 1024 * 1024

// respondHandler runs streaming completion turns over SSE.
type respondHandler struct {
	store     store.Store
	responder *relay.Responder
	logger    *slog.Logger
}

// respondRequest is the POST /api/v1/threads/{id}/respond body.
type respondRequest struct {
	Text string `json:"text"`
}

// updatePayload is the SSE data payload for thread.item.updated events.
type updatePayload struct {
	ItemID string `json:"item_id"`
	Delta  string `json:"delta"`
}

// errorPayload is the SSE data payload when an error occurs mid-stream.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respond handles POST /api/v1/threads/{id}/respond.
// It persists the user message, runs one completion turn, and streams
// thread item events over SSE as they are produced.
func (h *respondHandler) respond(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")

	var req respondRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxRespondBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		WriteError(w, http.StatusBadRequest, "invalid_request", "text is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	input := store.NewUserItem(req.Text)

	events := 0
	err := h.responder.Respond(r.Context(), threadID, input, func(ev *relay.Event) error {
		events++
		return h.writeRelayEvent(w, flusher, ev)
	})
	if err != nil {
		h.logger.Error("respond turn failed", "thread", threadID, "events", events, "error", err)
		if events == 0 {
			// SSE headers are only committed by the first write, so a turn
			// that failed before producing anything can still answer JSON.
			WriteError(w, http.StatusBadGateway, "completion_failed", "completion failed")
			return
		}
		_ = writeEvent(w, flusher, "error", errorPayload{
			Code:    "completion_failed",
			Message: "completion failed",
		})
		return
	}

	h.logger.Info("respond turn completed", "thread", threadID, "events", events)
}

// writeRelayEvent maps a relay event onto the SSE wire format.
// Added and done carry the full item; updated carries only the delta.
func (h *respondHandler) writeRelayEvent(w io.Writer, flusher http.Flusher, ev *relay.Event) error {
	switch ev.Type {
	case relay.EventItemAdded, relay.EventItemDone:
		return writeEvent(w, flusher, string(ev.Type), ev.Item)
	case relay.EventItemUpdated:
		return writeEvent(w, flusher, string(ev.Type), updatePayload{
			ItemID: ev.ItemID,
			Delta:  ev.Delta,
		})
	}
	return nil
}

// writeEvent writes a single SSE event with JSON-encoded data.
// SSE format: "event: <type>\ndata: <json>\n\n"
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	flusher.Flush()
	return nil
}
