package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/koopa0/chatrelay/internal/store"
)

// debugHandler exposes a raw dump of stored threads for development.
// Only registered when ServerConfig.EnableDebug is set.
type debugHandler struct {
	store  store.Store
	logger *slog.Logger
}

// debugThread is one thread with its items inlined.
type debugThread struct {
	Thread *store.Thread `json:"thread"`
	Items  []*store.Item `json:"items"`
}

// dumpThreads handles GET /api/v1/debug/threads.
// Walks every thread page by page and inlines all items per thread.
func (h *debugHandler) dumpThreads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var out []debugThread
	after := ""
	for {
		page, err := h.store.ListThreads(ctx, after, maxPageLimit, store.OrderAsc)
		if err != nil {
			h.logger.Error("debug dump failed", "error", err)
			WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list threads")
			return
		}

		for _, thread := range page.Data {
			items, err := h.allItems(ctx, thread.ID)
			if err != nil {
				h.logger.Error("debug dump failed", "thread", thread.ID, "error", err)
				WriteError(w, http.StatusInternalServerError, "internal_error", "failed to list items")
				return
			}
			out = append(out, debugThread{Thread: thread, Items: items})
		}

		if !page.HasMore {
			break
		}
		after = page.After
	}

	if out == nil {
		out = []debugThread{}
	}
	WriteJSON(w, http.StatusOK, out)
}

// allItems drains every item page for one thread.
func (h *debugHandler) allItems(ctx context.Context, threadID string) ([]*store.Item, error) {
	var items []*store.Item
	after := ""
	for {
		page, err := h.store.LoadThreadItems(ctx, threadID, after, maxPageLimit, store.OrderAsc)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Data...)
		if !page.HasMore {
			return items, nil
		}
		after = page.After
	}
}
