package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/koopa0/chatrelay/internal/store"
)

// Responder orchestrates one response turn: history reconstruction, the
// streaming completion, identity reconciliation, per-event persistence,
// and immediate forwarding to the caller.
//
// Responder is stateless across turns and safe for concurrent use; each
// Respond call builds its own reconciler and in-flight tracking, so
// concurrent turns share nothing but the store.
type Responder struct {
	store  store.Store
	driver Driver
	logger *slog.Logger
}

// NewResponder creates a Responder over the given store and driver.
func NewResponder(st store.Store, driver Driver, logger *slog.Logger) *Responder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Responder{store: st, driver: driver, logger: logger}
}

// Respond runs one turn for the given thread and input item.
//
// The input item is persisted before history is reconstructed, so a
// concurrent reader of the thread sees the user turn immediately. Every
// reconciled event is persisted and then forwarded through emit before the
// next event is produced, with no end-of-turn buffering.
//
// On a history failure no events are emitted. On a driver failure
// mid-stream, events already forwarded stand; partially persisted
// assistant items remain in their last written state.
func (r *Responder) Respond(ctx context.Context, threadID string, input *store.Item, emit EmitFunc) error {
	thread, err := r.store.LoadThread(ctx, threadID)
	if err != nil {
		return fmt.Errorf("load thread %s: %w", threadID, err)
	}

	if input != nil {
		if input.ID == "" {
			input.ID = r.store.GenerateItemID(ctx, store.ItemTypeMessage, thread)
		}
		if err := r.store.SaveItem(ctx, threadID, input); err != nil {
			return fmt.Errorf("save input item: %w", err)
		}
	}

	history, err := BuildHistory(ctx, r.store, threadID, input)
	if err != nil {
		return err
	}
	r.logger.Debug("history reconstructed", "thread", threadID, "entries", len(history))

	rec := NewReconciler(r.store, thread, r.logger)
	inflight := make(map[string]*store.Item)

	err = r.driver.Stream(ctx, history, func(ev *Event) error {
		// Cancellation is honored between events, never mid-write.
		if err := ctx.Err(); err != nil {
			return err
		}
		ev = rec.Rewrite(ctx, ev)
		if err := r.persist(ctx, threadID, inflight, ev); err != nil {
			return err
		}
		return emit(ev)
	})
	if err != nil {
		return fmt.Errorf("completion stream: %w", err)
	}
	return nil
}

// persist writes the event's item state to the store: the announced item on
// Added, the accumulated in-flight item on Updated, the final item on Done.
//
// Only items this turn announced are written. An Updated or Done that the
// reconciler passed through unmapped has no in-flight entry and is
// forwarded without persistence: writing it under a raw upstream id could
// collide with an item another turn already owns.
func (r *Responder) persist(ctx context.Context, threadID string, inflight map[string]*store.Item, ev *Event) error {
	switch ev.Type {
	case EventItemAdded:
		if ev.Item == nil || ev.Item.Role != store.RoleAssistant {
			return nil
		}
		// Thread position is assigned here; a driver-supplied timestamp
		// could sort the answer before the question it follows.
		ev.Item.CreatedAt = time.Now().UTC()
		inflight[ev.Item.ID] = ev.Item.Clone()
		return r.store.SaveItem(ctx, threadID, ev.Item)

	case EventItemUpdated:
		item, ok := inflight[ev.ItemID]
		if !ok {
			return nil
		}
		appendText(item, ev.Delta)
		return r.store.SaveItem(ctx, threadID, item)

	case EventItemDone:
		if ev.Item == nil {
			return nil
		}
		prev, ok := inflight[ev.Item.ID]
		if !ok {
			return nil
		}
		// Keep the creation time from the Added event so the item's thread
		// position survives the final rewrite.
		ev.Item.CreatedAt = prev.CreatedAt
		delete(inflight, ev.Item.ID)
		return r.store.SaveItem(ctx, threadID, ev.Item)
	}
	return nil
}

// appendText extends the item's trailing output_text part with delta.
func appendText(item *store.Item, delta string) {
	if delta == "" {
		return
	}
	for i := len(item.Content) - 1; i >= 0; i-- {
		if item.Content[i].Type == store.PartOutputText {
			item.Content[i].Text += delta
			return
		}
	}
	item.Content = append(item.Content, store.ContentPart{Type: store.PartOutputText, Text: delta})
}
