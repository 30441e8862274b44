package relay

import (
	"context"
	"log/slog"

	"github.com/koopa0/chatrelay/internal/store"
)

// Reconciler rewrites upstream-assigned assistant message identifiers into
// store-unique ones, consistently across all events in one turn.
//
// The mapping is strictly turn-scoped: construct one Reconciler per Respond
// call and discard it when the turn ends. A stale mapping reused across
// turns would hand two independent responses the same stored identifier.
//
// Not safe for concurrent use; one turn is a linear pipeline.
type Reconciler struct {
	store  store.Store
	thread *store.Thread
	ids    map[string]string
	logger *slog.Logger
}

// NewReconciler creates an empty per-turn reconciler for the given thread.
func NewReconciler(st store.Store, thread *store.Thread, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:  st,
		thread: thread,
		ids:    make(map[string]string),
		logger: logger,
	}
}

// Rewrite replaces the event's upstream identifier with the mapped
// store-unique one, minting a fresh id on the first Added for an unseen
// upstream id. The event is mutated in place and returned.
//
// An Updated or Done whose upstream id was never announced by an Added is
// an upstream contract violation; it passes through unmodified rather than
// failing the turn. Events without an identity, and events for
// non-assistant items, pass through untouched.
func (r *Reconciler) Rewrite(ctx context.Context, ev *Event) *Event {
	switch ev.Type {
	case EventItemAdded:
		if ev.Item == nil || ev.Item.Role != store.RoleAssistant {
			return ev
		}
		mapped, ok := r.ids[ev.Item.ID]
		if !ok {
			mapped = r.store.GenerateItemID(ctx, store.ItemTypeMessage, r.thread)
			r.ids[ev.Item.ID] = mapped
			r.logger.Debug("mapped upstream id", "upstream", ev.Item.ID, "mapped", mapped)
		}
		ev.Item.ID = mapped

	case EventItemUpdated:
		if mapped, ok := r.ids[ev.ItemID]; ok {
			ev.ItemID = mapped
		} else if ev.ItemID != "" {
			r.logger.Warn("update for unannounced upstream id", "upstream", ev.ItemID)
		}

	case EventItemDone:
		if ev.Item == nil || ev.Item.Role != store.RoleAssistant {
			return ev
		}
		if mapped, ok := r.ids[ev.Item.ID]; ok {
			ev.Item.ID = mapped
		} else {
			r.logger.Warn("done for unannounced upstream id", "upstream", ev.Item.ID)
		}
	}
	return ev
}
