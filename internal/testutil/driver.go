package testutil

import (
	"context"

	"github.com/koopa0/chatrelay/internal/relay"
	"github.com/koopa0/chatrelay/internal/store"
)

// ScriptedDriver replays a fixed event sequence, recording the history it
// was handed. It stands in for the model backend in relay and API tests
// where upstream identifier collisions must be reproduced exactly.
type ScriptedDriver struct {
	// Events are cloned before emission so a turn cannot mutate the script.
	Events []*relay.Event

	// Err, when set, is returned after all events have been emitted,
	// simulating a transport failure at the end of the script.
	Err error

	// Histories records the history passed to each Stream call.
	Histories [][]relay.HistoryEntry
}

// Stream emits the scripted events in order.
func (d *ScriptedDriver) Stream(_ context.Context, history []relay.HistoryEntry, emit relay.EmitFunc) error {
	d.Histories = append(d.Histories, history)
	for _, ev := range d.Events {
		if err := emit(cloneEvent(ev)); err != nil {
			return err
		}
	}
	return d.Err
}

func cloneEvent(ev *relay.Event) *relay.Event {
	cp := *ev
	cp.Item = ev.Item.Clone()
	return &cp
}

// Added builds a scripted added event for an assistant item.
func Added(upstreamID string) *relay.Event {
	return &relay.Event{Type: relay.EventItemAdded, Item: store.NewAssistantItem(upstreamID, "")}
}

// Updated builds a scripted delta event.
func Updated(upstreamID, delta string) *relay.Event {
	return &relay.Event{Type: relay.EventItemUpdated, ItemID: upstreamID, Delta: delta}
}

// Done builds a scripted finalization event carrying the full text.
func Done(upstreamID, text string) *relay.Event {
	return &relay.Event{Type: relay.EventItemDone, Item: store.NewAssistantItem(upstreamID, text)}
}
