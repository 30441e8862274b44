// Package relay drives one response turn end-to-end: it reconstructs model
// input from stored thread history, streams a completion from the model
// backend, rewrites upstream message identifiers into store-unique ones, and
// persists every item state as it streams.
package relay

import "github.com/koopa0/chatrelay/internal/store"

// EventType tags a relay event. The values are the wire-level kinds the
// chat widget consumes.
type EventType string

const (
	// EventItemAdded announces a new in-flight item. Carries the full item.
	EventItemAdded EventType = "thread.item.added"

	// EventItemUpdated appends a text delta to an in-flight item.
	EventItemUpdated EventType = "thread.item.updated"

	// EventItemDone finalizes an item. Carries the full, immutable item.
	EventItemDone EventType = "thread.item.done"
)

// Event is one entry in the response stream.
//
// Added and Done carry a full item snapshot in Item; Updated carries the
// target item's id plus the appended text. Upstream event kinds outside
// this closed set are dropped by the driver, never surfaced.
type Event struct {
	Type   EventType   `json:"type"`
	Item   *store.Item `json:"item,omitempty"`
	ItemID string      `json:"item_id,omitempty"`
	Delta  string      `json:"delta,omitempty"`
}

// EmitFunc receives events in production order. Returning an error stops
// the stream; the error propagates out of the producing call.
type EmitFunc func(*Event) error
