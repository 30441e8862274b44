// Package store persists conversation threads and their ordered items.
//
// The Store interface is the full persistence contract consumed by the relay
// and the HTTP API. Two backends implement it: an in-memory store for tests
// and single-process deployments, and a PostgreSQL store for durable setups.
//
// Concurrency discipline is the store's own responsibility: every backend
// must be safe for interleaved reads and writes to the same thread from
// concurrent response turns.
package store

import (
	"context"
	"errors"
)

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates the requested thread, item, or attachment does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the thread persistence contract.
//
// LoadThread creates the thread when the id is unknown: a new thread id
// minted by the UI becomes real on first load. All other lookups return
// ErrNotFound for missing entities.
type Store interface {
	// GenerateThreadID mints a store-unique thread identifier.
	GenerateThreadID(ctx context.Context) string

	// GenerateItemID mints an identifier unique within the given thread.
	// The item type becomes the id prefix.
	GenerateItemID(ctx context.Context, itemType ItemType, thread *Thread) string

	// LoadThread returns the thread, creating it if it does not exist.
	LoadThread(ctx context.Context, threadID string) (*Thread, error)

	// SaveThread persists thread metadata, creating the thread if needed.
	SaveThread(ctx context.Context, thread *Thread) error

	// ListThreads returns a page of threads ordered by creation time.
	ListThreads(ctx context.Context, after string, limit int, order Order) (Page[*Thread], error)

	// DeleteThread removes the thread and all its items. Unknown ids are a no-op.
	DeleteThread(ctx context.Context, threadID string) error

	// LoadThreadItems returns a page of the thread's items in chronological
	// order (or reverse for OrderDesc). The after cursor is an item id;
	// the page starts at the element following it.
	LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (Page[*Item], error)

	// SaveItem persists an item under its id. Saving an existing id replaces
	// the stored version in place, preserving its position in the thread.
	SaveItem(ctx context.Context, threadID string, item *Item) error

	// LoadItem returns a single item by id.
	LoadItem(ctx context.Context, threadID, itemID string) (*Item, error)

	// DeleteItem removes an item from its thread. Unknown ids are a no-op.
	DeleteItem(ctx context.Context, threadID, itemID string) error

	// Attachment blob operations. Unused by the relay but part of the contract.
	SaveAttachment(ctx context.Context, att *Attachment) error
	LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error)
	DeleteAttachment(ctx context.Context, attachmentID string) error
}
