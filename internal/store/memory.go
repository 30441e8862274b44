package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// threadState couples a thread with its ordered items.
type threadState struct {
	thread *Thread
	items  []*Item
}

// Memory is an in-memory Store. It is the default backend for the demo
// deployment and the backend used by tests.
//
// Memory is safe for concurrent use. All reads and writes copy values at
// the boundary, so callers never share memory with the store's internals.
type Memory struct {
	mu          sync.RWMutex
	threads     map[string]*threadState
	attachments map[string]*Attachment
	logger      *slog.Logger
}

// NewMemory creates an empty in-memory store.
func NewMemory(logger *slog.Logger) *Memory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Memory{
		threads:     make(map[string]*threadState),
		attachments: make(map[string]*Attachment),
		logger:      logger,
	}
}

// GenerateThreadID mints a new thread identifier.
func (m *Memory) GenerateThreadID(_ context.Context) string {
	return NewID("thread")
}

// GenerateItemID mints an item identifier unique within the thread.
func (m *Memory) GenerateItemID(_ context.Context, itemType ItemType, _ *Thread) string {
	id := NewID(string(itemType))
	m.logger.Debug("generated item id", "type", itemType, "id", id)
	return id
}

// LoadThread returns the thread, creating it on first access.
func (m *Memory) LoadThread(_ context.Context, threadID string) (*Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.threads[threadID]; ok {
		return state.thread.Clone(), nil
	}

	thread := &Thread{
		ID:        threadID,
		CreatedAt: time.Now().UTC(),
		Metadata:  map[string]string{},
	}
	m.threads[threadID] = &threadState{thread: thread.Clone()}
	return thread, nil
}

// SaveThread persists thread metadata.
func (m *Memory) SaveThread(_ context.Context, thread *Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if state, ok := m.threads[thread.ID]; ok {
		state.thread = thread.Clone()
		return nil
	}
	m.threads[thread.ID] = &threadState{thread: thread.Clone()}
	return nil
}

// ListThreads returns a page of threads ordered by creation time.
func (m *Memory) ListThreads(_ context.Context, after string, limit int, order Order) (Page[*Thread], error) {
	m.mu.RLock()
	threads := make([]*Thread, 0, len(m.threads))
	for _, state := range m.threads {
		threads = append(threads, state.thread.Clone())
	}
	m.mu.RUnlock()

	sort.SliceStable(threads, func(i, j int) bool {
		if order == OrderDesc {
			i, j = j, i
		}
		if threads[i].CreatedAt.Equal(threads[j].CreatedAt) {
			return threads[i].ID < threads[j].ID
		}
		return threads[i].CreatedAt.Before(threads[j].CreatedAt)
	})

	start := 0
	if after != "" {
		for idx, t := range threads {
			if t.ID == after {
				start = idx + 1
				break
			}
		}
	}

	return paginate(threads, start, limit, func(t *Thread) string { return t.ID }), nil
}

// DeleteThread removes the thread and its items.
func (m *Memory) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.threads, threadID)
	return nil
}

// LoadThreadItems returns one page of the thread's items.
// An unknown thread yields an empty page, matching LoadThread's
// create-on-access behavior.
func (m *Memory) LoadThreadItems(_ context.Context, threadID, after string, limit int, order Order) (Page[*Item], error) {
	m.mu.RLock()
	var items []*Item
	if state, ok := m.threads[threadID]; ok {
		items = make([]*Item, 0, len(state.items))
		for _, item := range state.items {
			items = append(items, item.Clone())
		}
	}
	m.mu.RUnlock()

	// Stable sort keeps insertion order for items created in the same instant.
	sort.SliceStable(items, func(i, j int) bool {
		if order == OrderDesc {
			i, j = j, i
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})

	start := 0
	if after != "" {
		for idx, item := range items {
			if item.ID == after {
				start = idx + 1
				break
			}
		}
	}

	return paginate(items, start, limit, func(i *Item) string { return i.ID }), nil
}

// SaveItem persists an item, replacing any stored version with the same id.
func (m *Memory) SaveItem(_ context.Context, threadID string, item *Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.threads[threadID]
	if !ok {
		state = &threadState{thread: &Thread{
			ID:        threadID,
			CreatedAt: time.Now().UTC(),
			Metadata:  map[string]string{},
		}}
		m.threads[threadID] = state
	}

	for idx, existing := range state.items {
		if existing.ID == item.ID {
			state.items[idx] = item.Clone()
			return nil
		}
	}
	state.items = append(state.items, item.Clone())
	m.logger.Debug("item added", "thread", threadID, "id", item.ID, "total", len(state.items))
	return nil
}

// LoadItem returns a single item by id.
func (m *Memory) LoadItem(_ context.Context, threadID, itemID string) (*Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if state, ok := m.threads[threadID]; ok {
		for _, item := range state.items {
			if item.ID == itemID {
				return item.Clone(), nil
			}
		}
	}
	return nil, ErrNotFound
}

// DeleteItem removes an item from its thread.
func (m *Memory) DeleteItem(_ context.Context, threadID, itemID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.threads[threadID]
	if !ok {
		return nil
	}
	kept := state.items[:0]
	for _, item := range state.items {
		if item.ID != itemID {
			kept = append(kept, item)
		}
	}
	state.items = kept
	return nil
}

// SaveAttachment stores an attachment blob.
func (m *Memory) SaveAttachment(_ context.Context, att *Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *att
	m.attachments[att.ID] = &cp
	return nil
}

// LoadAttachment returns an attachment by id.
func (m *Memory) LoadAttachment(_ context.Context, attachmentID string) (*Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	att, ok := m.attachments[attachmentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *att
	return &cp, nil
}

// DeleteAttachment removes an attachment.
func (m *Memory) DeleteAttachment(_ context.Context, attachmentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attachments, attachmentID)
	return nil
}

// paginate slices sorted into a Page starting at start with a limit+1 probe
// for HasMore. The cursor is the id of the last returned element.
func paginate[T any](sorted []T, start, limit int, id func(T) string) Page[T] {
	if start > len(sorted) {
		start = len(sorted)
	}
	end := start + limit + 1
	if end > len(sorted) {
		end = len(sorted)
	}
	window := sorted[start:end]

	hasMore := len(window) > limit
	if hasMore {
		window = window[:limit]
	}

	page := Page[T]{Data: window, HasMore: hasMore}
	if hasMore && len(window) > 0 {
		page.After = id(window[len(window)-1])
	}
	return page
}
