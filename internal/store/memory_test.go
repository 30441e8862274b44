package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLoadThreadCreatesOnFirstAccess(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	thread, err := m.LoadThread(ctx, "thread_abc")
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Equal(t, "thread_abc", thread.ID)
	assert.False(t, thread.CreatedAt.IsZero())

	// Second load returns the same thread, not a new one.
	again, err := m.LoadThread(ctx, "thread_abc")
	require.NoError(t, err)
	assert.Equal(t, thread.CreatedAt, again.CreatedAt)
}

func TestMemoryLoadThreadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	thread, err := m.LoadThread(ctx, "thread_abc")
	require.NoError(t, err)
	thread.Metadata["title"] = "mutated by caller"

	again, err := m.LoadThread(ctx, "thread_abc")
	require.NoError(t, err)
	assert.Empty(t, again.Metadata["title"])
}

func TestMemorySaveItemUpsertPreservesPosition(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	base := time.Now().UTC()
	items := []*Item{
		{ID: "message_1", Role: RoleUser, Content: []ContentPart{{Type: PartInputText, Text: "first"}}, CreatedAt: base},
		{ID: "message_2", Role: RoleAssistant, Content: []ContentPart{{Type: PartOutputText, Text: "second"}}, CreatedAt: base.Add(time.Second)},
		{ID: "message_3", Role: RoleUser, Content: []ContentPart{{Type: PartInputText, Text: "third"}}, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, item := range items {
		require.NoError(t, m.SaveItem(ctx, "t", item))
	}

	// Rewrite the middle item in place.
	updated := &Item{
		ID:        "message_2",
		Role:      RoleAssistant,
		Content:   []ContentPart{{Type: PartOutputText, Text: "second, revised"}},
		CreatedAt: base.Add(time.Second),
	}
	require.NoError(t, m.SaveItem(ctx, "t", updated))

	page, err := m.LoadThreadItems(ctx, "t", "", 10, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "message_2", page.Data[1].ID)
	assert.Equal(t, "second, revised", page.Data[1].Text())
}

func TestMemorySaveItemCreatesThread(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	item := NewUserItem("hello")
	item.ID = "message_1"
	require.NoError(t, m.SaveItem(ctx, "brand-new", item))

	page, err := m.LoadThreadItems(ctx, "brand-new", "", 10, OrderAsc)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)
}

func TestMemoryLoadThreadItemsPagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		item := &Item{
			ID:        fmt.Sprintf("message_%d", i),
			Role:      RoleUser,
			Content:   []ContentPart{{Type: PartInputText, Text: fmt.Sprintf("msg %d", i)}},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.SaveItem(ctx, "t", item))
	}

	page, err := m.LoadThreadItems(ctx, "t", "", 2, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "message_1", page.After, "cursor is the last returned item")

	page, err = m.LoadThreadItems(ctx, "t", page.After, 2, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.Equal(t, "message_2", page.Data[0].ID)
	assert.True(t, page.HasMore)

	page, err = m.LoadThreadItems(ctx, "t", page.After, 2, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.After)
}

func TestMemoryLoadThreadItemsDesc(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		item := &Item{
			ID:        fmt.Sprintf("message_%d", i),
			Role:      RoleUser,
			Content:   []ContentPart{{Type: PartInputText, Text: "x"}},
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.SaveItem(ctx, "t", item))
	}

	page, err := m.LoadThreadItems(ctx, "t", "", 10, OrderDesc)
	require.NoError(t, err)
	require.Len(t, page.Data, 3)
	assert.Equal(t, "message_2", page.Data[0].ID)
	assert.Equal(t, "message_0", page.Data[2].ID)
}

func TestMemoryLoadThreadItemsUnknownThread(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	page, err := m.LoadThreadItems(ctx, "nope", "", 10, OrderAsc)
	require.NoError(t, err)
	assert.Empty(t, page.Data)
	assert.False(t, page.HasMore)
}

func TestMemoryDeleteThreadRemovesItems(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	item := NewUserItem("hello")
	item.ID = "message_1"
	require.NoError(t, m.SaveItem(ctx, "t", item))
	require.NoError(t, m.DeleteThread(ctx, "t"))

	_, err := m.LoadItem(ctx, "t", "message_1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	require.NoError(t, m.DeleteThread(ctx, "t"))
}

func TestMemoryLoadItemNotFound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	_, err := m.LoadItem(ctx, "t", "message_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGenerateItemIDUnique(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)
	thread := &Thread{ID: "t"}

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := m.GenerateItemID(ctx, ItemTypeMessage, thread)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestMemoryGenerateItemIDPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	id := m.GenerateItemID(ctx, ItemTypeMessage, &Thread{ID: "t"})
	assert.Regexp(t, `^message_[0-9a-f]{12}$`, id)
}

func TestMemoryListThreads(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	for i := 0; i < 3; i++ {
		thread := &Thread{
			ID:        fmt.Sprintf("thread_%d", i),
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, m.SaveThread(ctx, thread))
	}

	page, err := m.ListThreads(ctx, "", 2, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, "thread_0", page.Data[0].ID)

	page, err = m.ListThreads(ctx, page.After, 2, OrderAsc)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "thread_2", page.Data[0].ID)
	assert.False(t, page.HasMore)
}

func TestMemoryAttachments(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	att := &Attachment{
		ID:        "att_1",
		Name:      "notes.txt",
		MimeType:  "text/plain",
		Data:      []byte("hello"),
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, m.SaveAttachment(ctx, att))

	loaded, err := m.LoadAttachment(ctx, "att_1")
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", loaded.Name)

	require.NoError(t, m.DeleteAttachment(ctx, "att_1"))
	_, err = m.LoadAttachment(ctx, "att_1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(nil)

	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				item := NewUserItem("x")
				item.ID = fmt.Sprintf("message_%d_%d", g, i)
				_ = m.SaveItem(ctx, "t", item)
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	page, err := m.LoadThreadItems(ctx, "t", "", 500, OrderAsc)
	require.NoError(t, err)
	assert.Len(t, page.Data, 400)
}
