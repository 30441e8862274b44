package store

import (
	"strings"
	"time"
)

// Role identifies the author of a thread item.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ItemType classifies a thread item for id generation.
// Currently only messages exist; the type is part of the store contract
// so generated ids carry their kind as a prefix (e.g. "message_ab12cd34ef56").
type ItemType string

const (
	ItemTypeMessage ItemType = "message"
)

// Content part types, matching the wire-level conversation encoding.
const (
	PartInputText  = "input_text"  // user-authored text
	PartOutputText = "output_text" // model-generated text
)

// Order controls pagination direction for list operations.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Thread is a persisted conversation. The store owns id assignment and
// creation metadata; the relay only reads threads and appends items.
type Thread struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of the thread.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(map[string]string, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// ContentPart is one piece of an item's content. Only text parts carry
// extractable text; other kinds pass through the store untouched.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Item is one message within a thread. Items are immutable once finalized;
// assistant items may be rewritten in place while a response is still
// streaming (SaveItem on an existing id replaces the stored version).
type Item struct {
	ID        string        `json:"id"`
	Role      Role          `json:"role"`
	Content   []ContentPart `json:"content"`
	CreatedAt time.Time     `json:"created_at"`
}

// Clone returns a deep copy of the item.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	cp := *i
	cp.Content = make([]ContentPart, len(i.Content))
	copy(cp.Content, i.Content)
	return &cp
}

// Text returns the concatenated text of all content parts.
// Items without text parts yield an empty string.
func (i *Item) Text() string {
	var sb strings.Builder
	for _, part := range i.Content {
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// NewUserItem builds a user message item with a single input_text part.
// The id is left empty; the store assigns one when the item is persisted.
func NewUserItem(text string) *Item {
	return &Item{
		Role:      RoleUser,
		Content:   []ContentPart{{Type: PartInputText, Text: text}},
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantItem builds an assistant message item with a single
// output_text part under the given id.
func NewAssistantItem(id, text string) *Item {
	return &Item{
		ID:        id,
		Role:      RoleAssistant,
		Content:   []ContentPart{{Type: PartOutputText, Text: text}},
		CreatedAt: time.Now().UTC(),
	}
}

// Attachment is an opaque blob associated with a conversation.
// The relay never reads attachments; they are part of the store contract
// consumed by the UI collaborator.
type Attachment struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MimeType  string    `json:"mime_type"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Page is one page of results from a paginated list operation.
// After is the cursor of the last returned element and is only set
// when HasMore is true.
type Page[T any] struct {
	Data    []T    `json:"data"`
	HasMore bool   `json:"has_more"`
	After   string `json:"after,omitempty"`
}
