package relay

import (
	"context"
	"fmt"
	"strings"

	"github.com/koopa0/chatrelay/internal/store"
)

// HistoryPageSize bounds history reconstruction at a single page.
//
// Threads longer than this lose their oldest-beyond-page context; this is a
// deliberate ceiling, not pagination left unfinished. Raising it means
// paying the model's context window cost, so it stays a single bounded read.
const HistoryPageSize = 100

// HistoryEntry is the reduced {role, text} projection of an item used as
// model input. Derived per turn, never persisted.
type HistoryEntry struct {
	Role store.Role
	Text string
}

// BuildHistory converts the thread's stored items into the linear message
// sequence the model expects, appending the new input as the final user turn.
//
// Items with no extractable text contribute nothing. The input is appended
// only when it is non-empty and not a verbatim duplicate of the preceding
// entry; the input item is already persisted by the time history is built,
// so the page usually contains it and the append is suppressed; the append
// only matters when the thread has outgrown the page bound.
//
// A store read failure fails the whole turn; no partial history is
// presented to the model.
func BuildHistory(ctx context.Context, st store.Store, threadID string, input *store.Item) ([]HistoryEntry, error) {
	page, err := st.LoadThreadItems(ctx, threadID, "", HistoryPageSize, store.OrderAsc)
	if err != nil {
		return nil, fmt.Errorf("load thread items: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(page.Data)+1)
	for _, item := range page.Data {
		text := item.Text()
		if text == "" {
			continue
		}
		entries = append(entries, HistoryEntry{Role: item.Role, Text: text})
	}

	if input != nil {
		text := strings.TrimSpace(input.Text())
		if text != "" && !duplicatesLast(entries, text) {
			entries = append(entries, HistoryEntry{Role: store.RoleUser, Text: input.Text()})
		}
	}

	return entries, nil
}

// duplicatesLast reports whether text repeats the final entry verbatim.
// The tie-break compares trimmed text, not identifiers.
func duplicatesLast(entries []HistoryEntry, trimmed string) bool {
	if len(entries) == 0 {
		return false
	}
	return strings.TrimSpace(entries[len(entries)-1].Text) == trimmed
}
