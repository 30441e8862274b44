package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a Store backed by PostgreSQL via pgx.
//
// Items keep their thread position through a monotonic seq column assigned
// on first insert; SaveItem on an existing id rewrites content in place
// without touching seq or created_at.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgres creates a PostgreSQL-backed store using the given pool.
// The schema must already be migrated (see the db package).
func NewPostgres(pool *pgxpool.Pool, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, logger: logger}
}

// GenerateThreadID mints a new thread identifier.
func (p *Postgres) GenerateThreadID(_ context.Context) string {
	return NewID("thread")
}

// GenerateItemID mints an item identifier unique within the thread.
func (p *Postgres) GenerateItemID(_ context.Context, itemType ItemType, _ *Thread) string {
	return NewID(string(itemType))
}

// LoadThread returns the thread, creating it on first access.
func (p *Postgres) LoadThread(ctx context.Context, threadID string) (*Thread, error) {
	thread, err := p.scanThread(ctx, threadID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}

	thread = &Thread{ID: threadID, CreatedAt: time.Now().UTC(), Metadata: map[string]string{}}
	if err := p.SaveThread(ctx, thread); err != nil {
		return nil, err
	}
	return thread, nil
}

// SaveThread persists thread metadata, creating the thread if needed.
func (p *Postgres) SaveThread(ctx context.Context, thread *Thread) error {
	meta, err := json.Marshal(thread.Metadata)
	if err != nil {
		return fmt.Errorf("marshal thread metadata: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO threads (id, created_at, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET metadata = EXCLUDED.metadata`,
		thread.ID, thread.CreatedAt, meta)
	if err != nil {
		return fmt.Errorf("save thread %s: %w", thread.ID, err)
	}
	return nil
}

// ListThreads returns a page of threads ordered by creation time.
func (p *Postgres) ListThreads(ctx context.Context, after string, limit int, order Order) (Page[*Thread], error) {
	dir := "ASC"
	cmp := ">"
	if order == OrderDesc {
		dir = "DESC"
		cmp = "<"
	}

	args := []any{limit + 1}
	query := "SELECT id, created_at, metadata FROM threads"
	if after != "" {
		query += fmt.Sprintf(` WHERE (created_at, id) %s (SELECT created_at, id FROM threads WHERE id = $2)`, cmp)
		args = append(args, after)
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, id %s LIMIT $1", dir, dir)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return Page[*Thread]{}, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	var threads []*Thread
	for rows.Next() {
		var t Thread
		var meta []byte
		if err := rows.Scan(&t.ID, &t.CreatedAt, &meta); err != nil {
			return Page[*Thread]{}, fmt.Errorf("scan thread: %w", err)
		}
		if err := json.Unmarshal(meta, &t.Metadata); err != nil {
			return Page[*Thread]{}, fmt.Errorf("decode thread metadata: %w", err)
		}
		threads = append(threads, &t)
	}
	if err := rows.Err(); err != nil {
		return Page[*Thread]{}, fmt.Errorf("list threads: %w", err)
	}

	return clampPage(threads, limit, func(t *Thread) string { return t.ID }), nil
}

// DeleteThread removes the thread; items cascade.
func (p *Postgres) DeleteThread(ctx context.Context, threadID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM threads WHERE id = $1`, threadID); err != nil {
		return fmt.Errorf("delete thread %s: %w", threadID, err)
	}
	return nil
}

// LoadThreadItems returns one page of the thread's items.
func (p *Postgres) LoadThreadItems(ctx context.Context, threadID, after string, limit int, order Order) (Page[*Item], error) {
	dir := "ASC"
	cmp := ">"
	if order == OrderDesc {
		dir = "DESC"
		cmp = "<"
	}

	args := []any{threadID, limit + 1}
	query := `SELECT id, role, content, created_at FROM thread_items WHERE thread_id = $1`
	if after != "" {
		query += fmt.Sprintf(` AND (created_at, seq) %s (SELECT created_at, seq FROM thread_items WHERE thread_id = $1 AND id = $3)`, cmp)
		args = append(args, after)
	}
	query += fmt.Sprintf(" ORDER BY created_at %s, seq %s LIMIT $2", dir, dir)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return Page[*Item]{}, fmt.Errorf("load items for thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return Page[*Item]{}, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return Page[*Item]{}, fmt.Errorf("load items for thread %s: %w", threadID, err)
	}

	return clampPage(items, limit, func(i *Item) string { return i.ID }), nil
}

// SaveItem persists an item, replacing any stored version with the same id.
// The parent thread is created implicitly so SaveItem never fails on the
// foreign key for threads the UI minted but never loaded.
func (p *Postgres) SaveItem(ctx context.Context, threadID string, item *Item) error {
	content, err := json.Marshal(item.Content)
	if err != nil {
		return fmt.Errorf("marshal item content: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO threads (id, created_at, metadata)
		VALUES ($1, now(), '{}') ON CONFLICT (id) DO NOTHING`, threadID)
	if err != nil {
		return fmt.Errorf("ensure thread %s: %w", threadID, err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO thread_items (thread_id, id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id, id) DO UPDATE SET role = EXCLUDED.role, content = EXCLUDED.content`,
		threadID, item.ID, string(item.Role), content, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("save item %s in thread %s: %w", item.ID, threadID, err)
	}
	return nil
}

// LoadItem returns a single item by id.
func (p *Postgres) LoadItem(ctx context.Context, threadID, itemID string) (*Item, error) {
	row := p.pool.QueryRow(ctx, `
		SELECT id, role, content, created_at FROM thread_items
		WHERE thread_id = $1 AND id = $2`, threadID, itemID)

	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

// DeleteItem removes an item from its thread.
func (p *Postgres) DeleteItem(ctx context.Context, threadID, itemID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM thread_items WHERE thread_id = $1 AND id = $2`, threadID, itemID); err != nil {
		return fmt.Errorf("delete item %s in thread %s: %w", itemID, threadID, err)
	}
	return nil
}

// SaveAttachment stores an attachment blob.
func (p *Postgres) SaveAttachment(ctx context.Context, att *Attachment) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO attachments (id, name, mime_type, data, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, mime_type = EXCLUDED.mime_type, data = EXCLUDED.data`,
		att.ID, att.Name, att.MimeType, att.Data, att.CreatedAt)
	if err != nil {
		return fmt.Errorf("save attachment %s: %w", att.ID, err)
	}
	return nil
}

// LoadAttachment returns an attachment by id.
func (p *Postgres) LoadAttachment(ctx context.Context, attachmentID string) (*Attachment, error) {
	var att Attachment
	err := p.pool.QueryRow(ctx, `
		SELECT id, name, mime_type, data, created_at FROM attachments WHERE id = $1`, attachmentID).
		Scan(&att.ID, &att.Name, &att.MimeType, &att.Data, &att.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load attachment %s: %w", attachmentID, err)
	}
	return &att, nil
}

// DeleteAttachment removes an attachment.
func (p *Postgres) DeleteAttachment(ctx context.Context, attachmentID string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM attachments WHERE id = $1`, attachmentID); err != nil {
		return fmt.Errorf("delete attachment %s: %w", attachmentID, err)
	}
	return nil
}

func (p *Postgres) scanThread(ctx context.Context, threadID string) (*Thread, error) {
	var t Thread
	var meta []byte
	err := p.pool.QueryRow(ctx, `SELECT id, created_at, metadata FROM threads WHERE id = $1`, threadID).
		Scan(&t.ID, &t.CreatedAt, &meta)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(meta, &t.Metadata); err != nil {
		return nil, fmt.Errorf("decode thread metadata: %w", err)
	}
	return &t, nil
}

// scanItem reads one item row (id, role, content, created_at).
func scanItem(row pgx.Row) (*Item, error) {
	var item Item
	var role string
	var content []byte
	if err := row.Scan(&item.ID, &role, &content, &item.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, pgx.ErrNoRows
		}
		return nil, fmt.Errorf("scan item: %w", err)
	}
	item.Role = Role(role)
	if err := json.Unmarshal(content, &item.Content); err != nil {
		return nil, fmt.Errorf("decode item content: %w", err)
	}
	return &item, nil
}

// clampPage trims a limit+1 probe result into a Page.
func clampPage[T any](rows []T, limit int, id func(T) string) Page[T] {
	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}
	page := Page[T]{Data: rows, HasMore: hasMore}
	if hasMore && len(rows) > 0 {
		page.After = id(rows[len(rows)-1])
	}
	return page
}
