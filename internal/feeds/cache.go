package feeds

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/annexlab/cleanroom/internal/db"
)

// Cache persists fetched items and their read flags.
type Cache struct {
	db *db.DB
}

// NewCache creates a feed cache backed by database.
func NewCache(database *db.DB) *Cache {
	return &Cache{db: database}
}

// FetchedAt returns when category was last stored, or the zero time.
func (c *Cache) FetchedAt(ctx context.Context, category string) (time.Time, error) {
	var ts string
	err := c.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM feed_fetches WHERE category = ?`, category).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading fetch time: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing fetch time: %w", err)
	}
	return t, nil
}

// Replace stores items as the current listing of category. Items already
// cached keep their read flag; items no longer listed are dropped.
func (c *Cache) Replace(ctx context.Context, category string, items []Item, at time.Time) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stamp := at.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx,
		`UPDATE feed_items SET fetched_at = '' WHERE category = ?`, category); err != nil {
		return fmt.Errorf("marking stale items: %w", err)
	}
	for _, it := range items {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO feed_items (id, category, source, title, summary, link, published_at, read, fetched_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   source = excluded.source, title = excluded.title, summary = excluded.summary,
			   link = excluded.link, published_at = excluded.published_at, fetched_at = excluded.fetched_at`,
			it.ID, category, it.Source, it.Title, it.Summary, it.Link,
			it.Date.UTC().Format(time.RFC3339), stamp,
		)
		if err != nil {
			return fmt.Errorf("upserting item %s: %w", it.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM feed_items WHERE category = ? AND fetched_at = ''`, category); err != nil {
		return fmt.Errorf("pruning items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO feed_fetches (category, fetched_at) VALUES (?, ?)
		 ON CONFLICT(category) DO UPDATE SET fetched_at = excluded.fetched_at`,
		category, stamp); err != nil {
		return fmt.Errorf("recording fetch: %w", err)
	}
	return tx.Commit()
}

// Items returns the cached listing of category, newest first.
func (c *Cache) Items(ctx context.Context, category string, limit int) ([]Item, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, category, source, title, summary, link, published_at, read
		 FROM feed_items WHERE category = ? ORDER BY published_at DESC LIMIT ?`,
		category, limit)
	if err != nil {
		return nil, fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		var published string
		if err := rows.Scan(&it.ID, &it.Category, &it.Source, &it.Title, &it.Summary, &it.Link, &published, &it.Read); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Date, _ = time.Parse(time.RFC3339, published)
		items = append(items, it)
	}
	return items, rows.Err()
}

// MarkRead flags every cached item of category as read. An empty category
// marks all items.
func (c *Cache) MarkRead(ctx context.Context, category string) (int64, error) {
	var res sql.Result
	var err error
	if category == "" {
		res, err = c.db.ExecContext(ctx, `UPDATE feed_items SET read = 1 WHERE read = 0`)
	} else {
		res, err = c.db.ExecContext(ctx, `UPDATE feed_items SET read = 1 WHERE read = 0 AND category = ?`, category)
	}
	if err != nil {
		return 0, fmt.Errorf("marking read: %w", err)
	}
	return res.RowsAffected()
}

// MarkItemRead flags a single item as read.
func (c *Cache) MarkItemRead(ctx context.Context, id string) (bool, error) {
	res, err := c.db.ExecContext(ctx, `UPDATE feed_items SET read = 1 WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("marking item read: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
