package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
)

func itemTable(ref model.ListRef) (table, keyColumn string, err error) {
	switch ref.Kind {
	case model.ListGroup:
		return "group_items", "group_code", nil
	case model.ListPersonal:
		return "personal_items", "user_id", nil
	default:
		return "", "", apperror.ValidationFailed("list", "no list selected")
	}
}

func (db *DB) AppendItem(ctx context.Context, ref model.ListRef, item *model.Item) error {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return err
	}

	item.ID = xid.New().String()
	item.CreatedAt = time.Now()

	return db.withListLock(ctx, ref.String(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s (id, %s, text, added_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
			table, keyColumn),
			item.ID, ref.Key, item.Text, item.AddedBy, item.CreatedAt,
		)
		if err != nil {
			if pgCode(err) == codeForeignKeyViolation {
				return apperror.NotFound("group", ref.Key)
			}
			return fmt.Errorf("postgres: appending to %s: %w", ref, err)
		}
		return nil
	})
}

func (db *DB) Items(ctx context.Context, ref model.ListRef) ([]model.Item, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, fmt.Sprintf(
		`SELECT id, text, added_by, created_at FROM %s WHERE %s = $1 ORDER BY seq`,
		table, keyColumn),
		ref.Key,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing %s: %w", ref, err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Text, &it.AddedBy, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating items: %w", err)
	}
	return items, nil
}

// RemoveItem runs under the list lock. Without it, two concurrent removals
// of the same text could both pick the same oldest row, and the second would
// report "not found" even though a later duplicate is still there.
func (db *DB) RemoveItem(ctx context.Context, ref model.ListRef, text string) (bool, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return false, err
	}

	var removed bool
	err = db.withListLock(ctx, ref.String(), func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %[1]s WHERE seq = (
				SELECT seq FROM %[1]s WHERE %[2]s = $1 AND text = $2 ORDER BY seq LIMIT 1
			)`, table, keyColumn),
			ref.Key, text,
		)
		if err != nil {
			return fmt.Errorf("postgres: removing from %s: %w", ref, err)
		}
		removed = tag.RowsAffected() > 0
		return nil
	})
	return removed, err
}

func (db *DB) RemoveItemByID(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return model.Item{}, false, err
	}

	item := model.Item{ID: id}
	err = db.withListLock(ctx, ref.String(), func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE %s = $1 AND id = $2 RETURNING text, added_by, created_at`,
			table, keyColumn),
			ref.Key, id,
		).Scan(&item.Text, &item.AddedBy, &item.CreatedAt)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Item{}, false, nil
	}
	if err != nil {
		return model.Item{}, false, fmt.Errorf("postgres: removing %s from %s: %w", id, ref, err)
	}
	return item, true, nil
}

func (db *DB) Clear(ctx context.Context, ref model.ListRef) error {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return err
	}

	return db.withListLock(ctx, ref.String(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, table, keyColumn), ref.Key); err != nil {
			return fmt.Errorf("postgres: clearing %s: %w", ref, err)
		}
		return nil
	})
}
