package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
)

// itemTable picks the table and key column backing ref. The returned names
// are constants, never user input, so they are safe to format into SQL.
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

// AppendItem inserts a new row at the end of the list.
//
// xid gives each row a globally unique, time-sortable ID. Ordering still uses
// the seq column, because two xids minted in the same second by different
// processes are not guaranteed to sort by insertion.
func (db *DB) AppendItem(ctx context.Context, ref model.ListRef, item *model.Item) error {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return err
	}

	item.ID = xid.New().String()
	item.CreatedAt = time.Now()

	_, err = db.conn.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s (id, %s, text, added_by, created_at) VALUES (?, ?, ?, ?, ?)`,
		table, keyColumn),
		item.ID,
		ref.Key,
		item.Text,
		item.AddedBy,
		item.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperror.NotFound("group", ref.Key)
		}
		return fmt.Errorf("sqlite: appending to %s: %w", ref, err)
	}

	return nil
}

// Items returns the list ordered by seq, i.e. insertion order.
func (db *DB) Items(ctx context.Context, ref model.ListRef) ([]model.Item, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, text, added_by, created_at FROM %s WHERE %s = ? ORDER BY seq`,
		table, keyColumn),
		ref.Key,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing %s: %w", ref, err)
	}
	defer rows.Close()

	items := make([]model.Item, 0)
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Text, &it.AddedBy, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}

	return items, nil
}

// RemoveItem deletes the oldest row whose text matches.
//
// The lookup and the delete are one statement, so an append racing this call
// can only add rows with a higher seq and never shifts which row is "first".
func (db *DB) RemoveItem(ctx context.Context, ref model.ListRef, text string) (bool, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return false, err
	}

	result, err := db.conn.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %[1]s WHERE seq = (
			SELECT seq FROM %[1]s WHERE %[2]s = ? AND text = ? ORDER BY seq LIMIT 1
		)`, table, keyColumn),
		ref.Key, text,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: removing from %s: %w", ref, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// RemoveItemByID deletes one row by id. The key column is part of the WHERE
// so an id from another list never matches.
func (db *DB) RemoveItemByID(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error) {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return model.Item{}, false, err
	}

	item := model.Item{ID: id}
	err = db.conn.QueryRowContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s = ? AND id = ? RETURNING text, added_by, created_at`,
		table, keyColumn),
		ref.Key, id,
	).Scan(&item.Text, &item.AddedBy, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, false, nil
	}
	if err != nil {
		return model.Item{}, false, fmt.Errorf("sqlite: removing %s from %s: %w", id, ref, err)
	}
	return item, true, nil
}

// Clear deletes every row of the list. Clearing an empty list is a no-op.
func (db *DB) Clear(ctx context.Context, ref model.ListRef) error {
	table, keyColumn, err := itemTable(ref)
	if err != nil {
		return err
	}

	_, err = db.conn.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE %s = ?`, table, keyColumn),
		ref.Key,
	)
	if err != nil {
		return fmt.Errorf("sqlite: clearing %s: %w", ref, err)
	}
	return nil
}
