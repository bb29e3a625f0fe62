package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
)

// CreateGroup inserts the group row and the creator's membership in one
// transaction. The code column is the primary key, so a second group with
// the same code fails here instead of silently sharing the first one's list.
func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	group.CreatedAt = time.Now()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var name any
	if group.Name != "" {
		name = group.Name
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO groups (code, name, created_by, created_at) VALUES (?, ?, ?, ?)`,
		group.Code, name, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("group", group.Code)
		}
		return fmt.Errorf("sqlite: inserting group %s: %w", group.Code, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (group_code, user_id, joined_at) VALUES (?, ?, ?)`,
		group.Code, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding creator to group %s: %w", group.Code, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing group %s: %w", group.Code, err)
	}
	return nil
}

// GetGroup retrieves a group by its join code.
// Returns apperror.ErrNotFound if no group has that code.
func (db *DB) GetGroup(ctx context.Context, code string) (*model.Group, error) {
	var g model.Group
	var name sql.NullString

	err := db.conn.QueryRowContext(ctx,
		`SELECT code, name, created_by, created_at FROM groups WHERE code = ?`,
		code,
	).Scan(&g.Code, &name, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("group", code)
		}
		return nil, fmt.Errorf("sqlite: getting group %s: %w", code, err)
	}

	if name.Valid {
		g.Name = name.String
	}
	return &g, nil
}

// AddMember relies on the UNIQUE (group_code, user_id) constraint: INSERT OR
// IGNORE turns a repeated join into a zero-row insert, so two concurrent
// joins by the same user still leave exactly one row.
func (db *DB) AddMember(ctx context.Context, code, userID string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_code, user_id, joined_at) VALUES (?, ?, ?)`,
		code, userID, time.Now(),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, apperror.NotFound("group", code)
		}
		return false, fmt.Errorf("sqlite: adding %s to group %s: %w", userID, code, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

func (db *DB) IsMember(ctx context.Context, code, userID string) (bool, error) {
	var exists int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM group_members WHERE group_code = ? AND user_id = ?`,
		code, userID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("sqlite: checking membership of %s in %s: %w", userID, code, err)
	}
	return true, nil
}

// Memberships lists the user's groups ordered by the membership seq, which is
// the order they were joined in.
func (db *DB) Memberships(ctx context.Context, userID string) ([]model.Membership, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT g.code, g.name, m.joined_at
		 FROM group_members m
		 JOIN groups g ON g.code = m.group_code
		 WHERE m.user_id = ?
		 ORDER BY m.seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memberships of %s: %w", userID, err)
	}
	defer rows.Close()

	memberships := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		var name sql.NullString
		if err := rows.Scan(&m.Code, &name, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning membership row: %w", err)
		}
		if name.Valid {
			m.Name = name.String
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memberships: %w", err)
	}

	return memberships, nil
}
