package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
)

func (db *DB) CreateGroup(ctx context.Context, group *model.Group) error {
	group.CreatedAt = time.Now()

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var name *string
	if group.Name != "" {
		name = &group.Name
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO groups (code, name, created_by, created_at) VALUES ($1, $2, $3, $4)`,
		group.Code, name, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		if pgCode(err) == codeUniqueViolation {
			return apperror.Conflict("group", group.Code)
		}
		return fmt.Errorf("postgres: inserting group %s: %w", group.Code, err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO group_members (group_code, user_id, joined_at) VALUES ($1, $2, $3)`,
		group.Code, group.CreatedBy, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: adding creator to group %s: %w", group.Code, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing group %s: %w", group.Code, err)
	}
	return nil
}

func (db *DB) GetGroup(ctx context.Context, code string) (*model.Group, error) {
	var g model.Group
	var name *string

	err := db.pool.QueryRow(ctx,
		`SELECT code, name, created_by, created_at FROM groups WHERE code = $1`,
		code,
	).Scan(&g.Code, &name, &g.CreatedBy, &g.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("group", code)
		}
		return nil, fmt.Errorf("postgres: getting group %s: %w", code, err)
	}
	if name != nil {
		g.Name = *name
	}
	return &g, nil
}

func (db *DB) AddMember(ctx context.Context, code, userID string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`INSERT INTO group_members (group_code, user_id, joined_at) VALUES ($1, $2, $3)
		 ON CONFLICT (group_code, user_id) DO NOTHING`,
		code, userID, time.Now(),
	)
	if err != nil {
		if pgCode(err) == codeForeignKeyViolation {
			return false, apperror.NotFound("group", code)
		}
		return false, fmt.Errorf("postgres: adding %s to group %s: %w", userID, code, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (db *DB) IsMember(ctx context.Context, code, userID string) (bool, error) {
	var exists bool
	err := db.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_code = $1 AND user_id = $2)`,
		code, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("postgres: checking membership of %s in %s: %w", userID, code, err)
	}
	return exists, nil
}

func (db *DB) Memberships(ctx context.Context, userID string) ([]model.Membership, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT g.code, g.name, m.joined_at
		 FROM group_members m
		 JOIN groups g ON g.code = m.group_code
		 WHERE m.user_id = $1
		 ORDER BY m.seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing memberships of %s: %w", userID, err)
	}
	defer rows.Close()

	memberships := make([]model.Membership, 0)
	for rows.Next() {
		var m model.Membership
		var name *string
		if err := rows.Scan(&m.Code, &name, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning membership row: %w", err)
		}
		if name != nil {
			m.Name = *name
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating memberships: %w", err)
	}
	return memberships, nil
}
