// Package repository declares the storage contracts the services are written
// against. Implementations live in the sqlite, postgres and memory
// subpackages.
//
// Every mutation is scoped to a single list or a single group, and
// implementations must apply mutations on the same key atomically with
// respect to each other. Mutations on different keys need no mutual
// exclusion.
package repository

import (
	"context"

	"github.com/sakif/sharedlist/internal/model"
)

// ListRepository stores the ordered items of personal and group lists.
type ListRepository interface {
	// AppendItem stores item at the end of the list. ID and CreatedAt are
	// filled in by the repository. Text is stored as given; normalization is
	// the caller's job.
	AppendItem(ctx context.Context, ref model.ListRef, item *model.Item) error

	// Items returns the list in insertion order. A list nobody wrote to is
	// empty, not missing.
	Items(ctx context.Context, ref model.ListRef) ([]model.Item, error)

	// RemoveItem deletes the earliest item whose text equals text exactly and
	// reports whether one was removed.
	RemoveItem(ctx context.Context, ref model.ListRef, text string) (bool, error)

	// RemoveItemByID deletes the item with the given id and returns it. It
	// reports false, without error, when the list has no such item.
	RemoveItemByID(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error)

	// Clear empties the list. Group membership is untouched.
	Clear(ctx context.Context, ref model.ListRef) error
}

// GroupRepository stores groups and their member rosters.
type GroupRepository interface {
	// CreateGroup inserts group and records creator as its first member in
	// one step. Returns apperror.ErrConflict when the code is taken.
	CreateGroup(ctx context.Context, group *model.Group) error

	// GetGroup returns apperror.ErrNotFound for an unknown code.
	GetGroup(ctx context.Context, code string) (*model.Group, error)

	// AddMember links userID to the group. It reports false, without error,
	// when the link already exists and apperror.ErrNotFound when the group
	// does not.
	AddMember(ctx context.Context, code, userID string) (bool, error)

	IsMember(ctx context.Context, code, userID string) (bool, error)

	// Memberships lists userID's groups in the order they were joined.
	Memberships(ctx context.Context, userID string) ([]model.Membership, error)
}

// Store is a complete backend.
type Store interface {
	ListRepository
	GroupRepository
	Close() error
}
