// Package service contains the business rules that sit between the command
// router and the storage backends.
//
// THE LAYERING:
//
//	Router (chat layer)      → decides what an event means, renders replies
//	Service (business layer) → normalizes, validates, enforces rules
//	Repository (data layer)  → reads/writes sqlite, postgres or memory
//
// Services take repository interfaces, never a concrete backend, so the same
// rules apply whichever STORE_DRIVER is configured, and tests can hand in the
// in-memory store or a hand-written mock.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/repository"
)

const (
	MaxItemLength = 200 // runes, after normalization
)

// ListService implements the item operations for personal and group lists.
type ListService struct {
	repo   repository.ListRepository
	logger *slog.Logger
}

func NewListService(repo repository.ListRepository, logger *slog.Logger) *ListService {
	return &ListService{
		repo:   repo,
		logger: logger,
	}
}

// NormalizeItem trims text and upper-cases its first letter. The rest of the
// string keeps its case: "milk " and "Milk" normalize to the same item, but
// "iPhone charger" becomes "IPhone charger", not "Iphone charger".
func NormalizeItem(text string) string {
	text = strings.TrimSpace(text)
	r, size := utf8.DecodeRuneInString(text)
	if size == 0 || r == utf8.RuneError {
		return text
	}
	return string(unicode.ToUpper(r)) + text[size:]
}

// Append normalizes text and adds it to the end of ref. It returns the stored
// item and the number of items in the list afterwards.
//
// WHY RE-READ FOR THE COUNT?
// Another member may append to the same group list between our insert and the
// reply. Counting from the store after the write reports what is actually
// there, which is the number the user sees when they open the list.
func (s *ListService) Append(ctx context.Context, ref model.ListRef, text, addedBy string) (*model.Item, int, error) {
	if ref.IsZero() {
		return nil, 0, apperror.ValidationFailed("list", "no list selected")
	}

	text = NormalizeItem(text)
	if text == "" {
		return nil, 0, apperror.ValidationFailed("text", "item text is required")
	}
	if utf8.RuneCountInString(text) > MaxItemLength {
		return nil, 0, apperror.ValidationFailed("text",
			fmt.Sprintf("item must be %d characters or less", MaxItemLength))
	}

	item := &model.Item{Text: text, AddedBy: addedBy}
	if err := s.repo.AppendItem(ctx, ref, item); err != nil {
		return nil, 0, s.storeError("appending item", ref, err)
	}

	items, err := s.repo.Items(ctx, ref)
	if err != nil {
		return nil, 0, s.storeError("counting items", ref, err)
	}

	s.logger.Info("item added",
		slog.String("list", ref.String()),
		slog.String("item_id", item.ID),
		slog.String("user_id", addedBy),
	)

	return item, len(items), nil
}

// Items returns the list in insertion order.
func (s *ListService) Items(ctx context.Context, ref model.ListRef) ([]model.Item, error) {
	if ref.IsZero() {
		return nil, apperror.ValidationFailed("list", "no list selected")
	}
	items, err := s.repo.Items(ctx, ref)
	if err != nil {
		return nil, s.storeError("reading items", ref, err)
	}
	return items, nil
}

// Remove deletes the first occurrence of text (after normalization). Absent
// items are reported as false, never as an error: a second tap on the same
// button, or two members removing the same thing, is normal.
func (s *ListService) Remove(ctx context.Context, ref model.ListRef, text string) (bool, error) {
	if ref.IsZero() {
		return false, apperror.ValidationFailed("list", "no list selected")
	}
	text = NormalizeItem(text)
	if text == "" {
		return false, nil
	}

	removed, err := s.repo.RemoveItem(ctx, ref, text)
	if err != nil {
		return false, s.storeError("removing item", ref, err)
	}

	if removed {
		s.logger.Info("item removed", slog.String("list", ref.String()))
	}
	return removed, nil
}

// RemoveByID deletes the item with the given id. Like Remove, an item that is
// already gone is reported as false, not as an error.
func (s *ListService) RemoveByID(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error) {
	if ref.IsZero() {
		return model.Item{}, false, apperror.ValidationFailed("list", "no list selected")
	}

	item, removed, err := s.repo.RemoveItemByID(ctx, ref, id)
	if err != nil {
		return model.Item{}, false, s.storeError("removing item", ref, err)
	}

	if removed {
		s.logger.Info("item removed", slog.String("list", ref.String()), slog.String("item_id", id))
	}
	return item, removed, nil
}

// Find returns the item with the given id, or false if the list no longer
// has it.
func (s *ListService) Find(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error) {
	items, err := s.Items(ctx, ref)
	if err != nil {
		return model.Item{}, false, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return model.Item{}, false, nil
}

// Clear empties ref. Clearing an empty list is fine.
func (s *ListService) Clear(ctx context.Context, ref model.ListRef) error {
	if ref.IsZero() {
		return apperror.ValidationFailed("list", "no list selected")
	}
	if err := s.repo.Clear(ctx, ref); err != nil {
		return s.storeError("clearing list", ref, err)
	}
	s.logger.Info("list cleared", slog.String("list", ref.String()))
	return nil
}

// storeError passes domain errors through and turns anything else into
// apperror.ErrUnavailable, logging it once here so the router does not have
// to.
func (s *ListService) storeError(op string, ref model.ListRef, err error) error {
	if apperror.Is(err) {
		return err
	}
	s.logger.Error("list store failure",
		slog.String("op", op),
		slog.String("list", ref.String()),
		slog.String("error", err.Error()),
	)
	return apperror.Unavailable(op, err)
}
