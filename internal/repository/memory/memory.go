// Package memory is an in-process Store. Nothing survives a restart; it backs
// STORE_DRIVER=memory and the service and router tests.
//
// Each list has its own mutex, so mutations on one list are serialized while
// different lists proceed in parallel. Groups and rosters share one RWMutex.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/repository"
)

var _ repository.Store = (*Store)(nil)

type list struct {
	mu    sync.Mutex
	items []model.Item
}

type member struct {
	code     string
	joinedAt time.Time
}

type Store struct {
	listsMu sync.Mutex
	lists   map[model.ListRef]*list

	groupsMu sync.RWMutex
	groups   map[string]model.Group
	members  map[string][]member // user id → groups in join order
}

func New() *Store {
	return &Store{
		lists:   make(map[model.ListRef]*list),
		groups:  make(map[string]model.Group),
		members: make(map[string][]member),
	}
}

func (s *Store) Close() error { return nil }

// listFor returns the list for ref, creating it on first use.
func (s *Store) listFor(ref model.ListRef) *list {
	s.listsMu.Lock()
	defer s.listsMu.Unlock()
	l, ok := s.lists[ref]
	if !ok {
		l = &list{}
		s.lists[ref] = l
	}
	return l
}

func (s *Store) groupExists(code string) bool {
	s.groupsMu.RLock()
	defer s.groupsMu.RUnlock()
	_, ok := s.groups[code]
	return ok
}

func checkRef(ref model.ListRef) error {
	if ref.IsZero() {
		return apperror.ValidationFailed("list", "no list selected")
	}
	return nil
}

func (s *Store) AppendItem(ctx context.Context, ref model.ListRef, item *model.Item) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	if ref.IsGroup() && !s.groupExists(ref.Key) {
		return apperror.NotFound("group", ref.Key)
	}

	item.ID = xid.New().String()
	item.CreatedAt = time.Now()

	l := s.listFor(ref)
	l.mu.Lock()
	l.items = append(l.items, *item)
	l.mu.Unlock()
	return nil
}

func (s *Store) Items(ctx context.Context, ref model.ListRef) ([]model.Item, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	l := s.listFor(ref)
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Item, len(l.items))
	copy(out, l.items)
	return out, nil
}

func (s *Store) RemoveItem(ctx context.Context, ref model.ListRef, text string) (bool, error) {
	if err := checkRef(ref); err != nil {
		return false, err
	}
	l := s.listFor(ref)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, it := range l.items {
		if it.Text == text {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) RemoveItemByID(ctx context.Context, ref model.ListRef, id string) (model.Item, bool, error) {
	if err := checkRef(ref); err != nil {
		return model.Item{}, false, err
	}
	l := s.listFor(ref)
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, it := range l.items {
		if it.ID == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return it, true, nil
		}
	}
	return model.Item{}, false, nil
}

func (s *Store) Clear(ctx context.Context, ref model.ListRef) error {
	if err := checkRef(ref); err != nil {
		return err
	}
	l := s.listFor(ref)
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
	return nil
}

func (s *Store) CreateGroup(ctx context.Context, group *model.Group) error {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()

	if _, taken := s.groups[group.Code]; taken {
		return apperror.Conflict("group", group.Code)
	}
	group.CreatedAt = time.Now()
	s.groups[group.Code] = *group
	s.members[group.CreatedBy] = append(s.members[group.CreatedBy], member{code: group.Code, joinedAt: group.CreatedAt})
	return nil
}

func (s *Store) GetGroup(ctx context.Context, code string) (*model.Group, error) {
	s.groupsMu.RLock()
	defer s.groupsMu.RUnlock()
	g, ok := s.groups[code]
	if !ok {
		return nil, apperror.NotFound("group", code)
	}
	return &g, nil
}

func (s *Store) AddMember(ctx context.Context, code, userID string) (bool, error) {
	s.groupsMu.Lock()
	defer s.groupsMu.Unlock()

	if _, ok := s.groups[code]; !ok {
		return false, apperror.NotFound("group", code)
	}
	for _, m := range s.members[userID] {
		if m.code == code {
			return false, nil
		}
	}
	s.members[userID] = append(s.members[userID], member{code: code, joinedAt: time.Now()})
	return true, nil
}

func (s *Store) IsMember(ctx context.Context, code, userID string) (bool, error) {
	s.groupsMu.RLock()
	defer s.groupsMu.RUnlock()
	for _, m := range s.members[userID] {
		if m.code == code {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) Memberships(ctx context.Context, userID string) ([]model.Membership, error) {
	s.groupsMu.RLock()
	defer s.groupsMu.RUnlock()
	out := make([]model.Membership, 0, len(s.members[userID]))
	for _, m := range s.members[userID] {
		out = append(out, model.Membership{
			Code:     m.code,
			Name:     s.groups[m.code].Name,
			JoinedAt: m.joinedAt,
		})
	}
	return out, nil
}
