// Package model defines the data structures shared by the store, the services
// and the router.
package model

import (
	"fmt"
	"time"
)

// ListKind says which family of list a ListRef points at.
type ListKind byte

const (
	ListNone     ListKind = 0
	ListPersonal ListKind = 'u'
	ListGroup    ListKind = 'g'
)

// ListRef identifies one item list: a user's personal list or a group list.
//
// The zero value means "no list selected". Key is the owning user id for a
// personal list and the join code for a group list; it is restricted to
// [0-9A-Za-z_.-] so that String() is safe to embed in action tokens.
type ListRef struct {
	Kind ListKind
	Key  string
}

// PersonalList returns the reference of userID's personal list.
func PersonalList(userID string) ListRef {
	return ListRef{Kind: ListPersonal, Key: userID}
}

// GroupList returns the reference of the list owned by the group with code.
func GroupList(code string) ListRef {
	return ListRef{Kind: ListGroup, Key: code}
}

// IsZero reports whether no list is referenced.
func (r ListRef) IsZero() bool {
	return r.Kind == ListNone
}

// IsGroup reports whether r points at a group list.
func (r ListRef) IsGroup() bool {
	return r.Kind == ListGroup
}

// String renders the compact form, e.g. "g482913" or "u1001".
func (r ListRef) String() string {
	if r.IsZero() {
		return ""
	}
	return string(rune(r.Kind)) + r.Key
}

// ParseListRef is the inverse of ListRef.String.
func ParseListRef(s string) (ListRef, error) {
	if len(s) < 2 {
		return ListRef{}, fmt.Errorf("list reference %q is too short", s)
	}
	kind := ListKind(s[0])
	if kind != ListPersonal && kind != ListGroup {
		return ListRef{}, fmt.Errorf("list reference %q has unknown kind %q", s, s[0])
	}
	key := s[1:]
	if !ValidKey(key) {
		return ListRef{}, fmt.Errorf("list reference %q has an invalid key", s)
	}
	return ListRef{Kind: kind, Key: key}, nil
}

// ValidKey reports whether key uses only the list-reference alphabet.
func ValidKey(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c == '_', c == '.', c == '-':
		default:
			return false
		}
	}
	return true
}

// Item is one entry of a list. Duplicated texts are distinct items.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	AddedBy   string    `json:"addedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Texts returns the item texts in list order.
func Texts(items []Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Text
	}
	return out
}
