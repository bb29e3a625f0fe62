// Package action encodes the payloads carried by interactive buttons.
//
// A token is the verb, then the list reference, then the item text, joined by
// "|":
//
//	rm|g482913|Milk
//	sel|u1001
//	new
//
// Verbs and list references never contain "|" (list keys are restricted to
// [0-9A-Za-z_.-]), so decoding splits off at most two leading fields and
// treats the whole remainder as the item. Item text may contain "|" freely.
//
// An item whose text does not fit the byte limit is addressed by its store
// id instead, with the ...ByID verbs:
//
//	rmi|u1001|cv37img5tppgl4002kb0
package action

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sakif/sharedlist/internal/model"
)

const (
	Delimiter = "|"

	// DefaultMaxBytes matches the callback-data limit of the common chat
	// platforms.
	DefaultMaxBytes = 64
)

var (
	// ErrMalformed is returned by Decode for a token that does not parse.
	// It is distinct from a token that parses but points at a list or item
	// that no longer exists.
	ErrMalformed = errors.New("malformed action token")

	// ErrTooLong is returned by Encode when the token would exceed the
	// codec's byte limit.
	ErrTooLong = errors.New("action token too long")
)

type Verb string

const (
	Remove    Verb = "rm"   // remove item now
	AskRemove Verb = "ask"  // ask before removing item
	Confirm   Verb = "yes"  // commit a removal asked about with AskRemove
	Cancel    Verb = "no"   // drop a pending removal
	Select    Verb = "sel"  // make the list active
	Show      Verb = "ls"   // render the list
	NewGroup  Verb = "new"  // start group creation
	JoinGroup Verb = "join" // start joining a group

	RemoveByID    Verb = "rmi"  // Remove, item field is an item id
	AskRemoveByID Verb = "aski" // AskRemove, item field is an item id
	ConfirmByID   Verb = "yesi" // Confirm, item field is an item id
)

// byID maps the text-addressed item verbs to their id-addressed forms.
var byID = map[Verb]Verb{
	Remove:    RemoveByID,
	AskRemove: AskRemoveByID,
	Confirm:   ConfirmByID,
}

// ByID returns the id-addressed form of v, or false if v does not address an
// item.
func (v Verb) ByID() (Verb, bool) {
	id, ok := byID[v]
	return id, ok
}

// IsByID reports whether v carries an item id rather than item text.
func (v Verb) IsByID() bool {
	return v == RemoveByID || v == AskRemoveByID || v == ConfirmByID
}

// shape says which fields a verb carries.
type shape struct {
	list bool
	item bool
}

var shapes = map[Verb]shape{
	Remove:    {list: true, item: true},
	AskRemove: {list: true, item: true},
	Confirm:   {list: true, item: true},
	Cancel:    {list: true},
	Select:    {list: true},
	Show:      {list: true},
	NewGroup:  {},
	JoinGroup: {},

	RemoveByID:    {list: true, item: true},
	AskRemoveByID: {list: true, item: true},
	ConfirmByID:   {list: true, item: true},
}

// Action is a decoded token.
type Action struct {
	Verb Verb
	List model.ListRef
	Item string
}

func (a Action) String() string {
	var b strings.Builder
	b.WriteString(string(a.Verb))
	if !a.List.IsZero() {
		b.WriteString(Delimiter)
		b.WriteString(a.List.String())
	}
	if a.Item != "" {
		b.WriteString(Delimiter)
		b.WriteString(a.Item)
	}
	return b.String()
}

// ConfirmPair wraps a pending removal into the two tokens of a confirmation
// prompt. Only the first mutates anything. An ask carrying an item id gets
// a confirm carrying the same id.
func ConfirmPair(ask Action) (yes, no Action) {
	verb := Confirm
	if ask.Verb.IsByID() {
		verb = ConfirmByID
	}
	return Action{Verb: verb, List: ask.List, Item: ask.Item},
		Action{Verb: Cancel, List: ask.List}
}

// Codec encodes and decodes tokens under a byte limit.
type Codec struct {
	maxBytes int
}

// NewCodec returns a codec limiting tokens to maxBytes. Zero or a negative
// value selects DefaultMaxBytes.
func NewCodec(maxBytes int) *Codec {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Codec{maxBytes: maxBytes}
}

func (c *Codec) MaxBytes() int { return c.maxBytes }

func (c *Codec) Encode(a Action) (string, error) {
	sh, ok := shapes[a.Verb]
	if !ok {
		return "", fmt.Errorf("encoding action: unknown verb %q", a.Verb)
	}
	if sh.list {
		if a.List.IsZero() {
			return "", fmt.Errorf("encoding %s: list reference required", a.Verb)
		}
		if !model.ValidKey(a.List.Key) {
			return "", fmt.Errorf("encoding %s: invalid list key %q", a.Verb, a.List.Key)
		}
	} else if !a.List.IsZero() {
		return "", fmt.Errorf("encoding %s: verb takes no list reference", a.Verb)
	}
	if sh.item && a.Item == "" {
		return "", fmt.Errorf("encoding %s: item required", a.Verb)
	}
	if !sh.item && a.Item != "" {
		return "", fmt.Errorf("encoding %s: verb takes no item", a.Verb)
	}

	token := a.String()
	if len(token) > c.maxBytes {
		return "", fmt.Errorf("encoding %s (%d bytes, limit %d): %w", a.Verb, len(token), c.maxBytes, ErrTooLong)
	}
	return token, nil
}

func (c *Codec) Decode(token string) (Action, error) {
	if token == "" || len(token) > c.maxBytes || !utf8.ValidString(token) {
		return Action{}, ErrMalformed
	}

	parts := strings.SplitN(token, Delimiter, 3)
	verb := Verb(parts[0])
	sh, ok := shapes[verb]
	if !ok {
		return Action{}, fmt.Errorf("%w: unknown verb %q", ErrMalformed, parts[0])
	}

	want := 1
	if sh.list {
		want++
	}
	if sh.item {
		want++
	}
	if len(parts) != want {
		return Action{}, fmt.Errorf("%w: %s takes %d fields, got %d", ErrMalformed, verb, want, len(parts))
	}

	a := Action{Verb: verb}
	if sh.list {
		ref, err := model.ParseListRef(parts[1])
		if err != nil {
			return Action{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		a.List = ref
	}
	if sh.item {
		a.Item = parts[2]
		if a.Item == "" {
			return Action{}, fmt.Errorf("%w: empty item", ErrMalformed)
		}
	}
	return a, nil
}
