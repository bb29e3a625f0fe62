package action

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/sharedlist/internal/model"
)

func TestRoundTrip(t *testing.T) {
	group := model.GroupList("482913")
	personal := model.PersonalList("1001")

	tests := []struct {
		name   string
		action Action
	}{
		{"remove", Action{Verb: Remove, List: group, Item: "Milk"}},
		{"remove with delimiter", Action{Verb: Remove, List: group, Item: "Tea | green"}},
		{"remove many delimiters", Action{Verb: Remove, List: personal, Item: "a|b||c|"}},
		{"remove leading delimiter", Action{Verb: Remove, List: personal, Item: "|x"}},
		{"ask", Action{Verb: AskRemove, List: personal, Item: "Bread"}},
		{"confirm with delimiter", Action{Verb: Confirm, List: group, Item: "Salt|pepper"}},
		{"cancel", Action{Verb: Cancel, List: group}},
		{"select group", Action{Verb: Select, List: group}},
		{"select personal", Action{Verb: Select, List: personal}},
		{"show", Action{Verb: Show, List: personal}},
		{"new group", Action{Verb: NewGroup}},
		{"join group", Action{Verb: JoinGroup}},
		{"unicode item", Action{Verb: Remove, List: group, Item: "Молоко"}},
	}

	c := NewCodec(DefaultMaxBytes)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := c.Encode(tt.action)
			require.NoError(t, err)

			got, err := c.Decode(token)
			require.NoError(t, err)
			assert.Equal(t, tt.action, got)
		})
	}
}

func TestRoundTrip_DelimiterAnywhere(t *testing.T) {
	c := NewCodec(256)
	ref := model.GroupList("482913")

	for _, item := range []string{"|", "||", "a|", "|a", "a|b|c", " | "} {
		token, err := c.Encode(Action{Verb: Remove, List: ref, Item: item})
		require.NoError(t, err)

		got, err := c.Decode(token)
		require.NoError(t, err, "token %q", token)
		assert.Equal(t, item, got.Item)
		assert.Equal(t, ref, got.List)
	}
}

func TestEncode_Format(t *testing.T) {
	c := NewCodec(0)

	token, err := c.Encode(Action{Verb: Remove, List: model.GroupList("482913"), Item: "Milk"})
	require.NoError(t, err)
	assert.Equal(t, "rm|g482913|Milk", token)

	token, err = c.Encode(Action{Verb: NewGroup})
	require.NoError(t, err)
	assert.Equal(t, "new", token)
}

func TestEncode_TooLong(t *testing.T) {
	c := NewCodec(DefaultMaxBytes)

	_, err := c.Encode(Action{
		Verb: Remove,
		List: model.GroupList("482913"),
		Item: strings.Repeat("x", DefaultMaxBytes),
	})
	assert.ErrorIs(t, err, ErrTooLong)
}

func TestEncode_Invalid(t *testing.T) {
	c := NewCodec(DefaultMaxBytes)

	tests := []struct {
		name   string
		action Action
	}{
		{"unknown verb", Action{Verb: "drop", List: model.GroupList("1")}},
		{"missing list", Action{Verb: Remove, Item: "Milk"}},
		{"missing item", Action{Verb: Remove, List: model.GroupList("1")}},
		{"unexpected item", Action{Verb: Select, List: model.GroupList("1"), Item: "x"}},
		{"unexpected list", Action{Verb: NewGroup, List: model.GroupList("1")}},
		{"delimiter in key", Action{Verb: Select, List: model.ListRef{Kind: model.ListGroup, Key: "1|2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Encode(tt.action)
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrTooLong)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	c := NewCodec(DefaultMaxBytes)

	tokens := []string{
		"",
		"rm",
		"rm|g482913",
		"rm|g482913|",
		"rm||Milk",
		"rm|x482913|Milk",
		"rm|g|Milk",
		"rm|g48 913|Milk",
		"sel",
		"sel|g482913|extra",
		"new|g482913",
		"bogus|g482913|Milk",
		"RM|g482913|Milk",
		strings.Repeat("a", DefaultMaxBytes+1),
		"rm|g482913|\xff",
	}

	for _, token := range tokens {
		_, err := c.Decode(token)
		assert.True(t, errors.Is(err, ErrMalformed), "Decode(%q) error = %v, want ErrMalformed", token, err)
	}
}

func TestConfirmPair(t *testing.T) {
	ref := model.PersonalList("1001")
	c := NewCodec(0)

	tests := []struct {
		name    string
		ask     Action
		wantYes Action
	}{
		{"by text", Action{Verb: AskRemove, List: ref, Item: "Milk|2L"}, Action{Verb: Confirm, List: ref, Item: "Milk|2L"}},
		{"by id", Action{Verb: AskRemoveByID, List: ref, Item: "cv37img5tppgl4002kb0"}, Action{Verb: ConfirmByID, List: ref, Item: "cv37img5tppgl4002kb0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yes, no := ConfirmPair(tt.ask)
			assert.Equal(t, tt.wantYes, yes)
			assert.Equal(t, Action{Verb: Cancel, List: ref}, no)

			for _, a := range []Action{yes, no} {
				token, err := c.Encode(a)
				require.NoError(t, err)
				got, err := c.Decode(token)
				require.NoError(t, err)
				assert.Equal(t, a, got)
			}
		})
	}
}

func TestVerbByID(t *testing.T) {
	for _, v := range []Verb{Remove, AskRemove, Confirm} {
		id, ok := v.ByID()
		require.True(t, ok, "%s should have an id form", v)
		assert.True(t, id.IsByID())
		assert.False(t, v.IsByID())
	}
	for _, v := range []Verb{Cancel, Select, Show, NewGroup, JoinGroup} {
		_, ok := v.ByID()
		assert.False(t, ok, "%s should not have an id form", v)
	}
}

// A Cyrillic item that is too long as text still fits as an id, even on a
// personal list keyed by a long numeric user id.
func TestByIDTokenFitsWhereTextDoesNot(t *testing.T) {
	c := NewCodec(DefaultMaxBytes)
	ref := model.PersonalList("1234567890")
	item := "Молоко ультрапастеризоване 3,2%"

	_, err := c.Encode(Action{Verb: AskRemove, List: ref, Item: item})
	require.ErrorIs(t, err, ErrTooLong)

	a := Action{Verb: AskRemoveByID, List: ref, Item: "cv37img5tppgl4002kb0"}
	token, err := c.Encode(a)
	require.NoError(t, err)
	assert.Equal(t, "aski|u1234567890|cv37img5tppgl4002kb0", token)

	got, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestNewCodec_Default(t *testing.T) {
	assert.Equal(t, DefaultMaxBytes, NewCodec(0).MaxBytes())
	assert.Equal(t, DefaultMaxBytes, NewCodec(-5).MaxBytes())
	assert.Equal(t, 128, NewCodec(128).MaxBytes())
}
