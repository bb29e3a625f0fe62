package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/model"
)

// render reads ref from the store and formats it with one remove button per
// item. note, if set, goes above the list.
func (r *Router) render(ctx context.Context, ref model.ListRef, note string) (Response, error) {
	items, err := r.lists.Items(ctx, ref)
	if err != nil {
		return Response{}, err
	}

	title, err := r.title(ctx, ref)
	if err != nil {
		return Response{}, err
	}

	var b strings.Builder
	if note != "" {
		b.WriteString(note)
		b.WriteString("\n\n")
	}
	if len(items) == 0 {
		fmt.Fprintf(&b, "%s is empty.", title)
	} else {
		fmt.Fprintf(&b, "%s:", title)
		for _, it := range items {
			b.WriteString("\n- ")
			b.WriteString(it.Text)
		}
	}

	verb := action.Remove
	if r.confirm {
		verb = action.AskRemove
	}

	buttons := make([][]Button, 0, len(items)+1)
	for _, it := range items {
		buttons = append(buttons, r.rows(r.itemButton(verb, ref, it))...)
	}
	buttons = append(buttons, r.rows(r.buttonFor("Refresh", action.Action{Verb: action.Show, List: ref}))...)

	return Response{Text: b.String(), Buttons: buttons}, nil
}

func (r *Router) title(ctx context.Context, ref model.ListRef) (string, error) {
	if !ref.IsGroup() {
		return "Your list", nil
	}
	name, err := r.groups.ResolveName(ctx, ref.Key)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Group %q", name), nil
}

// itemButton is the remove button for it. The token names the item by its
// text when that fits and by its id when it does not, so long items and
// multi-byte scripts still get a button.
func (r *Router) itemButton(verb action.Verb, ref model.ListRef, it model.Item) []Button {
	byText := action.Action{Verb: verb, List: ref, Item: it.Text}
	idVerb, ok := verb.ByID()
	if !ok || it.ID == "" {
		return r.buttonFor("❌ "+it.Text, byText)
	}
	return r.buttonFor("❌ "+it.Text, byText, action.Action{Verb: idVerb, List: ref, Item: it.ID})
}

// buttonFor encodes the first of actions that fits in a token into a single
// button; later actions are only tried when an earlier one is too long. If
// nothing fits, the button is left out with a warning.
func (r *Router) buttonFor(label string, actions ...action.Action) []Button {
	var err error
	for _, a := range actions {
		var token string
		token, err = r.codec.Encode(a)
		if err == nil {
			return []Button{{Label: label, Token: token}}
		}
		if !errors.Is(err, action.ErrTooLong) {
			break
		}
	}
	if len(actions) > 0 {
		r.logger.Warn("skipping button",
			slog.String("verb", string(actions[0].Verb)),
			slog.String("list", actions[0].List.String()),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// rows lays out each non-empty group of buttons as one row.
func (r *Router) rows(groups ...[]Button) [][]Button {
	out := make([][]Button, 0, len(groups))
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// sentence capitalizes msg and ends it with a period.
func sentence(msg string) string {
	r, size := utf8.DecodeRuneInString(msg)
	if size == 0 {
		return msg
	}
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}
