package router

import (
	"context"
	"fmt"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/session"
)

// button handles a pressed interactive control.
//
// STALE BUTTONS ARE NORMAL:
// Buttons stay on screen after the list they were drawn from has changed.
// Another member may have removed the item, or the presser may have been
// shown a list from a group they are not in. None of that is an error: the
// token decodes, the store says "not there", and the user gets a redrawn list
// or a "no longer available" note. Only a token that does not decode at all
// is reported as an invalid button.
func (r *Router) button(ctx context.Context, user, token string) (Response, error) {
	a, err := r.codec.Decode(token)
	if err != nil {
		return Response{}, err
	}

	r.sessions.SetAwaiting(user, session.Idle)

	switch a.Verb {
	case action.NewGroup:
		return r.askFor(user, session.AwaitingGroupName, promptGroupName), nil
	case action.JoinGroup:
		return r.askFor(user, session.AwaitingGroupCode, promptGroupCode), nil
	}

	if err := r.authorize(ctx, user, a.List); err != nil {
		return Response{}, err
	}

	var resp Response
	switch a.Verb {
	case action.Select:
		r.sessions.SetActiveList(user, a.List)
		resp, err = r.render(ctx, a.List, "New items now go to this list.")
	case action.Show:
		resp, err = r.render(ctx, a.List, "")
	case action.Remove, action.Confirm:
		resp, err = r.remove(ctx, a)
	case action.RemoveByID, action.ConfirmByID:
		resp, err = r.removeByID(ctx, a)
	case action.AskRemove, action.AskRemoveByID:
		resp, err = r.askRemove(ctx, a)
	case action.Cancel:
		resp, err = r.render(ctx, a.List, "Nothing removed.")
	default:
		return Response{}, fmt.Errorf("no handler for verb %q", a.Verb)
	}
	if err != nil {
		return Response{}, err
	}
	resp.Edit = true
	return resp, nil
}

func (r *Router) remove(ctx context.Context, a action.Action) (Response, error) {
	removed, err := r.lists.Remove(ctx, a.List, a.Item)
	if err != nil {
		return Response{}, err
	}

	note := fmt.Sprintf("Removed: %s", a.Item)
	if !removed {
		note = fmt.Sprintf("%s was already removed.", a.Item)
	}
	return r.render(ctx, a.List, note)
}

func (r *Router) removeByID(ctx context.Context, a action.Action) (Response, error) {
	item, removed, err := r.lists.RemoveByID(ctx, a.List, a.Item)
	if err != nil {
		return Response{}, err
	}

	note := msgAlreadyRemoved
	if removed {
		note = fmt.Sprintf("Removed: %s", item.Text)
	}
	return r.render(ctx, a.List, note)
}

// askRemove shows the confirmation prompt. Nothing is written until the
// Yes button comes back.
func (r *Router) askRemove(ctx context.Context, a action.Action) (Response, error) {
	text := a.Item
	if a.Verb.IsByID() {
		item, ok, err := r.lists.Find(ctx, a.List, a.Item)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			return r.render(ctx, a.List, msgAlreadyRemoved)
		}
		text = item.Text
	}

	title, err := r.title(ctx, a.List)
	if err != nil {
		return Response{}, err
	}

	// yes is the same length as a, so it fits wherever a did.
	yes, no := action.ConfirmPair(a)
	row := append(r.buttonFor("Yes, remove", yes), r.buttonFor("No, keep it", no)...)

	return Response{
		Text:    fmt.Sprintf("Remove %q from %s?", text, title),
		Buttons: r.rows(row),
	}, nil
}
