package router

import (
	"context"
	"fmt"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/metrics"
	"github.com/sakif/sharedlist/internal/service"
	"github.com/sakif/sharedlist/internal/session"
)

// text handles a plain message. If the user was asked for a group name or a
// join code, this message is the answer; the pending mode is consumed before
// anything else so a concurrent event cannot answer the same prompt twice.
func (r *Router) text(ctx context.Context, user, text string) (Response, error) {
	switch r.sessions.ConsumeAwaiting(user) {
	case session.AwaitingGroupName:
		return r.createGroup(ctx, user, text)
	case session.AwaitingGroupCode:
		return r.joinGroup(ctx, user, text)
	}
	return r.addItem(ctx, user, text)
}

func (r *Router) addItem(ctx context.Context, user, text string) (Response, error) {
	ref, err := r.activeList(ctx, user)
	if err != nil {
		return Response{}, err
	}

	if service.NormalizeItem(text) == "" {
		return Response{}, replyError(metrics.OutcomeInvalid, "Send some text to add it to the list.")
	}

	item, count, err := r.lists.Append(ctx, ref, text, user)
	if err != nil {
		return Response{}, err
	}

	return Response{
		Text:    fmt.Sprintf("Added: %s\nTotal items: %d", item.Text, count),
		Buttons: r.rows(r.buttonFor("Show list", action.Action{Verb: action.Show, List: ref})),
	}, nil
}
