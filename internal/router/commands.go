package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/metrics"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/service"
	"github.com/sakif/sharedlist/internal/session"
)

const (
	promptGroupName = "Send me a name for the new group."
	promptGroupCode = "Send me the 6-digit join code."
)

// parseCommand splits "/join_group@ListBot 482913" into ("join_group",
// "482913"). The leading slash and a bot-name suffix are optional.
func parseCommand(payload string) (name, args string) {
	payload = strings.TrimSpace(payload)
	payload = strings.TrimPrefix(payload, "/")
	name, args, _ = strings.Cut(payload, " ")
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), strings.TrimSpace(args)
}

func (r *Router) command(ctx context.Context, user, payload string) (Response, error) {
	name, args := parseCommand(payload)

	// A command always abandons a pending name or code prompt. The create and
	// join commands then set a fresh one.
	r.sessions.SetAwaiting(user, session.Idle)

	switch name {
	case "start":
		return r.start(user), nil
	case "personal":
		ref := model.PersonalList(user)
		r.sessions.SetActiveList(user, ref)
		return r.render(ctx, ref, "New items now go to your personal list.")
	case "list":
		ref, err := r.activeList(ctx, user)
		if err != nil {
			return Response{}, err
		}
		return r.render(ctx, ref, "")
	case "clear":
		ref, err := r.activeList(ctx, user)
		if err != nil {
			return Response{}, err
		}
		if err := r.lists.Clear(ctx, ref); err != nil {
			return Response{}, err
		}
		return r.render(ctx, ref, "List cleared.")
	case "groups":
		return r.listGroups(ctx, user)
	case "create_group":
		if args != "" {
			return r.createGroup(ctx, user, args)
		}
		return r.askFor(user, session.AwaitingGroupName, promptGroupName), nil
	case "join_group":
		if args != "" {
			return r.joinGroup(ctx, user, args)
		}
		return r.askFor(user, session.AwaitingGroupCode, promptGroupCode), nil
	case "check_group":
		return r.checkGroup(ctx, user)
	default:
		return Response{}, replyError(metrics.OutcomeInvalid, "Unknown command. Try /start.")
	}
}

func (r *Router) start(user string) Response {
	text := "Hi! Send me anything and I will add it to your active list.\n\n" +
		"/personal - use your own list\n" +
		"/groups - pick one of your groups\n" +
		"/create_group - start a shared list\n" +
		"/join_group - join one with a code\n" +
		"/list - show the active list\n" +
		"/clear - empty the active list\n" +
		"/check_group - which list am I using?"

	return Response{
		Text: text,
		Buttons: r.rows(
			r.buttonFor("My list", action.Action{Verb: action.Select, List: model.PersonalList(user)}),
			r.buttonFor("Create group", action.Action{Verb: action.NewGroup}),
			r.buttonFor("Join group", action.Action{Verb: action.JoinGroup}),
		),
	}
}

// askFor puts the user into mode and returns the prompt. Asking again while
// already in that mode just repeats the prompt.
func (r *Router) askFor(user string, mode session.Mode, prompt string) Response {
	r.sessions.SetAwaiting(user, mode)
	return Response{Text: prompt}
}

func (r *Router) createGroup(ctx context.Context, user, name string) (Response, error) {
	group, err := r.groups.Create(ctx, user, name)
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
			// Nothing usable yet: keep waiting for a name.
			r.sessions.SetAwaiting(user, session.AwaitingGroupName)
			return Response{}, replyError(metrics.OutcomeInvalid, "%s %s", sentence(appErr.Message), promptGroupName)
		}
		return Response{}, err
	}

	ref := model.GroupList(group.Code)
	r.sessions.SetActiveList(user, ref)

	return Response{
		Text: fmt.Sprintf("Group %q created. Join code: %s\nShare the code so others can join. New items now go to this group.",
			group.DisplayName(), group.Code),
		Buttons: r.rows(r.buttonFor("Show list", action.Action{Verb: action.Show, List: ref})),
	}, nil
}

// joinGroup consumes the code whatever the outcome; a bad code does not
// leave the user stuck in the prompt.
func (r *Router) joinGroup(ctx context.Context, user, code string) (Response, error) {
	res, err := r.groups.Join(ctx, user, code)
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return Response{}, replyError(metrics.OutcomeInvalid,
			"%q is not a join code. Codes have %d digits. Use /join_group to try again.",
			strings.TrimSpace(code), service.CodeLength)
	case errors.Is(err, apperror.ErrNotFound):
		return Response{}, replyError(metrics.OutcomeNotFound,
			"No group has the code %s. Use /join_group to try again.", strings.TrimSpace(code))
	case err != nil:
		return Response{}, err
	}

	ref := model.GroupList(res.Group.Code)
	r.sessions.SetActiveList(user, ref)

	text := fmt.Sprintf("You joined %q. New items now go to this group.", res.Group.DisplayName())
	if res.AlreadyMember {
		text = fmt.Sprintf("You are already in %q. New items now go to this group.", res.Group.DisplayName())
	}
	return Response{
		Text:    text,
		Buttons: r.rows(r.buttonFor("Show list", action.Action{Verb: action.Show, List: ref})),
	}, nil
}

func (r *Router) listGroups(ctx context.Context, user string) (Response, error) {
	ms, err := r.groups.Memberships(ctx, user)
	if err != nil {
		return Response{}, err
	}

	if len(ms) == 0 {
		return Response{
			Text: "You are not in any group yet.",
			Buttons: r.rows(
				r.buttonFor("Create group", action.Action{Verb: action.NewGroup}),
				r.buttonFor("Join group", action.Action{Verb: action.JoinGroup}),
			),
		}, nil
	}

	active := r.sessions.Get(user).ActiveList

	var b strings.Builder
	b.WriteString("Your groups:")
	buttons := make([][]Button, 0, len(ms)+1)
	for _, m := range ms {
		ref := model.GroupList(m.Code)
		marker := ""
		if ref == active {
			marker = " (active)"
		}
		fmt.Fprintf(&b, "\n- %s, code %s%s", m.DisplayName(), m.Code, marker)
		buttons = append(buttons, r.rows(r.buttonFor(m.DisplayName(), action.Action{Verb: action.Select, List: ref}))...)
	}
	buttons = append(buttons, r.rows(r.buttonFor("My list", action.Action{Verb: action.Select, List: model.PersonalList(user)}))...)

	return Response{Text: b.String(), Buttons: buttons}, nil
}

func (r *Router) checkGroup(ctx context.Context, user string) (Response, error) {
	ref, err := r.activeList(ctx, user)
	if err != nil {
		return Response{}, err
	}

	if !ref.IsGroup() {
		return Response{Text: "New items go to your personal list."}, nil
	}

	name, err := r.groups.ResolveName(ctx, ref.Key)
	if err != nil {
		return Response{}, err
	}
	return Response{
		Text: fmt.Sprintf("New items go to the group %q. Join code: %s", name, ref.Key),
	}, nil
}
