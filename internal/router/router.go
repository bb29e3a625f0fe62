// Package router turns one inbound chat event into one reply.
//
// HOW AN EVENT FLOWS:
//
//	Event{user, kind, payload}
//	  → command: "/list", "/join_group 482913", ...
//	  → button:  an action token, decoded by the action codec
//	  → text:    a group name or join code if the user was asked for one,
//	             otherwise an item for the active list
//	  → Response{text, buttons, edit}
//
// The router is the only place that composes several service calls, for
// example "remove an item, then redraw the list". Every redraw reads the store
// after the mutation, never a copy taken before it.
//
// Handle never returns an error. Whatever goes wrong inside one event, even a
// panic, becomes a reply to that user and nothing else.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/sakif/sharedlist/internal/action"
	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/metrics"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/service"
	"github.com/sakif/sharedlist/internal/session"
)

type Kind string

const (
	KindText    Kind = "text"
	KindCommand Kind = "command"
	KindButton  Kind = "button"
)

// Event is one inbound message or button press.
type Event struct {
	UserID  string
	Kind    Kind
	Payload string
}

// Button is an interactive control. Token is what the transport sends back
// as the payload of a KindButton event when it is pressed.
type Button struct {
	Label string `json:"label"`
	Token string `json:"token"`
}

// Response is what to show the user. Buttons are laid out in rows. Edit asks
// the transport to replace the message the pressed button belongs to instead
// of sending a new one.
type Response struct {
	Text    string
	Buttons [][]Button
	Edit    bool
}

const (
	msgFailure        = "Something went wrong. Please try again."
	msgNoList         = "No list selected. Use /personal for your own list or /groups to pick a group."
	msgNotFound       = "That list or item is no longer available."
	msgStaleButton    = "That button is no longer valid."
	msgAlreadyRemoved = "That item was already removed."
)

// userError is a failure with a ready-made reply.
type userError struct {
	text    string
	outcome string
}

func (e *userError) Error() string { return e.text }

func replyError(outcome, format string, args ...any) error {
	return &userError{text: fmt.Sprintf(format, args...), outcome: outcome}
}

var errNoList = apperror.ValidationFailed("list", "no list selected")

type Router struct {
	lists    *service.ListService
	groups   *service.GroupService
	sessions *session.Manager
	codec    *action.Codec
	logger   *slog.Logger
	metrics  *metrics.Metrics
	confirm  bool
}

type Option func(*Router)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// WithConfirmRemovals makes item buttons ask before removing. On by default.
func WithConfirmRemovals(confirm bool) Option {
	return func(r *Router) { r.confirm = confirm }
}

func New(
	lists *service.ListService,
	groups *service.GroupService,
	sessions *session.Manager,
	codec *action.Codec,
	logger *slog.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		lists:    lists,
		groups:   groups,
		sessions: sessions,
		codec:    codec,
		logger:   logger,
		confirm:  true,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes ev and returns the reply.
func (r *Router) Handle(ctx context.Context, ev Event) (resp Response) {
	start := time.Now()
	outcome := metrics.OutcomeOK

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while handling event",
				slog.String("user_id", ev.UserID),
				slog.String("kind", string(ev.Kind)),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())),
			)
			resp = Response{Text: msgFailure}
			outcome = metrics.OutcomePanic
		}
		r.metrics.ObserveEvent(string(ev.Kind), outcome, time.Since(start))
	}()

	resp, err := r.dispatch(ctx, ev)
	if err != nil {
		resp, outcome = r.errorResponse(ev, err)
	}
	return resp
}

func (r *Router) dispatch(ctx context.Context, ev Event) (Response, error) {
	if !model.ValidKey(ev.UserID) {
		return Response{}, replyError(metrics.OutcomeInvalid, "Unknown user.")
	}

	switch ev.Kind {
	case KindCommand:
		return r.command(ctx, ev.UserID, ev.Payload)
	case KindButton:
		return r.button(ctx, ev.UserID, ev.Payload)
	case KindText:
		return r.text(ctx, ev.UserID, ev.Payload)
	default:
		return Response{}, replyError(metrics.OutcomeInvalid, "Unsupported message.")
	}
}

// errorResponse converts a handler error into the reply and the metrics
// outcome. Only unexpected failures are logged here; the services already log
// store failures.
func (r *Router) errorResponse(ev Event, err error) (Response, string) {
	var ue *userError
	var appErr *apperror.AppError

	switch {
	case errors.As(err, &ue):
		return Response{Text: ue.text}, ue.outcome
	case errors.Is(err, action.ErrMalformed):
		r.logger.Debug("malformed action token",
			slog.String("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
		return Response{Text: msgStaleButton}, metrics.OutcomeInvalid
	case errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr):
		if appErr.Field == "list" {
			return Response{Text: msgNoList}, metrics.OutcomeInvalid
		}
		return Response{Text: sentence(appErr.Message)}, metrics.OutcomeInvalid
	case errors.Is(err, apperror.ErrNotFound):
		return Response{Text: msgNotFound}, metrics.OutcomeNotFound
	case errors.Is(err, apperror.ErrUnavailable):
		return Response{Text: msgFailure}, metrics.OutcomeUnavailable
	default:
		r.logger.Error("event failed",
			slog.String("user_id", ev.UserID),
			slog.String("kind", string(ev.Kind)),
			slog.String("error", err.Error()),
		)
		return Response{Text: msgFailure}, metrics.OutcomeUnavailable
	}
}

// activeList returns the user's active list, or errNoList. A group the user
// is not a member of is dropped from the session on the way.
func (r *Router) activeList(ctx context.Context, user string) (model.ListRef, error) {
	ref := r.sessions.Get(user).ActiveList
	if ref.IsZero() {
		return model.ListRef{}, errNoList
	}
	if err := r.authorize(ctx, user, ref); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			r.sessions.ClearActiveIf(user, ref)
			r.logger.Warn("dropped active group the user is not a member of",
				slog.String("user_id", user),
				slog.String("list", ref.String()),
			)
			return model.ListRef{}, errNoList
		}
		return model.ListRef{}, err
	}
	return ref, nil
}

// authorize checks that user may touch ref: their own personal list, or a
// group they belong to. Anything else looks exactly like a list that does not
// exist.
func (r *Router) authorize(ctx context.Context, user string, ref model.ListRef) error {
	switch ref.Kind {
	case model.ListPersonal:
		if ref.Key == user {
			return nil
		}
	case model.ListGroup:
		ok, err := r.groups.IsMember(ctx, user, ref.Key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return apperror.NotFound("list", ref.String())
}
