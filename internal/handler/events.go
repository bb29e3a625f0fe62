package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/sharedlist/internal/apperror"
	"github.com/sakif/sharedlist/internal/model"
	"github.com/sakif/sharedlist/internal/router"
)

const (
	// MaxBatchEvents caps POST /api/events/batch.
	MaxBatchEvents = 100

	maxBodyBytes = 1 << 20
)

// EventRouter handles one event. Satisfied by *router.Router.
type EventRouter interface {
	Handle(ctx context.Context, ev router.Event) router.Response
}

// BatchDispatcher handles many events. Satisfied by *dispatch.Dispatcher.
type BatchDispatcher interface {
	Dispatch(ctx context.Context, events []router.Event) ([]router.Response, error)
}

// EventRequest is one chat event as the gateway posts it.
//
// VALIDATION TAGS:
// validator reads the `validate` tags below, so the shape rules live next to
// the fields they guard instead of in a chain of if statements. "userkey" is
// registered in NewEventHandler; it is the same character set the store
// accepts as a list key.
type EventRequest struct {
	UserID  string `json:"userId" validate:"required,max=64,userkey"`
	Kind    string `json:"kind" validate:"required,oneof=text command button"`
	Payload string `json:"payload" validate:"max=4096"`
}

type BatchRequest struct {
	Events []EventRequest `json:"events" validate:"required,min=1,max=100,dive"`
}

// EventResponse tells the gateway what to show the user. Action is "reply"
// for a new message or "edit" to replace the message whose button was pressed.
type EventResponse struct {
	UserID  string            `json:"userId"`
	Action  string            `json:"action"`
	Text    string            `json:"text"`
	Buttons [][]router.Button `json:"buttons,omitempty"`
}

type BatchResponse struct {
	Responses []EventResponse `json:"responses"`
}

type EventHandler struct {
	router     EventRouter
	dispatcher BatchDispatcher
	validator  *validator.Validate
	logger     *slog.Logger
}

func NewEventHandler(r EventRouter, d BatchDispatcher, logger *slog.Logger) (*EventHandler, error) {
	v := validator.New()

	// Report json names ("userId") instead of Go field names ("UserID").
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("userkey", func(fl validator.FieldLevel) bool {
		return model.ValidKey(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("registering userkey validation: %w", err)
	}

	return &EventHandler{
		router:     r,
		dispatcher: d,
		validator:  v,
		logger:     logger,
	}, nil
}

// HandleEvent handles POST /api/events.
//
// A chat-level failure is still a 200: the body carries the reply that
// explains it to the user.
func (h *EventHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	ev := req.event()
	resp := h.router.Handle(r.Context(), ev)
	writeJSON(w, http.StatusOK, toResponse(ev, resp))
}

// HandleBatch handles POST /api/events/batch. Responses come back in the
// order of the request, one per event.
func (h *EventHandler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	events := make([]router.Event, len(req.Events))
	for i, e := range req.Events {
		events[i] = e.event()
	}

	resps, err := h.dispatcher.Dispatch(r.Context(), events)
	if err != nil {
		h.logger.Warn("batch interrupted",
			slog.Int("events", len(events)),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.Unavailable("handling events", err))
		return
	}

	out := BatchResponse{Responses: make([]EventResponse, len(events))}
	for i := range events {
		out.Responses[i] = toResponse(events[i], resps[i])
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleHealth handles GET /healthz.
func (h *EventHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst and validates it.
//
// http.MaxBytesReader stops a gateway (or anyone who got past the token
// check) from streaming an unbounded body into the decoder.
func (h *EventHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "Invalid JSON in request body")
	}

	if err := h.validator.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.ValidationFailed(fieldPath(verrs[0]), validationMessage(verrs[0]))
		}
		return apperror.ValidationFailed("body", err.Error())
	}
	return nil
}

func (e EventRequest) event() router.Event {
	return router.Event{
		UserID:  e.UserID,
		Kind:    router.Kind(e.Kind),
		Payload: e.Payload,
	}
}

func toResponse(ev router.Event, resp router.Response) EventResponse {
	act := "reply"
	if resp.Edit {
		act = "edit"
	}
	return EventResponse{
		UserID:  ev.UserID,
		Action:  act,
		Text:    resp.Text,
		Buttons: resp.Buttons,
	}
}

// fieldPath drops the struct name from the namespace:
// "BatchRequest.events[3].kind" becomes "events[3].kind".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func validationMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s may hold at most %s entries", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must hold at least %s entries", field, fe.Param())
	case "userkey":
		return fmt.Sprintf("%s may only contain letters, digits, '_', '.' and '-'", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
