// Package dispatch runs a batch of events through the router.
//
// Events from different users run concurrently, up to a worker limit. Events
// from the same user run one after another in the order given, the way a
// chat transport delivers them, so a "create group" prompt and the name that
// answers it are never reordered.
package dispatch

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/sharedlist/internal/router"
)

const DefaultWorkers = 8

// Handler is satisfied by *router.Router.
type Handler interface {
	Handle(ctx context.Context, ev router.Event) router.Response
}

type Dispatcher struct {
	handler Handler
	workers int
	logger  *slog.Logger
}

func New(handler Handler, workers int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Dispatcher{handler: handler, workers: workers, logger: logger}
}

// Dispatch handles events and returns the responses in input order. It stops
// early only when ctx is cancelled; handler failures are already replies.
func (d *Dispatcher) Dispatch(ctx context.Context, events []router.Event) ([]router.Response, error) {
	out := make([]router.Response, len(events))

	// Group event indexes by user, keeping first-seen user order.
	var users []string
	byUser := make(map[string][]int)
	for i, ev := range events {
		if _, seen := byUser[ev.UserID]; !seen {
			users = append(users, ev.UserID)
		}
		byUser[ev.UserID] = append(byUser[ev.UserID], i)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.workers)

	for _, user := range users {
		idxs := byUser[user]
		eg.Go(func() error {
			for _, i := range idxs {
				if err := egCtx.Err(); err != nil {
					return err
				}
				// Each index belongs to exactly one goroutine.
				out[i] = d.handler.Handle(egCtx, events[i])
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		d.logger.Warn("batch interrupted",
			slog.Int("events", len(events)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return out, nil
}
