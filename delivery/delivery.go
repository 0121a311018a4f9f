// Package delivery hands saved captures to collaborators outside the booth:
// an HTTP collector and an MQTT broker. Deliveries are fire-and-forget and
// never retried.
package delivery

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Delivery describes one saved capture.
type Delivery struct {
	ID      uuid.UUID
	Path    string
	Tag     string
	TakenAt time.Time
}

type Deliverer interface {
	Deliver(ctx context.Context, d Delivery) error
}

// DelivererFunc adapts a function to a Deliverer.
type DelivererFunc func(ctx context.Context, d Delivery) error

func (f DelivererFunc) Deliver(ctx context.Context, d Delivery) error { return f(ctx, d) }

// Result is the outcome of one dispatched delivery.
type Result struct {
	Delivery
	Err     error
	Elapsed time.Duration
}

// Dispatch delivers d on its own goroutine and reports through done. The
// caller does not wait.
func Dispatch(ctx context.Context, dl Deliverer, d Delivery, done func(Result)) {
	go func() {
		start := time.Now()
		err := dl.Deliver(ctx, d)
		if done != nil {
			done(Result{Delivery: d, Err: err, Elapsed: time.Since(start)})
		}
	}()
}

// Multi delivers to each deliverer in turn and joins their errors.
type Multi []Deliverer

func (m Multi) Deliver(ctx context.Context, d Delivery) error {
	var errs []error
	for _, dl := range m {
		if err := dl.Deliver(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
