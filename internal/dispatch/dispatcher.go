// Package dispatch fans committed state changes out to email, SMS, inbox
// records and realtime pushes. Every task runs detached from the request,
// bounded by its own timeout, and failures stop at the task boundary.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fabline/fabline/internal/events"
	"github.com/fabline/fabline/internal/platform/blob"
	"github.com/fabline/fabline/internal/shared"
)

// Config tunes the dispatcher.
type Config struct {
	MaxInflight      int64
	TaskTimeout      time.Duration
	BackofficeEmails []string
}

// Deps collects the collaborators tasks call. Nil notifiers disable the
// tasks that need them.
type Deps struct {
	Inquiries     InquiryLoader
	Quotations    QuotationLoader
	Orders        OrderStore
	Directory     Directory
	Mailer        Mailer
	SMS           SMSSender
	Pusher        Pusher
	Notifications NotificationWriter
	Refunds       Refunder
	Blobs         blob.Store
	Metrics       *Metrics
	Logger        *slog.Logger
	Config        Config
}

// Dispatcher implements events.Dispatcher.
type Dispatcher struct {
	deps    Deps
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

var _ events.Dispatcher = (*Dispatcher)(nil)

// New constructs a Dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.MaxInflight <= 0 {
		deps.Config.MaxInflight = 32
	}
	if deps.Config.TaskTimeout <= 0 {
		deps.Config.TaskTimeout = 30 * time.Second
	}
	return &Dispatcher{
		deps:    deps,
		sem:     semaphore.NewWeighted(deps.Config.MaxInflight),
		timeout: deps.Config.TaskTimeout,
		logger:  deps.Logger.With(slog.String("component", "dispatch")),
	}
}

type task struct {
	name string
	run  func(ctx context.Context) error
}

// Dispatch starts every task planned for evt and returns immediately.
func (d *Dispatcher) Dispatch(ctx context.Context, evt events.Event) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	base := context.WithoutCancel(ctx)
	for _, t := range d.plan(evt) {
		d.wg.Add(1)
		go d.execute(base, evt, t)
	}
}

// Wait blocks until every started task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (d *Dispatcher) WaitContext(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) execute(base context.Context, evt events.Event, t task) {
	defer d.wg.Done()
	ctx, cancel := context.WithTimeout(base, d.timeout)
	defer cancel()

	start := time.Now()
	err := d.guarded(ctx, t)
	d.deps.Metrics.observe(evt.Kind, t.name, err, time.Since(start))
	if err != nil {
		d.logger.Error("dispatch task failed",
			slog.String("event", string(evt.Kind)),
			slog.String("task", t.name),
			slog.String("entity_id", evt.EntityID),
			slog.Any("error", fmt.Errorf("%w: %v", shared.ErrDependency, err)))
		return
	}
	d.logger.Debug("dispatch task done",
		slog.String("event", string(evt.Kind)),
		slog.String("task", t.name),
		slog.String("entity_id", evt.EntityID))
}

func (d *Dispatcher) guarded(ctx context.Context, t task) (err error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for slot: %w", err)
	}
	defer d.sem.Release(1)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return t.run(ctx)
}
