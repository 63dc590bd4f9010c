package bot

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/ashureev/estimabot/internal/chat"
)

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev chat.Event)
}

// Dispatcher runs events of the same user strictly in arrival order while
// different users proceed concurrently.
type Dispatcher struct {
	ctx     context.Context
	handler Handler

	mu     sync.Mutex
	lanes  map[int64][]chat.Event
	wg     sync.WaitGroup
	closed bool
}

// NewDispatcher creates a dispatcher whose handlers run with ctx.
func NewDispatcher(ctx context.Context, h Handler) *Dispatcher {
	return &Dispatcher{
		ctx:     ctx,
		handler: h,
		lanes:   make(map[int64][]chat.Event),
	}
}

// Dispatch queues ev on its user's lane and returns immediately.
func (d *Dispatcher) Dispatch(ev chat.Event) {
	userID := ev.Sender()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		slog.Warn("Dropping event after shutdown", "user_id", userID)
		return
	}
	queue, running := d.lanes[userID]
	d.lanes[userID] = append(queue, ev)
	if !running {
		d.wg.Add(1)
		go d.drain(userID)
	}
	d.mu.Unlock()
}

// drain handles the lane's events until it is empty, then retires the lane.
func (d *Dispatcher) drain(userID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		queue := d.lanes[userID]
		if len(queue) == 0 {
			delete(d.lanes, userID)
			d.mu.Unlock()
			return
		}
		ev := queue[0]
		d.lanes[userID] = queue[1:]
		d.mu.Unlock()

		d.handle(userID, ev)
	}
}

func (d *Dispatcher) handle(userID int64, ev chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in event handler",
				"user_id", userID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	d.handler.Handle(d.ctx, ev)
}

// Wait stops accepting events and blocks until queued ones are handled or
// ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

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
