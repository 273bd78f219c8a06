package gateway

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gsarrco/MuoVErsi/internal/session"
)

// dispatcher runs the turns of each chat one at a time in arrival order and
// publishes a turn's effects before the chat's next turn starts. Different
// chats run concurrently.
type dispatcher struct {
	handler Handler
	publish func(chatID int64, e session.Effect) error
	timeout time.Duration

	mu      sync.Mutex
	closing bool
	queues  map[int64][]session.Event // chatID -> pending; present while a worker runs
	wg      sync.WaitGroup
}

func newDispatcher(h Handler, publish func(int64, session.Effect) error, timeout time.Duration) *dispatcher {
	return &dispatcher{
		handler: h,
		publish: publish,
		timeout: timeout,
		queues:  make(map[int64][]session.Event),
	}
}

// enqueue reports false once close has started.
func (d *dispatcher) enqueue(ctx context.Context, chatID int64, ev session.Event) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closing {
		return false
	}
	q, running := d.queues[chatID]
	d.queues[chatID] = append(q, ev)
	if !running {
		d.wg.Add(1)
		go d.work(ctx, chatID)
	}
	return true
}

func (d *dispatcher) work(ctx context.Context, chatID int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[chatID]
		if len(q) == 0 {
			delete(d.queues, chatID)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		d.queues[chatID] = q[1:]
		d.mu.Unlock()

		d.turn(ctx, chatID, ev)
	}
}

func (d *dispatcher) turn(ctx context.Context, chatID int64, ev session.Event) {
	// Turns already started finish even when shutdown begins.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	for _, e := range d.handler.Handle(tctx, chatID, ev) {
		if err := d.publish(chatID, e); err != nil {
			log.Printf("publish chat=%d: %v", chatID, err)
		}
	}
}

// close refuses new events and waits for every queued turn to finish.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	d.wg.Wait()
}
