package cart

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/campusmarket/storefront/internal/domain"
)

// saveJob is the cart snapshot a mutation wants on the server.
type saveJob struct {
	userID string
	lines  []domain.CartLine
	clear  bool
}

// writer pushes cart snapshots to the server one at a time. It keeps a
// single pending slot: a newer snapshot replaces an older one that has not
// been sent yet, so a burst of mutations ends in at most one follow-up
// request carrying the latest state.
type writer struct {
	send    func(ctx context.Context, job saveJob) error
	allowed func(userID string) bool
	log     *zap.Logger

	mu      sync.Mutex
	pending *saveJob
	running bool
	idle    chan struct{}
	closed  bool
	sent    int
}

func newWriter(send func(context.Context, saveJob) error, allowed func(string) bool, log *zap.Logger) *writer {
	return &writer{send: send, allowed: allowed, log: log}
}

func (w *writer) submit(job saveJob) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending = &job
	if !w.running {
		w.running = true
		w.idle = make(chan struct{})
		go w.run()
	}
}

func (w *writer) run() {
	for {
		w.mu.Lock()
		job := w.pending
		w.pending = nil
		if job == nil {
			w.running = false
			close(w.idle)
			w.mu.Unlock()
			return
		}
		w.mu.Unlock()

		if !w.allowed(job.userID) {
			w.log.Debug("cart save skipped, session changed", zap.String("user_id", job.userID))
			continue
		}
		if err := w.send(context.Background(), *job); err != nil {
			w.log.Warn("cart save failed",
				zap.String("user_id", job.userID),
				zap.Bool("clear", job.clear),
				zap.Int("lines", len(job.lines)),
				zap.Error(err))
			continue
		}
		w.mu.Lock()
		w.sent++
		w.mu.Unlock()
	}
}

// flush waits until no save is pending or in flight.
func (w *writer) flush(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *writer) close(ctx context.Context) error {
	err := w.flush(ctx)
	w.mu.Lock()
	w.closed = true
	w.pending = nil
	w.mu.Unlock()
	return err
}

// sentCount is the number of saves the server accepted.
func (w *writer) sentCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.sent
}
