package cart

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
)

// SaveTimeout bounds a single persistence write.
const SaveTimeout = 3 * time.Second

// Persister stores the latest state of a cart. Implementations may fail; the
// store logs and carries on.
type Persister interface {
	Save(ctx context.Context, cart *domain.Cart) error
}

// writer saves snapshots off the caller's goroutine. Snapshots queued while a
// save is in flight collapse into the newest one, so writes land in order.
type writer struct {
	persister Persister
	logger    *zap.Logger

	mu      sync.Mutex
	pending *domain.Cart
	closed  bool

	signal chan struct{}
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newWriter(persister Persister, logger *zap.Logger) *writer {
	w := &writer{
		persister: persister,
		logger:    logger,
		signal:    make(chan struct{}, 1),
		stop:      make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *writer) enqueue(c domain.Cart) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.pending = &c
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *writer) loop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.signal:
			w.flush()
		case <-w.stop:
			w.flush()
			return
		}
	}
}

func (w *writer) flush() {
	w.mu.Lock()
	c := w.pending
	w.pending = nil
	w.mu.Unlock()

	if c == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), SaveTimeout)
	defer cancel()
	if err := w.persister.Save(ctx, c); err != nil {
		w.logger.Warn("cart save failed, continuing in memory", zap.Error(err))
	}
}

func (w *writer) close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	close(w.stop)
	w.wg.Wait()
}
