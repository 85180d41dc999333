package session

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultIdleTTL is how long a session may go unused before it is evicted
	DefaultIdleTTL = 30 * time.Minute

	// CleanupInterval is how often idle sessions are looked for
	CleanupInterval = time.Minute

	loadTimeout = 3 * time.Second
)

// Loader fetches the persisted cart of a session. A nil cart with a nil error
// means the session has nothing stored.
type Loader interface {
	Load(ctx context.Context, sessionID string) (*domain.Cart, error)
}

// Session is everything the server keeps for one shopper.
type Session struct {
	ID       string
	Cart     *cart.Store
	Checkout *checkout.Adjustments

	lastSeen time.Time
}

// Manager hands out live sessions, rehydrating them from storage on first use
// and evicting them after they sit idle.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	sfg      singleflight.Group

	loader    Loader
	persister cart.Persister
	checkout  *checkout.Service
	idleTTL   time.Duration
	logger    *zap.Logger

	stopCleanup chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewManager starts the idle cleanup loop. loader and persister may be nil,
// in which case carts live in memory only.
func NewManager(
	loader Loader,
	persister cart.Persister,
	checkoutService *checkout.Service,
	idleTTL time.Duration,
	logger *zap.Logger) *Manager {

	if logger == nil {
		logger = zap.NewNop()
	}
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		loader:      loader,
		persister:   persister,
		checkout:    checkoutService,
		idleTTL:     idleTTL,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// Open returns the live session for id, creating it when needed. Storage
// failures are logged and the shopper continues with an empty cart.
func (m *Manager) Open(ctx context.Context, id string) *Session {
	if s := m.touch(id); s != nil {
		return s
	}

	v, _, _ := m.sfg.Do(id, func() (interface{}, error) {
		if s := m.touch(id); s != nil {
			return s, nil
		}

		persisted := m.load(ctx, id)
		s := &Session{
			ID:       id,
			Cart:     cart.NewStore(id, persisted, m.persister, m.logger),
			Checkout: m.checkout.NewAdjustments(),
			lastSeen: time.Now(),
		}

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()

		m.logger.Debug("session opened",
			zap.String("session_id", id),
			zap.Bool("restored", persisted != nil))
		return s, nil
	})

	return v.(*Session)
}

func (m *Manager) load(ctx context.Context, id string) *domain.Cart {
	if m.loader == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
	defer cancel()

	persisted, err := m.loader.Load(ctx, id)
	if err != nil {
		m.logger.Warn("cart load failed, starting empty", zap.String("session_id", id), zap.Error(err))
		return nil
	}
	return persisted
}

func (m *Manager) touch(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil
	}
	s.lastSeen = time.Now()
	return s
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	interval := CleanupInterval
	if m.idleTTL < interval {
		interval = m.idleTTL
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle(time.Now())
		case <-m.stopCleanup:
			return
		}
	}
}

// evictIdle drops every session unused since before now minus the idle TTL.
// Stores are closed outside the lock since closing flushes pending writes.
func (m *Manager) evictIdle(now time.Time) {
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if now.Sub(s.lastSeen) >= m.idleTTL {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Cart.Close()
		m.logger.Debug("session evicted", zap.String("session_id", s.ID))
	}
}

// Close stops the cleanup loop and flushes every live cart.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
	m.wg.Wait()

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Cart.Close()
	}
}
