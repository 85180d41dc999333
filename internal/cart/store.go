package cart

import (
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store owns the line items of one shopping session. Every mutation goes through
// it and none of them fail: unknown products are ignored and quantities are
// clamped. After each mutation a snapshot is handed to the persister in the
// background.
type Store struct {
	mu        sync.RWMutex
	sessionID string
	items     []domain.LineItem
	createdAt time.Time
	updatedAt time.Time

	writer *writer
	logger *zap.Logger
}

// NewStore rehydrates a store from a persisted cart, which may be nil. A nil
// persister keeps the cart in memory only.
func NewStore(sessionID string, persisted *domain.Cart, persister Persister, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now()
	s := &Store{
		sessionID: sessionID,
		createdAt: now,
		updatedAt: now,
		logger:    logger,
	}
	if persisted != nil {
		s.items = sanitize(persisted.Items)
		if !persisted.CreatedAt.IsZero() {
			s.createdAt = persisted.CreatedAt
		}
		if !persisted.UpdatedAt.IsZero() {
			s.updatedAt = persisted.UpdatedAt
		}
	}
	if persister != nil {
		s.writer = newWriter(persister, logger.With(zap.String("session_id", sessionID)))
	}
	return s
}

func (s *Store) SessionID() string {
	return s.sessionID
}

// AddItem puts quantity units of product into the cart. Adding a product that is
// already present raises the existing row instead of creating a second one.
func (s *Store) AddItem(product domain.Product, quantity int) {
	if product.Stock < 1 || product.ID == "" {
		return
	}
	if quantity < 1 {
		quantity = 1
	}
	// no row can hold more than MaxQuantity, so anything above it adds nothing
	quantity = min(quantity, domain.MaxQuantity)

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		item := &s.items[i]
		item.Quantity = domain.ClampQuantity(item.Quantity+quantity, item.Stock)
	} else {
		s.items = append(s.items, domain.LineItem{
			ID:          uuid.New().String(),
			ProductID:   product.ID,
			Name:        product.Name,
			Image:       product.Image,
			Description: product.Description,
			Price:       product.Price,
			Stock:       product.Stock,
			Quantity:    domain.ClampQuantity(quantity, product.Stock),
			AddedAt:     time.Now(),
		})
	}
	s.changed()
}

func (s *Store) RemoveItem(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		s.removeAt(i)
	}
}

// UpdateQuantity sets the quantity of a row. Zero or less removes the row.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.setQuantity(productID, quantity)
}

func (s *Store) Increment(productID string) {
	s.step(productID, 1)
}

// Decrement lowers the quantity by one; a row at 1 is removed rather than
// reaching 0.
func (s *Store) Decrement(productID string) {
	s.step(productID, -1)
}

func (s *Store) step(productID string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(productID); i >= 0 {
		s.setQuantity(productID, s.items[i].Quantity+delta)
	}
}

// setQuantity must be called with mu held.
func (s *Store) setQuantity(productID string, quantity int) {
	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	if quantity <= 0 {
		s.removeAt(i)
		return
	}
	s.items[i].Quantity = domain.ClampQuantity(quantity, s.items[i].Stock)
	s.changed()
}

func (s *Store) removeAt(i int) {
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.changed()
}

// ClearCart empties the cart.
func (s *Store) ClearCart() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = nil
	s.changed()
}

// ClearSubmitted takes the submitted lines out of the cart. Lines added after
// the order snapshot stay, and a line raised since then keeps the difference.
func (s *Store) ClearSubmitted(submitted []domain.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	for _, sub := range submitted {
		i := s.indexOf(sub.ProductID)
		if i < 0 {
			continue
		}
		if left := s.items[i].Quantity - sub.Quantity; left > 0 {
			s.items[i].Quantity = left
		} else {
			s.items = append(s.items[:i], s.items[i+1:]...)
		}
		removed = true
	}
	if removed {
		s.changed()
	}
}

func (s *Store) TotalItems() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, item := range s.items {
		total += item.Quantity
	}
	return total
}

func (s *Store) TotalPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.SumAmount(s.items).InexactFloat64()
}

func (s *Store) Items() []domain.LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.copyItems()
}

func (s *Store) Item(productID string) (domain.LineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(productID)
	if i < 0 {
		return domain.LineItem{}, false
	}
	return s.items[i], true
}

func (s *Store) Snapshot() domain.Cart {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot()
}

// Close flushes the last pending snapshot and stops the background writer.
func (s *Store) Close() {
	if s.writer != nil {
		s.writer.close()
	}
}

func (s *Store) indexOf(productID string) int {
	for i := range s.items {
		if s.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) copyItems() []domain.LineItem {
	out := make([]domain.LineItem, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Store) snapshot() domain.Cart {
	return domain.Cart{
		SessionID: s.sessionID,
		Items:     s.copyItems(),
		CreatedAt: s.createdAt,
		UpdatedAt: s.updatedAt,
	}
}

// changed must be called with mu held.
func (s *Store) changed() {
	s.updatedAt = time.Now()
	if s.writer == nil {
		return
	}
	s.writer.enqueue(s.snapshot())
}

// sanitize restores the cart invariants on data read back from storage.
func sanitize(items []domain.LineItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	seen := make(map[string]int, len(items))
	for _, item := range items {
		if item.ProductID == "" || item.Stock < 1 {
			continue
		}
		item.Quantity = min(item.Quantity, domain.MaxQuantity)
		if i, ok := seen[item.ProductID]; ok {
			out[i].Quantity = domain.ClampQuantity(out[i].Quantity+item.Quantity, out[i].Stock)
			continue
		}
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		item.Quantity = domain.ClampQuantity(item.Quantity, item.Stock)
		seen[item.ProductID] = len(out)
		out = append(out, item)
	}
	return out
}
