package service

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CartPersistence keeps session carts in the repository with a read-through
// cache in front of it.
type CartPersistence struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	sfg    singleflight.Group
	logger *zap.Logger
}

func NewCartPersistence(repo repository.CartRepository, cache cache.CartCache, logger *zap.Logger) *CartPersistence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CartPersistence{
		repo:   repo,
		cache:  cache,
		logger: logger,
	}
}

// Load returns the stored cart for the session, or nil when there is none.
func (s *CartPersistence) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, sessionID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get failed", zap.String("session_id", sessionID), zap.Error(err))
		}

		cart, err = s.repo.GetCart(ctx, sessionID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return (*domain.Cart)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		// filled before returning so a later Save always invalidates after it
		setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if errSet := s.cache.Set(setCtx, sessionID, cart); errSet != nil {
			s.logger.Warn("cache set failed", zap.String("session_id", sessionID), zap.Error(errSet))
		}

		return cart, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// Save stores the cart. An empty cart is deleted rather than kept around.
func (s *CartPersistence) Save(ctx context.Context, cart *domain.Cart) error {
	if cart.IsEmpty() {
		return s.Delete(ctx, cart.SessionID)
	}

	if err := s.repo.UpsertCart(ctx, cart); err != nil {
		s.logger.Warn("repo upsert cart failed", zap.String("session_id", cart.SessionID), zap.Error(err))
		return err
	}

	s.invalidateCache(cart.SessionID)
	return nil
}

func (s *CartPersistence) Delete(ctx context.Context, sessionID string) error {
	err := s.repo.DeleteCart(ctx, sessionID)
	if err != nil && !errors.Is(err, repository.ErrCartNotFound) {
		s.logger.Warn("repo delete cart failed", zap.String("session_id", sessionID), zap.Error(err))
		return err
	}

	s.invalidateCache(sessionID)
	return nil
}

func (s *CartPersistence) invalidateCache(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
