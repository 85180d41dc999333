package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartTTL is how long an untouched cart survives in the collection.
const CartTTL = 90 * 24 * time.Hour

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoRepository) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	var cart domain.Cart

	filter := bson.M{"session_id": sessionID}
	err := m.collection.FindOne(ctx, filter).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

func (m *MongoRepository) UpsertCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now()
	createdAt := cart.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := cart.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}
	items := cart.Items
	if items == nil {
		items = []domain.LineItem{}
	}

	filter := bson.M{"session_id": cart.SessionID}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": updatedAt,
		},
		"$setOnInsert": bson.M{
			"session_id": cart.SessionID,
			"created_at": createdAt,
		},
	}
	opts := options.Update().SetUpsert(true)

	_, err := m.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}

	return nil
}

func (m *MongoRepository) DeleteCart(ctx context.Context, sessionID string) error {
	filter := bson.M{"session_id": sessionID}

	result, err := m.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(CartTTL.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
