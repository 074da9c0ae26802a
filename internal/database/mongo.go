package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/inventio/inventory-api/internal/config"
)

// Collection names
const (
	UsersCollection       = "users"
	ResetTokensCollection = "reset_tokens"
	ProductsCollection    = "products"
)

// Connect opens a Mongo client and verifies the connection
func Connect(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the indexes the application relies on for
// correctness. Uniqueness and atomic find/delete at the store are the
// only concurrency-control mechanisms in the request path.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	// Case-insensitive unique email: collation strength 2 ignores case,
	// so A@x.com and a@x.com collide on insert.
	_, err := db.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetCollation(&options.Collation{Locale: "en", Strength: 2}),
	})
	if err != nil {
		return fmt.Errorf("failed to create user email index: %w", err)
	}

	_, err = db.Collection(ResetTokensCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "token_hash", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
		{
			// TTL reaper for abandoned tokens; validity checks still
			// compare expires_at explicitly since the reaper lags.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create reset token indexes: %w", err)
	}

	_, err = db.Collection(ProductsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create product index: %w", err)
	}

	return nil
}
