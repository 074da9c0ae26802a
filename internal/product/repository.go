package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("product not found")

// Repository handles product persistence. Every query is scoped to an
// owner: a product belonging to someone else is indistinguishable from
// one that does not exist.
type Repository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *Repository {
	return &Repository{col: col}
}

// Create inserts a new product for the owner
func (r *Repository) Create(ctx context.Context, p *Product) (*Product, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.col.InsertOne(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return p, nil
}

// ListByUser returns the owner's products, newest first
func (r *Repository) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]Product, error) {
	cursor, err := r.col.Find(ctx,
		bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer cursor.Close(ctx)

	products := make([]Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, nil
}

// Get retrieves one of the owner's products by id
func (r *Repository) Get(ctx context.Context, userID, id primitive.ObjectID) (*Product, error) {
	p := new(Product)
	err := r.col.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	return p, nil
}

// Update carries the mutable product fields. Nil pointers mean "keep
// the current value"; a nil Image keeps the stored image metadata.
type Update struct {
	Name        *string
	Category    *string
	Quantity    *int64
	Price       *float64
	Description *string
	Image       *Image
}

// Update applies a partial update to one of the owner's products and
// returns the updated document
func (r *Repository) Update(ctx context.Context, userID, id primitive.ObjectID, upd Update) (*Product, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != nil {
		set["name"] = *upd.Name
	}
	if upd.Category != nil {
		set["category"] = *upd.Category
	}
	if upd.Quantity != nil {
		set["quantity"] = *upd.Quantity
	}
	if upd.Price != nil {
		set["price"] = *upd.Price
	}
	if upd.Description != nil {
		set["description"] = *upd.Description
	}
	if upd.Image != nil {
		set["image"] = upd.Image
	}

	p := new(Product)
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(p)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	return p, nil
}

// Delete removes one of the owner's products
func (r *Repository) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	result, err := r.col.DeleteOne(ctx, bson.M{"_id": id, "user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	return nil
}
