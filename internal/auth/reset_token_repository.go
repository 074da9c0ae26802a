package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var ErrResetTokenNotFound = errors.New("invalid or expired reset token")

// ResetTokenTTL is how long a password reset link stays usable
const ResetTokenTTL = 30 * time.Minute

// ResetToken is the stored side of a one-time password reset credential.
// Only the SHA-256 of the emailed plaintext is ever persisted.
type ResetToken struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    primitive.ObjectID `bson:"user_id"`
	TokenHash string             `bson:"token_hash"`
	CreatedAt time.Time          `bson:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at"`
}

// Expired reports whether the stored expiry has passed. Repository
// queries already filter on expires_at, but the service re-checks the
// record it got back rather than trusting every store implementation.
func (rt *ResetToken) Expired() bool {
	return !time.Now().UTC().Before(rt.ExpiresAt)
}

// ResetTokenRepository handles reset token persistence
type ResetTokenRepository struct {
	col *mongo.Collection
}

func NewResetTokenRepository(col *mongo.Collection) *ResetTokenRepository {
	return &ResetTokenRepository{col: col}
}

// DeleteForUser removes every reset token owned by the user, enforcing
// at most one live token per user before a new one is stored
func (r *ResetTokenRepository) DeleteForUser(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete reset tokens: %w", err)
	}
	return nil
}

// Store persists the hash of a freshly generated plaintext token
func (r *ResetTokenRepository) Store(ctx context.Context, userID primitive.ObjectID, token string) error {
	now := time.Now().UTC()
	_, err := r.col.InsertOne(ctx, &ResetToken{
		UserID:    userID,
		TokenHash: hashToken(token),
		CreatedAt: now,
		ExpiresAt: now.Add(ResetTokenTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}
	return nil
}

// FindValid looks up an unexpired token matching the plaintext value
func (r *ResetTokenRepository) FindValid(ctx context.Context, token string) (*ResetToken, error) {
	rt := new(ResetToken)
	err := r.col.FindOne(ctx, bson.M{
		"token_hash": hashToken(token),
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Decode(rt)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to find reset token: %w", err)
	}

	return rt, nil
}

// Claim consumes a token exactly once. The atomic find-and-delete is the
// single-use guarantee: of two racing consumers, exactly one gets the
// document back, the other gets ErrResetTokenNotFound.
func (r *ResetTokenRepository) Claim(ctx context.Context, id primitive.ObjectID) error {
	err := r.col.FindOneAndDelete(ctx, bson.M{
		"_id":        id,
		"expires_at": bson.M{"$gt": time.Now().UTC()},
	}).Err()

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrResetTokenNotFound
		}
		return fmt.Errorf("failed to claim reset token: %w", err)
	}

	return nil
}

// hashToken hashes a token for safe storage and lookup
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
