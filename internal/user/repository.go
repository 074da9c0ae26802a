package user

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

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("email has already been registered")
)

// caseInsensitive matches the collation of the unique email index, so
// lookups and the uniqueness constraint agree on what "equal" means.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// Repository handles user data persistence
type Repository struct {
	col *mongo.Collection
}

func NewRepository(col *mongo.Collection) *Repository {
	return &Repository{col: col}
}

// Create inserts a new user. The email must already be lower-cased and the
// password already hashed by the caller.
func (r *Repository) Create(ctx context.Context, u *User) (*User, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.CreatedAt = now
	u.UpdatedAt = now
	if u.Photo == "" {
		u.Photo = DefaultPhoto
	}

	_, err := r.col.InsertOne(ctx, u)
	if err != nil {
		// The unique index is the authority on duplicates; a racing
		// insert loses here even after a clean pre-check.
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// GetByEmail retrieves a user by email, case-insensitively
func (r *Repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	u := new(User)
	err := r.col.FindOne(ctx,
		bson.M{"email": email},
		options.FindOne().SetCollation(caseInsensitive),
	).Decode(u)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}

	return u, nil
}

// GetByID retrieves a user by ID
func (r *Repository) GetByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	u := new(User)
	err := r.col.FindOne(ctx, bson.M{"_id": id}).Decode(u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	return u, nil
}

// EmailTakenByOther reports whether another user already owns the email
func (r *Repository) EmailTakenByOther(ctx context.Context, email string, selfID primitive.ObjectID) (bool, error) {
	count, err := r.col.CountDocuments(ctx,
		bson.M{"email": email, "_id": bson.M{"$ne": selfID}},
		options.Count().SetCollation(caseInsensitive),
	)
	if err != nil {
		return false, fmt.Errorf("failed to check email availability: %w", err)
	}
	return count > 0, nil
}

// ProfileUpdate carries the mutable profile fields. Empty strings mean
// "keep the current value".
type ProfileUpdate struct {
	Name  string
	Email string
	Phone string
	Bio   string
	Photo string
}

// UpdateProfile applies a partial profile update and returns the updated user
func (r *Repository) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if upd.Name != "" {
		set["name"] = upd.Name
	}
	if upd.Email != "" {
		set["email"] = upd.Email
	}
	if upd.Phone != "" {
		set["phone"] = upd.Phone
	}
	if upd.Bio != "" {
		set["bio"] = upd.Bio
	}
	if upd.Photo != "" {
		set["photo"] = upd.Photo
	}

	u := new(User)
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(u)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return u, nil
}

// UpdatePassword replaces the stored password hash
func (r *Repository) UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error {
	result, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{
			"password":   passwordHash,
			"updated_at": time.Now().UTC(),
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
