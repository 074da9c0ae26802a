package user

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultPhoto is the placeholder avatar assigned at registration
const DefaultPhoto = "https://i.ibb.co/4pDNDk1/avatar.png"

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password" json:"-"` // Never expose password hash in JSON
	Photo        string             `bson:"photo" json:"photo"`
	Phone        string             `bson:"phone" json:"phone"`
	Bio          string             `bson:"bio" json:"bio"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at" json:"updated_at"`
}

// Profile is the public subset of a user returned by the API
type Profile struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email"`
	Photo string             `json:"photo"`
	Phone string             `json:"phone"`
	Bio   string             `json:"bio"`
}

// PublicProfile strips everything a client must not see
func (u *User) PublicProfile() Profile {
	return Profile{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Photo: u.Photo,
		Phone: u.Phone,
		Bio:   u.Bio,
	}
}

type contextKey string

const userContextKey contextKey = "current_user"

// NewContext attaches the authenticated user to a request context
func NewContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// FromContext extracts the authenticated user placed there by the auth gate
func FromContext(ctx context.Context) (*User, bool) {
	u, ok := ctx.Value(userContextKey).(*User)
	return u, ok
}
