package product

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultSKU is assigned when the client does not provide one
const DefaultSKU = "SKU"

// Image holds the stored metadata of an uploaded product image. The
// object-store key stays internal; clients only see the public path.
type Image struct {
	FileName string `bson:"file_name" json:"file_name"`
	FilePath string `bson:"file_path" json:"file_path"`
	FileType string `bson:"file_type" json:"file_type"`
	FileSize string `bson:"file_size" json:"file_size"`
	Key      string `bson:"key,omitempty" json:"-"`
}

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"user_id"`
	Name        string             `bson:"name" json:"name"`
	SKU         string             `bson:"sku" json:"sku"`
	Category    string             `bson:"category" json:"category"`
	Quantity    int64              `bson:"quantity" json:"quantity"`
	Price       float64            `bson:"price" json:"price"`
	Description string             `bson:"description" json:"description"`
	Image       *Image             `bson:"image,omitempty" json:"image,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}
