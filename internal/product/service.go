package product

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/inventio/inventory-api/internal/logging"
)

var (
	ErrMissingFields   = errors.New("name, category, quantity, price and description are required")
	ErrInvalidQuantity = errors.New("quantity must be a non-negative number")
	ErrInvalidPrice    = errors.New("price must be a non-negative number")
	ErrInvalidFileType = errors.New("only PNG and JPEG images are allowed")
	ErrFileTooLarge    = errors.New("image must not exceed 5 MB")
	ErrUploadFailed    = errors.New("image upload failed")
)

const (
	maxImageSize   = 5 << 20 // 5 MB
	thumbnailWidth = 320
)

// ObjectStore is the object storage contract the product flow needs
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Store is the persistence contract for products
type Store interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]Product, error)
	Get(ctx context.Context, userID, id primitive.ObjectID) (*Product, error)
	Update(ctx context.Context, userID, id primitive.ObjectID, upd Update) (*Product, error)
	Delete(ctx context.Context, userID, id primitive.ObjectID) error
}

// Service handles product business logic
type Service struct {
	repo    Store
	objects ObjectStore
	logger  *logging.Logger
}

func NewService(repo Store, objects ObjectStore, logger *logging.Logger) *Service {
	return &Service{repo: repo, objects: objects, logger: logger}
}

// CreateInput carries the fields of a new product
type CreateInput struct {
	Name        string
	SKU         string
	Category    string
	Quantity    int64
	Price       float64
	Description string
	ImageFile   *multipart.FileHeader
}

// Create validates and persists a new product, uploading its image first
func (s *Service) Create(ctx context.Context, userID primitive.ObjectID, in CreateInput) (*Product, error) {
	name := strings.TrimSpace(in.Name)
	category := strings.TrimSpace(in.Category)
	description := strings.TrimSpace(in.Description)

	if name == "" || category == "" || description == "" {
		return nil, ErrMissingFields
	}
	if in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Price < 0 {
		return nil, ErrInvalidPrice
	}

	sku := strings.TrimSpace(in.SKU)
	if sku == "" {
		sku = DefaultSKU
	}

	var img *Image
	if in.ImageFile != nil {
		uploaded, err := s.processImage(ctx, userID, in.ImageFile)
		if err != nil {
			return nil, err
		}
		img = uploaded
	}

	return s.repo.Create(ctx, &Product{
		UserID:      userID,
		Name:        name,
		SKU:         sku,
		Category:    category,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Description: description,
		Image:       img,
	})
}

// List returns the owner's products, newest first
func (s *Service) List(ctx context.Context, userID primitive.ObjectID) ([]Product, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Get returns one of the owner's products
func (s *Service) Get(ctx context.Context, userID, id primitive.ObjectID) (*Product, error) {
	return s.repo.Get(ctx, userID, id)
}

// UpdateInput carries the fields of a partial product update. Nil
// pointers keep the current values.
type UpdateInput struct {
	Name        *string
	Category    *string
	Quantity    *int64
	Price       *float64
	Description *string
	ImageFile   *multipart.FileHeader
}

// UpdateFields applies a partial update, replacing the stored image when
// a new one is uploaded
func (s *Service) UpdateFields(ctx context.Context, userID, id primitive.ObjectID, in UpdateInput) (*Product, error) {
	existing, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if in.Quantity != nil && *in.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if in.Price != nil && *in.Price < 0 {
		return nil, ErrInvalidPrice
	}

	upd := Update{
		Name:        in.Name,
		Category:    in.Category,
		Quantity:    in.Quantity,
		Price:       in.Price,
		Description: in.Description,
	}

	if in.ImageFile != nil {
		img, err := s.processImage(ctx, userID, in.ImageFile)
		if err != nil {
			return nil, err
		}
		upd.Image = img
	}

	updated, err := s.repo.Update(ctx, userID, id, upd)
	if err != nil {
		return nil, err
	}

	// The replaced object is orphaned; removal is best-effort
	if upd.Image != nil && existing.Image != nil && existing.Image.Key != "" {
		s.deleteImageObjects(ctx, existing.Image.Key)
	}

	return updated, nil
}

// Delete removes one of the owner's products and its stored image
func (s *Service) Delete(ctx context.Context, userID, id primitive.ObjectID) error {
	existing, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return err
	}

	if existing.Image != nil && existing.Image.Key != "" {
		s.deleteImageObjects(ctx, existing.Image.Key)
	}

	return nil
}

// processImage validates, uploads and describes a product image. A
// 320px thumbnail is uploaded alongside it; thumbnail failures are
// logged and swallowed since the original is already stored.
func (s *Service) processImage(ctx context.Context, userID primitive.ObjectID, fh *multipart.FileHeader) (*Image, error) {
	if fh.Size > maxImageSize {
		return nil, ErrFileTooLarge
	}

	file, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if len(data) > maxImageSize {
		return nil, ErrFileTooLarge
	}

	// Sniffed type wins over the client-declared Content-Type
	contentType := http.DetectContentType(data)
	if contentType != "image/png" && contentType != "image/jpeg" {
		return nil, ErrInvalidFileType
	}

	key := fmt.Sprintf("%s/%s_%s", userID.Hex(), uuid.New().String(), filepath.Base(fh.Filename))

	publicURL, err := s.objects.Upload(ctx, key, contentType, data)
	if err != nil {
		s.logger.Error("failed to upload product image", "key", key, "error", err.Error())
		return nil, ErrUploadFailed
	}

	s.uploadThumbnail(ctx, key, data)

	return &Image{
		FileName: fh.Filename,
		FilePath: publicURL,
		FileType: contentType,
		FileSize: humanizeBytes(int64(len(data))),
		Key:      key,
	}, nil
}

// uploadThumbnail resizes the image to thumbnailWidth and stores it as
// JPEG next to the original. Best-effort only.
func (s *Service) uploadThumbnail(ctx context.Context, key string, data []byte) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to decode image for thumbnail", "key", key, "error", err.Error())
		return
	}

	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		s.logger.Warn("failed to encode thumbnail", "key", key, "error", err.Error())
		return
	}

	if _, err := s.objects.Upload(ctx, thumbnailKey(key), "image/jpeg", buf.Bytes()); err != nil {
		s.logger.Warn("failed to upload thumbnail", "key", key, "error", err.Error())
	}
}

// deleteImageObjects removes a stored image and its thumbnail
func (s *Service) deleteImageObjects(ctx context.Context, key string) {
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image object", "key", key, "error", err.Error())
	}
	if err := s.objects.Delete(ctx, thumbnailKey(key)); err != nil {
		s.logger.Warn("failed to delete thumbnail object", "key", key, "error", err.Error())
	}
}

func thumbnailKey(key string) string {
	return key + ".thumb.jpg"
}

// humanizeBytes renders a byte count the way the UI expects it,
// e.g. 1296387 -> "1.24 MB"
func humanizeBytes(size int64) string {
	if size <= 0 {
		return "0 Bytes"
	}

	units := []string{"Bytes", "KB", "MB", "GB", "TB"}
	i := int(math.Floor(math.Log(float64(size)) / math.Log(1024)))
	if i >= len(units) {
		i = len(units) - 1
	}

	value := float64(size) / math.Pow(1024, float64(i))
	rounded := math.Round(value*100) / 100

	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + units[i]
}
