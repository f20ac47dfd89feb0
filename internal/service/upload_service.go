package service

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "taskhub/internal/errors"
	"taskhub/internal/storage"
)

// MaxImageSize is the largest accepted image upload.
const MaxImageSize = 5 << 20

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// UploadResult is the stored location of an uploaded image.
type UploadResult struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

// UploadService stores user images.
type UploadService interface {
	UploadImage(ctx context.Context, userID uuid.UUID, data []byte) (*UploadResult, error)
}

type uploadService struct {
	store  storage.ImageStore
	logger *zap.Logger
}

// NewUploadService creates an upload service backed by store.
func NewUploadService(store storage.ImageStore, logger *zap.Logger) UploadService {
	return &uploadService{store: store, logger: orNop(logger).Named("upload")}
}

// UploadImage sniffs the content type from the bytes, not the client header.
func (s *uploadService) UploadImage(ctx context.Context, userID uuid.UUID, data []byte) (*UploadResult, error) {
	if len(data) == 0 {
		return nil, validationError("image file is required")
	}
	if len(data) > MaxImageSize {
		return nil, apperrors.ErrFileTooLarge
	}
	mt := mimetype.Detect(data)
	if !allowedImageTypes[mt.String()] {
		return nil, apperrors.ErrUnsupportedMedia
	}

	key := fmt.Sprintf("images/%s/%s%s", userID, uuid.New(), mt.Extension())
	url, err := s.store.Put(ctx, key, data, mt.String())
	if err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	s.logger.Info("image uploaded",
		zap.Stringer("user_id", userID),
		zap.String("key", key),
		zap.String("content_type", mt.String()),
		zap.Int("size", len(data)),
	)
	return &UploadResult{URL: url, Key: key}, nil
}
