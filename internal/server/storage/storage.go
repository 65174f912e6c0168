// Package storage saves uploaded images and hands back the URL the frontend
// should use to display them.
package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/ulpt/internal/common"
	"github.com/dmitrijs2005/ulpt/internal/server/config"
	"github.com/google/uuid"
)

// MaxImageSize bounds an uploaded image.
const MaxImageSize = 5 << 20

// FileStore persists an image and returns its public URL.
type FileStore interface {
	Save(ctx context.Context, data []byte) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DetectImage sniffs data and returns its content type and file extension.
// Anything that is not a supported image is a validation error.
func DetectImage(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", fmt.Errorf("%w: empty file", common.ErrorValidation)
	}
	if len(data) > MaxImageSize {
		return "", "", fmt.Errorf("%w: file larger than %d bytes", common.ErrorValidation, MaxImageSize)
	}
	contentType = http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported file type %s", common.ErrorValidation, contentType)
	}
	return contentType, ext, nil
}

// RandomKey builds a date-partitioned object name with the given extension.
func RandomKey(now time.Time, ext string) string {
	return fmt.Sprintf("images/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}

// New picks the backend named in cfg.
func New(ctx context.Context, cfg *config.Config) (FileStore, error) {
	switch cfg.StorageBackend {
	case config.StorageS3:
		return NewS3Store(ctx, cfg)
	case config.StorageLocal, "":
		return NewLocalStore(cfg.UploadDir)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}
