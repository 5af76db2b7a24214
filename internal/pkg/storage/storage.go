package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/config"
)

var ErrNotFound = errors.New("file not found")

type FileStorage interface {
	// Upload uploads a file and returns the file path/key
	Upload(ctx context.Context, file io.Reader, path string, contentType string) (string, error)

	// Download retrieves a file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// GetURL generates a presigned/public URL
	GetURL(ctx context.Context, path string, expiry time.Duration) (string, error)

	// Exists checks if file exists
	Exists(ctx context.Context, path string) (bool, error)
}

// New picks the driver named by cfg.Type
func New(ctx context.Context, cfg config.StorageConfig) (FileStorage, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.BasePath, cfg.BaseURL)
	case "s3":
		return NewS3Storage(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}

// Keys are laid out per workspace so a tenant's files share a prefix

func LogoKey(workspaceID, ext string) string {
	return path.Join("workspaces", workspaceID, "logo", uuid.NewString()+strings.ToLower(ext))
}

func AttachmentKey(workspaceID, expenseID, ext string) string {
	return path.Join("workspaces", workspaceID, "expenses", expenseID, uuid.NewString()+strings.ToLower(ext))
}

// DocumentPDFKey is overwritten on every render of the same document number
func DocumentPDFKey(kind, workspaceID, number string) string {
	return path.Join(kind, workspaceID, number+".pdf")
}
