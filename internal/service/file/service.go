package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
	_ "image/gif"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/expense"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/domain/workspace"
	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/storage"
	"golang.org/x/image/draw"
)

const (
	MaxLogoSize   = 2 << 20
	logoMaxWidth  = 600
	logoMaxHeight = 200

	// Receipt photos above this size are re-encoded as JPEG
	receiptCompressAbove = 1 << 20
	receiptTargetSize    = 500 * 1024
)

var logoTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

// StoredFile describes an object written to storage
type StoredFile struct {
	Key         string
	FileName    string
	ContentType string
	Size        int64
}

type FileService interface {
	// UploadLogo validates, downsizes and stores a workspace logo as PNG
	UploadLogo(ctx context.Context, workspaceID string, file io.Reader, filename string) (string, error)

	// UploadReceipt stores an expense attachment, compressing large photos
	UploadReceipt(ctx context.Context, workspaceID, expenseID string, file io.Reader, filename string) (StoredFile, error)

	// StorePDF writes a rendered document under key, replacing any previous render
	StorePDF(ctx context.Context, key string, data []byte) error

	// Generic operations
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	DeleteFile(ctx context.Context, path string) error
	GetFileURL(ctx context.Context, path string, expiry time.Duration) (string, error)
}

type fileServiceImpl struct {
	storage storage.FileStorage
}

func NewFileService(storage storage.FileStorage) FileService {
	return &fileServiceImpl{
		storage: storage,
	}
}

// UploadLogo implements FileService.
func (s *fileServiceImpl) UploadLogo(ctx context.Context, workspaceID string, file io.Reader, filename string) (string, error) {
	buffer, err := io.ReadAll(io.LimitReader(file, MaxLogoSize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read logo: %w", err)
	}
	if len(buffer) > MaxLogoSize {
		return "", workspace.ErrLogoTooLarge
	}
	if !logoTypes[http.DetectContentType(buffer)] {
		return "", workspace.ErrInvalidLogoType
	}

	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return "", workspace.ErrInvalidLogoType
	}
	img = fitWithin(img, logoMaxWidth, logoMaxHeight)

	out := new(bytes.Buffer)
	if err := png.Encode(out, img); err != nil {
		return "", fmt.Errorf("failed to encode logo: %w", err)
	}

	key := storage.LogoKey(workspaceID, ".png")
	uploadedPath, err := s.storage.Upload(ctx, out, key, "image/png")
	if err != nil {
		return "", fmt.Errorf("failed to upload logo: %w", err)
	}
	return uploadedPath, nil
}

// UploadReceipt implements FileService.
func (s *fileServiceImpl) UploadReceipt(ctx context.Context, workspaceID, expenseID string, file io.Reader, filename string) (StoredFile, error) {
	buffer, err := io.ReadAll(io.LimitReader(file, expense.MaxAttachmentSize+1))
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to read attachment: %w", err)
	}
	if len(buffer) > expense.MaxAttachmentSize {
		return StoredFile{}, expense.ErrAttachmentTooLarge
	}

	contentType := http.DetectContentType(buffer)
	ext, ok := expense.AllowedAttachmentTypes[contentType]
	if !ok {
		return StoredFile{}, expense.ErrAttachmentType
	}

	// Photos straight from a phone camera are often several MB
	if (contentType == "image/jpeg" || contentType == "image/png") && len(buffer) > receiptCompressAbove {
		compressed, err := compressImage(buffer, receiptTargetSize)
		if err == nil && len(compressed) < len(buffer) {
			buffer, contentType, ext = compressed, "image/jpeg", ".jpg"
		}
	}

	key := storage.AttachmentKey(workspaceID, expenseID, ext)
	uploadedPath, err := s.storage.Upload(ctx, bytes.NewReader(buffer), key, contentType)
	if err != nil {
		return StoredFile{}, fmt.Errorf("failed to upload attachment: %w", err)
	}

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "." || name == "/" || name == "" {
		name = filepath.Base(key)
	}

	return StoredFile{
		Key:         uploadedPath,
		FileName:    name,
		ContentType: contentType,
		Size:        int64(len(buffer)),
	}, nil
}

// StorePDF implements FileService.
func (s *fileServiceImpl) StorePDF(ctx context.Context, key string, data []byte) error {
	if _, err := s.storage.Upload(ctx, bytes.NewReader(data), key, "application/pdf"); err != nil {
		return fmt.Errorf("failed to upload pdf: %w", err)
	}
	return nil
}

// Open implements FileService.
func (s *fileServiceImpl) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	return s.storage.Download(ctx, path)
}

// DeleteFile deletes a file; a missing file is not an error
func (s *fileServiceImpl) DeleteFile(ctx context.Context, path string) error {
	if err := s.storage.Delete(ctx, path); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	return nil
}

// GetFileURL generates URL to access file
func (s *fileServiceImpl) GetFileURL(ctx context.Context, path string, expiry time.Duration) (string, error) {
	return s.storage.GetURL(ctx, path, expiry)
}

// ==================== HELPER FUNCTIONS ====================

// compressImage re-encodes an image as JPEG, lowering quality and then size
// until it fits maxSize
func compressImage(buffer []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(buffer))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var compressed []byte
	for quality := 85; quality >= 50; quality -= 5 {
		buf := new(bytes.Buffer)
		if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("failed to encode JPEG: %w", err)
		}
		compressed = buf.Bytes()
		if len(compressed) <= maxSize {
			return compressed, nil
		}
	}

	// Still too large at the lowest quality, scale down by area
	bounds := img.Bounds()
	ratio := math.Sqrt(float64(maxSize) / float64(len(compressed)))
	width := max(int(float64(bounds.Dx())*ratio), 800)
	height := max(int(float64(bounds.Dy())*ratio), 600)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resizeImage(img, width, height), &jpeg.Options{Quality: 70}); err != nil {
		return nil, fmt.Errorf("failed to encode resized image: %w", err)
	}
	return buf.Bytes(), nil
}

// fitWithin scales img down, keeping its aspect ratio, so it fits in w x h
func fitWithin(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() <= w && bounds.Dy() <= h {
		return img
	}
	scale := math.Min(float64(w)/float64(bounds.Dx()), float64(h)/float64(bounds.Dy()))
	return resizeImage(img, max(int(float64(bounds.Dx())*scale), 1), max(int(float64(bounds.Dy())*scale), 1))
}

// resizeImage resizes an image to the specified dimensions using high-quality interpolation
func resizeImage(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	// Use CatmullRom for high-quality downscaling
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	return dst
}
