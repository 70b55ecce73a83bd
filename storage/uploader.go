// Package storage keeps uploaded files either in Cloudinary or on local disk.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	config "github.com/anjiri1684/campus_manager/configs"
	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrNotFound         = errors.New("file not found")
	ErrUnsupported      = errors.New("operation not supported by this storage backend")
	ErrFileTooLarge     = errors.New("file exceeds the maximum allowed size")
	ErrFileTypeRejected = errors.New("file type not allowed")
)

type File struct {
	PublicID     string    `json:"publicId"`
	URL          string    `json:"url"`
	Format       string    `json:"format"`
	ResourceType string    `json:"resourceType"`
	Bytes        int64     `json:"bytes"`
	OriginalName string    `json:"originalName,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type UploadOptions struct {
	Filename    string
	ContentType string
	Folder      string
}

// SignedUpload is the payload a browser needs to upload straight to the media store.
type SignedUpload struct {
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	APIKey    string `json:"apiKey"`
	CloudName string `json:"cloudName"`
	Folder    string `json:"folder"`
}

type Uploader interface {
	Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*File, error)
	Delete(ctx context.Context, publicID string) error
	Info(ctx context.Context, publicID string) (*File, error)
	Sign() (*SignedUpload, error)
	Name() string
}

// New returns the Cloudinary uploader when CLOUDINARY_URL is set and local disk otherwise.
func New(cfg config.StorageConfig) (Uploader, error) {
	if cfg.CloudinaryURL != "" {
		return NewCloudinary(cfg.CloudinaryURL, cfg.Folder)
	}
	return NewLocal(cfg.LocalDir, cfg.PublicBaseURL, cfg.Folder)
}

type Kind int

const (
	KindAny Kind = iota
	KindImage
	KindDocument
)

var allowedTypes = map[string]Kind{
	"image/jpeg":         KindImage,
	"image/png":          KindImage,
	"image/gif":          KindImage,
	"application/pdf":    KindDocument,
	"application/msword": KindDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   KindDocument,
	"application/vnd.ms-excel":                                                  KindDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         KindDocument,
	"application/vnd.ms-powerpoint":                                             KindDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": KindDocument,
}

// Validate sniffs the content of an uploaded part and checks it against the allowed
// types and the size limit. It returns the detected mime type.
func Validate(fh *multipart.FileHeader, want Kind, maxSize int64) (string, error) {
	if maxSize > 0 && fh.Size > maxSize {
		return "", fmt.Errorf("%w: %s is %d bytes", ErrFileTooLarge, fh.Filename, fh.Size)
	}
	f, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", err
	}
	return checkType(mt, want)
}

func checkType(mt *mimetype.MIME, want Kind) (string, error) {
	for m := mt; m != nil; m = m.Parent() {
		kind, ok := allowedTypes[m.String()]
		if !ok {
			continue
		}
		if want != KindAny && kind != want {
			break
		}
		return m.String(), nil
	}
	return "", fmt.Errorf("%w: %s", ErrFileTypeRejected, mt.String())
}

func extension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
