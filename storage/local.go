package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Local stores files under dir and serves them below baseURL.
type Local struct {
	dir     string
	baseURL string
	folder  string
}

func NewLocal(dir, baseURL, folder string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), folder: folder}, nil
}

func (l *Local) Name() string { return "local" }

func (l *Local) Upload(_ context.Context, r io.Reader, opts UploadOptions) (*File, error) {
	folder := l.folder
	if opts.Folder != "" {
		folder = path.Join(folder, opts.Folder)
	}
	publicID := path.Join(folder, uuid.NewString()+extension(opts.Filename))

	full, err := l.resolve(publicID)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	out, err := os.Create(full)
	if err != nil {
		return nil, err
	}
	defer out.Close()

	n, err := io.Copy(out, r)
	if err != nil {
		_ = os.Remove(full)
		return nil, err
	}

	info, err := out.Stat()
	if err != nil {
		return nil, err
	}
	return &File{
		PublicID:     publicID,
		URL:          l.baseURL + "/" + publicID,
		Format:       strings.TrimPrefix(extension(opts.Filename), "."),
		ResourceType: "raw",
		Bytes:        n,
		OriginalName: opts.Filename,
		MimeType:     opts.ContentType,
		CreatedAt:    info.ModTime(),
	}, nil
}

func (l *Local) Delete(_ context.Context, publicID string) error {
	full, err := l.resolve(publicID)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (l *Local) Info(_ context.Context, publicID string) (*File, error) {
	full, err := l.resolve(publicID)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &File{
		PublicID:     publicID,
		URL:          l.baseURL + "/" + publicID,
		Format:       strings.TrimPrefix(extension(publicID), "."),
		ResourceType: "raw",
		Bytes:        info.Size(),
		CreatedAt:    info.ModTime(),
	}, nil
}

func (l *Local) Sign() (*SignedUpload, error) {
	return nil, ErrUnsupported
}

// resolve maps a public id to a path inside dir, rejecting anything that escapes it.
func (l *Local) resolve(publicID string) (string, error) {
	clean := path.Clean("/" + publicID)
	if clean == "/" || strings.Contains(publicID, "..") {
		return "", ErrNotFound
	}
	return filepath.Join(l.dir, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}
