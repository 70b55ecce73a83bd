package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/admin"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type Cloudinary struct {
	cld    *cloudinary.Cloudinary
	secret string
	folder string
}

func NewCloudinary(cloudinaryURL, folder string) (*Cloudinary, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	parsedURL, err := url.Parse(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Cloudinary URL: %w", err)
	}
	secret, _ := parsedURL.User.Password()
	return &Cloudinary{cld: cld, secret: secret, folder: folder}, nil
}

func (c *Cloudinary) Name() string { return "cloudinary" }

func (c *Cloudinary) folderFor(opts UploadOptions) string {
	if opts.Folder == "" {
		return c.folder
	}
	return c.folder + "/" + opts.Folder
}

func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, opts UploadOptions) (*File, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	res, err := c.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		Folder:       c.folderFor(opts),
		ResourceType: "auto",
	})
	if err != nil {
		return nil, err
	}
	if res.Error.Message != "" {
		return nil, errors.New(res.Error.Message)
	}
	return &File{
		PublicID:     res.PublicID,
		URL:          res.SecureURL,
		Format:       res.Format,
		ResourceType: res.ResourceType,
		Bytes:        int64(res.Bytes),
		OriginalName: opts.Filename,
		MimeType:     opts.ContentType,
		CreatedAt:    res.CreatedAt,
	}, nil
}

func (c *Cloudinary) Delete(ctx context.Context, publicID string) error {
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return err
	}
	switch res.Result {
	case "ok":
		return nil
	case "not found":
		return ErrNotFound
	default:
		return fmt.Errorf("cloudinary destroy returned %q", res.Result)
	}
}

func (c *Cloudinary) Info(ctx context.Context, publicID string) (*File, error) {
	res, err := c.cld.Admin.Asset(ctx, admin.AssetParams{PublicID: publicID})
	if err != nil {
		return nil, err
	}
	if res.Error.Message != "" {
		if strings.Contains(strings.ToLower(res.Error.Message), "not found") {
			return nil, ErrNotFound
		}
		return nil, errors.New(res.Error.Message)
	}
	return &File{
		PublicID:     res.PublicID,
		URL:          res.SecureURL,
		Format:       res.Format,
		ResourceType: res.ResourceType,
		Bytes:        int64(res.Bytes),
		CreatedAt:    res.CreatedAt,
	}, nil
}

// Sign issues a signed payload for direct browser uploads into the configured folder.
func (c *Cloudinary) Sign() (*SignedUpload, error) {
	paramsToSign, err := api.StructToParams(uploader.UploadParams{Folder: c.folder})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare signature params: %w", err)
	}
	timestamp := time.Now().Unix()
	paramsToSign.Set("timestamp", strconv.FormatInt(timestamp, 10))

	signature, err := api.SignParameters(paramsToSign, c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign upload params: %w", err)
	}
	return &SignedUpload{
		Signature: signature,
		Timestamp: timestamp,
		APIKey:    c.cld.Config.Cloud.APIKey,
		CloudName: c.cld.Config.Cloud.CloudName,
		Folder:    c.folder,
	}, nil
}
