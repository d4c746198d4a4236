// Package media stores uploaded images in S3-compatible object storage.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	log "github.com/sirupsen/logrus"
)

var (
	ErrTooLarge        = errors.New("file exceeds the upload limit")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrInvalidFolder   = errors.New("invalid media folder")
	ErrEmpty           = errors.New("empty file")
)

// Folders groups uploads by what they illustrate.
var Folders = []string{"services", "portfolio", "pages", "sections"}

var extensions = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

type objectStore interface {
	PutObject(ctx context.Context, bucket, name string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, name string, opts minio.RemoveObjectOptions) error
}

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
	MaxBytes  int64
}

// Asset describes a stored upload.
type Asset struct {
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

type Uploader struct {
	objects   objectStore
	bucket    string
	publicURL string
	maxBytes  int64
	now       func() time.Time
}

// NewUploader connects to the object store and creates the bucket when it is missing.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.WithField("bucket", cfg.Bucket).Info("media: bucket created")
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	return newUploader(client, cfg.Bucket, publicURL, cfg.MaxBytes), nil
}

func newUploader(objects objectStore, bucket, publicURL string, maxBytes int64) *Uploader {
	return &Uploader{
		objects:   objects,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func validFolder(folder string) bool {
	for _, f := range Folders {
		if f == folder {
			return true
		}
	}
	return false
}

// Upload sniffs the content type from the bytes themselves, so the declared
// type of the multipart part is ignored. SVG is the one exception, since
// sniffing reports it as text.
func (u *Uploader) Upload(ctx context.Context, folder, filename string, r io.Reader) (Asset, error) {
	if !validFolder(folder) {
		return Asset{}, ErrInvalidFolder
	}

	limit := u.maxBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return Asset{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Asset{}, ErrEmpty
	}
	if int64(len(data)) > limit {
		return Asset{}, ErrTooLarge
	}

	contentType := detectContentType(filename, data)
	ext, ok := extensions[contentType]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %s", ErrUnsupportedType, contentType)
	}

	now := u.now().UTC()
	key := path.Join(folder, now.Format("2006/01"), uuid.NewString()+ext)
	_, err = u.objects.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return Asset{}, fmt.Errorf("store %s: %w", key, err)
	}

	return Asset{
		Key:         key,
		URL:         u.publicURL + "/" + key,
		ContentType: contentType,
		Size:        int64(len(data)),
		UploadedAt:  now,
	}, nil
}

func (u *Uploader) Remove(ctx context.Context, key string) error {
	if key == "" || strings.Contains(key, "..") {
		return ErrInvalidFolder
	}
	if err := u.objects.RemoveObject(ctx, u.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func detectContentType(filename string, data []byte) string {
	contentType := http.DetectContentType(data)
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = contentType[:i]
	}
	if strings.EqualFold(path.Ext(filename), ".svg") && bytes.Contains(data, []byte("<svg")) {
		return "image/svg+xml"
	}
	return contentType
}
