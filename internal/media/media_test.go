package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
)

type fakeObjects struct {
	puts    map[string][]byte
	types   map[string]string
	removed []string
	err     error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{puts: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeObjects) PutObject(_ context.Context, _ string, name string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, _ := io.ReadAll(r)
	f.puts[name] = data
	f.types[name] = opts.ContentType
	return minio.UploadInfo{Key: name, Size: int64(len(data))}, nil
}

func (f *fakeObjects) RemoveObject(_ context.Context, _ string, name string, _ minio.RemoveObjectOptions) error {
	f.removed = append(f.removed, name)
	return nil
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func newTestUploader(objects objectStore) *Uploader {
	u := newUploader(objects, "portal-media", "https://cdn.vsa.com.br/media/", 64)
	u.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return u
}

func TestUploadStoresImageUnderFolder(t *testing.T) {
	objects := newFakeObjects()
	asset, err := newTestUploader(objects).Upload(context.Background(), "portfolio", "logo.png", bytes.NewReader(pngHeader))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(asset.Key, "portfolio/2024/03/") || !strings.HasSuffix(asset.Key, ".png") {
		t.Fatalf("unexpected key %q", asset.Key)
	}
	if asset.URL != "https://cdn.vsa.com.br/media/"+asset.Key {
		t.Fatalf("unexpected url %q", asset.URL)
	}
	if objects.types[asset.Key] != "image/png" {
		t.Fatalf("unexpected stored content type %q", objects.types[asset.Key])
	}
}

func TestUploadRejects(t *testing.T) {
	tests := []struct {
		name   string
		folder string
		file   string
		data   []byte
		want   error
	}{
		{name: "unknown folder", folder: "../etc", file: "a.png", data: pngHeader, want: ErrInvalidFolder},
		{name: "empty", folder: "pages", file: "a.png", data: nil, want: ErrEmpty},
		{name: "too large", folder: "pages", file: "a.png", data: bytes.Repeat([]byte("a"), 65), want: ErrTooLarge},
		{name: "not an image", folder: "pages", file: "a.png", data: []byte("plain text"), want: ErrUnsupportedType},
		{name: "html pretending svg", folder: "pages", file: "a.svg", data: []byte("<html><body>hi</body></html>"), want: ErrUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			objects := newFakeObjects()
			_, err := newTestUploader(objects).Upload(context.Background(), tt.folder, tt.file, bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(objects.puts) != 0 {
				t.Fatal("rejected upload must not reach storage")
			}
		})
	}
}

func TestUploadAcceptsSVG(t *testing.T) {
	objects := newFakeObjects()
	asset, err := newTestUploader(objects).Upload(context.Background(), "services", "icon.svg", strings.NewReader(`<svg xmlns="x"/>`))
	if err != nil {
		t.Fatalf("upload svg: %v", err)
	}
	if asset.ContentType != "image/svg+xml" {
		t.Fatalf("unexpected content type %q", asset.ContentType)
	}
}

func TestRemoveRejectsTraversal(t *testing.T) {
	objects := newFakeObjects()
	u := newTestUploader(objects)
	if err := u.Remove(context.Background(), "../secret"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
	if err := u.Remove(context.Background(), "pages/2024/03/x.png"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(objects.removed) != 1 {
		t.Fatalf("expected one removal, got %v", objects.removed)
	}
}
