// Package gcs provides a BlobStore backed by Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"

	ledgerstorage "github.com/JakeFAU/canadian-music-ledger/internal/storage"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	// CacheControl is applied to every artifact. Empty leaves the bucket default.
	CacheControl string `mapstructure:"cache_control"`
}

type objectWriter interface {
	io.WriteCloser
}

// BlobStore writes artifacts to a configured GCS bucket.
type BlobStore struct {
	bucket       string
	cacheControl string
	newWriter    func(ctx context.Context, path, contentType, cacheControl string) objectWriter
	copyObject   func(ctx context.Context, src, dst string) error
	deleteObject func(ctx context.Context, path string) error
	newToken     func() string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	bucket := client.Bucket(cfg.Bucket)
	return &BlobStore{
		bucket:       cfg.Bucket,
		cacheControl: cfg.CacheControl,
		newWriter: func(ctx context.Context, path, contentType, cacheControl string) objectWriter {
			w := bucket.Object(path).NewWriter(ctx)
			w.ContentType = contentType
			w.CacheControl = cacheControl
			return w
		},
		copyObject: func(ctx context.Context, src, dst string) error {
			_, err := bucket.Object(dst).CopierFrom(bucket.Object(src)).Run(ctx)
			return err
		},
		deleteObject: func(ctx context.Context, path string) error {
			return bucket.Object(path).Delete(ctx)
		},
		newToken: uuid.NewString,
	}, nil
}

// PutObjects stages every object under a temporary name and only copies them
// into place once all uploads succeed, so a failed upload leaves every
// destination untouched. Copies run in input order; callers put the object
// read first last.
func (s *BlobStore) PutObjects(ctx context.Context, objects []ledgerstorage.Object) ([]string, error) {
	if err := ledgerstorage.ValidatePaths(objects); err != nil {
		return nil, err
	}
	suffix := ".staging-" + s.newToken()
	staged := make([]string, 0, len(objects))
	defer func() {
		// Cleanup runs even when ctx is done.
		cleanupCtx := context.WithoutCancel(ctx)
		for _, path := range staged {
			_ = s.deleteObject(cleanupCtx, path)
		}
	}()

	for _, obj := range objects {
		tmp := obj
		tmp.Path = obj.Path + suffix
		if err := s.putObject(ctx, tmp); err != nil {
			return nil, err
		}
		staged = append(staged, tmp.Path)
	}

	uris := make([]string, 0, len(objects))
	for i, obj := range objects {
		if err := s.copyObject(ctx, staged[i], obj.Path); err != nil {
			return nil, fmt.Errorf("promote object %s: %w", obj.Path, err)
		}
		uris = append(uris, fmt.Sprintf("gs://%s/%s", s.bucket, obj.Path))
	}
	return uris, nil
}

func (s *BlobStore) putObject(ctx context.Context, obj ledgerstorage.Object) error {
	writer := s.newWriter(ctx, obj.Path, obj.ContentType, s.cacheControl)
	if _, err := io.Copy(writer, bytes.NewReader(obj.Data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("copy object %s: %w (close writer: %v)", obj.Path, err, closeErr)
		}
		return fmt.Errorf("copy object %s: %w", obj.Path, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", obj.Path, err)
	}
	return nil
}
