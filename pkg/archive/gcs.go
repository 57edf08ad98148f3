//go:build gcp

package archive

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/storage"

	"github.com/dealforge/governor/pkg/contracts"
)

// GCSArchiver exports proof packs to a Google Cloud Storage bucket.
type GCSArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiver creates a GCS-backed archiver using application default
// credentials.
func NewGCSArchiver(ctx context.Context, bucket, prefix string) (*GCSArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket, prefix: prefix}, nil
}

// Archive uploads the artifact unless the object already exists.
func (a *GCSArchiver) Archive(ctx context.Context, pack *contracts.ProofPackSnapshot, payload []byte) error {
	obj := a.client.Bucket(a.bucket).Object(objectKey(a.prefix, pack))

	if _, err := obj.Attrs(ctx); err == nil {
		return nil
	} else if !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs attrs: %w", err)
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs close: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

func newGCSFromEnv(ctx context.Context) (Archiver, error) {
	bucket := os.Getenv("PROOFPACK_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("PROOFPACK_GCS_BUCKET is required for GCS archival")
	}
	return NewGCSArchiver(ctx, bucket, os.Getenv("PROOFPACK_GCS_PREFIX"))
}
