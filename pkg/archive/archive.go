// Package archive exports immutable proof-pack artifacts to external
// storage. Exports are keyed by deal and pack ID and are idempotent: a key
// that already exists is never rewritten, matching the write-once nature of
// the artifact itself.
package archive

import (
	"context"
	"fmt"
	"os"

	"github.com/dealforge/governor/pkg/contracts"
)

// objectKey places every artifact under its deal.
func objectKey(prefix string, pack *contracts.ProofPackSnapshot) string {
	return fmt.Sprintf("%s%s/%s.json", prefix, pack.DealID, pack.PackID)
}

// Backend identifies an archival destination.
type Backend string

const (
	BackendOff Backend = "off"
	BackendFS  Backend = "fs"
	BackendS3  Backend = "s3"
	BackendGCS Backend = "gcs"
)

// Archiver is the export surface consumed by the snapshot service. It
// mirrors proofpack.Archiver; the indirection keeps this package free of an
// import cycle.
type Archiver interface {
	Archive(ctx context.Context, pack *contracts.ProofPackSnapshot, payload []byte) error
}

// NewFromEnv builds the configured archiver, or nil when archival is off.
//
// Environment variables:
//   - PROOFPACK_ARCHIVE: "off" (default), "fs", "s3", or "gcs"
//   - PROOFPACK_ARCHIVE_DIR: base directory for the fs backend
//
// For S3:
//   - PROOFPACK_S3_BUCKET (required)
//   - PROOFPACK_S3_REGION or AWS_REGION
//   - PROOFPACK_S3_ENDPOINT (optional, for MinIO/LocalStack)
//   - PROOFPACK_S3_PREFIX (optional)
//
// For GCS:
//   - PROOFPACK_GCS_BUCKET (required)
//   - PROOFPACK_GCS_PREFIX (optional)
func NewFromEnv(ctx context.Context) (Archiver, error) {
	backend := Backend(os.Getenv("PROOFPACK_ARCHIVE"))
	if backend == "" {
		backend = BackendOff
	}

	switch backend {
	case BackendOff:
		return nil, nil
	case BackendFS:
		dir := os.Getenv("PROOFPACK_ARCHIVE_DIR")
		if dir == "" {
			dir = "data/proofpacks"
		}
		return NewFileArchiver(dir)
	case BackendS3:
		return newS3FromEnv(ctx)
	case BackendGCS:
		return newGCSFromEnv(ctx)
	default:
		return nil, fmt.Errorf("unsupported proof pack archive backend: %s", backend)
	}
}

func newS3FromEnv(ctx context.Context) (Archiver, error) {
	bucket := os.Getenv("PROOFPACK_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("PROOFPACK_S3_BUCKET is required for S3 archival")
	}
	region := os.Getenv("PROOFPACK_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}
	return NewS3Archiver(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("PROOFPACK_S3_ENDPOINT"),
		Prefix:   os.Getenv("PROOFPACK_S3_PREFIX"),
	})
}
