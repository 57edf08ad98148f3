package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dealforge/governor/pkg/contracts"
)

// FileArchiver exports proof packs to the local filesystem. Mostly useful
// for development and air-gapped deployments.
type FileArchiver struct {
	dir string
}

// NewFileArchiver creates the base directory if needed.
func NewFileArchiver(dir string) (*FileArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir %s: %w", dir, err)
	}
	return &FileArchiver{dir: dir}, nil
}

// Archive writes the artifact unless the file already exists.
func (a *FileArchiver) Archive(_ context.Context, pack *contracts.ProofPackSnapshot, payload []byte) error {
	path := filepath.Join(a.dir, objectKey("", pack))
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create deal dir: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	return nil
}
