package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// FSStore keeps attachments on the local filesystem. References are
// paths under /attachments/, served by the HTTP server.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create attachment directory: %w", err)
	}
	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Save(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Prefix with a uuid so colliding upload names never overwrite.
	name := uuid.New().String() + "_" + filepath.Base(filename)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("write attachment: %w", err)
	}
	return "/attachments/" + name, nil
}

// Dir returns the directory attachments are written to, for the HTTP
// server's static file route.
func (s *FSStore) Dir() string {
	return s.dir
}
