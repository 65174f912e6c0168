package storage

import (
	"context"
	"path"
	"path/filepath"

	"github.com/dmitrijs2005/ulpt/internal/filex"
	"github.com/google/uuid"
)

// URLPrefix is where the REST server exposes LocalStore files.
const URLPrefix = "/uploads"

// LocalStore writes images under a directory served at URLPrefix.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &LocalStore{dir: abs}, nil
}

// Dir returns the absolute directory images are written to.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Save(ctx context.Context, data []byte) (string, error) {
	_, ext, err := DetectImage(data)
	if err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	if err := filex.WriteFileAtomic(filepath.Join(s.dir, name), data, 0o640); err != nil {
		return "", err
	}

	return path.Join(URLPrefix, name), nil
}
