package repository

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"MandiCast/internal/domain/models"
	domrepo "MandiCast/internal/domain/repository"
	domsvc "MandiCast/internal/domain/service"
)

// ModelDecoder turns a persisted model file back into a PriceModel.
type ModelDecoder func(r io.Reader) (domsvc.PriceModel, error)

// FileModelStore keeps one file per registry key under dir.
type FileModelStore struct {
	dir    string
	decode ModelDecoder
}

func NewFileModelStore(dir string, decode ModelDecoder) *FileModelStore {
	return &FileModelStore{dir: dir, decode: decode}
}

// Path returns <dir>/<key>.json.
func (s *FileModelStore) Path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Load returns models.ErrModelAbsent when no file exists for key.
func (s *FileModelStore) Load(key string) (domsvc.PriceModel, error) {
	f, err := os.Open(s.Path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("model %s: %w", key, models.ErrModelAbsent)
		}
		return nil, fmt.Errorf("open model %s: %w", key, err)
	}
	defer f.Close()

	m, err := s.decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode model %s: %w", key, err)
	}
	return m, nil
}

// Save writes to a temp file in dir and renames it over the target, so
// readers never observe a partial model.
func (s *FileModelStore) Save(key string, m domsvc.PersistentModel) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Save(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write model %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close model %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), s.Path(key)); err != nil {
		return fmt.Errorf("rename model %s: %w", key, err)
	}
	return nil
}

var _ domrepo.ModelStore = (*FileModelStore)(nil)
