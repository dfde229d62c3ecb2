package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hoopstats/propcast/internal/models"
)

// File stores one JSON document per category under a directory.
type File struct {
	dir string
}

// NewFile creates a file store rooted at dir.
func NewFile(dir string) *File {
	return &File{dir: dir}
}

// Path returns where the category's artifact lives.
func (f *File) Path(c models.Category) string {
	return filepath.Join(f.dir, Name(c)+".json")
}

func (f *File) Save(ctx context.Context, m *Model) error {
	if err := validate(m); err != nil {
		return err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", f.dir, err)
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", Name(m.Category), err)
	}

	tmp := f.Path(m.Category) + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.Path(m.Category))
}

func (f *File) Load(ctx context.Context, c models.Category) (*Model, error) {
	payload, err := os.ReadFile(f.Path(c))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", models.ErrModelUnavailable, Name(c))
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", Name(c), err)
	}
	var m Model
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", Name(c), err)
	}
	if err := validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
