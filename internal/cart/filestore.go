package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"storefront-service/internal/models"
)

// FilePersister stores the cart as a single JSON document on local disk.
// Writes go to a temp file first and are renamed into place, so a reader
// observing the file between two rapid mutations sees either the pre- or
// post-state of each, never a partial write.
type FilePersister struct {
	path string
}

// NewFilePersister creates a persister writing to the given path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Save writes the full cart collection, replacing any previous document.
func (p *FilePersister) Save(ctx context.Context, items []models.CartItem) error {
	if items == nil {
		items = []models.CartItem{}
	}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write cart file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		return fmt.Errorf("failed to replace cart file: %w", err)
	}
	return nil
}

// Load reads the stored cart. A missing file yields an empty cart.
func (p *FilePersister) Load(ctx context.Context) ([]models.CartItem, error) {
	data, err := os.ReadFile(p.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart file: %w", err)
	}

	var items []models.CartItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode cart file %s: %w", filepath.Base(p.path), err)
	}
	return items, nil
}

// Delete erases the stored cart; no-op if nothing is stored.
func (p *FilePersister) Delete(ctx context.Context) error {
	err := os.Remove(p.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
