// Package fileloader reads seed catalogs from YAML files.
package fileloader

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/academy/internal/config"
)

var _ config.SeedLoader = (*FileLoader)(nil)

// FileLoader loads a seed catalog from a file on disk.
type FileLoader struct {
	path string
}

// NewFileLoader creates a FileLoader for the file at path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

// Load reads and parses the file. Unknown keys are rejected so typos in a
// seed file do not pass silently.
func (l *FileLoader) Load(ctx context.Context) (*config.Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var seed config.Seed
	if err := dec.Decode(&seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", l.path, err)
	}
	return &seed, nil
}
