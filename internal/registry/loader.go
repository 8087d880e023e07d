// Package registry discovers model bundles on disk and builds the catalog
// served to clients and used to back sessions.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"litertd/internal/common/fsutil"
	"litertd/pkg/types"
)

// Bundle extensions the runtime can load.
const (
	ExtTask     = ".task"
	ExtLitertLM = ".litertlm"
)

// LoadDir scans a directory for model bundles (*.task, *.litertlm) and builds
// the catalog from filenames. ID is the filename without extension; Path is
// the absolute file path; Format records the bundle extension.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		format, ok := bundleFormat(name)
		if !ok {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		models = append(models, types.Model{
			ID:     id,
			Name:   id,
			Path:   filepath.Join(abs, name),
			Format: format,
		})
	}
	return models, nil
}

// bundleFormat reports the bundle format for a filename, or false for files
// the runtime cannot load.
func bundleFormat(name string) (string, bool) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtTask:
		return "task", true
	case ExtLitertLM:
		return "litertlm", true
	default:
		return "", false
	}
}
