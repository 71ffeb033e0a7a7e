// Package file stores persistence artifacts as JSON files on local disk.
package file

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"ordermgmt/pkg/persistence"
)

// Backend maps artifact names to files inside a directory.
type Backend struct {
	dir   string
	files map[string]string
}

// New creates a Backend rooted at dir. files maps artifact names to file
// names; unmapped artifacts are stored as <name>.json.
func New(dir string, files map[string]string) *Backend {
	return &Backend{dir: dir, files: files}
}

// Path returns the file path used for the named artifact.
func (b *Backend) Path(name string) string {
	if f, ok := b.files[name]; ok && f != "" {
		return filepath.Join(b.dir, f)
	}
	return filepath.Join(b.dir, name+".json")
}

// Write replaces the artifact file. The data goes to a temporary file in the
// same directory which is then renamed over the target.
func (b *Backend) Write(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	path := b.Path(name)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "write %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "sync %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "rename to %s", path)
}

// Read returns the artifact contents or persistence.ErrNotExist.
func (b *Backend) Read(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(b.Path(name))
	if os.IsNotExist(err) {
		return nil, persistence.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", b.Path(name))
	}
	return data, nil
}
