// Package pebble stores persistence artifacts in an embedded pebble database.
package pebble

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"

	"ordermgmt/pkg/persistence"
)

// Backend keeps one key per artifact.
type Backend struct {
	db *pebble.DB
}

// Open opens or creates the database in dir. opts may be nil.
func Open(dir string, opts *pebble.Options) (*Backend, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open pebble at %s", dir)
	}
	return &Backend{db: db}, nil
}

// Write replaces the artifact with a synced write.
func (b *Backend) Write(_ context.Context, name string, data []byte) error {
	return errors.Wrapf(b.db.Set([]byte(name), data, pebble.Sync), "set %s", name)
}

// Read returns a copy of the artifact value or persistence.ErrNotExist.
func (b *Backend) Read(_ context.Context, name string) ([]byte, error) {
	val, closer, err := b.db.Get([]byte(name))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, persistence.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", name)
	}
	defer closer.Close()

	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}
