// Package redis stores persistence artifacts as plain Redis string keys.
package redis

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"ordermgmt/pkg/persistence"
)

// Backend stores each artifact under prefix+name without expiry.
type Backend struct {
	client *redis.Client
	prefix string
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Backend {
	return &Backend{client: client, prefix: prefix}
}

// Open creates a client from opts and verifies the connection.
func Open(ctx context.Context, opts *redis.Options, prefix string) (*Backend, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return New(client, prefix), nil
}

// Write replaces the artifact value.
func (b *Backend) Write(ctx context.Context, name string, data []byte) error {
	return errors.Wrapf(b.client.Set(ctx, b.prefix+name, data, 0).Err(), "set %s", b.prefix+name)
}

// Read returns the artifact value or persistence.ErrNotExist.
func (b *Backend) Read(ctx context.Context, name string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.prefix+name).Bytes()
	if err == redis.Nil {
		return nil, persistence.ErrNotExist
	}
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", b.prefix+name)
	}
	return data, nil
}

// Close closes the client.
func (b *Backend) Close() error {
	return b.client.Close()
}
