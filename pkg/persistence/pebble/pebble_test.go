package pebble

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordermgmt/pkg/persistence"
)

func TestBackend(t *testing.T) {
	fs := vfs.NewMem()
	ctx := context.Background()

	b, err := Open("db", &pebble.Options{FS: fs})
	require.NoError(t, err)

	_, err = b.Read(ctx, "orders")
	assert.ErrorIs(t, err, persistence.ErrNotExist)

	require.NoError(t, b.Write(ctx, "orders", []byte(`[{"id":1}]`)))
	require.NoError(t, b.Write(ctx, "orders", []byte(`[{"id":2}]`)))
	require.NoError(t, b.Close())

	// reopen to check the value survived
	b, err = Open("db", &pebble.Options{FS: fs})
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Read(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2}]`, string(got))
}
