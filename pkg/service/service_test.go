package service

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordermgmt/pkg/events"
	"ordermgmt/pkg/logger"
	"ordermgmt/pkg/order"
	"ordermgmt/pkg/persistence"
	"ordermgmt/pkg/product"
)

type memBackend struct {
	mu     sync.Mutex
	docs   map[string][]byte
	writes int
	err    error
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string][]byte)}
}

func (b *memBackend) Write(_ context.Context, name string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.docs[name] = append([]byte(nil), data...)
	b.writes++
	return nil
}

func (b *memBackend) Read(_ context.Context, name string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[name]
	if !ok {
		return nil, persistence.ErrNotExist
	}
	return data, nil
}

type recordingPublisher struct {
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func setup(t *testing.T, opts Options) (*Service, *memBackend, *recordingPublisher) {
	t.Helper()
	backend := newMemBackend()
	pub := &recordingPublisher{}
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	return New(backend, pub, log, opts), backend, pub
}

func seedProducts(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	for _, p := range []product.Product{
		{ID: 1, Name: "Widget", Price: 10.50, Description: "w"},
		{ID: 2, Name: "Gadget", Price: 5.25, Description: "g"},
		{ID: 3, Name: "Gizmo", Price: 1.00, Description: "z"},
	} {
		_, err := svc.CreateProduct(ctx, p)
		require.NoError(t, err)
	}
}

func TestProducts(t *testing.T) {
	svc, backend, pub := setup(t, Options{})
	ctx := context.Background()
	seedProducts(t, svc)
	assert.Equal(t, 6, backend.writes)
	require.Len(t, pub.events, 3)
	assert.Equal(t, events.ProductCreated, pub.events[0].Type)

	t.Run("create duplicate", func(t *testing.T) {
		_, err := svc.CreateProduct(ctx, product.Product{ID: 1, Name: "Other"})
		assert.ErrorIs(t, err, product.ErrExists)
		p, _ := svc.GetProduct(ctx, 1)
		assert.Equal(t, "Widget", p.Name)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := svc.GetProduct(ctx, 99)
		assert.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("update id mismatch", func(t *testing.T) {
		_, err := svc.UpdateProduct(ctx, 1, product.Product{ID: 2, Name: "x"})
		assert.ErrorIs(t, err, product.ErrIDMismatch)
	})

	t.Run("update missing", func(t *testing.T) {
		_, err := svc.UpdateProduct(ctx, 99, product.Product{ID: 99})
		assert.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("update", func(t *testing.T) {
		p, err := svc.UpdateProduct(ctx, 1, product.Product{ID: 1, Name: "Widget XL", Price: 20, Description: "big"})
		require.NoError(t, err)
		assert.Equal(t, "Widget XL", p.Name)
		got, _ := svc.GetProduct(ctx, 1)
		assert.Equal(t, 20.0, got.Price)
		assert.Equal(t, events.ProductUpdated, pub.events[len(pub.events)-1].Type)
	})
}

func TestCreateOrder(t *testing.T) {
	svc, backend, _ := setup(t, Options{})
	ctx := context.Background()
	seedProducts(t, svc)

	o, err := svc.CreateOrder(ctx, 1, []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, 15.75, o.Total)
	assert.Equal(t, order.StatusPending, o.Status)
	require.Len(t, o.Products, 2)
	assert.Equal(t, "Widget", o.Products[0].Name)

	t.Run("duplicate id", func(t *testing.T) {
		_, err := svc.CreateOrder(ctx, 1, []int{3})
		assert.ErrorIs(t, err, order.ErrExists)
		orders := svc.ListOrders(ctx)
		require.Len(t, orders, 1)
		assert.Equal(t, 15.75, orders[0].Total)
	})

	t.Run("unknown product leaves no trace", func(t *testing.T) {
		writes := backend.writes
		_, err := svc.CreateOrder(ctx, 2, []int{1, 42})
		assert.ErrorIs(t, err, product.ErrNotFound)
		assert.Len(t, svc.ListOrders(ctx), 1)
		assert.Equal(t, writes, backend.writes)
	})

	t.Run("snapshot independent of later product update", func(t *testing.T) {
		_, err := svc.UpdateProduct(ctx, 1, product.Product{ID: 1, Name: "Widget", Price: 99})
		require.NoError(t, err)
		got, err := svc.GetOrder(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 10.50, got.Products[0].Price)
		assert.Equal(t, 15.75, got.Total)
	})
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("status only", func(t *testing.T) {
		svc, _, _ := setup(t, Options{})
		seedProducts(t, svc)
		_, err := svc.CreateOrder(ctx, 1, []int{1, 2})
		require.NoError(t, err)

		o, err := svc.UpdateOrder(ctx, 1, OrderUpdate{Status: "shipped"})
		require.NoError(t, err)
		assert.Equal(t, "shipped", o.Status)
		assert.Equal(t, 15.75, o.Total)
		assert.Len(t, o.Products, 2)
	})

	t.Run("products only", func(t *testing.T) {
		svc, _, _ := setup(t, Options{})
		seedProducts(t, svc)
		_, err := svc.CreateOrder(ctx, 1, []int{1, 2})
		require.NoError(t, err)
		_, err = svc.UpdateOrder(ctx, 1, OrderUpdate{Status: "paid"})
		require.NoError(t, err)

		o, err := svc.UpdateOrder(ctx, 1, OrderUpdate{ProductIDs: []int{3, 3}})
		require.NoError(t, err)
		assert.Equal(t, "paid", o.Status)
		assert.Equal(t, 2.0, o.Total)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc, _, _ := setup(t, Options{})
		seedProducts(t, svc)
		_, err := svc.CreateOrder(ctx, 1, []int{1})
		require.NoError(t, err)

		_, err = svc.UpdateOrder(ctx, 1, OrderUpdate{Status: "paid", ProductIDs: []int{7}})
		assert.ErrorIs(t, err, product.ErrNotFound)
		o, _ := svc.GetOrder(ctx, 1)
		assert.Equal(t, order.StatusPending, o.Status)
	})

	t.Run("missing order", func(t *testing.T) {
		svc, _, _ := setup(t, Options{})
		_, err := svc.UpdateOrder(ctx, 5, OrderUpdate{Status: "paid"})
		assert.ErrorIs(t, err, order.ErrNotFound)
	})

	t.Run("empty product list ignored by default", func(t *testing.T) {
		svc, _, _ := setup(t, Options{})
		seedProducts(t, svc)
		_, err := svc.CreateOrder(ctx, 1, []int{1})
		require.NoError(t, err)

		o, err := svc.UpdateOrder(ctx, 1, OrderUpdate{ProductIDs: []int{}})
		require.NoError(t, err)
		assert.Len(t, o.Products, 1)
		assert.Equal(t, 10.50, o.Total)
	})

	t.Run("empty product list clears when enabled", func(t *testing.T) {
		svc, _, _ := setup(t, Options{ClearOnEmptyProducts: true})
		seedProducts(t, svc)
		_, err := svc.CreateOrder(ctx, 1, []int{1})
		require.NoError(t, err)

		o, err := svc.UpdateOrder(ctx, 1, OrderUpdate{ProductIDs: []int{}})
		require.NoError(t, err)
		assert.Empty(t, o.Products)
		assert.Equal(t, 0.0, o.Total)

		o, err = svc.UpdateOrder(ctx, 1, OrderUpdate{Status: "cancelled"})
		require.NoError(t, err)
		assert.Empty(t, o.Products)
	})
}

func TestDeleteOrder(t *testing.T) {
	svc, _, pub := setup(t, Options{})
	ctx := context.Background()
	seedProducts(t, svc)
	for _, id := range []int{1, 2, 3} {
		_, err := svc.CreateOrder(ctx, id, []int{1})
		require.NoError(t, err)
	}

	require.NoError(t, svc.DeleteOrder(ctx, 2))
	_, err := svc.GetOrder(ctx, 2)
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Len(t, svc.ListOrders(ctx), 2)
	assert.Equal(t, events.OrderDeleted, pub.events[len(pub.events)-1].Type)

	assert.ErrorIs(t, svc.DeleteOrder(ctx, 2), order.ErrNotFound)
}

func TestSaveFailureFailsRequest(t *testing.T) {
	svc, backend, pub := setup(t, Options{})
	ctx := context.Background()
	backend.err = assert.AnError

	_, err := svc.CreateProduct(ctx, product.Product{ID: 1})
	assert.ErrorIs(t, err, ErrPersist)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, pub.events)
}

func TestLoadRestoresState(t *testing.T) {
	svc, backend, _ := setup(t, Options{})
	ctx := context.Background()
	seedProducts(t, svc)
	_, err := svc.CreateOrder(ctx, 10, []int{2, 1})
	require.NoError(t, err)
	_, err = svc.UpdateOrder(ctx, 10, OrderUpdate{Status: "shipped"})
	require.NoError(t, err)

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	restored := New(backend, nil, log, Options{})
	require.NoError(t, restored.Load(ctx))

	products, orders := restored.Stats()
	assert.Equal(t, 3, products)
	assert.Equal(t, 1, orders)
	assert.Equal(t, svc.ListOrders(ctx), restored.ListOrders(ctx))
}
