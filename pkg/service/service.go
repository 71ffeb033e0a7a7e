// Package service owns the product index, the order list and their
// persistence, and exposes the operations used by the HTTP layer.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"ordermgmt/pkg/events"
	"ordermgmt/pkg/logger"
	"ordermgmt/pkg/order"
	"ordermgmt/pkg/order/memory"
	"ordermgmt/pkg/otel"
	"ordermgmt/pkg/persistence"
	"ordermgmt/pkg/product"
	"ordermgmt/pkg/product/bst"
)

// ErrPersist wraps failures to flush state after a mutation.
var ErrPersist = errors.New("persist state")

// Options tune service behavior.
type Options struct {
	// ClearOnEmptyProducts makes an explicit empty product id list in
	// UpdateOrder clear the order's products instead of being ignored.
	ClearOnEmptyProducts bool
}

// OrderUpdate carries the optional fields of an order update. A nil
// ProductIDs means the products are left unchanged.
type OrderUpdate struct {
	Status     string
	ProductIDs []int
}

// Service serializes every {mutate; save} sequence behind one lock.
type Service struct {
	mu        sync.RWMutex
	products  *bst.Tree
	orders    *memory.Repository
	gateway   *persistence.Gateway
	publisher events.Publisher
	log       *logger.Logger
	opts      Options
	now       func() time.Time
}

// New builds a Service with empty stores persisted through backend.
func New(backend persistence.Backend, publisher events.Publisher, log *logger.Logger, opts Options) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	products := bst.New()
	orders := memory.New()
	return &Service{
		products:  products,
		orders:    orders,
		gateway:   persistence.New(backend, products, orders, log),
		publisher: publisher,
		log:       log,
		opts:      opts,
		now:       time.Now,
	}
}

// Load restores persisted state. It is meant to run once before serving.
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gateway.Load(ctx)
}

// Stats reports the number of stored products and orders.
func (s *Service) Stats() (products, orders int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.products.Len(), s.orders.Len()
}

// CreateProduct stores a new product.
func (s *Service) CreateProduct(ctx context.Context, p product.Product) (product.Product, error) {
	ctx, span := otel.AddSpan(ctx, "service.createProduct", attribute.Int("product_id", p.ID))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products.Search(p.ID); ok {
		return product.Product{}, errors.Wrapf(product.ErrExists, "product %d", p.ID)
	}
	s.products.Insert(p)
	if err := s.save(ctx); err != nil {
		return product.Product{}, err
	}

	s.publish(ctx, events.ProductCreated, p.ID, p)
	return p, nil
}

// GetProduct returns the product with the given id.
func (s *Service) GetProduct(ctx context.Context, id int) (product.Product, error) {
	_, span := otel.AddSpan(ctx, "service.getProduct", attribute.Int("product_id", id))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products.Search(id)
	if !ok {
		return product.Product{}, errors.Wrapf(product.ErrNotFound, "product %d", id)
	}
	return p, nil
}

// UpdateProduct replaces the product stored under id. p.ID must equal id.
func (s *Service) UpdateProduct(ctx context.Context, id int, p product.Product) (product.Product, error) {
	ctx, span := otel.AddSpan(ctx, "service.updateProduct", attribute.Int("product_id", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.products.Update(id, p); err != nil {
		return product.Product{}, errors.Wrapf(err, "product %d", id)
	}
	if err := s.save(ctx); err != nil {
		return product.Product{}, err
	}

	s.publish(ctx, events.ProductUpdated, id, p)
	return p, nil
}

// CreateOrder creates an order from the current data of productIDs.
func (s *Service) CreateOrder(ctx context.Context, id int, productIDs []int) (order.Order, error) {
	ctx, span := otel.AddSpan(ctx, "service.createOrder", attribute.Int("order_id", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orders.Find(id); ok {
		return order.Order{}, errors.Wrapf(order.ErrExists, "order %d", id)
	}
	products, err := s.resolve(productIDs)
	if err != nil {
		return order.Order{}, err
	}
	o, err := s.orders.Create(id, products)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "order %d", id)
	}
	if err := s.save(ctx); err != nil {
		return order.Order{}, err
	}

	s.publish(ctx, events.OrderCreated, o.ID, o)
	return o, nil
}

// GetOrder returns the order with the given id.
func (s *Service) GetOrder(ctx context.Context, id int) (order.Order, error) {
	_, span := otel.AddSpan(ctx, "service.getOrder", attribute.Int("order_id", id))
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders.Find(id)
	if !ok {
		return order.Order{}, errors.Wrapf(order.ErrNotFound, "order %d", id)
	}
	return o, nil
}

// UpdateOrder changes the status and/or products of an order. Product ids
// are resolved before the order is looked up.
func (s *Service) UpdateOrder(ctx context.Context, id int, upd OrderUpdate) (order.Order, error) {
	ctx, span := otel.AddSpan(ctx, "service.updateOrder", attribute.Int("order_id", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	var products []product.Product
	switch {
	case len(upd.ProductIDs) > 0:
		var err error
		if products, err = s.resolve(upd.ProductIDs); err != nil {
			return order.Order{}, err
		}
	case upd.ProductIDs != nil && s.opts.ClearOnEmptyProducts:
		products = []product.Product{}
	}

	o, err := s.orders.Update(id, upd.Status, products)
	if err != nil {
		return order.Order{}, errors.Wrapf(err, "order %d", id)
	}
	if err := s.save(ctx); err != nil {
		return order.Order{}, err
	}

	s.publish(ctx, events.OrderUpdated, o.ID, o)
	return o, nil
}

// DeleteOrder removes the order with the given id.
func (s *Service) DeleteOrder(ctx context.Context, id int) error {
	ctx, span := otel.AddSpan(ctx, "service.deleteOrder", attribute.Int("order_id", id))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.orders.Delete(id) {
		return errors.Wrapf(order.ErrNotFound, "order %d", id)
	}
	if err := s.save(ctx); err != nil {
		return err
	}

	s.publish(ctx, events.OrderDeleted, id, nil)
	return nil
}

// ListOrders returns every order in creation order.
func (s *Service) ListOrders(ctx context.Context) []order.Order {
	_, span := otel.AddSpan(ctx, "service.listOrders")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orders.List()
}

func (s *Service) resolve(ids []int) ([]product.Product, error) {
	out := make([]product.Product, 0, len(ids))
	for _, pid := range ids {
		p, ok := s.products.Search(pid)
		if !ok {
			return nil, errors.Wrapf(product.ErrNotFound, "product %d", pid)
		}
		out = append(out, p)
	}
	return out, nil
}

// save must be called with the write lock held.
func (s *Service) save(ctx context.Context) error {
	if err := s.gateway.Save(ctx); err != nil {
		s.log.Error(ctx, "saving state failed", "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

func (s *Service) publish(ctx context.Context, eventType string, id int, payload any) {
	ev := events.Event{Type: eventType, ID: id, OccurredAt: s.now().UTC(), Payload: payload}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.log.Warn(ctx, "publishing event failed", "type", eventType, "id", id, "error", err)
	}
}
