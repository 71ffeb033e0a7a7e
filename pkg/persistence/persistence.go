// Package persistence saves the product index and the order list as two
// whole JSON documents and rebuilds them at startup.
package persistence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"ordermgmt/pkg/logger"
	"ordermgmt/pkg/order"
	"ordermgmt/pkg/otel"
	"ordermgmt/pkg/product"
)

// Artifact names.
const (
	ProductsArtifact = "products"
	OrdersArtifact   = "orders"
)

// ErrNotExist is returned by a Backend when an artifact was never written.
var ErrNotExist = errors.New("artifact does not exist")

// Backend stores named documents. Write must replace the whole document.
type Backend interface {
	Write(ctx context.Context, name string, data []byte) error
	Read(ctx context.Context, name string) ([]byte, error)
}

// ProductIndex is the part of the product store the gateway needs.
type ProductIndex interface {
	Insert(p product.Product)
	Serialize() []product.Product
}

// OrderList is the part of the order store the gateway needs.
type OrderList interface {
	Create(id int, products []product.Product) (order.Order, error)
	Update(id int, status string, products []product.Product) (order.Order, error)
	List() []order.Order
}

// DecodeError reports an artifact that could not be turned back into state.
type DecodeError struct {
	Artifact string
	// Index is the offending record position, or -1 for document errors.
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("decode %s: %v", e.Artifact, e.Err)
	}
	return fmt.Sprintf("decode %s record %d: %v", e.Artifact, e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Gateway flushes and restores both stores through a Backend.
type Gateway struct {
	backend  Backend
	products ProductIndex
	orders   OrderList
	log      *logger.Logger
}

// New creates a Gateway over the given stores.
func New(backend Backend, products ProductIndex, orders OrderList, log *logger.Logger) *Gateway {
	return &Gateway{backend: backend, products: products, orders: orders, log: log}
}

// Save writes both artifacts in full.
func (g *Gateway) Save(ctx context.Context) error {
	ctx, span := otel.AddSpan(ctx, "persistence.save")
	defer span.End()

	products := g.products.Serialize()
	if err := g.write(ctx, ProductsArtifact, products); err != nil {
		return err
	}

	orders := g.orders.List()
	if err := g.write(ctx, OrdersArtifact, orders); err != nil {
		return err
	}

	span.SetAttributes(attribute.Int("products", len(products)), attribute.Int("orders", len(orders)))
	g.log.Debug(ctx, "state saved", "products", len(products), "orders", len(orders))
	return nil
}

func (g *Gateway) write(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return errors.Wrapf(err, "encode %s", name)
	}
	if err := g.backend.Write(ctx, name, data); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}

// Load replays the persisted artifacts into the stores. Missing artifacts
// leave the corresponding store empty.
func (g *Gateway) Load(ctx context.Context) error {
	ctx, span := otel.AddSpan(ctx, "persistence.load")
	defer span.End()

	nProducts, err := g.loadProducts(ctx)
	if err != nil {
		return err
	}
	nOrders, err := g.loadOrders(ctx)
	if err != nil {
		return err
	}

	g.log.Info(ctx, "state loaded", "products", nProducts, "orders", nOrders)
	return nil
}

type productRecord struct {
	ID          *int     `json:"id"`
	Name        *string  `json:"name"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
}

func (r productRecord) toProduct() (product.Product, error) {
	switch {
	case r.ID == nil:
		return product.Product{}, errors.New(`missing field "id"`)
	case r.Name == nil:
		return product.Product{}, errors.New(`missing field "name"`)
	case r.Price == nil:
		return product.Product{}, errors.New(`missing field "price"`)
	case r.Description == nil:
		return product.Product{}, errors.New(`missing field "description"`)
	}
	return product.Product{ID: *r.ID, Name: *r.Name, Price: *r.Price, Description: *r.Description}, nil
}

type orderRecord struct {
	ID       *int            `json:"id"`
	Products []productRecord `json:"products"`
	Total    *float64        `json:"total"`
	Status   *string         `json:"status"`
}

func (g *Gateway) loadProducts(ctx context.Context) (int, error) {
	var records []productRecord
	found, err := g.read(ctx, ProductsArtifact, &records)
	if err != nil || !found {
		return 0, err
	}

	for i, rec := range records {
		p, err := rec.toProduct()
		if err != nil {
			return 0, &DecodeError{Artifact: ProductsArtifact, Index: i, Err: err}
		}
		g.products.Insert(p)
	}
	return len(records), nil
}

func (g *Gateway) loadOrders(ctx context.Context) (int, error) {
	var records []orderRecord
	found, err := g.read(ctx, OrdersArtifact, &records)
	if err != nil || !found {
		return 0, err
	}

	for i, rec := range records {
		if rec.ID == nil {
			return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: errors.New(`missing field "id"`)}
		}
		if rec.Products == nil {
			return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: errors.New(`missing field "products"`)}
		}
		if rec.Status == nil {
			return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: errors.New(`missing field "status"`)}
		}

		products := make([]product.Product, 0, len(rec.Products))
		for j, pr := range rec.Products {
			p, err := pr.toProduct()
			if err != nil {
				return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: errors.Wrapf(err, "product %d", j)}
			}
			products = append(products, p)
		}

		o, err := g.orders.Create(*rec.ID, products)
		if err != nil {
			return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: err}
		}
		// Create always starts at pending.
		if _, err := g.orders.Update(o.ID, *rec.Status, nil); err != nil {
			return 0, &DecodeError{Artifact: OrdersArtifact, Index: i, Err: err}
		}
		if rec.Total != nil && *rec.Total != o.Total {
			g.log.Warn(ctx, "persisted order total differs from recomputed total",
				"order_id", o.ID, "persisted", *rec.Total, "recomputed", o.Total)
		}
	}
	return len(records), nil
}

func (g *Gateway) read(ctx context.Context, name string, v any) (bool, error) {
	data, err := g.backend.Read(ctx, name)
	if errors.Is(err, ErrNotExist) {
		g.log.Info(ctx, "artifact not found, starting empty", "artifact", name)
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "read %s", name)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return false, &DecodeError{Artifact: name, Index: -1, Err: errors.New("empty document")}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, &DecodeError{Artifact: name, Index: -1, Err: err}
	}
	return true, nil
}
