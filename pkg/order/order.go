package order

import (
	"errors"

	"github.com/shopspring/decimal"

	"ordermgmt/pkg/product"
)

// StatusPending is the status every new order starts with.
const StatusPending = "pending"

// Order represents a customer order. Products are snapshots taken when the
// order was created or last updated.
type Order struct {
	ID       int               `json:"id"`
	Products []product.Product `json:"products"`
	Total    float64           `json:"total"`
	Status   string            `json:"status"`
}

var (
	// ErrNotFound indicates the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrExists indicates an order with the same ID is already stored.
	ErrExists = errors.New("order already exists")
)

// Total sums the product prices using decimal arithmetic so that prices such
// as 0.10 and 0.20 add up to exactly 0.30.
func Total(products []product.Product) float64 {
	sum := decimal.Zero
	for _, p := range products {
		sum = sum.Add(decimal.NewFromFloat(p.Price))
	}
	total, _ := sum.Float64()
	return total
}

// Snapshot returns an independent copy of products. The result is never nil.
func Snapshot(products []product.Product) []product.Product {
	out := make([]product.Product, len(products))
	copy(out, products)
	return out
}
