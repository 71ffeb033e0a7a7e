// Package product holds the product model shared by the index, the order
// snapshots and the persisted artifacts.
package product

import "errors"

// Product is a catalogue entry keyed by its integer ID.
type Product struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
}

var (
	// ErrNotFound indicates the requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrExists indicates a product with the same ID is already stored.
	ErrExists = errors.New("product already exists")
	// ErrIDMismatch indicates an update tried to change the product ID.
	ErrIDMismatch = errors.New("product id cannot be changed")
)
