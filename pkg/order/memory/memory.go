// Package memory implements the order store as a singly linked list kept in
// insertion order.
package memory

import (
	"ordermgmt/pkg/order"
	"ordermgmt/pkg/product"
)

type node struct {
	order order.Order
	next  *node
}

// Repository keeps orders in the order they were created. It is not safe for
// concurrent use; callers serialize access.
type Repository struct {
	head *node
	tail *node
	size int
}

// New creates an empty repository.
func New() *Repository {
	return &Repository{}
}

// Len returns the number of stored orders.
func (r *Repository) Len() int { return r.size }

// Create appends a new pending order built from a snapshot of products.
func (r *Repository) Create(id int, products []product.Product) (order.Order, error) {
	if r.find(id) != nil {
		return order.Order{}, order.ErrExists
	}
	snap := order.Snapshot(products)
	n := &node{order: order.Order{
		ID:       id,
		Products: snap,
		Total:    order.Total(snap),
		Status:   order.StatusPending,
	}}
	if r.head == nil {
		r.head = n
	} else {
		r.tail.next = n
	}
	r.tail = n
	r.size++
	return clone(n.order), nil
}

// Find retrieves an order by ID.
func (r *Repository) Find(id int) (order.Order, bool) {
	n := r.find(id)
	if n == nil {
		return order.Order{}, false
	}
	return clone(n.order), true
}

// Update applies a new status and/or a new product list. An empty status and
// a nil product list are treated as not supplied. A non-nil product list
// replaces the snapshot and recomputes the total.
func (r *Repository) Update(id int, status string, products []product.Product) (order.Order, error) {
	n := r.find(id)
	if n == nil {
		return order.Order{}, order.ErrNotFound
	}
	if status != "" {
		n.order.Status = status
	}
	if products != nil {
		n.order.Products = order.Snapshot(products)
		n.order.Total = order.Total(n.order.Products)
	}
	return clone(n.order), nil
}

// Delete unlinks the order with the given ID and reports whether it existed.
func (r *Repository) Delete(id int) bool {
	var prev *node
	for cur := r.head; cur != nil; prev, cur = cur, cur.next {
		if cur.order.ID != id {
			continue
		}
		if prev == nil {
			r.head = cur.next
		} else {
			prev.next = cur.next
		}
		if r.tail == cur {
			r.tail = prev
		}
		cur.next = nil
		r.size--
		return true
	}
	return false
}

// List returns all orders from head to tail.
func (r *Repository) List() []order.Order {
	out := make([]order.Order, 0, r.size)
	for n := r.head; n != nil; n = n.next {
		out = append(out, clone(n.order))
	}
	return out
}

func (r *Repository) find(id int) *node {
	for n := r.head; n != nil; n = n.next {
		if n.order.ID == id {
			return n
		}
	}
	return nil
}

func clone(o order.Order) order.Order {
	o.Products = order.Snapshot(o.Products)
	return o
}
