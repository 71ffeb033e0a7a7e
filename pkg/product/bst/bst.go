// Package bst implements the product index as an unbalanced binary search
// tree keyed by product ID.
package bst

import "ordermgmt/pkg/product"

type node struct {
	data  product.Product
	left  *node
	right *node
}

// Tree is an ordered product index. It is not safe for concurrent use;
// callers serialize access.
type Tree struct {
	root *node
	size int
}

// New returns an empty Tree.
func New() *Tree {
	return &Tree{}
}

// Len returns the number of products in the tree.
func (t *Tree) Len() int { return t.size }

// Insert adds p, or overwrites the stored product when the ID is already
// present.
func (t *Tree) Insert(p product.Product) {
	if n := t.find(p.ID); n != nil {
		n.data = p
		return
	}

	z := &node{data: p}
	if t.root == nil {
		t.root = z
		t.size++
		return
	}
	x := t.root
	for {
		if p.ID < x.data.ID {
			if x.left == nil {
				x.left = z
				break
			}
			x = x.left
		} else {
			if x.right == nil {
				x.right = z
				break
			}
			x = x.right
		}
	}
	t.size++
}

// Search returns the product stored under id.
func (t *Tree) Search(id int) (product.Product, bool) {
	n := t.find(id)
	if n == nil {
		return product.Product{}, false
	}
	return n.data, true
}

// Update replaces the product stored under id. The ID itself is immutable.
func (t *Tree) Update(id int, p product.Product) error {
	n := t.find(id)
	if n == nil {
		return product.ErrNotFound
	}
	if p.ID != id {
		return product.ErrIDMismatch
	}
	n.data = p
	return nil
}

// Serialize returns every product in ascending ID order.
func (t *Tree) Serialize() []product.Product {
	out := make([]product.Product, 0, t.size)
	t.ForEachAscending(func(p product.Product) bool {
		out = append(out, p)
		return true
	})
	return out
}

// ForEachAscending walks the tree in order until fn returns false.
func (t *Tree) ForEachAscending(fn func(product.Product) bool) {
	var stack []*node
	n := t.root
	for n != nil || len(stack) > 0 {
		for n != nil {
			stack = append(stack, n)
			n = n.left
		}
		n = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(n.data) {
			return
		}
		n = n.right
	}
}

func (t *Tree) find(id int) *node {
	n := t.root
	for n != nil {
		switch {
		case id < n.data.ID:
			n = n.left
		case id > n.data.ID:
			n = n.right
		default:
			return n
		}
	}
	return nil
}
