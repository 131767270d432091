// Package client is the receiving end of the live layer: it keeps local
// copies of project resources in sync from room events.
package client

import "slices"

type Identifiable interface {
	Key() string
}

// Collection keeps items in arrival order, unique by key.
// It is not safe for concurrent use.
type Collection[T Identifiable] struct {
	items []T
	index map[string]int
}

func NewCollection[T Identifiable]() *Collection[T] {
	return &Collection[T]{index: make(map[string]int)}
}

// Upsert replaces the item with the same key in place or appends it.
// It reports whether the item was new.
func (c *Collection[T]) Upsert(item T) bool {
	if i, ok := c.index[item.Key()]; ok {
		c.items[i] = item
		return false
	}
	c.index[item.Key()] = len(c.items)
	c.items = append(c.items, item)
	return true
}

// Remove is a no-op for an unknown key.
func (c *Collection[T]) Remove(key string) bool {
	i, ok := c.index[key]
	if !ok {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	delete(c.index, key)
	for j := i; j < len(c.items); j++ {
		c.index[c.items[j].Key()] = j
	}
	return true
}

func (c *Collection[T]) Get(key string) (T, bool) {
	i, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[i], true
}

// Items returns a copy.
func (c *Collection[T]) Items() []T {
	return slices.Clone(c.items)
}

func (c *Collection[T]) Len() int { return len(c.items) }

// Reset replaces the content, typically with a snapshot fetched over REST.
func (c *Collection[T]) Reset(items []T) {
	c.items = c.items[:0]
	clear(c.index)
	for _, item := range items {
		c.Upsert(item)
	}
}
