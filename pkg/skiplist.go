package incremental

import (
	"strings"

	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// sortedIndex wraps the generic zerocopyskiplist with string keys and a
// string context per item. Keys must be unique.
type sortedIndex[T any] struct {
	skiplist *zcsl.ZeroCopySkiplist[T, string, string]
}

// newSortedIndex creates an index ordered by strings.Compare over getKey
func newSortedIndex[T any](maxLevels int, getKey func(*T) string, getSize func(*T) int) *sortedIndex[T] {
	if maxLevels < 8 {
		maxLevels = 16 // reasonable default
	}
	if getSize == nil {
		getSize = func(*T) int { return 0 }
	}

	cmpKey := func(a, b string) int {
		return strings.Compare(a, b)
	}

	return &sortedIndex[T]{
		skiplist: zcsl.MakeZeroCopySkiplist[T, string, string](maxLevels, getKey, getSize, cmpKey),
	}
}

// Insert adds an item with the given context
func (si *sortedIndex[T]) Insert(item *T, context string) bool {
	return si.skiplist.Insert(item, context)
}

// Find returns the item stored under key and its context
func (si *sortedIndex[T]) Find(key string) (*T, string) {
	node, context := si.skiplist.Find(key)
	if node == nil {
		return nil, ""
	}
	return node.Item(), context
}

// Delete removes the item stored under key
func (si *sortedIndex[T]) Delete(key string) bool {
	return si.skiplist.Delete(key)
}

// UpdateContext changes the context of an existing item
func (si *sortedIndex[T]) UpdateContext(key, context string) bool {
	return si.skiplist.UpdateContext(key, context)
}

// ForEach iterates in key order until callback returns false
func (si *sortedIndex[T]) ForEach(callback func(*T, string) bool) {
	for current := si.skiplist.First(); current != nil; current = current.Next() {
		if !callback(current.Item(), current.Context()) {
			break
		}
	}
}

// ForEachContext iterates, in key order, the items with a specific context.
// It returns false if callback stopped the iteration.
func (si *sortedIndex[T]) ForEachContext(context string, callback func(*T) bool) bool {
	completed := true
	si.ForEach(func(item *T, itemContext string) bool {
		if itemContext != context {
			return true
		}
		completed = callback(item)
		return completed
	})
	return completed
}

// Length returns the number of items
func (si *sortedIndex[T]) Length() int {
	return si.skiplist.Length()
}

// IsEmpty reports whether the index has no items
func (si *sortedIndex[T]) IsEmpty() bool {
	return si.skiplist.IsEmpty()
}
