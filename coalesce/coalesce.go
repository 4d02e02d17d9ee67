// Package coalesce merges items that share a key into one unit of work.
//
// Within a group the most recent value wins, while every waiter is kept in
// arrival order. Groups come out in the order their key was first seen.
package coalesce

// Group is the merged unit of work for one key.
type Group[K comparable, V any, W any] struct {
	Key K

	// Value is the value carried by the last item with this key.
	Value V

	// Waiters holds the waiter of every item with this key, oldest first.
	Waiters []W
}

// Splitter breaks an item into its key, value and waiter.
type Splitter[T any, K comparable, V any, W any] func(item T) (key K, value V, waiter W)

// By groups items by key. It never drops a waiter, however many items share a key.
func By[T any, K comparable, V any, W any](items []T, split Splitter[T, K, V, W]) []*Group[K, V, W] {
	index := make(map[K]*Group[K, V, W], len(items))
	groups := make([]*Group[K, V, W], 0, len(items))

	for _, item := range items {
		key, value, waiter := split(item)

		group, found := index[key]
		if !found {
			group = &Group[K, V, W]{Key: key}
			index[key] = group
			groups = append(groups, group)
		}

		group.Value = value
		group.Waiters = append(group.Waiters, waiter)
	}

	return groups
}
