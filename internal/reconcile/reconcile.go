// Package reconcile holds the collection-reconciliation strategies shared
// by every synced collection. Each is a pure function of the old
// collection and the server's payload: the result is either the input
// unchanged or a new slice; inputs are never mutated, so a failed call can
// simply keep its pre-call slice.
package reconcile

// Prepend returns a new collection with item first. Used after a create:
// the in-memory list is most-recent-first by call order, regardless of any
// server-side ordering or timestamp.
func Prepend[T any](list []T, item T) []T {
	out := make([]T, 0, len(list)+1)
	out = append(out, item)
	return append(out, list...)
}

// ReplaceByID replaces the entry whose id matches with item. An unknown id
// leaves the collection untouched: updates never promote a record the
// list has not seen.
func ReplaceByID[T any](list []T, id string, item T, idOf func(T) string) []T {
	for i := range list {
		if idOf(list[i]) == id {
			out := make([]T, len(list))
			copy(out, list)
			out[i] = item
			return out
		}
	}
	return list
}

// RemoveByID filters out the entry whose id matches. An absent id is a
// no-op, which makes deletes idempotent from the collection's view.
func RemoveByID[T any](list []T, id string, idOf func(T) string) []T {
	for i := range list {
		if idOf(list[i]) == id {
			out := make([]T, 0, len(list)-1)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}
