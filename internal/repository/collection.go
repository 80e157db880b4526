package repository

import "slices"

// Entity is a record the repository can key and copy
type Entity[T any] interface {
	Key() string
	Clone() T
}

// Collection is an ordered set of entities of one kind, keyed by ID.
// Entities keep their insertion order; an upsert of an existing key keeps
// its slot.
type Collection[T Entity[T]] struct {
	repo  *Repository
	kind  Kind
	items []T
}

func newCollection[T Entity[T]](r *Repository, kind Kind) *Collection[T] {
	return &Collection[T]{repo: r, kind: kind}
}

// index returns the slot of id, or -1. Callers hold repo.mu.
func (c *Collection[T]) index(id string) int {
	return slices.IndexFunc(c.items, func(v T) bool { return v.Key() == id })
}

// mutate applies fn under the repository lock and notifies listeners when fn
// reports a change
func (c *Collection[T]) mutate(fn func() (Change, bool)) bool {
	c.repo.mu.Lock()
	change, changed := fn()
	var listeners []Listener
	if changed {
		listeners = c.repo.commit()
	}
	c.repo.mu.Unlock()

	if changed {
		change.Kind = c.kind
		notify(listeners, change)
	}
	return changed
}

// Upsert replaces the entity with the same key or appends it
func (c *Collection[T]) Upsert(v T) {
	v = v.Clone()
	c.mutate(func() (Change, bool) {
		if i := c.index(v.Key()); i >= 0 {
			c.items[i] = v
		} else {
			c.items = append(c.items, v)
		}
		return Change{Op: OpUpsert, ID: v.Key()}, true
	})
}

// Update applies fn to a copy of the entity stored under id and writes the
// result back into the same slot, all under one lock. fn must not change the
// key. It returns the value from before the change.
func (c *Collection[T]) Update(id string, fn func(T) T) (prev T, ok bool) {
	c.mutate(func() (Change, bool) {
		i := c.index(id)
		if i < 0 {
			return Change{}, false
		}
		prev, ok = c.items[i].Clone(), true
		c.items[i] = fn(c.items[i].Clone())
		return Change{Op: OpUpsert, ID: id}, true
	})
	return prev, ok
}

// Remove deletes the entity with the given key and reports the value and
// position it had. Removing an absent key is a no-op.
func (c *Collection[T]) Remove(id string) (removed T, position int, ok bool) {
	position = -1
	c.mutate(func() (Change, bool) {
		i := c.index(id)
		if i < 0 {
			return Change{}, false
		}
		removed, position, ok = c.items[i], i, true
		c.items = slices.Delete(c.items, i, i+1)
		return Change{Op: OpRemove, ID: id}, true
	})
	return removed, position, ok
}

// InsertAt puts an entity back at a prior position, clamped to the current
// length. If the key is already present the existing slot is replaced.
func (c *Collection[T]) InsertAt(position int, v T) {
	v = v.Clone()
	c.mutate(func() (Change, bool) {
		if i := c.index(v.Key()); i >= 0 {
			c.items[i] = v
			return Change{Op: OpUpsert, ID: v.Key()}, true
		}
		position = max(0, min(position, len(c.items)))
		c.items = slices.Insert(c.items, position, v)
		return Change{Op: OpUpsert, ID: v.Key()}, true
	})
}

// Replace swaps the entity stored under oldID for v, keeping the slot. It is
// how a provisional record becomes the canonical one. Any other record already
// stored under v's key is dropped so the key stays unique. Returns false when
// oldID is no longer present.
func (c *Collection[T]) Replace(oldID string, v T) bool {
	v = v.Clone()
	return c.mutate(func() (Change, bool) {
		i := c.index(oldID)
		if i < 0 {
			return Change{}, false
		}
		if j := c.index(v.Key()); j >= 0 && j != i {
			c.items = slices.Delete(c.items, j, j+1)
			if j < i {
				i--
			}
		}
		c.items[i] = v
		return Change{Op: OpReplace, ID: v.Key()}, true
	})
}

// Reset replaces the whole collection, keeping the first of any duplicate keys
func (c *Collection[T]) Reset(values []T) {
	c.mutate(func() (Change, bool) {
		items := make([]T, 0, len(values))
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			if seen[v.Key()] {
				continue
			}
			seen[v.Key()] = true
			items = append(items, v.Clone())
		}
		c.items = items
		return Change{Op: OpReset}, true
	})
}

// Get returns a copy of the entity stored under id
func (c *Collection[T]) Get(id string) (T, bool) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	if i := c.index(id); i >= 0 {
		return c.items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Snapshot returns copies of all entities in order
func (c *Collection[T]) Snapshot() []T {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	out := make([]T, len(c.items))
	for i, v := range c.items {
		out[i] = v.Clone()
	}
	return out
}

// Filter returns copies of the entities matching keep, in order. keep runs
// under the repository lock and must not call back into the repository.
func (c *Collection[T]) Filter(keep func(T) bool) []T {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()

	var out []T
	for _, v := range c.items {
		if keep(v) {
			out = append(out, v.Clone())
		}
	}
	return out
}

// Len returns the number of entities
func (c *Collection[T]) Len() int {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	return len(c.items)
}
