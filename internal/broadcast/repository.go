package broadcast

import (
	"context"
	"errors"
	"strconv"

	"broadcast-playout/internal/store"
)

// Repository gives typed access to one store collection.
//
// Reads are lock-free snapshots unless they have to repair the collection.
// Every write (Upsert, Mutate, Delete) runs as
// a read-modify-write cycle under the collection's Locker, so concurrent
// mutations through repositories sharing a Locker never lose updates.
type Repository[T any] struct {
	store      store.Store
	locker     store.Locker
	collection store.Collection
	key        func(T) string
	defaults   func() []T
}

// NewRepository returns a repository over collection c. key identifies an
// item; defaults is the content a missing or unreadable collection is reset to.
func NewRepository[T any](s store.Store, l store.Locker, c store.Collection, key func(T) string, defaults func() []T) *Repository[T] {
	if defaults == nil {
		defaults = func() []T { return []T{} }
	}
	return &Repository[T]{store: s, locker: l, collection: c, key: key, defaults: defaults}
}

func newMediaRepository(s store.Store, l store.Locker) *Repository[MediaAsset] {
	return NewRepository(s, l, store.Media, func(m MediaAsset) string { return m.ID }, nil)
}

func newChannelRepository(s store.Store, l store.Locker) *Repository[Channel] {
	return NewRepository(s, l, store.Channels, func(c Channel) string { return strconv.Itoa(c.ID) }, DefaultChannels)
}

func newScheduleRepository(s store.Store, l store.Locker) *Repository[ScheduleEntry] {
	return NewRepository(s, l, store.Schedule, func(e ScheduleEntry) string { return e.ID }, nil)
}

// Ensure initialises the collection when it is missing or invalid. It holds
// the collection lock so a repair never overwrites a concurrent write.
func (r *Repository[T]) Ensure(ctx context.Context) (bool, error) {
	unlock, err := r.locker.Lock(ctx, r.collection)
	if err != nil {
		return false, persistenceError("lock "+string(r.collection), err)
	}
	defer unlock()
	return r.ensure(ctx)
}

// ensure is Ensure for callers already holding the lock.
func (r *Repository[T]) ensure(ctx context.Context) (bool, error) {
	def, err := store.Encode(r.defaults())
	if err != nil {
		return false, persistenceError("encode "+string(r.collection)+" defaults", err)
	}
	repaired, err := r.store.Ensure(ctx, r.collection, def)
	if err != nil {
		return false, persistenceError("ensure "+string(r.collection), err)
	}
	return repaired, nil
}

// List returns every item in stored order.
func (r *Repository[T]) List(ctx context.Context) ([]T, error) {
	return r.load(ctx, r.Ensure)
}

// load reads and decodes the collection, running repair first when it is
// missing or invalid.
func (r *Repository[T]) load(ctx context.Context, repair func(context.Context) (bool, error)) ([]T, error) {
	raw, err := r.store.Read(ctx, r.collection)
	if errors.Is(err, store.ErrMissing) || errors.Is(err, store.ErrInvalid) {
		if _, err := repair(ctx); err != nil {
			return nil, err
		}
		raw, err = r.store.Read(ctx, r.collection)
	}
	if err != nil {
		return nil, persistenceError("read "+string(r.collection), err)
	}
	items, err := store.Decode[T](raw)
	if err != nil {
		return nil, persistenceError("decode "+string(r.collection), err)
	}
	return items, nil
}

// Get returns the item with the given key.
func (r *Repository[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T
	items, err := r.List(ctx)
	if err != nil {
		return zero, false, err
	}
	for _, item := range items {
		if r.key(item) == key {
			return item, true, nil
		}
	}
	return zero, false, nil
}

// Mutate applies fn to the current items and stores the result. Nothing is
// written when fn returns an error; that error is returned unchanged.
func (r *Repository[T]) Mutate(ctx context.Context, fn func([]T) ([]T, error)) error {
	unlock, err := r.locker.Lock(ctx, r.collection)
	if err != nil {
		return persistenceError("lock "+string(r.collection), err)
	}
	defer unlock()

	items, err := r.load(ctx, r.ensure)
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	raw, err := store.Encode(next)
	if err != nil {
		return persistenceError("encode "+string(r.collection), err)
	}
	if err := r.store.Write(ctx, r.collection, raw); err != nil {
		return persistenceError("write "+string(r.collection), err)
	}
	return nil
}

// Upsert replaces the item with the same key or appends item.
func (r *Repository[T]) Upsert(ctx context.Context, item T) error {
	k := r.key(item)
	return r.Mutate(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if r.key(items[i]) == k {
				items[i] = item
				return items, nil
			}
		}
		return append(items, item), nil
	})
}

// Delete removes the item with the given key and returns it.
func (r *Repository[T]) Delete(ctx context.Context, key string) (T, bool, error) {
	var (
		removed T
		found   bool
	)
	err := r.Mutate(ctx, func(items []T) ([]T, error) {
		for i := range items {
			if r.key(items[i]) == key {
				removed, found = items[i], true
				return append(items[:i], items[i+1:]...), nil
			}
		}
		return nil, errNoChange
	})
	if errors.Is(err, errNoChange) {
		return removed, false, nil
	}
	return removed, found, err
}

// errNoChange aborts a Mutate without writing.
var errNoChange = errors.New("no change")
