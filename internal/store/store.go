// Package store persists the three playout collections as whole snapshots.
//
// Every backend reads and writes a collection wholesale. A write replaces the
// previous snapshot, so two unsynchronised read-modify-write cycles on the
// same collection lose one of the updates (last write wins). Callers that
// mutate must serialise through a Locker.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names one of the persisted entity collections.
type Collection string

const (
	Media    Collection = "media"
	Channels Collection = "channels"
	Schedule Collection = "schedule"
)

// Collections lists every collection the server persists.
var Collections = []Collection{Media, Channels, Schedule}

var (
	// ErrMissing is returned by Read when the collection has never been written.
	ErrMissing = errors.New("collection missing")

	// ErrInvalid is returned by Read when the stored content is not a JSON array.
	ErrInvalid = errors.New("collection content invalid")

	// ErrUnknownCollection is returned for names outside Collections.
	ErrUnknownCollection = errors.New("unknown collection")
)

// Store is the persistence abstraction for collection snapshots.
// A snapshot is the JSON array of all entities in the collection.
type Store interface {
	// Read returns the current snapshot of c.
	Read(ctx context.Context, c Collection) (json.RawMessage, error)

	// Write replaces the snapshot of c. Implementations must not leave a
	// partially written snapshot behind on failure.
	Write(ctx context.Context, c Collection, snapshot json.RawMessage) error

	// Ensure initialises c with def when it is missing or its content is
	// invalid. A valid existing snapshot is left untouched, so Ensure is
	// idempotent.
	Ensure(ctx context.Context, c Collection, def json.RawMessage) (repaired bool, err error)
}

func checkCollection(c Collection) error {
	for _, known := range Collections {
		if c == known {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownCollection, c)
}

// isArray reports whether raw is syntactically valid JSON whose top-level value is an array.
func isArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return false
	}
	return json.Valid(trimmed)
}

// Decode unmarshals a snapshot into a slice of T. An empty snapshot yields an
// empty, non-nil slice.
func Decode[T any](snapshot json.RawMessage) ([]T, error) {
	out := []T{}
	if len(bytes.TrimSpace(snapshot)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(snapshot, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

// Encode marshals items into a snapshot. A nil slice encodes as [].
func Encode[T any](items []T) (json.RawMessage, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

// ensureWith implements Ensure for backends on top of their Read and Write.
func ensureWith(ctx context.Context, s Store, c Collection, def json.RawMessage) (bool, error) {
	if !isArray(def) {
		return false, fmt.Errorf("default for %s: %w", c, ErrInvalid)
	}
	_, err := s.Read(ctx, c)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrMissing), errors.Is(err, ErrInvalid):
		if err := s.Write(ctx, c, def); err != nil {
			return false, err
		}
		return true, nil
	default:
		return false, err
	}
}
