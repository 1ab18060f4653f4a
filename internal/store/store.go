package store

import (
	"context"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
)

// Store is the entity store the mapping handlers run against.
// Writes are last-write-wins and immediately visible to subsequent loads.
//
//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore,TxStore=MockTxStore
type Store interface {
	// Load decodes the entity (kind, id) into dst and reports whether it exists
	Load(ctx context.Context, kind domain.Kind, id string, dst domain.Entity) (bool, error)
	// Exists reports whether the entity (kind, id) exists
	Exists(ctx context.Context, kind domain.Kind, id string) (bool, error)
	// Save upserts the entity
	Save(ctx context.Context, entity domain.Entity) error
	// Remove deletes the entity (kind, id); removing an absent entity is not an error
	Remove(ctx context.Context, kind domain.Kind, id string) error
}

// CursorStore defines the interface for storing and retrieving block cursors
type CursorStore interface {
	// GetBlockCursor retrieves the last processed block number for a network.
	// found is false when no block has been processed yet.
	GetBlockCursor(ctx context.Context, network string) (blockNumber uint64, found bool, err error)
	// SetBlockCursor stores the last processed block number for a network
	SetBlockCursor(ctx context.Context, network string, blockNumber uint64) error
}

// TxStore is a Store with a block cursor that can run a unit of work atomically
type TxStore interface {
	Store
	CursorStore
	// InTx runs fn against a transactional view of the store.
	// Every write made through tx is discarded when fn returns an error.
	InTx(ctx context.Context, fn func(tx TxStore) error) error
}

// Get loads the entity with the given id. newFn builds the empty entity that is decoded into.
func Get[E domain.Entity](ctx context.Context, s Store, id string, newFn func(string) E) (E, bool, error) {
	var zero E
	entity := newFn(id)
	found, err := s.Load(ctx, entity.Kind(), id, entity)
	if err != nil || !found {
		return zero, false, err
	}
	return entity, true, nil
}

// GetOrCreate loads the entity with the given id or returns a new unsaved one. created reports the latter.
func GetOrCreate[E domain.Entity](ctx context.Context, s Store, id string, newFn func(string) E) (entity E, created bool, err error) {
	entity = newFn(id)
	found, err := s.Load(ctx, entity.Kind(), id, entity)
	if err != nil {
		var zero E
		return zero, false, err
	}
	if !found {
		return newFn(id), true, nil
	}
	return entity, false, nil
}

// ExistsAny reports whether an entity with the id exists under any of the kinds
func ExistsAny(ctx context.Context, s Store, kinds []domain.Kind, id string) (bool, error) {
	for _, kind := range kinds {
		ok, err := s.Exists(ctx, kind, id)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// SaveAll saves entities in order, stopping at the first failure
func SaveAll(ctx context.Context, s Store, entities ...domain.Entity) error {
	for _, e := range entities {
		if err := s.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}
