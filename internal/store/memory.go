package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
)

type entityKey struct {
	kind domain.Kind
	id   string
}

// memoryStore keeps encoded copies of entities so unsaved mutations of loaded values never leak back
type memoryStore struct {
	mu       sync.RWMutex
	entities map[entityKey][]byte
	cursors  map[string]uint64
}

// NewMemoryStore creates an in-memory store for tests and dry runs
func NewMemoryStore() TxStore {
	return &memoryStore{
		entities: make(map[entityKey][]byte),
		cursors:  make(map[string]uint64),
	}
}

func (s *memoryStore) Load(_ context.Context, kind domain.Kind, id string, dst domain.Entity) (bool, error) {
	s.mu.RLock()
	data, ok := s.entities[entityKey{kind, id}]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s *memoryStore) Exists(_ context.Context, kind domain.Kind, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[entityKey{kind, id}]
	return ok, nil
}

func (s *memoryStore) Save(_ context.Context, entity domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", entity.Kind(), entity.EntityID(), err)
	}
	s.mu.Lock()
	s.entities[entityKey{entity.Kind(), entity.EntityID()}] = data
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, kind domain.Kind, id string) error {
	s.mu.Lock()
	delete(s.entities, entityKey{kind, id})
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) GetBlockCursor(_ context.Context, network string) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	blockNumber, ok := s.cursors[network]
	return blockNumber, ok, nil
}

func (s *memoryStore) SetBlockCursor(_ context.Context, network string, blockNumber uint64) error {
	s.mu.Lock()
	s.cursors[network] = blockNumber
	s.mu.Unlock()
	return nil
}

// InTx snapshots the store and restores the snapshot when fn fails
func (s *memoryStore) InTx(_ context.Context, fn func(tx TxStore) error) error {
	s.mu.RLock()
	entities := maps.Clone(s.entities)
	cursors := maps.Clone(s.cursors)
	s.mu.RUnlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.entities = entities
		s.cursors = cursors
		s.mu.Unlock()
		return err
	}
	return nil
}
