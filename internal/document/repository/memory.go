package repository

import (
	"context"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
)

// MemoryRepo is an in-process repository used for development and unit
// tests. Records are kept per collection in insertion order.
type MemoryRepo struct {
	scanRepo
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{scanRepo{backend: "memory", store: newMemStore()}}
}

type memCollection struct {
	order []string
	recs  map[string]bson.D
}

type memStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

func newMemStore() *memStore {
	return &memStore{collections: make(map[string]*memCollection)}
}

func (m *memStore) all(_ context.Context, collection string) ([]bson.D, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, nil
	}
	out := make([]bson.D, 0, len(col.order))
	for _, id := range col.order {
		out = append(out, append(bson.D(nil), col.recs[id]...))
	}
	return out, nil
}

func (m *memStore) put(_ context.Context, collection, id string, rec bson.D, create bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		col = &memCollection{recs: make(map[string]bson.D)}
		m.collections[collection] = col
	}
	if _, exists := col.recs[id]; exists {
		if create {
			return ErrDuplicate
		}
	} else {
		col.order = append(col.order, id)
	}
	col.recs[id] = rec
	return nil
}

func (m *memStore) del(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil
	}
	if _, exists := col.recs[id]; !exists {
		return nil
	}
	delete(col.recs, id)
	for i, x := range col.order {
		if x == id {
			col.order = append(col.order[:i], col.order[i+1:]...)
			break
		}
	}
	return nil
}
