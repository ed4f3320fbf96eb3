package graph

import (
	"context"
	"sync"
	"time"
)

type edgeKey struct {
	source EntityRef
	target EntityRef
	typ    string
}

// MemoryStore is an in-process EdgeStore. It backs tests and single-node
// deployments that run without a graph database.
type MemoryStore struct {
	mu    sync.RWMutex
	edges map[edgeKey]Edge
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		edges: make(map[edgeKey]Edge),
	}
}

func (s *MemoryStore) UpsertEdge(ctx context.Context, e Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := edgeKey{source: e.Source, target: e.Target, typ: e.Type}

	now := time.Now()
	if existing, ok := s.edges[key]; ok {
		e.CreatedAt = existing.CreatedAt
	} else {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	s.edges[key] = e
	return nil
}

func (s *MemoryStore) EdgesTouching(ctx context.Context, ref EntityRef, typeFilter string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Edge
	for key, e := range s.edges {
		if key.source != ref && key.target != ref {
			continue
		}
		if typeFilter != "" && key.typ != typeFilter {
			continue
		}
		result = append(result, e)
	}

	return result, nil
}

func (s *MemoryStore) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}
