package graph

import (
	"context"
	"time"
)

const (
	EntityTypeSupplier    = "supplier"
	EntityTypeOpportunity = "opportunity"
	EntityTypePerson      = "person"
)

// EntityRef identifies a node in the relationship graph. Entities of
// heterogeneous kinds (supplier, opportunity, person) share one keyspace,
// so the type is part of the key.
type EntityRef struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

type Edge struct {
	Source     EntityRef         `json:"source"`
	Target     EntityRef         `json:"target"`
	Type       string            `json:"type"`
	Strength   float64           `json:"strength"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// EdgeStore persists directed typed edges. Upsert is keyed by
// (source, target, type): at most one edge may exist per tuple.
type EdgeStore interface {
	UpsertEdge(ctx context.Context, e Edge) error
	// EdgesTouching returns every edge where ref is source or target.
	// typeFilter narrows to one relationship type when non-empty.
	EdgesTouching(ctx context.Context, ref EntityRef, typeFilter string) ([]Edge, error)
}

type ConnectedEntity struct {
	Entity           EntityRef `json:"entity"`
	SeparationDegree int       `json:"separation_degree"`
	TotalStrength    float64   `json:"total_strength"`
	RelationshipType string    `json:"relationship_type,omitempty"`
}

type EntityCentrality struct {
	Entity            EntityRef `json:"entity"`
	IncomingEdges     int       `json:"incoming_edges"`
	OutgoingEdges     int       `json:"outgoing_edges"`
	RelationshipTypes int       `json:"relationship_types"`
	AvgStrength       float64   `json:"avg_strength"`
	CentralityScore   float64   `json:"centrality_score"`
}

type MutualConnection struct {
	Entity      EntityRef `json:"entity"`
	StrengthToA float64   `json:"strength_to_a"`
	StrengthToB float64   `json:"strength_to_b"`
	AvgStrength float64   `json:"avg_strength"`
}

type PartnerCandidate struct {
	SupplierID      string  `json:"supplier_id"`
	Name            string  `json:"name"`
	OverallScore    float64 `json:"overall_score"`
	Complementarity float64 `json:"complementarity"`
	Reason          string  `json:"reason"`
}

// Cache is a pluggable TTL cache for graph query results. Injected so tests
// can substitute NopCache for deterministic runs. InvalidatePrefix lets the
// service drop stale traversal entries when an edge is written.
type Cache interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	return false, nil
}

func (NopCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (NopCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	return nil
}
