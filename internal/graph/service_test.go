package graph

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/bidfit/backend/internal/storage/models"
)

// memCache is a live in-process Cache so tests can exercise the caching
// path that NopCache skips.
type memCache struct {
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(ctx context.Context, key string, out interface{}) (bool, error) {
	data, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *memCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

func supplierRef(id string) EntityRef {
	return EntityRef{ID: id, Type: EntityTypeSupplier}
}

func addEdge(t *testing.T, svc *Service, source, target EntityRef, typ string, strength float64) {
	t.Helper()
	err := svc.CreateRelationship(context.Background(), Edge{
		Source:     source,
		Target:     target,
		Type:       typ,
		Strength:   strength,
		Confidence: 0.9,
	})
	if err != nil {
		t.Fatalf("CreateRelationship(%s -> %s) failed: %v", source.ID, target.ID, err)
	}
}

type fakeSupplierSource struct {
	suppliers map[string]*models.Supplier
}

func (f *fakeSupplierSource) GetSupplier(id string) (*models.Supplier, error) {
	s, ok := f.suppliers[id]
	if !ok {
		return nil, errors.New("supplier not found")
	}
	return s, nil
}

func (f *fakeSupplierSource) ListSuppliersExcept(excludeID string) ([]models.Supplier, error) {
	var out []models.Supplier
	for id, s := range f.suppliers {
		if id != excludeID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func TestCreateRelationshipValidation(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)
	ctx := context.Background()

	a := supplierRef("a")
	b := supplierRef("b")

	cases := []struct {
		name string
		edge Edge
		want error
	}{
		{"missing source", Edge{Target: b, Type: "teamed_with", Strength: 0.5, Confidence: 0.5}, ErrEmptyEntity},
		{"missing target type", Edge{Source: a, Target: EntityRef{ID: "b"}, Type: "teamed_with", Strength: 0.5, Confidence: 0.5}, ErrEmptyEntity},
		{"strength too high", Edge{Source: a, Target: b, Type: "teamed_with", Strength: 1.5, Confidence: 0.5}, ErrInvalidStrength},
		{"negative strength", Edge{Source: a, Target: b, Type: "teamed_with", Strength: -0.1, Confidence: 0.5}, ErrInvalidStrength},
		{"confidence too high", Edge{Source: a, Target: b, Type: "teamed_with", Strength: 0.5, Confidence: 1.1}, ErrInvalidConfidence},
	}

	for _, tc := range cases {
		if err := svc.CreateRelationship(ctx, tc.edge); !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, err, tc.want)
		}
	}
}

func TestCreateRelationshipUpsertsByTuple(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, nil, 0)

	a := supplierRef("a")
	b := supplierRef("b")

	addEdge(t, svc, a, b, "teamed_with", 0.4)
	addEdge(t, svc, a, b, "teamed_with", 0.8)
	if store.EdgeCount() != 1 {
		t.Fatalf("expected 1 edge after same-tuple upsert, got %d", store.EdgeCount())
	}

	// A different type is a distinct edge.
	addEdge(t, svc, a, b, "subcontracted_for", 0.8)
	if store.EdgeCount() != 2 {
		t.Fatalf("expected 2 edges after second type, got %d", store.EdgeCount())
	}

	conn, err := svc.FindConnectedEntities(context.Background(), a, 1, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if len(conn) != 1 || conn[0].TotalStrength != 0.8 {
		t.Errorf("expected strength 0.8 after overwrite, got %+v", conn)
	}
}

func TestFindConnectedEntitiesDepthBound(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	// Chain a - b - c - d - e, each hop strength 0.5.
	ids := []string{"a", "b", "c", "d", "e"}
	for i := 0; i+1 < len(ids); i++ {
		addEdge(t, svc, supplierRef(ids[i]), supplierRef(ids[i+1]), "teamed_with", 0.5)
	}

	conn, err := svc.FindConnectedEntities(context.Background(), supplierRef("a"), 2, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}

	if len(conn) != 2 {
		t.Fatalf("expected 2 entities within depth 2, got %d: %+v", len(conn), conn)
	}
	if conn[0].Entity.ID != "b" || conn[0].SeparationDegree != 1 || conn[0].TotalStrength != 0.5 {
		t.Errorf("unexpected first hop: %+v", conn[0])
	}
	if conn[1].Entity.ID != "c" || conn[1].SeparationDegree != 2 || conn[1].TotalStrength != 0.25 {
		t.Errorf("unexpected second hop: %+v", conn[1])
	}
}

func TestFindConnectedEntitiesClampsDepth(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	ids := []string{"a", "b", "c", "d", "e"}
	for i := 0; i+1 < len(ids); i++ {
		addEdge(t, svc, supplierRef(ids[i]), supplierRef(ids[i+1]), "teamed_with", 0.5)
	}

	conn, err := svc.FindConnectedEntities(context.Background(), supplierRef("a"), 10, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if len(conn) != MaxTraversalDepth {
		t.Fatalf("expected traversal clamped to %d hops, got %d entities", MaxTraversalDepth, len(conn))
	}
}

func TestFindConnectedEntitiesStrongestPathWins(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	a := supplierRef("a")
	b := supplierRef("b")
	c := supplierRef("c")
	d := supplierRef("d")

	// Two depth-2 paths to d: via b (0.9 * 0.9 = 0.81) and via c (0.4 * 1.0 = 0.4).
	addEdge(t, svc, a, b, "teamed_with", 0.9)
	addEdge(t, svc, a, c, "teamed_with", 0.4)
	addEdge(t, svc, b, d, "teamed_with", 0.9)
	addEdge(t, svc, c, d, "teamed_with", 1.0)

	conn, err := svc.FindConnectedEntities(context.Background(), a, 3, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}

	var found *ConnectedEntity
	for i := range conn {
		if conn[i].Entity == d {
			found = &conn[i]
		}
	}
	if found == nil {
		t.Fatal("expected d to be reachable")
	}
	if found.SeparationDegree != 2 {
		t.Errorf("expected degree 2 for d, got %d", found.SeparationDegree)
	}
	if math.Abs(found.TotalStrength-0.81) > 1e-9 {
		t.Errorf("expected strongest path 0.81, got %f", found.TotalStrength)
	}
}

func TestFindConnectedEntitiesTypeFilter(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	a := supplierRef("a")
	addEdge(t, svc, a, supplierRef("b"), "teamed_with", 0.5)
	addEdge(t, svc, a, EntityRef{ID: "opp-1", Type: EntityTypeOpportunity}, "bid_on", 0.7)

	conn, err := svc.FindConnectedEntities(context.Background(), a, 2, "bid_on")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if len(conn) != 1 || conn[0].Entity.ID != "opp-1" {
		t.Errorf("expected only the bid_on edge, got %+v", conn)
	}
}

func TestCalculateEntityCentralityNoEdges(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	c, found, err := svc.CalculateEntityCentrality(context.Background(), supplierRef("lonely"))
	if err != nil {
		t.Fatalf("CalculateEntityCentrality failed: %v", err)
	}
	if found || c != nil {
		t.Errorf("expected absence for an entity with no edges, got found=%v c=%+v", found, c)
	}
}

func TestCalculateEntityCentrality(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	a := supplierRef("a")
	addEdge(t, svc, a, supplierRef("b"), "teamed_with", 0.5)
	addEdge(t, svc, supplierRef("c"), a, "subcontracted_for", 1.0)

	c, found, err := svc.CalculateEntityCentrality(context.Background(), a)
	if err != nil {
		t.Fatalf("CalculateEntityCentrality failed: %v", err)
	}
	if !found {
		t.Fatal("expected centrality for a connected entity")
	}

	if c.IncomingEdges != 1 || c.OutgoingEdges != 1 {
		t.Errorf("expected 1 in / 1 out, got %d/%d", c.IncomingEdges, c.OutgoingEdges)
	}
	if c.RelationshipTypes != 2 {
		t.Errorf("expected 2 relationship types, got %d", c.RelationshipTypes)
	}
	if math.Abs(c.AvgStrength-0.75) > 1e-9 {
		t.Errorf("expected avg strength 0.75, got %f", c.AvgStrength)
	}

	// (1+1)*2 + 2*5 + 0.75*10
	if math.Abs(c.CentralityScore-21.5) > 1e-9 {
		t.Errorf("expected centrality 21.5, got %f", c.CentralityScore)
	}
}

func TestFindMutualConnections(t *testing.T) {
	svc := NewService(NewMemoryStore(), nil, nil, 0)

	a := supplierRef("a")
	b := supplierRef("b")
	m := EntityRef{ID: "m", Type: EntityTypePerson}

	addEdge(t, svc, a, m, "knows", 0.8)
	addEdge(t, svc, b, m, "knows", 0.6)
	addEdge(t, svc, a, b, "teamed_with", 0.9)
	addEdge(t, svc, a, supplierRef("only-a"), "teamed_with", 0.5)

	mutual, err := svc.FindMutualConnections(context.Background(), a, b)
	if err != nil {
		t.Fatalf("FindMutualConnections failed: %v", err)
	}

	// b itself is excluded even though it is reachable from both sides.
	for _, mc := range mutual {
		if mc.Entity == b {
			t.Fatalf("counterpart b must not appear as a mutual connection")
		}
	}

	var mm *MutualConnection
	for i := range mutual {
		if mutual[i].Entity == m {
			mm = &mutual[i]
		}
	}
	if mm == nil {
		t.Fatalf("expected m among mutual connections, got %+v", mutual)
	}
	if math.Abs(mm.StrengthToA-0.8) > 1e-9 || math.Abs(mm.StrengthToB-0.6) > 1e-9 {
		t.Errorf("unexpected per-side strengths: %+v", mm)
	}
	if math.Abs(mm.AvgStrength-0.7) > 1e-9 {
		t.Errorf("expected avg strength 0.7, got %f", mm.AvgStrength)
	}
}

func TestFindPotentialPartners(t *testing.T) {
	suppliers := &fakeSupplierSource{suppliers: map[string]*models.Supplier{
		"self": {
			ID:           "self",
			Name:         "Self Co",
			Capabilities: []string{"software", "security"},
			Industries:   []string{"defense"},
			Regions:      []string{"northeast"},
		},
		"disjoint": {
			ID:           "disjoint",
			Name:         "Disjoint Co",
			Capabilities: []string{"logistics", "training"},
			Industries:   []string{"defense"},
			Regions:      []string{"southwest"},
		},
		"identical": {
			ID:           "identical",
			Name:         "Identical Co",
			Capabilities: []string{"software", "security"},
			Industries:   []string{"retail"},
			Regions:      []string{"northeast"},
		},
	}}
	svc := NewService(NewMemoryStore(), suppliers, nil, 0)

	candidates, err := svc.FindPotentialPartners(context.Background(), supplierRef("self"), 5)
	if err != nil {
		t.Fatalf("FindPotentialPartners failed: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}

	// Disjoint capabilities, shared industry and a new region beat a clone.
	if candidates[0].SupplierID != "disjoint" {
		t.Errorf("expected disjoint first, got %s", candidates[0].SupplierID)
	}
	// 70*0.7 + 15 shared industry + 15 region extension.
	if math.Abs(candidates[0].OverallScore-79) > 1e-9 {
		t.Errorf("expected score 79, got %f", candidates[0].OverallScore)
	}
	if candidates[1].SupplierID != "identical" {
		t.Errorf("expected identical last, got %s", candidates[1].SupplierID)
	}
	// Full overlap scores 15 on the complementarity curve, weighted 0.7.
	if math.Abs(candidates[1].OverallScore-10.5) > 1e-9 {
		t.Errorf("expected score 10.5, got %f", candidates[1].OverallScore)
	}
}

func TestCreateRelationshipInvalidatesCachedTraversals(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil, newMemCache(), time.Minute)
	ctx := context.Background()

	a, b := supplierRef("a"), supplierRef("b")
	addEdge(t, svc, a, b, "partnership", 0.4)

	first, err := svc.FindConnectedEntities(ctx, a, 1, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if len(first) != 1 || first[0].TotalStrength != 0.4 {
		t.Fatalf("unexpected initial traversal %v", first)
	}

	// A write that bypasses the service leaves the cached result in place,
	// proving the second traversal below would be served from cache.
	err = store.UpsertEdge(ctx, Edge{Source: a, Target: b, Type: "partnership", Strength: 0.6, Confidence: 0.9})
	if err != nil {
		t.Fatalf("UpsertEdge failed: %v", err)
	}
	cached, err := svc.FindConnectedEntities(ctx, a, 1, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if cached[0].TotalStrength != 0.4 {
		t.Fatalf("expected cached strength 0.4, got %v", cached[0].TotalStrength)
	}

	// Upserting the same (source, target, type) tuple through the service
	// must drop the cached traversal.
	addEdge(t, svc, a, b, "partnership", 0.9)

	fresh, err := svc.FindConnectedEntities(ctx, a, 1, "")
	if err != nil {
		t.Fatalf("FindConnectedEntities failed: %v", err)
	}
	if len(fresh) != 1 {
		t.Fatalf("expected 1 connected entity, got %d", len(fresh))
	}
	if fresh[0].TotalStrength != 0.9 {
		t.Errorf("traversal reports strength %v after the edge was upserted to 0.9", fresh[0].TotalStrength)
	}
}
