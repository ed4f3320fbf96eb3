package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
	"github.com/bidfit/backend/pkg/utils"
)

const (
	// MaxTraversalDepth bounds every reachability query. Deeper paths carry
	// no scoring signal and keep traversal from walking the whole graph.
	MaxTraversalDepth = 3

	mutualConnectionLimit = 10
	defaultPartnerLimit   = 5

	// traversalCachePrefix keys every cached traversal result, so a single
	// prefix invalidation after an edge write clears all of them.
	traversalCachePrefix = "graph:conn:"
)

var (
	ErrInvalidStrength   = errors.New("strength must be in [0,1]")
	ErrInvalidConfidence = errors.New("confidence must be in [0,1]")
	ErrEmptyEntity       = errors.New("entity id and type are required")
)

// SupplierSource is the persistence collaborator the partner scan needs:
// point lookup plus an all-except-one scan.
type SupplierSource interface {
	GetSupplier(id string) (*models.Supplier, error)
	ListSuppliersExcept(excludeID string) ([]models.Supplier, error)
}

type Service struct {
	store     EdgeStore
	suppliers SupplierSource
	cache     Cache
	cacheTTL  time.Duration
}

func NewService(store EdgeStore, suppliers SupplierSource, cache Cache, cacheTTL time.Duration) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	if cacheTTL == 0 {
		cacheTTL = 5 * time.Minute
	}

	return &Service{
		store:     store,
		suppliers: suppliers,
		cache:     cache,
		cacheTTL:  cacheTTL,
	}
}

// CreateRelationship upserts an edge. Calling it twice with the same
// (source, target, type) overwrites strength, confidence and metadata
// rather than creating a second edge.
func (s *Service) CreateRelationship(ctx context.Context, e Edge) error {
	if e.Source.ID == "" || e.Source.Type == "" || e.Target.ID == "" || e.Target.Type == "" {
		return ErrEmptyEntity
	}
	if e.Strength < 0 || e.Strength > 1 {
		return ErrInvalidStrength
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return ErrInvalidConfidence
	}

	if err := s.store.UpsertEdge(ctx, e); err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}

	// Cached traversals may include the old edge; drop them so connection
	// queries see the write immediately instead of after the TTL.
	if err := s.cache.InvalidatePrefix(ctx, traversalCachePrefix); err != nil {
		logger.Warn("Failed to invalidate traversal cache",
			zap.String("source", e.Source.ID),
			zap.String("target", e.Target.ID),
			zap.Error(err),
		)
	}

	logger.Debug("Relationship upserted",
		zap.String("source", e.Source.ID),
		zap.String("target", e.Target.ID),
		zap.String("type", e.Type),
		zap.Float64("strength", e.Strength),
	)
	return nil
}

// FindConnectedEntities walks the graph breadth-first from origin, treating
// edges as undirected, up to maxDepth hops. Each reachable entity is
// annotated with the hop count of its shortest discovered path and the
// product of edge strengths along the strongest such path. A node already
// reached at a shallower degree is never revisited; at equal degree the
// stronger path wins.
func (s *Service) FindConnectedEntities(ctx context.Context, origin EntityRef, maxDepth int, typeFilter string) ([]ConnectedEntity, error) {
	if maxDepth <= 0 || maxDepth > MaxTraversalDepth {
		maxDepth = MaxTraversalDepth
	}

	cacheKey := traversalCachePrefix + utils.HashString(fmt.Sprintf("%s|%s|%d|%s", origin.ID, origin.Type, maxDepth, typeFilter))
	var cached []ConnectedEntity
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		metrics.CacheHits.WithLabelValues("graph").Inc()
		return cached, nil
	}
	metrics.CacheMisses.WithLabelValues("graph").Inc()

	visited := map[EntityRef]*ConnectedEntity{
		origin: {Entity: origin, SeparationDegree: 0, TotalStrength: 1.0},
	}
	frontier := []EntityRef{origin}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		// Collect the whole next level before committing it, so equal-degree
		// tie-breaks by strength are resolved within the level.
		next := make(map[EntityRef]*ConnectedEntity)

		for _, node := range frontier {
			edges, err := s.store.EdgesTouching(ctx, node, typeFilter)
			if err != nil {
				return nil, fmt.Errorf("failed to load edges for %s/%s: %w", node.Type, node.ID, err)
			}

			base := visited[node].TotalStrength
			for _, e := range edges {
				neighbor := e.Target
				if neighbor == node {
					neighbor = e.Source
				}
				if _, seen := visited[neighbor]; seen {
					continue
				}

				strength := base * e.Strength
				candidate, pending := next[neighbor]
				if !pending || strength > candidate.TotalStrength {
					next[neighbor] = &ConnectedEntity{
						Entity:           neighbor,
						SeparationDegree: depth,
						TotalStrength:    strength,
						RelationshipType: e.Type,
					}
				}
			}
		}

		frontier = frontier[:0]
		for ref, ce := range next {
			visited[ref] = ce
			frontier = append(frontier, ref)
		}
		sort.Slice(frontier, func(i, j int) bool {
			return frontier[i].ID < frontier[j].ID
		})
	}

	result := make([]ConnectedEntity, 0, len(visited)-1)
	for ref, ce := range visited {
		if ref == origin {
			continue
		}
		result = append(result, *ce)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SeparationDegree != result[j].SeparationDegree {
			return result[i].SeparationDegree < result[j].SeparationDegree
		}
		if result[i].TotalStrength != result[j].TotalStrength {
			return result[i].TotalStrength > result[j].TotalStrength
		}
		return result[i].Entity.ID < result[j].Entity.ID
	})

	s.cache.Set(ctx, cacheKey, result, s.cacheTTL)

	logger.Debug("Graph traversal completed",
		zap.String("origin", origin.ID),
		zap.Int("max_depth", maxDepth),
		zap.Int("reached", len(result)),
	)
	return result, nil
}

// CalculateEntityCentrality derives a connectedness score from edge counts,
// relationship-type variety and mean strength. The boolean reports whether
// the entity has any edges at all; absence is a normal outcome, not an error.
func (s *Service) CalculateEntityCentrality(ctx context.Context, ref EntityRef) (*EntityCentrality, bool, error) {
	edges, err := s.store.EdgesTouching(ctx, ref, "")
	if err != nil {
		return nil, false, fmt.Errorf("failed to load edges for centrality: %w", err)
	}
	if len(edges) == 0 {
		return nil, false, nil
	}

	c := &EntityCentrality{Entity: ref}
	types := make(map[string]struct{})
	var totalStrength float64

	for _, e := range edges {
		if e.Target == ref {
			c.IncomingEdges++
		}
		if e.Source == ref {
			c.OutgoingEdges++
		}
		types[e.Type] = struct{}{}
		totalStrength += e.Strength
	}

	c.RelationshipTypes = len(types)
	c.AvgStrength = totalStrength / float64(len(edges))

	score := float64(c.IncomingEdges+c.OutgoingEdges)*2.0 +
		float64(c.RelationshipTypes)*5.0 +
		c.AvgStrength*10.0
	if score > 100 {
		score = 100
	}
	c.CentralityScore = score

	return c, true, nil
}

// FindMutualConnections returns entities within two hops of both a and b,
// ranked by the average of their best path strengths to each side.
func (s *Service) FindMutualConnections(ctx context.Context, a, b EntityRef) ([]MutualConnection, error) {
	reachableA, err := s.FindConnectedEntities(ctx, a, 2, "")
	if err != nil {
		return nil, fmt.Errorf("failed to traverse from %s: %w", a.ID, err)
	}

	reachableB, err := s.FindConnectedEntities(ctx, b, 2, "")
	if err != nil {
		return nil, fmt.Errorf("failed to traverse from %s: %w", b.ID, err)
	}

	strengthB := make(map[EntityRef]float64, len(reachableB))
	for _, ce := range reachableB {
		strengthB[ce.Entity] = ce.TotalStrength
	}

	var mutual []MutualConnection
	for _, ce := range reachableA {
		if ce.Entity == b {
			continue
		}
		sb, ok := strengthB[ce.Entity]
		if !ok {
			continue
		}
		mutual = append(mutual, MutualConnection{
			Entity:      ce.Entity,
			StrengthToA: ce.TotalStrength,
			StrengthToB: sb,
			AvgStrength: (ce.TotalStrength + sb) / 2,
		})
	}

	sort.Slice(mutual, func(i, j int) bool {
		if mutual[i].AvgStrength != mutual[j].AvgStrength {
			return mutual[i].AvgStrength > mutual[j].AvgStrength
		}
		return mutual[i].Entity.ID < mutual[j].Entity.ID
	})

	if len(mutual) > mutualConnectionLimit {
		mutual = mutual[:mutualConnectionLimit]
	}

	return mutual, nil
}

// FindPotentialPartners scans every other supplier and ranks them by a
// complementarity-style score against the origin supplier.
func (s *Service) FindPotentialPartners(ctx context.Context, ref EntityRef, limit int) ([]PartnerCandidate, error) {
	if limit <= 0 {
		limit = defaultPartnerLimit
	}

	self, err := s.suppliers.GetSupplier(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load supplier %s: %w", ref.ID, err)
	}

	others, err := s.suppliers.ListSuppliersExcept(ref.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan suppliers: %w", err)
	}

	candidates := make([]PartnerCandidate, 0, len(others))
	for _, other := range others {
		comp := capabilityComplementarity(self.Capabilities, other.Capabilities)
		overall := comp * 0.7
		reason := "complementary capabilities"

		if shared := intersectCount(self.Industries, other.Industries); shared > 0 {
			overall += 15
			reason = "complementary capabilities in a shared industry"
		}
		if intersectCount(self.Regions, other.Regions) == 0 && len(other.Regions) > 0 {
			overall += 15
			reason += ", extends geographic reach"
		}
		if overall > 100 {
			overall = 100
		}

		candidates = append(candidates, PartnerCandidate{
			SupplierID:      other.ID,
			Name:            other.Name,
			OverallScore:    overall,
			Complementarity: comp,
			Reason:          reason,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].OverallScore != candidates[j].OverallScore {
			return candidates[i].OverallScore > candidates[j].OverallScore
		}
		return candidates[i].SupplierID < candidates[j].SupplierID
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return candidates, nil
}

// capabilityComplementarity mirrors the partnership scorer's two-sided
// curve: some overlap signals compatibility, a large unique share signals
// true complementarity, near-identical sets score poorly.
func capabilityComplementarity(a, b []string) float64 {
	union := len(a) + len(b) - intersectCount(a, b)
	if union == 0 {
		return 0
	}

	overlap := float64(intersectCount(a, b)) / float64(union)
	uniqueShare := 1 - overlap

	var compat float64
	switch {
	case overlap >= 0.10 && overlap <= 0.40:
		compat = 40
	case overlap > 0.40:
		compat = 15
	default:
		compat = 10
	}

	score := compat + uniqueShare*60
	if score > 100 {
		score = 100
	}
	return score
}

func intersectCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	count := 0
	for _, v := range b {
		if _, ok := set[v]; ok {
			count++
		}
	}
	return count
}
