package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

const (
	maxCoverageBundleSize = 3
	nicheBundleSize       = 2
	nicheBundleThreshold  = 70

	defaultPartnershipMinScore = 50
	defaultPartnershipLimit    = 10
)

var sizeClassOrder = map[string]int{
	"micro":      0,
	"small":      1,
	"medium":     2,
	"large":      3,
	"enterprise": 4,
}

type PartnershipOptions struct {
	MinScore int
	Limit    int
}

type Bundle struct {
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	Rationale string   `json:"rationale"`
}

type PartnershipReport struct {
	CompanyID string                    `json:"company_id"`
	Scores    []models.PartnershipScore `json:"scores"`
	Bundles   []Bundle                  `json:"bundles"`
}

// PartnershipScorer rates two suppliers' mutual partnership potential with
// six weighted sub-scores.
type PartnershipScorer struct {
	weights PartnershipWeights
}

func NewPartnershipScorer(weights PartnershipWeights) (*PartnershipScorer, error) {
	if err := weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid partnership weights: %w", err)
	}
	return &PartnershipScorer{weights: weights}, nil
}

func (p *PartnershipScorer) Score(a, b *models.Supplier) models.PartnershipScore {
	comp := scoreComplementarity(a, b)
	coverage := scoreCoverage(a, b)
	geo := scoreGeographic(a, b)
	size := scoreSizeCompatibility(a, b)
	cert := scoreCertificationSynergy(a, b)
	rel := scoreRelationshipPotential(a, b)

	overall := float64(comp)*p.weights.Complementarity +
		float64(coverage)*p.weights.Coverage +
		float64(geo)*p.weights.Geographic +
		float64(size)*p.weights.Size +
		float64(cert)*p.weights.Certification +
		float64(rel)*p.weights.Relationship

	shared := intersectSorted(a.Capabilities, b.Capabilities)

	return models.PartnershipScore{
		CompanyAID:      a.ID,
		CompanyBID:      b.ID,
		CompanyBName:    b.Name,
		Overall:         clampScore(int(math.Round(overall))),
		Complementarity: comp,
		Coverage:        coverage,
		Geographic:      geo,
		SizeFit:         size,
		Certification:   cert,
		Relationship:    rel,
		Breakdown: models.PartnershipBreakdown{
			SharedCapabilities:     shared,
			UniqueToA:              differenceSorted(a.Capabilities, b.Capabilities),
			UniqueToB:              differenceSorted(b.Capabilities, a.Capabilities),
			CombinedRegions:        unionSorted(a.Regions, b.Regions),
			CombinedCertifications: unionSorted(a.Certifications, b.Certifications),
		},
		CreatedAt: time.Now(),
	}
}

// scoreComplementarity rewards partners whose capability sets are
// different-but-compatible. 10-40% overlap is the sweet spot; near-identical
// or fully disjoint sets both score lower than moderate overlap with a large
// unique share on each side.
func scoreComplementarity(a, b *models.Supplier) int {
	union := len(unionSorted(a.Capabilities, b.Capabilities))
	if union == 0 {
		return 0
	}

	overlap := float64(len(intersectSorted(a.Capabilities, b.Capabilities))) / float64(union)
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

	return clampScore(int(math.Round(compat + uniqueShare*60)))
}

func scoreCoverage(a, b *models.Supplier) int {
	capUnion := len(unionSorted(a.Capabilities, b.Capabilities))
	indUnion := len(unionSorted(a.Industries, b.Industries))

	capScore := capUnion * 4
	if capScore > 60 {
		capScore = 60
	}
	indScore := indUnion * 8
	if indScore > 40 {
		indScore = 40
	}

	return clampScore(capScore + indScore)
}

func scoreGeographic(a, b *models.Supplier) int {
	shared := len(intersectSorted(a.Regions, b.Regions))
	union := len(unionSorted(a.Regions, b.Regions))

	trust := shared * 15
	if trust > 45 {
		trust = 45
	}
	reach := union * 11
	if reach > 55 {
		reach = 55
	}

	return clampScore(trust + reach)
}

func scoreSizeCompatibility(a, b *models.Supplier) int {
	score := 100

	distance := sizeClassOrder[a.SizeClass] - sizeClassOrder[b.SizeClass]
	if distance < 0 {
		distance = -distance
	}
	score -= distance * 25

	if a.TeamSize > 0 && b.TeamSize > 0 {
		ratio := float64(a.TeamSize) / float64(b.TeamSize)
		if ratio < 1 {
			ratio = 1 / ratio
		}
		switch {
		case ratio > 10:
			score -= 35
		case ratio > 5:
			score -= 20
		}
	}

	return clampScore(score)
}

func scoreCertificationSynergy(a, b *models.Supplier) int {
	union := len(unionSorted(a.Certifications, b.Certifications))

	score := union * 10
	if score > 80 {
		score = 80
	}
	if len(intersectSorted(a.Certifications, b.Certifications)) > 0 {
		score += 20
	}

	return clampScore(score)
}

func scoreRelationshipPotential(a, b *models.Supplier) int {
	score := 50

	sharedIndustries := len(intersectSorted(a.Industries, b.Industries))
	bonus := sharedIndustries * 10
	if bonus > 30 {
		bonus = 30
	}
	score += bonus

	diff := math.Abs(a.Credibility - b.Credibility)
	switch {
	case diff <= 10:
		score += 20
	case diff <= 25:
		score += 10
	}

	return clampScore(score)
}

// PartnershipStore is the persistence slice the partnership pipeline needs.
type PartnershipStore interface {
	GetSupplier(id string) (*models.Supplier, error)
	ListSuppliersExcept(excludeID string) ([]models.Supplier, error)
	UpsertPartnershipScore(p *models.PartnershipScore) error
}

type PartnershipService struct {
	store  PartnershipStore
	scorer *PartnershipScorer
}

func NewPartnershipService(store PartnershipStore, weights PartnershipWeights) (*PartnershipService, error) {
	scorer, err := NewPartnershipScorer(weights)
	if err != nil {
		return nil, err
	}

	return &PartnershipService{
		store:  store,
		scorer: scorer,
	}, nil
}

// ScorePartnerships ranks every other supplier against the company, keeps
// those at or above MinScore, persists the recommendations (idempotent
// upsert) and derives the strategy bundles from the ranked list.
func (s *PartnershipService) ScorePartnerships(ctx context.Context, companyID string, opts PartnershipOptions) (*PartnershipReport, error) {
	if opts.MinScore <= 0 {
		opts.MinScore = defaultPartnershipMinScore
	}
	if opts.Limit <= 0 {
		opts.Limit = defaultPartnershipLimit
	}

	company, err := s.store.GetSupplier(companyID)
	if err != nil {
		return nil, err
	}

	others, err := s.store.ListSuppliersExcept(companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate suppliers: %w", err)
	}

	var scores []models.PartnershipScore
	for i := range others {
		score := s.scorer.Score(company, &others[i])
		if score.Overall < opts.MinScore {
			continue
		}
		scores = append(scores, score)
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Overall != scores[j].Overall {
			return scores[i].Overall > scores[j].Overall
		}
		return scores[i].CompanyBID < scores[j].CompanyBID
	})

	if len(scores) > opts.Limit {
		scores = scores[:opts.Limit]
	}

	for i := range scores {
		if err := s.store.UpsertPartnershipScore(&scores[i]); err != nil {
			return nil, fmt.Errorf("failed to persist partnership score: %w", err)
		}
	}

	bundles := buildBundles(company, scores)

	logger.Info("Partnerships scored",
		zap.String("company_id", companyID),
		zap.Int("candidates", len(others)),
		zap.Int("recommended", len(scores)),
	)

	return &PartnershipReport{
		CompanyID: companyID,
		Scores:    scores,
		Bundles:   bundles,
	}, nil
}

func (s *PartnershipService) Scorer() *PartnershipScorer {
	return s.scorer
}

// buildBundles runs three greedy selections over the ranked candidates.
// Maximum coverage is a set-cover heuristic: a candidate joins only when it
// contributes at least one capability not yet covered.
func buildBundles(company *models.Supplier, scores []models.PartnershipScore) []Bundle {
	var bundles []Bundle

	covered := normalizedSet(company.Capabilities)
	var coverageMembers []string
	for _, score := range scores {
		if len(coverageMembers) >= maxCoverageBundleSize {
			break
		}
		contributes := false
		for _, capability := range score.Breakdown.UniqueToB {
			if _, ok := covered[normalize(capability)]; !ok {
				contributes = true
				covered[normalize(capability)] = struct{}{}
			}
		}
		if contributes {
			coverageMembers = append(coverageMembers, score.CompanyBID)
		}
	}
	if len(coverageMembers) > 0 {
		bundles = append(bundles, Bundle{
			Name:      "maximum_coverage",
			Members:   coverageMembers,
			Rationale: "jointly covers the widest capability set",
		})
	}

	var geoMembers []string
	for _, score := range scores {
		if len(geoMembers) >= nicheBundleSize {
			break
		}
		if score.Geographic > nicheBundleThreshold {
			geoMembers = append(geoMembers, score.CompanyBID)
		}
	}
	if len(geoMembers) > 0 {
		bundles = append(bundles, Bundle{
			Name:      "geographic_expansion",
			Members:   geoMembers,
			Rationale: "extends market reach into new regions",
		})
	}

	var certMembers []string
	for _, score := range scores {
		if len(certMembers) >= nicheBundleSize {
			break
		}
		if score.Certification > nicheBundleThreshold {
			certMembers = append(certMembers, score.CompanyBID)
		}
	}
	if len(certMembers) > 0 {
		bundles = append(bundles, Bundle{
			Name:      "certification_power",
			Members:   certMembers,
			Rationale: "combines certifications that unlock gated solicitations",
		})
	}

	return bundles
}

func unionSorted(a, b []string) []string {
	set := make(map[string]string)
	for _, v := range a {
		set[normalize(v)] = v
	}
	for _, v := range b {
		if _, ok := set[normalize(v)]; !ok {
			set[normalize(v)] = v
		}
	}

	out := make([]string, 0, len(set))
	for _, v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func differenceSorted(a, b []string) []string {
	bSet := normalizedSet(b)
	var out []string
	for _, v := range a {
		if _, ok := bSet[normalize(v)]; !ok {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
