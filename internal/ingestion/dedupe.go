package ingestion

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
	"github.com/bidfit/backend/pkg/utils"
)

// Resolver groups near-duplicate opportunity records and keeps one canonical
// survivor per group. Two records belong to the same group when they share
// any composite key: external source id, normalized solicitation number, or
// a title+organization+posted-date fingerprint. Key sharing is transitive
// (union-find), so A~B and B~C puts all three in one group.
type Resolver struct{}

type Resolution struct {
	Survivors      []models.Opportunity
	DuplicateCount int
}

func (Resolver) Resolve(records []models.Opportunity) Resolution {
	if len(records) == 0 {
		return Resolution{}
	}

	parent := make([]int, len(records))
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	firstByKey := make(map[string]int)
	for i := range records {
		for _, key := range compositeKeys(&records[i]) {
			if j, ok := firstByKey[key]; ok {
				union(j, i)
			} else {
				firstByKey[key] = i
			}
		}
	}

	groups := make(map[int][]int)
	for i := range records {
		root := find(i)
		groups[root] = append(groups[root], i)
	}

	resolution := Resolution{}
	// Iterate in input order so survivor output is stable.
	for i := range records {
		root := find(i)
		members, ok := groups[root]
		if !ok {
			continue
		}
		delete(groups, root)

		best := members[0]
		bestQuality := qualityScore(&records[best])
		for _, m := range members[1:] {
			if q := qualityScore(&records[m]); q > bestQuality {
				best = m
				bestQuality = q
			}
		}

		resolution.Survivors = append(resolution.Survivors, records[best])
		resolution.DuplicateCount += len(members) - 1
	}

	if resolution.DuplicateCount > 0 {
		logger.Info("Duplicate records resolved",
			zap.Int("input", len(records)),
			zap.Int("survivors", len(resolution.Survivors)),
			zap.Int("duplicates", resolution.DuplicateCount),
		)
	}

	return resolution
}

func compositeKeys(o *models.Opportunity) []string {
	var keys []string

	if o.ExternalID != "" {
		keys = append(keys, fmt.Sprintf("ext|%s|%s", o.Source, o.ExternalID))
	}
	if sol := normalizeSolicitation(o.SolicitationNumber); sol != "" {
		keys = append(keys, "sol|"+sol)
	}
	if o.Title != "" {
		fingerprint := utils.HashString(strings.ToLower(strings.TrimSpace(o.Title)) + "|" +
			strings.ToLower(strings.TrimSpace(o.Organization)) + "|" +
			strings.TrimSpace(o.PostedDate))
		keys = append(keys, "fp|"+fingerprint)
	}

	return keys
}

// normalizeSolicitation strips separators and case so "W912-DY-25-R-0001"
// and "w912dy25r0001" key identically.
func normalizeSolicitation(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(s) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// qualityScore rates a record's completeness: fixed points for enrichment
// metadata and field presence, plus a scaled contribution from any
// precomputed data-quality percentage. The highest score in a group survives.
func qualityScore(o *models.Opportunity) float64 {
	var score float64

	if o.HasEnhancedData {
		score += 15
	}
	if o.HasParsedData {
		score += 15
	}
	if o.HasAnalysisData {
		score += 15
	}

	for _, present := range []bool{
		o.Title != "",
		o.Organization != "",
		o.PostedDate != "",
		o.Description != "",
	} {
		if present {
			score += 10
		}
	}

	for _, present := range []bool{
		o.ContractValue > 0,
		o.Deadline != "",
		o.ContactEmail != "",
		o.SourceURL != "",
		o.NAICSCode != "",
		len(o.RequiredCapabilities) > 0,
	} {
		if present {
			score += 5
		}
	}

	score += o.DataQualityPct * 0.2

	return score
}
