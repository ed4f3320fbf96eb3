package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/bidfit/backend/internal/storage/models"
)

const (
	VerdictPass = "pass"
	VerdictFail = "fail"

	VerdictRecommended    = "recommended"
	VerdictPossible       = "possible"
	VerdictNotRecommended = "not_recommended"
	VerdictRejected       = "rejected"
)

// Technologies counted as modernity signals by the technical and innovation
// judges. Matching is case-insensitive substring on the supplier's declared
// technologies.
var modernTechnologies = []string{
	"cloud",
	"kubernetes",
	"machine learning",
	"artificial intelligence",
	"automation",
	"devops",
	"microservices",
	"data analytics",
}

type judgeFunc func(*models.Supplier, *models.Opportunity) (int, []string, []string)

type judgeSpec struct {
	name      string
	weight    float64
	threshold int
	evaluate  judgeFunc
}

// JudgePanel runs five independent judges over one (supplier, opportunity)
// pair and reduces their scores by fixed weights. Every judge is a pure
// function of its inputs, so repeated evaluations of the same pair are
// identical.
type JudgePanel struct {
	judges []judgeSpec
}

func NewJudgePanel(weights FitWeights) (*JudgePanel, error) {
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	return &JudgePanel{
		judges: []judgeSpec{
			{name: "technical", weight: weights.Technical, threshold: 65, evaluate: judgeTechnical},
			{name: "domain", weight: weights.Domain, threshold: 65, evaluate: judgeDomain},
			{name: "value", weight: weights.Value, threshold: 60, evaluate: judgeValue},
			{name: "innovation", weight: weights.Innovation, threshold: 60, evaluate: judgeInnovation},
			{name: "relationship", weight: weights.Relationship, threshold: 60, evaluate: judgeRelationship},
		},
	}, nil
}

// Evaluate fans the judges out, waits for all five, and reduces. The judges
// share no state, so ordering between them does not matter; the result slice
// keeps panel order for stable output.
func (p *JudgePanel) Evaluate(supplier *models.Supplier, opp *models.Opportunity) (int, []models.JudgeEvaluation) {
	evals := make([]models.JudgeEvaluation, len(p.judges))

	var wg sync.WaitGroup
	for i, spec := range p.judges {
		wg.Add(1)
		go func(i int, spec judgeSpec) {
			defer wg.Done()

			score, evidence, recs := spec.evaluate(supplier, opp)
			score = clampScore(score)

			verdict := VerdictFail
			if score >= spec.threshold {
				verdict = VerdictPass
			}

			evals[i] = models.JudgeEvaluation{
				JudgeName:       spec.name,
				Score:           score,
				Verdict:         verdict,
				Confidence:      judgeConfidence(score),
				Evidence:        evidence,
				Recommendations: recs,
			}
		}(i, spec)
	}
	wg.Wait()

	var weighted float64
	for i, spec := range p.judges {
		weighted += float64(evals[i].Score) * spec.weight
	}

	return int(math.Round(weighted)), evals
}

func OverallVerdict(score int) string {
	switch {
	case score >= 70:
		return VerdictRecommended
	case score >= 50:
		return VerdictPossible
	default:
		return VerdictNotRecommended
	}
}

// CollectRecommendations unions the recommendations of every judge scoring
// under 70, deduplicated in first-seen order. A panel with no weak judges
// yields a single positive message.
func CollectRecommendations(evals []models.JudgeEvaluation) []string {
	seen := make(map[string]struct{})
	var recs []string

	for _, eval := range evals {
		if eval.Score >= 70 {
			continue
		}
		for _, rec := range eval.Recommendations {
			if _, ok := seen[rec]; ok {
				continue
			}
			seen[rec] = struct{}{}
			recs = append(recs, rec)
		}
	}

	if len(recs) == 0 {
		return []string{"Strong fit across all dimensions; proceed with the bid"}
	}
	return recs
}

func judgeTechnical(s *models.Supplier, o *models.Opportunity) (int, []string, []string) {
	score := 50
	var evidence, recs []string

	matched, missing := matchCapabilities(o.RequiredCapabilities, s.Capabilities)
	if len(o.RequiredCapabilities) > 0 {
		ratio := float64(len(matched)) / float64(len(o.RequiredCapabilities))
		score += int(math.Round(ratio * 30))
		evidence = append(evidence, fmt.Sprintf("covers %d of %d required capabilities", len(matched), len(o.RequiredCapabilities)))
		if len(missing) > 0 {
			recs = append(recs, fmt.Sprintf("Develop capability in %s", strings.Join(missing, ", ")))
		}
	} else {
		score += 15
		evidence = append(evidence, "opportunity lists no specific capability requirements")
	}

	if certRatio := overlapRatio(o.RequiredCertifications, s.Certifications); certRatio > 0 {
		score += int(math.Round(certRatio * 10))
		evidence = append(evidence, "holds certifications relevant to the solicitation")
	}

	modern := modernTechCount(s.Technologies)
	if modern > 0 {
		bonus := modern * 5
		if bonus > 10 {
			bonus = 10
		}
		score += bonus
		evidence = append(evidence, fmt.Sprintf("uses %d modern delivery technologies", modern))
	} else {
		recs = append(recs, "Modernize the technology stack to stay competitive")
	}

	return score, evidence, recs
}

func judgeDomain(s *models.Supplier, o *models.Opportunity) (int, []string, []string) {
	score := 50
	var evidence, recs []string

	if shared := intersectSorted(s.Industries, o.Industries); len(shared) > 0 {
		score += 20
		evidence = append(evidence, fmt.Sprintf("active in the buyer's industry (%s)", strings.Join(shared, ", ")))
	} else if len(o.Industries) > 0 {
		recs = append(recs, fmt.Sprintf("Build a track record in %s", strings.Join(sortedCopy(o.Industries), ", ")))
	}

	switch {
	case o.RequiredExperience > 0 && s.YearsExperience >= o.RequiredExperience+5:
		score += 15
		evidence = append(evidence, fmt.Sprintf("%d years of experience, well above the %d required", s.YearsExperience, o.RequiredExperience))
	case o.RequiredExperience > 0 && s.YearsExperience >= o.RequiredExperience:
		score += 10
		evidence = append(evidence, fmt.Sprintf("meets the %d-year experience requirement", o.RequiredExperience))
	case s.YearsExperience >= 10:
		score += 10
		evidence = append(evidence, fmt.Sprintf("%d years of general experience", s.YearsExperience))
	}

	if regionRatio := overlapRatio(o.Regions, s.Regions); regionRatio > 0 {
		score += int(math.Round(regionRatio * 15))
		evidence = append(evidence, "already serves the opportunity's regions")
	} else if len(o.Regions) > 0 {
		recs = append(recs, fmt.Sprintf("Establish delivery presence in %s", strings.Join(sortedCopy(o.Regions), ", ")))
	}

	return score, evidence, recs
}

func judgeValue(s *models.Supplier, o *models.Opportunity) (int, []string, []string) {
	score := 55
	var evidence, recs []string

	score += int(math.Round(s.Credibility / 100 * 25))
	if s.Credibility >= 70 {
		evidence = append(evidence, fmt.Sprintf("credibility score %.0f indicates reliable past performance", s.Credibility))
	} else {
		recs = append(recs, "Document past-performance references to raise credibility")
	}

	if sizeSuitsValue(s.SizeClass, o.ContractValue) {
		score += 10
		evidence = append(evidence, fmt.Sprintf("%s supplier is right-sized for a $%.0f contract", s.SizeClass, o.ContractValue))
	} else if o.ContractValue > 0 {
		recs = append(recs, "Consider teaming to match the contract scale")
	}

	if coverage := overlapRatio(o.RequiredCapabilities, s.Capabilities); coverage > 0 {
		score += int(math.Round(coverage * 10))
	}

	return score, evidence, recs
}

func judgeInnovation(s *models.Supplier, o *models.Opportunity) (int, []string, []string) {
	score := 45
	var evidence, recs []string

	modern := modernTechCount(s.Technologies)
	if modern > 0 {
		bonus := modern * 8
		if bonus > 24 {
			bonus = 24
		}
		score += bonus
		evidence = append(evidence, fmt.Sprintf("%d modern technologies in active use", modern))
	} else {
		recs = append(recs, "Invest in modern tooling (cloud, automation, analytics)")
	}

	matched, _ := matchCapabilities(o.RequiredCapabilities, s.Capabilities)
	if extra := len(s.Capabilities) - len(matched); extra > 0 {
		bonus := extra
		if bonus > 5 {
			bonus = 5
		}
		score += bonus * 3
		evidence = append(evidence, fmt.Sprintf("%d capabilities beyond the stated requirements", extra))
	}

	if certs := len(s.Certifications); certs > 0 {
		bonus := certs
		if bonus > 3 {
			bonus = 3
		}
		score += bonus * 4
	}

	return score, evidence, recs
}

func judgeRelationship(s *models.Supplier, o *models.Opportunity) (int, []string, []string) {
	score := 50
	var evidence, recs []string

	if len(intersectSorted(s.Regions, o.Regions)) > 0 {
		score += 10
		evidence = append(evidence, "shares a region with the buyer")
	}
	if len(intersectSorted(s.Industries, o.Industries)) > 0 {
		score += 10
		evidence = append(evidence, "operates in the buyer's industry")
	}

	switch {
	case s.Credibility >= 70:
		score += 15
		evidence = append(evidence, "strong track record supports new relationships")
	case s.Credibility >= 50:
		score += 8
	default:
		recs = append(recs, "Strengthen the past-performance record before pursuing large buyers")
	}

	return score, evidence, recs
}

func judgeConfidence(score int) float64 {
	// Higher scores come from more matched signals, which means more
	// evidence behind the number.
	c := 0.5 + float64(score)/200
	return math.Round(c*100) / 100
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func matchCapabilities(required, held []string) (matched, missing []string) {
	heldSet := normalizedSet(held)
	for _, r := range sortedCopy(required) {
		if _, ok := heldSet[normalize(r)]; ok {
			matched = append(matched, r)
		} else {
			missing = append(missing, r)
		}
	}
	return matched, missing
}

func overlapRatio(required, held []string) float64 {
	if len(required) == 0 {
		return 0
	}
	matched, _ := matchCapabilities(required, held)
	return float64(len(matched)) / float64(len(required))
}

func intersectSorted(a, b []string) []string {
	bSet := normalizedSet(b)
	var shared []string
	for _, v := range a {
		if _, ok := bSet[normalize(v)]; ok {
			shared = append(shared, v)
		}
	}
	sort.Strings(shared)
	return shared
}

func modernTechCount(technologies []string) int {
	count := 0
	for _, tech := range technologies {
		lower := normalize(tech)
		for _, modern := range modernTechnologies {
			if strings.Contains(lower, modern) {
				count++
				break
			}
		}
	}
	return count
}

func sizeSuitsValue(sizeClass string, contractValue float64) bool {
	switch {
	case contractValue <= 0:
		return false
	case contractValue >= 1_000_000:
		return sizeClass == "large" || sizeClass == "enterprise"
	case contractValue <= 250_000:
		return sizeClass == "micro" || sizeClass == "small" || sizeClass == "medium"
	default:
		return sizeClass == "medium" || sizeClass == "large"
	}
}
