package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bidfit/backend/internal/storage/models"
)

const (
	FailureCertification = "certification"
	FailureExperience    = "experience"
	FailureCapability    = "capability"
)

type GateResult struct {
	Passed   bool
	Failures []models.ConstraintFailure
}

// ConstraintGate enforces hard requirements before any judge runs. A failed
// gate short-circuits the fit pipeline to a rejected result with score 0:
// no judge score can rescue a supplier that misses a hard requirement.
type ConstraintGate struct{}

func (ConstraintGate) Check(supplier *models.Supplier, opp *models.Opportunity) GateResult {
	var failures []models.ConstraintFailure

	held := normalizedSet(supplier.Certifications)
	for _, cert := range sortedCopy(opp.RequiredCertifications) {
		if _, ok := held[normalize(cert)]; !ok {
			failures = append(failures, models.ConstraintFailure{
				Type:   FailureCertification,
				Detail: fmt.Sprintf("missing required certification %q", cert),
			})
		}
	}

	if opp.RequiredExperience > 0 && supplier.YearsExperience < opp.RequiredExperience {
		failures = append(failures, models.ConstraintFailure{
			Type: FailureExperience,
			Detail: fmt.Sprintf("%d years of experience, %d required",
				supplier.YearsExperience, opp.RequiredExperience),
		})
	}

	caps := normalizedSet(supplier.Capabilities)
	for _, capability := range sortedCopy(opp.RequiredCapabilities) {
		if _, ok := caps[normalize(capability)]; !ok {
			failures = append(failures, models.ConstraintFailure{
				Type:   FailureCapability,
				Detail: fmt.Sprintf("missing required capability %q", capability),
			})
		}
	}

	return GateResult{
		Passed:   len(failures) == 0,
		Failures: failures,
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizedSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[normalize(v)] = struct{}{}
	}
	return set
}

func sortedCopy(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	sort.Strings(out)
	return out
}
