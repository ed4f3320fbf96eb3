package scoring

import (
	"fmt"
	"math"
)

// Scoring weights live in named, versioned structs so a weight change is a
// reviewable config change, not a constant buried in a judge.

const weightTolerance = 1e-9

type FitWeights struct {
	Version      string  `mapstructure:"version"`
	Technical    float64 `mapstructure:"technical"`
	Domain       float64 `mapstructure:"domain"`
	Value        float64 `mapstructure:"value"`
	Innovation   float64 `mapstructure:"innovation"`
	Relationship float64 `mapstructure:"relationship"`
}

func DefaultFitWeights() FitWeights {
	return FitWeights{
		Version:      "v1",
		Technical:    0.30,
		Domain:       0.25,
		Value:        0.20,
		Innovation:   0.15,
		Relationship: 0.10,
	}
}

func (w FitWeights) Validate() error {
	sum := w.Technical + w.Domain + w.Value + w.Innovation + w.Relationship
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("fit weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

type PartnershipWeights struct {
	Version         string  `mapstructure:"version"`
	Complementarity float64 `mapstructure:"complementarity"`
	Coverage        float64 `mapstructure:"coverage"`
	Geographic      float64 `mapstructure:"geographic"`
	Size            float64 `mapstructure:"size"`
	Certification   float64 `mapstructure:"certification"`
	Relationship    float64 `mapstructure:"relationship"`
}

func DefaultPartnershipWeights() PartnershipWeights {
	return PartnershipWeights{
		Version:         "v1",
		Complementarity: 0.25,
		Coverage:        0.20,
		Geographic:      0.15,
		Size:            0.15,
		Certification:   0.15,
		Relationship:    0.10,
	}
}

func (w PartnershipWeights) Validate() error {
	sum := w.Complementarity + w.Coverage + w.Geographic + w.Size + w.Certification + w.Relationship
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("partnership weights must sum to 1.0, got %.6f", sum)
	}
	return nil
}

// EnhancementPolicy bounds the graph-derived bonus. MaxImprovement is an
// absolute ceiling on the bonus before it is added, so the blended score can
// never fall below the basic score nor exceed basic+MaxImprovement.
type EnhancementPolicy struct {
	Version          string  `mapstructure:"version"`
	DirectMultiplier float64 `mapstructure:"direct_multiplier"`
	MutualIncrement  float64 `mapstructure:"mutual_increment"`
	MutualCeiling    float64 `mapstructure:"mutual_ceiling"`
	PathBonusBase    float64 `mapstructure:"path_bonus_base"`
	MaxImprovement   int     `mapstructure:"max_improvement"`
}

func DefaultEnhancementPolicy() EnhancementPolicy {
	return EnhancementPolicy{
		Version:          "v1",
		DirectMultiplier: 10.0,
		MutualIncrement:  1.5,
		MutualCeiling:    6.0,
		PathBonusBase:    5.0,
		MaxImprovement:   15,
	}
}

func (p EnhancementPolicy) Validate() error {
	if p.MaxImprovement <= 0 {
		return fmt.Errorf("max improvement must be positive, got %d", p.MaxImprovement)
	}
	if p.DirectMultiplier < 0 || p.MutualIncrement < 0 || p.MutualCeiling < 0 || p.PathBonusBase < 0 {
		return fmt.Errorf("enhancement policy terms must be non-negative")
	}
	return nil
}
