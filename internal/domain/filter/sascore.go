package filter

import "github.com/turtacn/MolGenesis/internal/domain/molecule"

// SAScore rejects molecules whose synthetic-accessibility estimate exceeds
// the threshold.
type SAScore struct {
	threshold float64
}

func NewSAScore(threshold float64) *SAScore {
	if threshold <= 0 {
		threshold = 3.5
	}
	return &SAScore{threshold: threshold}
}

func (f *SAScore) Name() string { return NameSAScore }

func (f *SAScore) Evaluate(m *molecule.Molecule) bool {
	return molecule.SAScore(m) <= f.threshold
}
