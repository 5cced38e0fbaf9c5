package filter

import "github.com/turtacn/MolGenesis/internal/domain/molecule"

// RingSize rejects molecules containing a ring larger than the threshold.
// Acyclic molecules always pass.
type RingSize struct {
	threshold int
}

func NewRingSize(threshold int) *RingSize {
	if threshold <= 0 {
		threshold = 6
	}
	return &RingSize{threshold: threshold}
}

func (f *RingSize) Name() string { return NameRingSize }

func (f *RingSize) Evaluate(m *molecule.Molecule) bool {
	return m.MaxRingSize() <= f.threshold
}
