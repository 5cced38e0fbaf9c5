package filter

import "github.com/turtacn/MolGenesis/internal/domain/molecule"

// Radical rejects molecules with unpaired electrons, which the token model
// occasionally emits via under-hydrogenated bracket atoms.
type Radical struct{}

func NewRadical() *Radical { return &Radical{} }

func (f *Radical) Name() string { return NameRadical }

func (f *Radical) Evaluate(m *molecule.Molecule) bool {
	return !m.HasRadical()
}
