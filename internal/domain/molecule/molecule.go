// Package molecule is the engine's pure-Go cheminformatics layer: a SMILES
// decoder/validator, descriptor computation, circular fingerprints, charge
// neutralization and a synthetic-accessibility heuristic.  It exists so the
// search core can treat "token sequence → scored candidate" as a local call
// instead of shelling out to an external toolkit.
package molecule

// Atom is one heavy atom in the molecular graph.  Hydrogens are implicit
// except where a bracket expression pins them explicitly.
type Atom struct {
	// Symbol is the element symbol with standard capitalisation ("C", "Cl").
	Symbol   string
	Aromatic bool
	Charge   int
	Isotope  int

	// HCount is the hydrogen count; for bracket atoms it is the explicit
	// count, otherwise it is derived from the default valence.
	HCount int

	// Bracket reports whether the atom was written in bracket form, which
	// fixes HCount instead of deriving it.
	Bracket bool

	// bonds indexes into Molecule.Bonds.
	bonds []int
}

// Bond orders; aromatic bonds carry Order 1 with Aromatic set and count as
// 1.5 in valence arithmetic.
const (
	BondSingle = 1
	BondDouble = 2
	BondTriple = 3
)

// Bond connects two atoms by index.
type Bond struct {
	A1, A2   int
	Order    int
	Aromatic bool
	// InRing is set by ring perception.
	InRing bool
}

// Molecule is a decoded, validated candidate.  It is immutable after
// decoding; Neutralize returns a modified copy.
type Molecule struct {
	smiles    string
	canonical string
	Atoms     []Atom
	Bonds     []Bond
	// rings holds one atom-index cycle per ring-closure back edge, each the
	// shortest cycle through that edge.
	rings [][]int
}

// SMILES returns the string the molecule was decoded from.
func (m *Molecule) SMILES() string { return m.smiles }

// Canonical returns the deterministic canonical rendering computed at decode
// time.  Two decodes of the same string always agree, which is what the
// duplicate filter keys on.
func (m *Molecule) Canonical() string { return m.canonical }

// HeavyAtomCount returns the number of non-hydrogen atoms.
func (m *Molecule) HeavyAtomCount() int { return len(m.Atoms) }

// Rings returns the perceived rings as atom-index cycles.
func (m *Molecule) Rings() [][]int { return m.rings }

// Neighbors returns the atom indexes bonded to atom i.
func (m *Molecule) Neighbors(i int) []int {
	out := make([]int, 0, len(m.Atoms[i].bonds))
	for _, bi := range m.Atoms[i].bonds {
		b := m.Bonds[bi]
		if b.A1 == i {
			out = append(out, b.A2)
		} else {
			out = append(out, b.A1)
		}
	}
	return out
}

// BondBetween returns the bond connecting atoms i and j, or nil.
func (m *Molecule) BondBetween(i, j int) *Bond {
	for _, bi := range m.Atoms[i].bonds {
		b := &m.Bonds[bi]
		if (b.A1 == i && b.A2 == j) || (b.A1 == j && b.A2 == i) {
			return b
		}
	}
	return nil
}

// Degree returns the number of heavy-atom neighbours of atom i.
func (m *Molecule) Degree(i int) int { return len(m.Atoms[i].bonds) }

// bondOrderSumX2 returns twice the total bond order at atom i, counting
// aromatic bonds as 1.5 (3 when doubled), so the arithmetic stays integral.
func (m *Molecule) bondOrderSumX2(i int) int {
	sum := 0
	for _, bi := range m.Atoms[i].bonds {
		b := m.Bonds[bi]
		if b.Aromatic {
			sum += 3
		} else {
			sum += 2 * b.Order
		}
	}
	return sum
}

// defaultValences lists the standard valences used for implicit-hydrogen
// derivation and validation, in increasing order.
var defaultValences = map[string][]int{
	"B": {3}, "C": {4}, "N": {3, 5}, "O": {2}, "P": {3, 5},
	"S": {2, 4, 6}, "F": {1}, "Cl": {1, 3, 5, 7}, "Br": {1, 3, 5, 7}, "I": {1, 3, 5, 7},
	"Si": {4}, "Se": {2, 4, 6}, "As": {3, 5},
}

// atomicWeights covers the elements the decoder accepts.
var atomicWeights = map[string]float64{
	"H": 1.008, "B": 10.81, "C": 12.011, "N": 14.007, "O": 15.999,
	"F": 18.998, "Si": 28.085, "P": 30.974, "S": 32.06, "Cl": 35.45,
	"Se": 78.971, "Br": 79.904, "I": 126.904, "As": 74.922,
}
