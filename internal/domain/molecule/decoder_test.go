package molecule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDecode(t *testing.T, smiles string) *Molecule {
	t.Helper()
	mol, err := NewDecoder().Decode(smiles)
	require.NoError(t, err, "decoding %q", smiles)
	return mol
}

func TestDecode_Ethanol(t *testing.T) {
	mol := mustDecode(t, "CCO")
	require.Len(t, mol.Atoms, 3)
	require.Len(t, mol.Bonds, 2)

	assert.Equal(t, 3, mol.Atoms[0].HCount)
	assert.Equal(t, 2, mol.Atoms[1].HCount)
	assert.Equal(t, 1, mol.Atoms[2].HCount)
	assert.Equal(t, "O", mol.Atoms[2].Symbol)
	assert.Empty(t, mol.Rings())
}

func TestDecode_Benzene(t *testing.T) {
	mol := mustDecode(t, "c1ccccc1")
	require.Len(t, mol.Atoms, 6)
	require.Len(t, mol.Bonds, 6)
	require.Len(t, mol.Rings(), 1)
	assert.Equal(t, 6, mol.MaxRingSize())
	assert.Equal(t, 1, mol.AromaticRingCount())
	for i := range mol.Atoms {
		assert.True(t, mol.Atoms[i].Aromatic)
		assert.Equal(t, 1, mol.Atoms[i].HCount)
	}
	for _, b := range mol.Bonds {
		assert.True(t, b.Aromatic)
		assert.True(t, b.InRing)
	}
}

func TestDecode_BracketAtoms(t *testing.T) {
	mol := mustDecode(t, "[NH4+]")
	require.Len(t, mol.Atoms, 1)
	assert.Equal(t, "N", mol.Atoms[0].Symbol)
	assert.Equal(t, 4, mol.Atoms[0].HCount)
	assert.Equal(t, 1, mol.Atoms[0].Charge)

	mol = mustDecode(t, "[O-]C")
	assert.Equal(t, -1, mol.Atoms[0].Charge)
	assert.Equal(t, 0, mol.Atoms[0].HCount)

	mol = mustDecode(t, "[13CH4]")
	assert.Equal(t, 13, mol.Atoms[0].Isotope)
}

func TestDecode_BondOrders(t *testing.T) {
	mol := mustDecode(t, "C=C")
	assert.Equal(t, BondDouble, mol.Bonds[0].Order)
	assert.Equal(t, 2, mol.Atoms[0].HCount)

	mol = mustDecode(t, "C#N")
	assert.Equal(t, BondTriple, mol.Bonds[0].Order)
	assert.Equal(t, 1, mol.Atoms[0].HCount)
	assert.Equal(t, 0, mol.Atoms[1].HCount)
}

func TestDecode_Branches(t *testing.T) {
	// Isobutane: central carbon with three methyl branches.
	mol := mustDecode(t, "CC(C)C")
	require.Len(t, mol.Atoms, 4)
	assert.Equal(t, 3, mol.Degree(1))
	assert.Equal(t, 1, mol.Atoms[1].HCount)
}

func TestDecode_TwoDigitRingBond(t *testing.T) {
	mol := mustDecode(t, "C%10CCCCC%10")
	require.Len(t, mol.Rings(), 1)
	assert.Equal(t, 6, mol.MaxRingSize())
}

func TestDecode_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		smiles string
	}{
		{"empty", ""},
		{"unclosed ring", "C1CC"},
		{"unbalanced open paren", "C(C"},
		{"unbalanced close paren", "CC)C"},
		{"dangling bond", "CC="},
		{"double bond symbol", "C==C"},
		{"unknown character", "CX"},
		{"unbalanced bracket", "[CH3"},
		{"empty bracket", "[]C"},
		{"valence exceeded", "C(C)(C)(C)(C)C"},
		{"branch before atom", "(CC)"},
	}
	d := NewDecoder()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode(tt.smiles)
			assert.Error(t, err)
		})
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	a := mustDecode(t, "CCO")
	b := mustDecode(t, "CCO")
	assert.Equal(t, a.Canonical(), b.Canonical())

	// Equivalent orderings of simple chains converge.
	c := mustDecode(t, "OCC")
	assert.Equal(t, a.Canonical(), c.Canonical())
}

func TestCanonical_RoundTrips(t *testing.T) {
	// The canonical rendering must itself decode, and re-canonicalise to
	// the same string (idempotence).
	for _, smiles := range []string{"CCO", "c1ccccc1", "CC(C)C", "C1CCCCC1", "C=CC#N", "[NH4+]", "CC(=O)O"} {
		mol := mustDecode(t, smiles)
		again := mustDecode(t, mol.Canonical())
		assert.Equal(t, mol.Canonical(), again.Canonical(), "idempotence for %q", smiles)
		assert.Equal(t, len(mol.Atoms), len(again.Atoms))
	}
}

func TestNeutralize(t *testing.T) {
	mol := Neutralize(mustDecode(t, "[NH4+]"))
	assert.Equal(t, 0, mol.Atoms[0].Charge)
	assert.Equal(t, 3, mol.Atoms[0].HCount)
	assert.Equal(t, "N", mol.Canonical())

	mol = Neutralize(mustDecode(t, "C[O-]"))
	d := ComputeDescriptors(mol)
	assert.Equal(t, 0, d.NetCharge)

	// Neutral molecules pass through unchanged.
	orig := mustDecode(t, "CCO")
	assert.Same(t, orig, Neutralize(orig))
}

func TestHasRadical(t *testing.T) {
	assert.True(t, mustDecode(t, "[CH3]").HasRadical())
	assert.False(t, mustDecode(t, "[CH4]").HasRadical())
	assert.False(t, mustDecode(t, "CC").HasRadical())
}
