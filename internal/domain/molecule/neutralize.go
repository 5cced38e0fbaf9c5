package molecule

// Neutralize returns a copy of m with simple formal charges removed:
// positively charged atoms carrying hydrogens are deprotonated, negatively
// charged N/O/S atoms are protonated.  Charges that cannot be fixed this way
// (quaternary nitrogen, multi-charged centres) are left as they are.  The
// canonical rendering is recomputed for the copy.
func Neutralize(m *Molecule) *Molecule {
	changed := false
	out := cloneMolecule(m)
	for i := range out.Atoms {
		a := &out.Atoms[i]
		switch {
		case a.Charge > 0 && a.HCount >= a.Charge:
			a.HCount -= a.Charge
			a.Charge = 0
			a.Bracket = true
			changed = true
		case a.Charge < 0 && (a.Symbol == "N" || a.Symbol == "O" || a.Symbol == "S"):
			a.HCount += -a.Charge
			a.Charge = 0
			a.Bracket = true
			changed = true
		}
	}
	if !changed {
		return m
	}
	out.canonical = canonicalSMILES(out)
	out.smiles = out.canonical
	return out
}

func cloneMolecule(m *Molecule) *Molecule {
	out := &Molecule{
		smiles:    m.smiles,
		canonical: m.canonical,
		Atoms:     make([]Atom, len(m.Atoms)),
		Bonds:     make([]Bond, len(m.Bonds)),
		rings:     make([][]int, len(m.rings)),
	}
	copy(out.Bonds, m.Bonds)
	for i, a := range m.Atoms {
		na := a
		na.bonds = make([]int, len(a.bonds))
		copy(na.bonds, a.bonds)
		out.Atoms[i] = na
	}
	for i, ring := range m.rings {
		out.rings[i] = make([]int, len(ring))
		copy(out.rings[i], ring)
	}
	return out
}
