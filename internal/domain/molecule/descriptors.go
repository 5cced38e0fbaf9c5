package molecule

import "math"

// Descriptors collects the physicochemical properties the filter chain and
// reward calculators consume.  All values are heuristic approximations
// computed from the molecular graph; they trade accuracy for a dependency-
// free evaluation path that runs at rollout speed.
type Descriptors struct {
	MolWeight        float64
	LogP             float64
	TPSA             float64
	HBD              int
	HBA              int
	RotatableBonds   int
	RingCount        int
	MaxRingSize      int
	AromaticRings    int
	RadicalElectrons int
	HeavyAtoms       int
	NetCharge        int
}

// ComputeDescriptors derives the full descriptor set for m.
func ComputeDescriptors(m *Molecule) Descriptors {
	d := Descriptors{
		HeavyAtoms:  len(m.Atoms),
		RingCount:   len(m.rings),
		MaxRingSize: m.MaxRingSize(),
	}
	for i := range m.Atoms {
		a := &m.Atoms[i]
		d.MolWeight += atomicWeights[a.Symbol] + float64(a.HCount)*atomicWeights["H"]
		d.LogP += logPContribution(m, i)
		d.TPSA += tpsaContribution(m, i)
		d.NetCharge += a.Charge
		d.RadicalElectrons += radicalElectrons(m, i)

		switch a.Symbol {
		case "N", "O":
			d.HBA++
			if a.HCount > 0 {
				d.HBD++
			}
		}
	}
	d.RotatableBonds = m.RotatableBonds()
	d.AromaticRings = m.AromaticRingCount()
	return d
}

// MaxRingSize returns the size of the largest perceived ring, 0 for acyclic
// molecules.
func (m *Molecule) MaxRingSize() int {
	maxSize := 0
	for _, ring := range m.rings {
		if len(ring) > maxSize {
			maxSize = len(ring)
		}
	}
	return maxSize
}

// AromaticRingCount counts rings whose atoms are all aromatic.
func (m *Molecule) AromaticRingCount() int {
	count := 0
	for _, ring := range m.rings {
		aromatic := true
		for _, at := range ring {
			if !m.Atoms[at].Aromatic {
				aromatic = false
				break
			}
		}
		if aromatic {
			count++
		}
	}
	return count
}

// RotatableBonds counts acyclic single bonds between two heavy atoms that
// are not terminal.
func (m *Molecule) RotatableBonds() int {
	count := 0
	for _, b := range m.Bonds {
		if b.Order != BondSingle || b.Aromatic || b.InRing {
			continue
		}
		if m.Degree(b.A1) > 1 && m.Degree(b.A2) > 1 {
			count++
		}
	}
	return count
}

// HasRadical reports whether any atom carries unpaired electrons.
func (m *Molecule) HasRadical() bool {
	for i := range m.Atoms {
		if radicalElectrons(m, i) > 0 {
			return true
		}
	}
	return false
}

// radicalElectrons derives unpaired electrons from valence deficiency.
// SMILES encodes radicals only implicitly: a bracket atom whose bonds plus
// pinned hydrogens fall short of every allowed valence (charge-adjusted) has
// the difference as unpaired electrons.
func radicalElectrons(m *Molecule, i int) int {
	a := &m.Atoms[i]
	if !a.Bracket {
		return 0
	}
	valences, ok := defaultValences[a.Symbol]
	if !ok {
		return 0
	}
	used := (m.bondOrderSumX2(i)+1)/2 + a.HCount
	for _, v := range valences {
		adjusted := v + a.Charge
		if a.Symbol == "N" || a.Symbol == "O" {
			// Positive charge raises N/O valence, negative lowers it.
			adjusted = v + a.Charge
		} else if a.Charge != 0 {
			adjusted = v - abs(a.Charge)
		}
		if used == adjusted {
			return 0
		}
		if used < adjusted {
			return adjusted - used
		}
	}
	return 0
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// logPContribution is a coarse Crippen-style atom contribution.
func logPContribution(m *Molecule, i int) float64 {
	a := &m.Atoms[i]
	switch a.Symbol {
	case "C":
		if a.Aromatic {
			return 0.29
		}
		return 0.14 + 0.03*float64(a.HCount)
	case "N":
		if a.Aromatic {
			return -0.49
		}
		return -0.90
	case "O":
		if a.Aromatic {
			return -0.20
		}
		if a.HCount > 0 {
			return -0.65
		}
		return -0.25
	case "S":
		return 0.25
	case "F":
		return 0.23
	case "Cl":
		return 0.65
	case "Br":
		return 0.89
	case "I":
		return 1.12
	case "P":
		return -0.45
	default:
		return 0
	}
}

// tpsaContribution approximates the Ertl TPSA contribution of atom i.
// Only nitrogen, oxygen and sulfur contribute.
func tpsaContribution(m *Molecule, i int) float64 {
	a := &m.Atoms[i]
	hasDouble := false
	for _, bi := range a.bonds {
		if m.Bonds[bi].Order == BondDouble {
			hasDouble = true
		}
	}
	switch a.Symbol {
	case "N":
		if a.Aromatic {
			if a.HCount > 0 {
				return 15.79
			}
			return 12.89
		}
		switch a.HCount {
		case 0:
			return 3.24
		case 1:
			return 12.03
		default:
			return 26.02
		}
	case "O":
		if a.Aromatic {
			return 13.14
		}
		if hasDouble {
			return 17.07
		}
		if a.HCount > 0 {
			return 20.23
		}
		return 9.23
	case "S":
		if a.Aromatic {
			return 28.24
		}
		return 25.30
	default:
		return 0
	}
}

// QED approximates quantitative drug-likeness as the geometric mean of
// desirability functions over the classic descriptor set, yielding a value
// in [0, 1].
func QED(m *Molecule) float64 {
	d := ComputeDescriptors(m)
	parts := []float64{
		gaussDesirability(d.MolWeight, 300, 150),
		gaussDesirability(d.LogP, 2.5, 2.5),
		gaussDesirability(d.TPSA, 80, 60),
		gaussDesirability(float64(d.HBD), 1.5, 2),
		gaussDesirability(float64(d.HBA), 4, 3.5),
		gaussDesirability(float64(d.RotatableBonds), 4, 4),
		gaussDesirability(float64(d.AromaticRings), 2, 1.5),
	}
	prod := 1.0
	for _, p := range parts {
		prod *= p
	}
	return math.Pow(prod, 1/float64(len(parts)))
}

// gaussDesirability maps x onto (0, 1] with a Gaussian centred at mu.
func gaussDesirability(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	v := math.Exp(-0.5 * z * z)
	if v < 1e-6 {
		return 1e-6
	}
	return v
}
