package molecule

import "math"

// SAScore estimates synthetic accessibility on the conventional 1 (easy) to
// 10 (hard) scale.  It is a graph-complexity heuristic in the spirit of the
// Ertl score: size, ring complexity (fused and large rings), heteroatom
// load, charge and radical centres all add difficulty, dampened so common
// drug-like molecules land in the 2-4 band.
func SAScore(m *Molecule) float64 {
	d := ComputeDescriptors(m)
	heavy := float64(d.HeavyAtoms)
	if heavy == 0 {
		return 10
	}

	// Size: growth beyond ~40 heavy atoms gets progressively harder.
	sizePenalty := math.Max(0, heavy-40) * 0.04

	// Ring system complexity.
	ringPenalty := 0.3 * float64(d.RingCount)
	if d.MaxRingSize > 8 {
		// Macrocycles are disproportionately hard.
		ringPenalty += 0.5 + 0.1*float64(d.MaxRingSize-8)
	}
	fused := fusedRingPairs(m)
	ringPenalty += 0.25 * float64(fused)

	// Heteroatom load relative to carbon skeleton.
	hetero := 0
	for _, a := range m.Atoms {
		if a.Symbol != "C" {
			hetero++
		}
	}
	heteroPenalty := math.Max(0, float64(hetero)/heavy-0.4) * 3

	chargePenalty := 0.0
	for _, a := range m.Atoms {
		if a.Charge != 0 {
			chargePenalty += 0.3
		}
	}
	radicalPenalty := 1.5 * float64(d.RadicalElectrons)

	// Flexibility barely hurts synthesis; long floppy chains slightly do.
	flexPenalty := math.Max(0, float64(d.RotatableBonds)-10) * 0.05

	raw := 1.5 + sizePenalty + ringPenalty + heteroPenalty + chargePenalty + radicalPenalty + flexPenalty
	if raw < 1 {
		return 1
	}
	if raw > 10 {
		return 10
	}
	return raw
}

// fusedRingPairs counts pairs of perceived rings sharing at least one bond.
func fusedRingPairs(m *Molecule) int {
	type edge struct{ a, b int }
	norm := func(a, b int) edge {
		if a > b {
			a, b = b, a
		}
		return edge{a, b}
	}
	ringEdges := make([]map[edge]bool, len(m.rings))
	for i, ring := range m.rings {
		set := make(map[edge]bool, len(ring))
		for k := range ring {
			set[norm(ring[k], ring[(k+1)%len(ring)])] = true
		}
		ringEdges[i] = set
	}
	pairs := 0
	for i := 0; i < len(ringEdges); i++ {
		for j := i + 1; j < len(ringEdges); j++ {
			for e := range ringEdges[i] {
				if ringEdges[j][e] {
					pairs++
					break
				}
			}
		}
	}
	return pairs
}
