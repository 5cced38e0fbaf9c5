package molecule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// canonicalSMILES produces a deterministic rendering of the molecular graph.
// Atoms are ranked by iterative neighbourhood refinement (Morgan-style
// invariants) and the writer walks the graph in rank order, so any two
// decodes of the same input agree and equivalent atom orderings of simple
// structures converge.  It makes no claim of full graph-isomorphism
// canonicalisation; the duplicate filter only requires determinism.
func canonicalSMILES(m *Molecule) string {
	ranks := canonicalRanks(m)

	// First pass: classify edges.  DFS in rank order; edges to atoms already
	// on the walk become ring closures with a digit shared by both endpoints.
	n := len(m.Atoms)
	visited := make([]bool, n)
	treeChildren := make([][]int, n) // bond indexes of tree edges, in visit order
	ringDigit := make(map[int]int)   // back-edge bond index → digit
	nextDigit := 1

	var classify func(at, fromBond int)
	classify = func(at, fromBond int) {
		visited[at] = true
		type edge struct {
			bond, to int
		}
		var out []edge
		for _, bi := range m.Atoms[at].bonds {
			if bi == fromBond {
				continue
			}
			if _, isRing := ringDigit[bi]; isRing {
				continue
			}
			b := m.Bonds[bi]
			to := b.A1
			if to == at {
				to = b.A2
			}
			if visited[to] {
				ringDigit[bi] = nextDigit
				nextDigit++
				continue
			}
			out = append(out, edge{bond: bi, to: to})
		}
		sort.Slice(out, func(a, b int) bool {
			if ranks[out[a].to] != ranks[out[b].to] {
				return ranks[out[a].to] < ranks[out[b].to]
			}
			return out[a].to < out[b].to
		})
		for _, e := range out {
			if visited[e.to] {
				// Became reachable through a sibling subtree; close as ring.
				if _, isRing := ringDigit[e.bond]; !isRing {
					ringDigit[e.bond] = nextDigit
					nextDigit++
				}
				continue
			}
			treeChildren[at] = append(treeChildren[at], e.bond)
			classify(e.to, e.bond)
		}
	}

	// Second pass: render.
	var sb strings.Builder
	var write func(at int)
	write = func(at int) {
		sb.WriteString(atomText(m, at))
		for _, bi := range m.Atoms[at].bonds {
			if d, ok := ringDigit[bi]; ok {
				sb.WriteString(bondText(m.Bonds[bi]))
				sb.WriteString(digitText(d))
			}
		}
		children := treeChildren[at]
		for i, bi := range children {
			b := m.Bonds[bi]
			to := b.A1
			if to == at {
				to = b.A2
			}
			branch := i < len(children)-1
			if branch {
				sb.WriteByte('(')
			}
			sb.WriteString(bondText(b))
			write(to)
			if branch {
				sb.WriteByte(')')
			}
		}
	}

	// Fragments are written lowest-rank-first and joined by '.'.
	type start struct{ atom, rank int }
	var starts []start
	comp := components(m)
	for _, atoms := range comp {
		best := atoms[0]
		for _, a := range atoms[1:] {
			if ranks[a] < ranks[best] || (ranks[a] == ranks[best] && a < best) {
				best = a
			}
		}
		starts = append(starts, start{atom: best, rank: ranks[best]})
	}
	sort.Slice(starts, func(a, b int) bool { return starts[a].rank < starts[b].rank })

	for i, s := range starts {
		if i > 0 {
			sb.WriteByte('.')
		}
		classify(s.atom, -1)
		write(s.atom)
	}
	return sb.String()
}

// canonicalRanks assigns each atom a rank by iterative refinement of local
// invariants.
func canonicalRanks(m *Molecule) []int {
	n := len(m.Atoms)
	keys := make([]string, n)
	for i, a := range m.Atoms {
		keys[i] = fmt.Sprintf("%s|%d|%d|%d|%t", a.Symbol, m.Degree(i), a.Charge, a.HCount, a.Aromatic)
	}
	ranks := ranksFromKeys(keys)

	for iter := 0; iter < n; iter++ {
		next := make([]string, n)
		for i := range m.Atoms {
			nb := m.Neighbors(i)
			nbRanks := make([]int, len(nb))
			for j, to := range nb {
				nbRanks[j] = ranks[to]
			}
			sort.Ints(nbRanks)
			next[i] = fmt.Sprintf("%d|%v", ranks[i], nbRanks)
		}
		refined := ranksFromKeys(next)
		if equalInts(refined, ranks) {
			break
		}
		ranks = refined
	}
	return ranks
}

func ranksFromKeys(keys []string) []int {
	uniq := make([]string, len(keys))
	copy(uniq, keys)
	sort.Strings(uniq)
	pos := make(map[string]int, len(uniq))
	for i, k := range uniq {
		if _, ok := pos[k]; !ok {
			pos[k] = i
		}
	}
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = pos[k]
	}
	return out
}

func equalInts(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// components groups atom indexes by connected component.
func components(m *Molecule) [][]int {
	seen := make([]bool, len(m.Atoms))
	var out [][]int
	for i := range m.Atoms {
		if seen[i] {
			continue
		}
		var comp []int
		queue := []int{i}
		seen[i] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, to := range m.Neighbors(cur) {
				if !seen[to] {
					seen[to] = true
					queue = append(queue, to)
				}
			}
		}
		out = append(out, comp)
	}
	return out
}

// atomText renders one atom, bracketing only when necessary.
func atomText(m *Molecule, i int) string {
	a := m.Atoms[i]
	sym := a.Symbol
	if a.Aromatic {
		sym = strings.ToLower(sym)
	}

	needBracket := a.Charge != 0 || a.Isotope != 0 || !organicSubset[a.Symbol]
	if !needBracket && a.Bracket {
		// Keep the bracket when the pinned hydrogen count differs from what
		// implicit derivation would produce.
		needBracket = a.HCount != impliedHCount(m, i)
	}
	if !needBracket {
		return sym
	}

	var sb strings.Builder
	sb.WriteByte('[')
	if a.Isotope != 0 {
		sb.WriteString(strconv.Itoa(a.Isotope))
	}
	sb.WriteString(sym)
	if a.HCount == 1 {
		sb.WriteByte('H')
	} else if a.HCount > 1 {
		sb.WriteByte('H')
		sb.WriteString(strconv.Itoa(a.HCount))
	}
	switch {
	case a.Charge == 1:
		sb.WriteByte('+')
	case a.Charge == -1:
		sb.WriteByte('-')
	case a.Charge > 1:
		sb.WriteByte('+')
		sb.WriteString(strconv.Itoa(a.Charge))
	case a.Charge < -1:
		sb.WriteByte('-')
		sb.WriteString(strconv.Itoa(-a.Charge))
	}
	sb.WriteByte(']')
	return sb.String()
}

// impliedHCount computes the hydrogen count an unbracketed rendering of
// atom i would imply.
func impliedHCount(m *Molecule, i int) int {
	valences, ok := defaultValences[m.Atoms[i].Symbol]
	if !ok {
		return -1
	}
	orderX2 := m.bondOrderSumX2(i)
	for _, v := range valences {
		if orderX2 <= 2*v {
			return (2*v - orderX2) / 2
		}
	}
	return -1
}

func bondText(b Bond) string {
	if b.Aromatic {
		return ""
	}
	switch b.Order {
	case BondDouble:
		return "="
	case BondTriple:
		return "#"
	default:
		return ""
	}
}

func digitText(d int) string {
	if d < 10 {
		return strconv.Itoa(d)
	}
	return "%" + strconv.Itoa(d)
}
