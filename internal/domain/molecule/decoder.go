package molecule

import (
	"strings"

	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Decoder turns SMILES strings into validated Molecules.  It is stateless
// and safe for concurrent use by parallel rollouts.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder { return &Decoder{} }

// Decode parses and validates a SMILES string.  Failures are expected and
// frequent for generated candidates; the caller maps them to the -1 reward
// sentinel.
func (d *Decoder) Decode(smiles string) (*Molecule, error) {
	if strings.TrimSpace(smiles) == "" {
		return nil, errors.New(errors.ErrCodeMoleculeInvalidSMILES, "empty SMILES")
	}
	p := &parser{input: smiles}
	mol, err := p.parse()
	if err != nil {
		return nil, err
	}
	if err := mol.deriveHydrogens(); err != nil {
		return nil, err
	}
	mol.perceiveRings(p.ringBonds)
	mol.smiles = smiles
	mol.canonical = canonicalSMILES(mol)
	return mol, nil
}

// organicSubset atoms may be written without brackets; their hydrogen count
// is derived from the default valence.
var organicSubset = map[string]bool{
	"B": true, "C": true, "N": true, "O": true, "P": true, "S": true,
	"F": true, "Cl": true, "Br": true, "I": true,
}

var aromaticSymbols = map[byte]string{
	'b': "B", 'c': "C", 'n': "N", 'o': "O", 'p': "P", 's': "S",
}

type ringOpen struct {
	atom int
	bond byte // pending bond symbol at the opening, 0 if none
}

type parser struct {
	input string
	pos   int

	mol       *Molecule
	prev      int // previous atom index, -1 at a fragment start
	stack     []int
	pending   byte // pending bond symbol, 0 = default
	openRings map[int]ringOpen
	ringBonds []int // bond indexes created by ring closures
}

func (p *parser) errf(msg string) error {
	return errors.New(errors.ErrCodeMoleculeInvalidSMILES, msg).WithDetail(p.input)
}

func (p *parser) parse() (*Molecule, error) {
	p.mol = &Molecule{}
	p.prev = -1
	p.openRings = make(map[int]ringOpen)

	for p.pos < len(p.input) {
		c := p.input[p.pos]
		switch {
		case c == '(':
			if p.prev < 0 {
				return nil, p.errf("branch before any atom")
			}
			p.stack = append(p.stack, p.prev)
			p.pos++
		case c == ')':
			if len(p.stack) == 0 {
				return nil, p.errf("unbalanced closing parenthesis")
			}
			p.prev = p.stack[len(p.stack)-1]
			p.stack = p.stack[:len(p.stack)-1]
			p.pos++
		case c == '-' || c == '=' || c == '#' || c == ':' || c == '/' || c == '\\':
			if p.pending != 0 {
				return nil, p.errf("two consecutive bond symbols")
			}
			p.pending = c
			p.pos++
		case c == '.':
			if p.pending != 0 {
				return nil, p.errf("bond before fragment separator")
			}
			p.prev = -1
			p.pos++
		case c >= '0' && c <= '9':
			if err := p.ringClosure(int(c - '0')); err != nil {
				return nil, err
			}
			p.pos++
		case c == '%':
			if p.pos+2 >= len(p.input) || !isDigit(p.input[p.pos+1]) || !isDigit(p.input[p.pos+2]) {
				return nil, p.errf("malformed two-digit ring bond")
			}
			n := int(p.input[p.pos+1]-'0')*10 + int(p.input[p.pos+2]-'0')
			if err := p.ringClosure(n); err != nil {
				return nil, err
			}
			p.pos += 3
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return nil, err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return nil, err
			}
		}
	}

	if len(p.stack) != 0 {
		return nil, p.errf("unbalanced opening parenthesis")
	}
	if len(p.openRings) != 0 {
		return nil, p.errf("unclosed ring bond")
	}
	if p.pending != 0 {
		return nil, p.errf("dangling bond symbol")
	}
	if len(p.mol.Atoms) == 0 {
		return nil, p.errf("no atoms")
	}
	return p.mol, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// addAtom appends an atom and bonds it to the previous atom with the pending
// bond symbol.
func (p *parser) addAtom(a Atom) error {
	idx := len(p.mol.Atoms)
	p.mol.Atoms = append(p.mol.Atoms, a)
	if p.prev >= 0 {
		if err := p.addBond(p.prev, idx, p.pending); err != nil {
			return err
		}
	} else if p.pending != 0 {
		return p.errf("bond with no preceding atom")
	}
	p.pending = 0
	p.prev = idx
	return nil
}

func (p *parser) addBond(a1, a2 int, sym byte) error {
	if a1 == a2 {
		return p.errf("self bond")
	}
	if p.mol.BondBetween(a1, a2) != nil {
		return p.errf("duplicate bond between atoms")
	}
	b := Bond{A1: a1, A2: a2, Order: BondSingle}
	switch sym {
	case 0, '-', '/', '\\':
		// Default bond: aromatic when both atoms are aromatic.
		if p.mol.Atoms[a1].Aromatic && p.mol.Atoms[a2].Aromatic {
			b.Aromatic = true
		}
	case '=':
		b.Order = BondDouble
	case '#':
		b.Order = BondTriple
	case ':':
		b.Aromatic = true
	}
	bi := len(p.mol.Bonds)
	p.mol.Bonds = append(p.mol.Bonds, b)
	p.mol.Atoms[a1].bonds = append(p.mol.Atoms[a1].bonds, bi)
	p.mol.Atoms[a2].bonds = append(p.mol.Atoms[a2].bonds, bi)
	return nil
}

func (p *parser) ringClosure(n int) error {
	if p.prev < 0 {
		return p.errf("ring bond before any atom")
	}
	open, ok := p.openRings[n]
	if !ok {
		p.openRings[n] = ringOpen{atom: p.prev, bond: p.pending}
		p.pending = 0
		return nil
	}
	delete(p.openRings, n)
	sym := p.pending
	if sym == 0 {
		sym = open.bond
	} else if open.bond != 0 && open.bond != sym {
		return p.errf("conflicting bond orders on ring closure")
	}
	p.pending = 0
	if err := p.addBond(open.atom, p.prev, sym); err != nil {
		return err
	}
	p.ringBonds = append(p.ringBonds, len(p.mol.Bonds)-1)
	return nil
}

func (p *parser) organicAtom() error {
	c := p.input[p.pos]

	// Two-letter organic-subset elements.
	if c == 'C' && p.pos+1 < len(p.input) && p.input[p.pos+1] == 'l' {
		p.pos += 2
		return p.addAtom(Atom{Symbol: "Cl"})
	}
	if c == 'B' && p.pos+1 < len(p.input) && p.input[p.pos+1] == 'r' {
		p.pos += 2
		return p.addAtom(Atom{Symbol: "Br"})
	}
	if sym, ok := aromaticSymbols[c]; ok {
		p.pos++
		return p.addAtom(Atom{Symbol: sym, Aromatic: true})
	}
	sym := string(c)
	if organicSubset[sym] {
		p.pos++
		return p.addAtom(Atom{Symbol: sym})
	}
	return p.errf("character outside the SMILES grammar: " + sym)
}

func (p *parser) bracketAtom() error {
	end := strings.IndexByte(p.input[p.pos:], ']')
	if end < 0 {
		return p.errf("unbalanced bracket")
	}
	body := p.input[p.pos+1 : p.pos+end]
	p.pos += end + 1
	if body == "" {
		return p.errf("empty bracket atom")
	}

	a := Atom{Bracket: true}
	i := 0

	for i < len(body) && isDigit(body[i]) {
		a.Isotope = a.Isotope*10 + int(body[i]-'0')
		i++
	}
	if i >= len(body) {
		return p.errf("bracket atom has no element symbol")
	}

	// Element symbol: uppercase + optional lowercase, or a lone aromatic
	// lowercase letter.
	if sym, ok := aromaticSymbols[body[i]]; ok {
		a.Symbol = sym
		a.Aromatic = true
		i++
	} else if body[i] >= 'A' && body[i] <= 'Z' {
		j := i + 1
		if j < len(body) && body[j] >= 'a' && body[j] <= 'z' {
			two := body[i : j+1]
			if _, known := atomicWeights[two]; known {
				j++
			}
		}
		a.Symbol = body[i:j]
		i = j
	} else {
		return p.errf("bracket atom has no element symbol")
	}
	if _, known := atomicWeights[a.Symbol]; !known {
		return p.errf("unknown element: " + a.Symbol)
	}

	// Chirality markers are accepted and ignored.
	for i < len(body) && body[i] == '@' {
		i++
	}

	if i < len(body) && body[i] == 'H' {
		i++
		a.HCount = 1
		if i < len(body) && isDigit(body[i]) {
			a.HCount = int(body[i] - '0')
			i++
		}
	}

	for i < len(body) && (body[i] == '+' || body[i] == '-') {
		sign := 1
		if body[i] == '-' {
			sign = -1
		}
		i++
		if i < len(body) && isDigit(body[i]) {
			a.Charge += sign * int(body[i]-'0')
			i++
		} else {
			a.Charge += sign
		}
	}

	// Atom class, accepted and ignored.
	if i < len(body) && body[i] == ':' {
		i++
		if i >= len(body) || !isDigit(body[i]) {
			return p.errf("malformed atom class")
		}
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	}

	if i != len(body) {
		return p.errf("trailing characters in bracket atom")
	}
	return p.addAtom(a)
}

// ─────────────────────────────────────────────────────────────────────────────
// Post-parse validation
// ─────────────────────────────────────────────────────────────────────────────

// deriveHydrogens fills implicit hydrogen counts for organic-subset atoms
// and checks every atom against its allowed valences.
func (m *Molecule) deriveHydrogens() error {
	for i := range m.Atoms {
		a := &m.Atoms[i]
		valences, known := defaultValences[a.Symbol]
		if !known {
			if a.Bracket {
				continue
			}
			return errors.New(errors.ErrCodeMoleculeInvalidSMILES, "element outside organic subset must be bracketed").
				WithDetail(a.Symbol)
		}
		orderX2 := m.bondOrderSumX2(i)

		if a.Bracket {
			// Bracket atoms fix their hydrogen count; validate permissively,
			// letting positive charge raise the maximum valence.
			maxV := valences[len(valences)-1] + max(0, a.Charge)
			if (orderX2+1)/2+a.HCount > maxV+1 {
				return errors.New(errors.ErrCodeMoleculeInvalidSMILES, "valence exceeded").WithDetail(a.Symbol)
			}
			continue
		}

		filled := false
		for _, v := range valences {
			if orderX2 <= 2*v {
				a.HCount = (2*v - orderX2) / 2
				filled = true
				break
			}
		}
		if !filled {
			return errors.New(errors.ErrCodeMoleculeInvalidSMILES, "valence exceeded").WithDetail(a.Symbol)
		}
	}
	return nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// perceiveRings finds, for each ring-closure bond, the shortest cycle
// through it, and marks every bond on those cycles as in-ring.  SMILES
// cycles arise only from ring closures, so this covers every ring.
func (m *Molecule) perceiveRings(ringBonds []int) {
	for _, bi := range ringBonds {
		b := m.Bonds[bi]
		path := m.shortestPath(b.A1, b.A2, bi)
		if path == nil {
			continue
		}
		m.rings = append(m.rings, path)
		for k := 0; k < len(path); k++ {
			if rb := m.BondBetween(path[k], path[(k+1)%len(path)]); rb != nil {
				rb.InRing = true
			}
		}
	}
}

// shortestPath runs BFS from a1 to a2 avoiding bond exclude, returning the
// cycle atom list (path plus the excluded bond implicitly closing it).
func (m *Molecule) shortestPath(a1, a2, exclude int) []int {
	prev := make([]int, len(m.Atoms))
	for i := range prev {
		prev[i] = -2
	}
	prev[a1] = -1
	queue := []int{a1}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == a2 {
			var path []int
			for at := a2; at != -1; at = prev[at] {
				path = append(path, at)
			}
			return path
		}
		for _, bi := range m.Atoms[cur].bonds {
			if bi == exclude {
				continue
			}
			b := m.Bonds[bi]
			next := b.A1
			if next == cur {
				next = b.A2
			}
			if prev[next] == -2 {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	return nil
}
