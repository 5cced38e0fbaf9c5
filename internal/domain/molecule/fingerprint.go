package molecule

import (
	"encoding/binary"
	"hash/fnv"
	"math/bits"
	"sort"
	"strconv"
)

// Fingerprint is a fixed-length bit vector encoding molecular structure.
// Bit i lives in byte i/8 at position i%8.
type Fingerprint struct {
	Bits      []byte
	Length    int
	NumOnBits int
}

// newFingerprint wraps a packed bit array, computing its popcount.
func newFingerprint(data []byte, length int) *Fingerprint {
	on := 0
	for _, b := range data {
		on += bits.OnesCount8(b)
	}
	return &Fingerprint{Bits: data, Length: length, NumOnBits: on}
}

// GetBit reports whether bit index is set.
func (fp *Fingerprint) GetBit(index int) bool {
	if index < 0 || index >= fp.Length {
		return false
	}
	return fp.Bits[index/8]&(1<<uint(index%8)) != 0
}

// Dense expands the fingerprint into a float64 vector, the input layout the
// JSON linear activity models are trained on.
func (fp *Fingerprint) Dense() []float64 {
	out := make([]float64, fp.Length)
	for i := 0; i < fp.Length; i++ {
		if fp.GetBit(i) {
			out[i] = 1
		}
	}
	return out
}

// Tanimoto computes the Tanimoto similarity between two fingerprints of the
// same length: |A∩B| / |A∪B|.  Two empty fingerprints score 1.
func (fp *Fingerprint) Tanimoto(other *Fingerprint) float64 {
	if other == nil || fp.Length != other.Length {
		return 0
	}
	inter, union := 0, 0
	for i := range fp.Bits {
		inter += bits.OnesCount8(fp.Bits[i] & other.Bits[i])
		union += bits.OnesCount8(fp.Bits[i] | other.Bits[i])
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// MorganFingerprint computes a circular fingerprint of the molecular graph:
// every atom's neighbourhood at each radius up to the given limit is hashed
// into the bit vector.  Radius 2 with 2048 bits matches the layout the
// activity models are trained on.
func (m *Molecule) MorganFingerprint(radius, nBits int) *Fingerprint {
	if radius < 0 {
		radius = 2
	}
	if nBits <= 0 {
		nBits = 2048
	}
	data := make([]byte, (nBits+7)/8)

	// Initial atom identifiers from local invariants.
	ids := make([]uint64, len(m.Atoms))
	for i, a := range m.Atoms {
		ids[i] = hash64(a.Symbol + "|" + strconv.Itoa(m.Degree(i)) + "|" +
			strconv.Itoa(a.Charge) + "|" + strconv.Itoa(a.HCount) + "|" +
			strconv.FormatBool(a.Aromatic))
		setFPBit(data, int(ids[i]%uint64(nBits)))
	}

	// Iterative expansion: fold sorted (bond, neighbour-id) pairs into each
	// atom's identifier.
	for r := 1; r <= radius; r++ {
		next := make([]uint64, len(ids))
		for i := range m.Atoms {
			type pair struct {
				bond int
				id   uint64
			}
			var env []pair
			for _, bi := range m.Atoms[i].bonds {
				b := m.Bonds[bi]
				to := b.A1
				if to == i {
					to = b.A2
				}
				order := b.Order
				if b.Aromatic {
					order = 4
				}
				env = append(env, pair{bond: order, id: ids[to]})
			}
			sort.Slice(env, func(a, b int) bool {
				if env[a].bond != env[b].bond {
					return env[a].bond < env[b].bond
				}
				return env[a].id < env[b].id
			})
			buf := make([]byte, 0, 8*(1+2*len(env)))
			buf = binary.BigEndian.AppendUint64(buf, ids[i])
			for _, e := range env {
				buf = binary.BigEndian.AppendUint64(buf, uint64(e.bond))
				buf = binary.BigEndian.AppendUint64(buf, e.id)
			}
			next[i] = hashBytes(buf)
			setFPBit(data, int(next[i]%uint64(nBits)))
		}
		ids = next
	}
	return newFingerprint(data, nBits)
}

func setFPBit(data []byte, index int) {
	data[index/8] |= 1 << uint(index%8)
}

func hash64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

func hashBytes(b []byte) uint64 {
	h := fnv.New64a()
	h.Write(b)
	return h.Sum64()
}
