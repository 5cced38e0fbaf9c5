package reward

import (
	"math"

	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Normalisation constants for the penalised-LogP objective, estimated over
// the ZINC 250k training set.
const (
	logPMean = 2.457
	logPStd  = 1.434
	saMean   = 3.053
	saStd    = 0.834
	ringMean = 0.048
	ringStd  = 0.287
)

// LogP is the classic benchmark calculator: octanol-water partition
// coefficient penalised by synthetic accessibility and oversized rings,
// z-normalised and squashed into [0, 1].
type LogP struct{}

func NewLogP() *LogP { return &LogP{} }

func (*LogP) Name() string { return "logp" }

// Score implements Calculator.
func (*LogP) Score(m *molecule.Molecule) (float64, map[string]float64, error) {
	if m == nil {
		return Undefined, nil, errors.New(errors.ErrCodeObjectiveFailed, "nil molecule")
	}
	d := molecule.ComputeDescriptors(m)
	sa := molecule.SAScore(m)
	ringPenalty := float64(0)
	if d.MaxRingSize > 6 {
		ringPenalty = float64(d.MaxRingSize - 6)
	}

	j := (d.LogP-logPMean)/logPStd - (sa-saMean)/saStd - (ringPenalty-ringMean)/ringStd
	squashed := j / (1 + math.Abs(j))

	objectives := map[string]float64{
		"logp":         d.LogP,
		"sascore":      sa,
		"ring_penalty": ringPenalty,
	}
	return (squashed + 1) / 2, objectives, nil
}

// QEDCalc scores quantitative drug-likeness directly; QED already lives in
// (0, 1].
type QEDCalc struct{}

func NewQED() *QEDCalc { return &QEDCalc{} }

func (*QEDCalc) Name() string { return "qed" }

// Score implements Calculator.
func (*QEDCalc) Score(m *molecule.Molecule) (float64, map[string]float64, error) {
	if m == nil {
		return Undefined, nil, errors.New(errors.ErrCodeObjectiveFailed, "nil molecule")
	}
	q := molecule.QED(m)
	return q, map[string]float64{"qed": q}, nil
}
