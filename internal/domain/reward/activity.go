package reward

import (
	"encoding/json"
	"os"

	"github.com/turtacn/MolGenesis/internal/domain/molecule"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// ActivityModel is a linear model over Morgan fingerprint bits, the exported
// form of the property predictors trained offline.  The JSON layout is
//
//	{"bias": -1.2, "weights": [...], "radius": 2, "n_bits": 2048}
//
// where weights has exactly n_bits entries.
type ActivityModel struct {
	Bias    float64   `json:"bias"`
	Weights []float64 `json:"weights"`
	Radius  int       `json:"radius"`
	NBits   int       `json:"n_bits"`
}

// LoadActivityModel reads and validates a linear model file.
func LoadActivityModel(path string) (*ActivityModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRewardConfigInvalid, "reading activity model").WithDetail(path)
	}
	var m ActivityModel
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRewardConfigInvalid, "parsing activity model").WithDetail(path)
	}
	if m.NBits <= 0 {
		m.NBits = 2048
	}
	if m.Radius <= 0 {
		m.Radius = 2
	}
	if len(m.Weights) != m.NBits {
		return nil, errors.New(errors.ErrCodeRewardConfigInvalid, "activity model weight count does not match n_bits").
			WithDetail(path)
	}
	return &m, nil
}

// Predict evaluates the linear model on the molecule's fingerprint.
func (am *ActivityModel) Predict(mol *molecule.Molecule) float64 {
	fp := mol.MorganFingerprint(am.Radius, am.NBits)
	sum := am.Bias
	for i := 0; i < am.NBits; i++ {
		if fp.GetBit(i) {
			sum += am.Weights[i]
		}
	}
	return sum
}
