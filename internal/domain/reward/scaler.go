package reward

import (
	"math"

	"github.com/turtacn/MolGenesis/internal/config"
	"github.com/turtacn/MolGenesis/pkg/errors"
)

// Scaling modes accepted by ObjectiveConfig.Scaling.
const (
	ScalingMaxGauss = "max_gauss"
	ScalingMinGauss = "min_gauss"
	ScalingMinMax   = "minmax"
)

// shape maps a raw objective value into [0, 1] according to the objective's
// scaling configuration:
//
//	max_gauss: 1 at or above mu, Gaussian falloff below it
//	min_gauss: 1 at or below mu, Gaussian falloff above it
//	minmax:    linear between min and max, clamped
//	"":        raw value passed through, clamped to [0, 1]
func shape(cfg config.ObjectiveConfig, raw float64) float64 {
	switch cfg.Scaling {
	case ScalingMaxGauss:
		if raw >= cfg.Mu {
			return 1
		}
		return gauss(raw, cfg.Mu, cfg.Sigma)
	case ScalingMinGauss:
		if raw <= cfg.Mu {
			return 1
		}
		return gauss(raw, cfg.Mu, cfg.Sigma)
	case ScalingMinMax:
		if cfg.Max <= cfg.Min {
			return clamp01(raw)
		}
		return clamp01((raw - cfg.Min) / (cfg.Max - cfg.Min))
	default:
		return clamp01(raw)
	}
}

// validateScaling rejects scaling configurations shape cannot evaluate.
func validateScaling(cfg config.ObjectiveConfig) error {
	switch cfg.Scaling {
	case "", ScalingMinMax:
		return nil
	case ScalingMaxGauss, ScalingMinGauss:
		if cfg.Sigma <= 0 {
			return errors.New(errors.ErrCodeRewardConfigInvalid, "gaussian scaling requires positive sigma").
				WithDetail(cfg.Name)
		}
		return nil
	default:
		return errors.New(errors.ErrCodeRewardConfigInvalid, "unknown scaling mode").WithDetail(cfg.Scaling)
	}
}

func gauss(x, mu, sigma float64) float64 {
	z := (x - mu) / sigma
	return math.Exp(-0.5 * z * z)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
