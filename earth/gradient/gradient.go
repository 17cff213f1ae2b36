// Package gradient replaces linear-gradient layers with stacks of
// homogeneous sublayers that the reflectivity program can handle.
package gradient

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/earth/model"
)

// RhoPerVp is the empirical density gradient per unit Vp gradient. The
// supplied Vs gradient plays no part in the density of the sublayers.
const RhoPerVp = 0.32

// DefaultRoundDigits is the number of decimals derived velocities and
// densities are rounded to, so that 3.1229999999 prints as 3.123.
const DefaultRoundDigits = 5

// Config controls how gradient layers are discretized.
type Config struct {
	// RoundDigits is the number of decimal places kept for derived vp, vs
	// and rho. Negative disables rounding.
	RoundDigits int
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns the legacy discretization settings.
func DefaultConfig() Config {
	return Config{RoundDigits: DefaultRoundDigits}
}

// WithRoundDigits sets the rounding precision of derived values.
func WithRoundDigits(digits int) Option {
	return func(cfg *Config) {
		cfg.RoundDigits = digits
	}
}

func applyOptions(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

func (cfg Config) round(v float64) float64 {
	if cfg.RoundDigits < 0 {
		return v
	}

	scale := math.Pow(10, float64(cfg.RoundDigits))

	return math.Round(v*scale) / scale
}

// Apply replaces layers[index] with n = ceil(thickness/stepKm) homogeneous
// sublayers of equal thickness, sampling vp, vs and rho at each sublayer top
// along the given gradients (per km). Density steps by RhoPerVp times the vp
// step. If the expanded layer sits directly on the halfspace, the halfspace
// takes the velocities and density of the last sublayer.
//
// The input slice is not modified.
func Apply(layers []model.Layer, index int, vpGrad, vsGrad, stepKm float64, opts ...Option) ([]model.Layer, error) {
	if index < 0 || index >= len(layers)-1 {
		return nil, fmt.Errorf("%w: %d, model has %d layers and the last is the halfspace",
			model.ErrInvalidLayerIndex, index, len(layers))
	}

	target := layers[index]
	if target.IsHalfspace() {
		return nil, fmt.Errorf("%w: layer %d has zero thickness", model.ErrInvalidLayerIndex, index)
	}

	if !(stepKm > 0) || math.IsInf(stepKm, 0) {
		return nil, fmt.Errorf("%w: gradient step must be finite and > 0, got %v", model.ErrInvalidParameter, stepKm)
	}

	cfg := applyOptions(opts)

	n := max(int(math.Ceil(target.Thickness/stepKm)), 1)

	dz := target.Thickness / float64(n)
	dvp := vpGrad * dz
	dvs := vsGrad * dz
	drho := RhoPerVp * vpGrad * dz

	out := make([]model.Layer, 0, len(layers)+n-1)
	out = append(out, layers[:index]...)

	for i := range n {
		sub := target
		sub.Thickness = dz
		sub.Vp = cfg.round(target.Vp + float64(i)*dvp)
		sub.Vs = cfg.round(target.Vs + float64(i)*dvs)
		sub.Rho = cfg.round(target.Rho + float64(i)*drho)
		sub.VpGradient = 0
		sub.VsGradient = 0
		sub.RhoGradient = 0
		out = append(out, sub)
	}

	rest := layers[index+1:]
	if len(rest) == 1 {
		// no discrete jump between the last sublayer and the halfspace
		last := out[len(out)-1]
		hs := rest[0]
		hs.Vp = last.Vp
		hs.Vs = last.Vs
		hs.Rho = last.Rho
		hs.VpGradient = 0
		hs.VsGradient = 0
		hs.RhoGradient = 0
		return append(out, hs), nil
	}

	return append(out, rest...), nil
}

// Evaluate expands every gradient layer using its own vp and vs gradients,
// until none are left. After each expansion the scan restarts from the top
// because the indices behind the expanded layer have shifted.
//
// Density follows the vp gradient, so a rho gradient alone does not trigger
// an expansion. Every returned layer has a zero RhoGradient.
func Evaluate(layers []model.Layer, stepKm float64, opts ...Option) ([]model.Layer, error) {
	out := model.CloneLayers(layers)

	for {
		idx := firstGradientLayer(out)
		if idx < 0 {
			for i := range out {
				out[i].RhoGradient = 0
			}
			return out, nil
		}

		expanded, err := Apply(out, idx, out[idx].VpGradient, out[idx].VsGradient, stepKm, opts...)
		if err != nil {
			return nil, err
		}
		out = expanded
	}
}

// firstGradientLayer returns the index of the first non-halfspace layer
// with a vp or vs gradient, or -1.
func firstGradientLayer(layers []model.Layer) int {
	for i := 0; i < len(layers)-1; i++ {
		if !layers[i].IsHalfspace() && layers[i].HasGradient() {
			return i
		}
	}

	return -1
}

// ApplyModel returns a copy of m with Apply run on its layers.
func ApplyModel(m *model.Model, index int, vpGrad, vsGrad, stepKm float64, opts ...Option) (*model.Model, error) {
	layers, err := Apply(m.Layers, index, vpGrad, vsGrad, stepKm, opts...)
	if err != nil {
		return nil, err
	}

	return m.WithLayers(layers), nil
}

// EvaluateModel returns a copy of m with every gradient layer expanded at
// the model's GradientStep.
func EvaluateModel(m *model.Model, opts ...Option) (*model.Model, error) {
	layers, err := Evaluate(m.Layers, m.GradientStep, opts...)
	if err != nil {
		return nil, err
	}

	return m.WithLayers(layers), nil
}
