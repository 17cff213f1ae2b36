// Package flatten implements the earth-flattening transform (EFT), which maps
// a spherical layered model onto an equivalent flat-earth model for
// wave-propagation codes that assume a flat earth.
//
// With reference radius R and flattening exponent l:
//
//	depth_flat(d)      = R ln(R/(R-d))
//	velocity_flat(v,d) = R v/(R-d)
//	density_flat(p,d)  = p ((R-d)/R)^(l+2)
//
// A layer whose flattened velocity changes by more than the configured
// velocity factors is split so that no sublayer spans a larger velocity
// step.
package flatten

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/earth/gradient"
	"github.com/cwbudde/algo-reflect/earth/model"
)

const (
	// EarthRadius is the reference radius in km.
	EarthRadius = 6371.0
	// DefaultExponent l = -1 keeps the impedance contrast of the spherical
	// and flattened models the same.
	DefaultExponent = -1.0
	// DefaultVelocityFactor is the largest flattened velocity step, km/s,
	// allowed within one output sublayer.
	DefaultVelocityFactor = 0.1
)

// Config controls the transform.
type Config struct {
	Radius   float64
	Exponent float64
	// VpFactor and VsFactor bound the flattened vp and vs change within a
	// sublayer. +Inf yields exactly one sublayer per input layer.
	VpFactor float64
	VsFactor float64
	// GradientOptions are passed to the gradient expansion that Model runs
	// before flattening.
	GradientOptions []gradient.Option
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns R = 6371 km, l = -1 and 0.1 km/s velocity factors.
func DefaultConfig() Config {
	return Config{
		Radius:   EarthRadius,
		Exponent: DefaultExponent,
		VpFactor: DefaultVelocityFactor,
		VsFactor: DefaultVelocityFactor,
	}
}

// WithRadius sets the reference radius, e.g. for other planets.
func WithRadius(radius float64) Option {
	return func(cfg *Config) {
		if radius > 0 {
			cfg.Radius = radius
		}
	}
}

// WithExponent sets the density flattening exponent l.
func WithExponent(l float64) Option {
	return func(cfg *Config) {
		cfg.Exponent = l
	}
}

// WithFactors sets the vp and vs velocity factors.
func WithFactors(vp, vs float64) Option {
	return func(cfg *Config) {
		if vp > 0 {
			cfg.VpFactor = vp
		}
		if vs > 0 {
			cfg.VsFactor = vs
		}
	}
}

// WithFixedStep flattens each input layer into exactly one output layer.
func WithFixedStep() Option {
	return func(cfg *Config) {
		cfg.VpFactor = math.Inf(1)
		cfg.VsFactor = math.Inf(1)
	}
}

// WithGradientOptions sets the options of the gradient pre-pass.
func WithGradientOptions(opts ...gradient.Option) Option {
	return func(cfg *Config) {
		cfg.GradientOptions = opts
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

// DepthFlat maps a spherical depth to flattened depth, R = EarthRadius.
func DepthFlat(depth float64) float64 {
	return depthFlat(depth, EarthRadius)
}

// VelocityFlat maps a velocity at a spherical depth, R = EarthRadius.
func VelocityFlat(v, depth float64) float64 {
	return velocityFlat(v, depth, EarthRadius)
}

// DensityFlat maps a density at a spherical depth, R = EarthRadius, l = -1.
func DensityFlat(rho, depth float64) float64 {
	return densityFlat(rho, depth, EarthRadius, DefaultExponent)
}

func depthFlat(depth, r float64) float64 {
	return r * mathLog(r/(r-depth))
}

func velocityFlat(v, depth, r float64) float64 {
	return r * v / (r - depth)
}

func densityFlat(rho, depth, r, l float64) float64 {
	return rho * mathPow((r-depth)/r, l+2)
}

// RadiusForDeltaV returns the radius at which the flattened velocity has
// grown by deltaV over its value at topDepth, assuming the spherical
// velocity is linear in radius between (topDepth, topV) and (botDepth, botV).
//
// With c the linear coefficient in radius, solving
// R(topV + c(r-rt))/r = R topV/rt + deltaV for r gives
//
//	r = (rt topV - c rt^2) / (rt deltaV/R + topV - c rt)
func RadiusForDeltaV(topV, topDepth, botV, botDepth, deltaV, radius float64) float64 {
	topRadius := radius - topDepth
	botRadius := radius - botDepth
	c := (botV - topV) / (botRadius - topRadius)

	return (topRadius*topV - c*topRadius*topRadius) /
		(topRadius*deltaV/radius + topV - c*topRadius)
}

// Layer flattens one spherical layer whose top is at topDepth km.
// A halfspace flattens to one halfspace evaluated at its top. Output
// sublayers are homogeneous.
func Layer(l model.Layer, topDepth float64, opts ...Option) []model.Layer {
	return flattenLayer(l, topDepth, applyOptions(opts))
}

func flattenLayer(l model.Layer, topDepth float64, cfg Config) []model.Layer {
	r := cfg.Radius

	if l.IsHalfspace() {
		hs := l
		hs.Vp = velocityFlat(l.Vp, topDepth, r)
		hs.Vs = velocityFlat(l.Vs, topDepth, r)
		hs.Rho = densityFlat(l.Rho, topDepth, r, cfg.Exponent)
		hs.VpGradient = 0
		hs.VsGradient = 0
		hs.RhoGradient = 0
		return []model.Layer{hs}
	}

	thick := l.Thickness
	botDepth := topDepth + thick

	topVpS := l.Vp
	botVpS := topVpS + l.VpGradient*thick
	topVpF := velocityFlat(topVpS, topDepth, r)
	botVpF := velocityFlat(botVpS, botDepth, r)

	topVsS := l.Vs
	botVsS := topVsS + l.VsGradient*thick
	topVsF := velocityFlat(topVsS, topDepth, r)
	botVsF := velocityFlat(botVsS, botDepth, r)

	n := max(
		int(math.Ceil(math.Abs(botVpF-topVpF)/cfg.VpFactor)),
		int(math.Ceil(math.Abs(botVsF-topVsF)/cfg.VsFactor)),
		1,
	)

	deltaVp := (botVpF - topVpF) / float64(n)
	deltaVs := (botVsF - topVsF) / float64(n)

	// vp_flat that is constant up to rounding cannot locate the boundaries
	vpConstant := math.Abs(botVpF-topVpF) <= 1e-12*math.Max(math.Abs(topVpF), 1)

	out := make([]model.Layer, 0, n)
	prevDepthF := depthFlat(topDepth, r)

	for idx := range n {
		topInterp := topVpF + float64(idx)*deltaVp
		botInterp := topInterp + deltaVp

		var depthS float64
		switch {
		case idx == n-1:
			depthS = botDepth
		case vpConstant:
			depthS = topDepth + float64(idx+1)*thick/float64(n)
		default:
			depthS = r - RadiusForDeltaV(topVpS, topDepth, botVpS, botDepth, botInterp-topVpF, r)
		}

		depthF := depthFlat(depthS, r)

		sub := l
		sub.Thickness = depthF - prevDepthF
		sub.Vp = (topInterp + botInterp) / 2
		sub.Vs = topVsF + deltaVs/2 + float64(idx)*deltaVs
		sub.Rho = densityFlat(l.Rho+l.RhoGradient*(depthS-topDepth), depthS, r, cfg.Exponent)
		sub.VpGradient = 0
		sub.VsGradient = 0
		sub.RhoGradient = 0
		out = append(out, sub)

		prevDepthF = depthF
	}

	return out
}

// Layers flattens a spherical layer sequence, top to bottom.
func Layers(layers []model.Layer, opts ...Option) ([]model.Layer, error) {
	cfg := applyOptions(opts)

	out := make([]model.Layer, 0, len(layers))
	depth := 0.0

	for i, l := range layers {
		if depth+l.Thickness >= cfg.Radius {
			return nil, fmt.Errorf("%w: layer %d reaches %v km, beyond the %v km reference radius",
				model.ErrInvalidParameter, i, depth+l.Thickness, cfg.Radius)
		}

		out = append(out, flattenLayer(l, depth, cfg)...)
		depth += l.Thickness
	}

	return out, nil
}

// Model returns a flattened copy of m. Gradient layers are expanded at the
// model's GradientStep first. Flattening a model twice is an error.
func Model(m *model.Model, opts ...Option) (*model.Model, error) {
	if m.Flattened {
		return nil, fmt.Errorf("%w: %q", model.ErrAlreadyFlattened, m.Name)
	}

	cfg := applyOptions(opts)

	expanded, err := gradient.EvaluateModel(m, cfg.GradientOptions...)
	if err != nil {
		return nil, fmt.Errorf("flatten: gradient pre-pass: %w", err)
	}

	layers, err := Layers(expanded.Layers, opts...)
	if err != nil {
		return nil, err
	}

	out := expanded.WithLayers(layers)
	out.Flattened = true

	return out, nil
}
