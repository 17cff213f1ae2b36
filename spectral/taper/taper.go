// Package taper generates edge tapers for synthetic traces. A trace is
// periodic over its FFT length, so energy arriving near the end wraps onto
// the start; tapering the ends suppresses the wrap-around.
package taper

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-vecmath"
)

var (
	ErrUnknownType    = errors.New("taper: unknown taper type")
	ErrLengthMismatch = errors.New("taper: samples and coefficients must have same length")
)

// Type identifies a taper function.
type Type int

const (
	TypeNone Type = iota
	TypeHann
	TypeTukey
	TypeCosine
)

var typeNames = map[Type]string{
	TypeNone:   "none",
	TypeHann:   "hann",
	TypeTukey:  "tukey",
	TypeCosine: "cosine",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}

	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType returns the Type named s, case-insensitively.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}

	return TypeNone, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Slope controls which edge(s) of the trace are tapered.
type Slope int

const (
	SlopeSymmetric Slope = iota
	SlopeLeft
	SlopeRight
)

// Option configures taper generation.
type Option func(*config)

type config struct {
	alpha float64
	slope Slope
}

func defaultConfig() config {
	return config{
		alpha: 0.1,
		slope: SlopeSymmetric,
	}
}

// WithAlpha sets the tapered fraction of a Tukey taper, clamped to [0, 1].
func WithAlpha(v float64) Option {
	return func(c *config) {
		if !math.IsNaN(v) {
			c.alpha = min(max(v, 0), 1)
		}
	}
}

// WithSlope configures edge tapering mode.
func WithSlope(s Slope) Option {
	return func(c *config) {
		c.slope = s
	}
}

// Generate returns size coefficients of taper t. TypeNone and unknown types
// give all ones.
func Generate(t Type, size int, opts ...Option) []float64 {
	if size <= 0 {
		return nil
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	out := make([]float64, size)
	for i := range out {
		out[i] = evalTaper(t, samplePosition(i, size), cfg)
	}

	return out
}

// Apply multiplies buf in place by taper t.
func Apply(t Type, buf []float64, opts ...Option) {
	if len(buf) == 0 || t == TypeNone {
		return
	}

	vecmath.MulBlockInPlace(buf, Generate(t, len(buf), opts...))
}

// ApplyCoefficients multiplies samples in place by precomputed coefficients.
func ApplyCoefficients(samples, coeffs []float64) error {
	if len(samples) != len(coeffs) {
		return fmt.Errorf("%w: %d samples, %d coefficients", ErrLengthMismatch, len(samples), len(coeffs))
	}

	vecmath.MulBlockInPlace(samples, coeffs)

	return nil
}

func evalTaper(t Type, x float64, cfg config) float64 {
	switch cfg.slope {
	case SlopeLeft:
		if x >= 0.5 {
			return 1
		}

		x *= 2
	case SlopeRight:
		if x <= 0.5 {
			return 1
		}

		x = 2*x - 1
	}

	x = min(max(x, 0), 1)

	switch t {
	case TypeHann:
		return hannAt(x)
	case TypeTukey:
		return tukeyAt(x, cfg.alpha)
	case TypeCosine:
		return math.Sin(math.Pi * x)
	default:
		return 1
	}
}

func samplePosition(n, size int) float64 {
	if size <= 1 {
		return 0.5
	}

	return float64(n) / float64(size-1)
}

func hannAt(x float64) float64 {
	return 0.5 - 0.5*math.Cos(2*math.Pi*x)
}

func tukeyAt(x, alpha float64) float64 {
	if alpha <= 0 {
		return 1
	}

	if alpha >= 1 {
		return hannAt(x)
	}

	a := alpha / 2
	switch {
	case x < a:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-1)))
	case x <= 1-a:
		return 1
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(2*x/alpha-2/alpha+1)))
	}
}
