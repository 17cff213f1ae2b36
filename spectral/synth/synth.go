// Package synth turns decoded reflectivity spectra into time series.
//
// Each spectrum is shifted by a reducing-velocity time, weighted by a power
// of iω that selects the output quantity and source time function, and
// inverse transformed to 2(nfpts-1) real samples.
package synth

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"runtime"

	algofft "github.com/MeKo-Christian/algo-fft"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-reflect/spectral/specfile"
	"github.com/cwbudde/algo-reflect/spectral/taper"
)

var (
	ErrUnsupportedStyle = errors.New("synth: unsupported amplitude or source style")
	ErrInvalidParameter = errors.New("synth: invalid parameter")
)

// AmplitudeStyle selects the physical quantity of the output.
type AmplitudeStyle string

const (
	Displacement AmplitudeStyle = "displacement"
	Velocity     AmplitudeStyle = "velocity"
)

// SourceStyle selects the source time function.
type SourceStyle string

const (
	Step    SourceStyle = "step"
	Impulse SourceStyle = "impulse"
)

// Defaults of the reducing-velocity correction.
const (
	DefaultReduceVelocity = 8.0
	DefaultTimeOffset     = 0.0
)

// Weight returns the spectral weight w(f) for the style pair, a power of iω
// with ω = 2πf.
func Weight(amp AmplitudeStyle, src SourceStyle, f float64) (complex128, error) {
	w := 2 * math.Pi * f

	switch {
	case amp == Displacement && src == Step:
		return complex(0, w), nil
	case amp == Displacement && src == Impulse:
		return complex(-w*w, 0), nil
	case amp == Velocity && src == Step:
		return complex(-w*w, 0), nil
	case amp == Velocity && src == Impulse:
		return complex(0, -w*w*w), nil
	default:
		return 0, fmt.Errorf("%w: %q/%q", ErrUnsupportedStyle, amp, src)
	}
}

// Timeseries is one synthesized three-component trace. Sample i is at
// TimeReduce + i*Dt seconds.
type Timeseries struct {
	Range      float64   `json:"range_km" msgpack:"range_km"`
	Depth      float64   `json:"depth_km" msgpack:"depth_km"`
	Mechanism  string    `json:"mechanism" msgpack:"mechanism"`
	TimeReduce float64   `json:"time_reduce" msgpack:"time_reduce"`
	Dt         float64   `json:"dt" msgpack:"dt"`
	Z          []float64 `json:"z" msgpack:"z"`
	R          []float64 `json:"r" msgpack:"r"`
	T          []float64 `json:"t" msgpack:"t"`
}

// Station returns a short station code derived from the range, e.g. "D100_0"
// for 100 km.
func (ts Timeseries) Station() string {
	s := "D" + pyFloat(ts.Range)
	if len(s) > 6 {
		s = s[:6]
	}

	return trimUnderscore(s)
}

func pyFloat(v float64) string {
	s := fmt.Sprint(v)
	if v == math.Trunc(v) && !math.IsInf(v, 0) && math.Abs(v) < 1e16 {
		s = fmt.Sprintf("%.1f", v)
	}

	out := []byte(s)
	for i, c := range out {
		if c == '.' {
			out[i] = '_'
		}
	}

	return string(out)
}

func trimUnderscore(s string) string {
	for len(s) > 0 && s[len(s)-1] == '_' {
		s = s[:len(s)-1]
	}
	for len(s) > 0 && s[0] == '_' {
		s = s[1:]
	}

	return s
}

// Config controls synthesis.
type Config struct {
	ReduceVelocity float64
	TimeOffset     float64
	Amplitude      AmplitudeStyle
	Source         SourceStyle
	Workers        int
	Taper          taper.Type
	TaperOptions   []taper.Option
	Logger         *zap.Logger
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns velocity traces for a step source, reduced at
// 8 km/s with no offset and no taper.
func DefaultConfig() Config {
	return Config{
		ReduceVelocity: DefaultReduceVelocity,
		TimeOffset:     DefaultTimeOffset,
		Amplitude:      Velocity,
		Source:         Step,
		Workers:        runtime.GOMAXPROCS(0),
		Taper:          taper.TypeNone,
		Logger:         zap.NewNop(),
	}
}

// WithReduceVelocity sets the reducing velocity, km/s.
func WithReduceVelocity(v float64) Option {
	return func(cfg *Config) {
		cfg.ReduceVelocity = v
	}
}

// WithTimeOffset adds a constant to the reduced start time, seconds.
func WithTimeOffset(sec float64) Option {
	return func(cfg *Config) {
		cfg.TimeOffset = sec
	}
}

// WithAmplitudeStyle selects displacement or velocity output.
func WithAmplitudeStyle(s AmplitudeStyle) Option {
	return func(cfg *Config) {
		cfg.Amplitude = s
	}
}

// WithSourceStyle selects a step or impulse source time function.
func WithSourceStyle(s SourceStyle) Option {
	return func(cfg *Config) {
		cfg.Source = s
	}
}

// WithWorkers bounds the number of spectra synthesized concurrently.
// Values below one mean one.
func WithWorkers(n int) Option {
	return func(cfg *Config) {
		cfg.Workers = max(n, 1)
	}
}

// WithTaper tapers every output trace with t.
func WithTaper(t taper.Type, opts ...taper.Option) Option {
	return func(cfg *Config) {
		cfg.Taper = t
		cfg.TaperOptions = opts
	}
}

// WithLogger sets the logger for per-spectrum debug output.
func WithLogger(l *zap.Logger) Option {
	return func(cfg *Config) {
		if l != nil {
			cfg.Logger = l
		}
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

// Synthesize converts each spectrum to a Timeseries. Output order matches
// spectra. Inputs are not modified.
func Synthesize(h specfile.Header, spectra []specfile.RawSpectrum, opts ...Option) ([]Timeseries, error) {
	cfg := applyOptions(opts)

	if err := h.Validate(); err != nil {
		return nil, err
	}

	if !(cfg.ReduceVelocity > 0) || math.IsInf(cfg.ReduceVelocity, 0) {
		return nil, fmt.Errorf("%w: reducing velocity %v", ErrInvalidParameter, cfg.ReduceVelocity)
	}

	weights, err := weightTable(h, cfg.Amplitude, cfg.Source)
	if err != nil {
		return nil, err
	}

	for i, s := range spectra {
		if len(s.U0) != h.NumFreqPoints || len(s.W0) != h.NumFreqPoints || len(s.Tn) != h.NumFreqPoints {
			return nil, fmt.Errorf("%w: spectrum %d: component lengths %d/%d/%d, want %d",
				specfile.ErrMalformedInput, i, len(s.U0), len(s.W0), len(s.Tn), h.NumFreqPoints)
		}
	}

	nft := h.NumTimePoints()

	var coeffs []float64
	if cfg.Taper != taper.TypeNone {
		coeffs = taper.Generate(cfg.Taper, nft, cfg.TaperOptions...)
	}

	out := make([]Timeseries, len(spectra))
	if len(spectra) == 0 {
		return out, nil
	}

	jobs := make(chan int)
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(jobs)
		for i := range spectra {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return nil
	})

	for range min(max(cfg.Workers, 1), len(spectra)) {
		g.Go(func() error {
			plan, err := algofft.NewPlan64(nft)
			if err != nil {
				return fmt.Errorf("synth: failed to create FFT plan of size %d: %w", nft, err)
			}

			s := &synthesizer{
				plan:    plan,
				header:  h,
				weights: weights,
				taper:   coeffs,
				freq:    make([]complex128, nft),
			}

			for i := range jobs {
				raw := &spectra[i]
				ts, err := s.run(raw, cfg)
				if err != nil {
					return fmt.Errorf("spectrum %d (range %g, depth %g, %s): %w",
						i, raw.Range, raw.Depth, raw.Mechanism, err)
				}

				out[i] = ts
				cfg.Logger.Debug("synthesized spectrum",
					zap.Int("index", i),
					zap.Float64("range_km", ts.Range),
					zap.Float64("depth_km", ts.Depth),
					zap.String("mechanism", ts.Mechanism),
					zap.Float64("time_reduce", ts.TimeReduce))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// weightTable tabulates w(f) for every bin of the one-sided spectrum.
func weightTable(h specfile.Header, amp AmplitudeStyle, src SourceStyle) ([]complex128, error) {
	out := make([]complex128, h.NumFreqPoints)
	for i := range out {
		w, err := Weight(amp, src, float64(i)*h.FreqDelta)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}

	return out, nil
}

// synthesizer owns the working buffer of one spectrum.
type synthesizer struct {
	plan    *algofft.Plan[complex128]
	header  specfile.Header
	weights []complex128
	taper   []float64
	freq    []complex128
}

func (s *synthesizer) run(raw *specfile.RawSpectrum, cfg Config) (Timeseries, error) {
	h := s.header
	ts := Timeseries{
		Range:      raw.Range,
		Depth:      raw.Depth,
		Mechanism:  raw.Mechanism,
		TimeReduce: raw.Range/cfg.ReduceVelocity + cfg.TimeOffset,
		Dt:         h.SampleInterval(),
	}

	shift := ts.TimeReduce * 2 * math.Pi * h.FreqDelta
	scale := -1 / (ts.Dt * 4 * math.Pi)

	var err error
	for _, c := range []struct {
		in  []complex128
		dst *[]float64
	}{
		{raw.U0, &ts.Z},
		{raw.W0, &ts.R},
		{raw.Tn, &ts.T},
	} {
		if *c.dst, err = s.component(c.in, shift, scale); err != nil {
			return Timeseries{}, err
		}
	}

	return ts, nil
}

// component shifts and weights one spectrum, inverse transforms it and
// returns the scaled real trace.
func (s *synthesizer) component(in []complex128, shift, scale float64) ([]float64, error) {
	h := s.header
	nfpts := h.NumFreqPoints
	nft := len(s.freq)
	half := nft / 2

	clear(s.freq)

	for k := range nfpts {
		v := in[k]
		if k >= h.BandStart() && k <= h.BandEnd() {
			v *= cmplx.Exp(complex(0, float64(k)*shift))
		}
		v *= s.weights[k]

		switch {
		case k == 0 || k == half:
			s.freq[k] = complex(real(v), 0)
		default:
			s.freq[k] = v
			s.freq[nft-k] = cmplx.Conj(v)
		}
	}

	if err := s.plan.Inverse(s.freq, s.freq); err != nil {
		return nil, fmt.Errorf("inverse FFT failed: %w", err)
	}

	out := make([]float64, nft)
	for i := range out {
		out[i] = real(s.freq[i]) * scale
	}

	if s.taper != nil {
		if err := taper.ApplyCoefficients(out, s.taper); err != nil {
			return nil, err
		}
	}

	return out, nil
}
