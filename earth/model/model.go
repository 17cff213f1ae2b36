package model

import (
	"fmt"
	"maps"
	"slices"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-reflect/earth/momenttensor"
)

// DefaultName is the name of a model that has not been named explicitly.
const DefaultName = "default"

// SlownessWindow is the taper applied to the slowness (ray parameter)
// integration, in s/km.
type SlownessWindow struct {
	LowCut        float64
	LowPass       float64
	HighPass      float64
	HighCut       float64
	ControlFactor float64
}

// FrequencyWindow is the frequency band of the run in Hz, and the number of
// time points of the output traces.
type FrequencyWindow struct {
	Min           float64
	Max           float64
	Nyquist       float64
	NumTimePoints int
}

// Model is a layered earth model plus the run parameters that travel with
// it to the reflectivity program.
//
// Layers are ordered shallow to deep; the last one is the halfspace.
// Transforms never modify a Model in place: they Clone it and return the
// copy.
type Model struct {
	Name string
	// Flattened is set by the earth-flattening transform and never cleared.
	Flattened bool
	// GradientStep is the target sublayer thickness, in km, used when
	// gradient layers are discretized.
	GradientStep float64
	// EFTStep is the flattening granularity, in km, carried for the
	// interchange format.
	EFTStep float64

	Layers        []Layer
	Slowness      SlownessWindow
	Frequency     FrequencyWindow
	Distance      DistanceSpec
	SourceDepths  []float64
	ReceiverDepth float64
	MomentTensor  *momenttensor.NED
	// Extra holds auxiliary scalars such as the reducing velocity, time
	// offset, or a crust elevation correction.
	Extra map[string]float64
}

// New returns a model with the default run parameters: a 35 km crust over a
// mantle halfspace, one source at 1 m depth and a single range of 100 km.
func New() *Model {
	crust := NewLayer(35, 6.5, 3.5, 2.7)
	crust.Type = Crust
	halfspace := NewLayer(0, 8.1, 4.67, 3.32)
	halfspace.Type = Mantle

	return &Model{
		Name:         DefaultName,
		GradientStep: 10,
		EFTStep:      5,
		Layers:       []Layer{crust, halfspace},
		Slowness: SlownessWindow{
			LowCut:        0.005,
			LowPass:       0.01,
			HighPass:      0.5,
			HighCut:       0.6,
			ControlFactor: 1.0,
		},
		Frequency: FrequencyWindow{
			Min:           0,
			Max:           1,
			Nyquist:       1,
			NumTimePoints: 1024,
		},
		Distance:      SingleDistance(100, 45),
		SourceDepths:  []float64{0.001},
		ReceiverDepth: 0,
		MomentTensor: &momenttensor.NED{
			Mne: 0.707,
			Mnd: -0.707,
		},
	}
}

// Clone returns a deep copy of m.
func (m *Model) Clone() *Model {
	out := *m
	out.Layers = CloneLayers(m.Layers)
	out.Distance = m.Distance.clone()

	out.SourceDepths = slices.Clone(m.SourceDepths)

	if m.MomentTensor != nil {
		mt := *m.MomentTensor
		out.MomentTensor = &mt
	}

	if m.Extra != nil {
		out.Extra = maps.Clone(m.Extra)
	}

	return &out
}

// WithLayers returns a copy of m whose layers are replaced by layers.
func (m *Model) WithLayers(layers []Layer) *Model {
	out := m.Clone()
	out.Layers = CloneLayers(layers)

	return out
}

// SetExtra records an auxiliary scalar, allocating the bag on first use.
func (m *Model) SetExtra(key string, value float64) {
	if m.Extra == nil {
		m.Extra = make(map[string]float64)
	}

	m.Extra[key] = value
}

// HalfspaceDepth returns the depth, in km, of the top of the halfspace.
func (m *Model) HalfspaceDepth() float64 {
	return ColumnThickness(m.Layers)
}

// ColumnThickness returns the summed thickness of layers.
func ColumnThickness(layers []Layer) float64 {
	if len(layers) == 0 {
		return 0
	}

	thick := make([]float64, len(layers))
	for i, l := range layers {
		thick[i] = l.Thickness
	}

	return floats.Sum(thick)
}

// Validate checks the structural invariants of m: at least one layer, no
// negative thickness, and exactly one zero-thickness layer, the last.
func (m *Model) Validate() error {
	return ValidateLayers(m.Layers)
}

// ValidateLayers checks the layer-sequence invariants of a model.
func ValidateLayers(layers []Layer) error {
	if len(layers) == 0 {
		return fmt.Errorf("%w: model has no layers", ErrModelShape)
	}

	last := len(layers) - 1
	for i, l := range layers {
		switch {
		case l.Thickness < 0:
			return fmt.Errorf("%w: layer %d has negative thickness %v", ErrModelShape, i, l.Thickness)
		case l.Thickness == 0 && i != last:
			return fmt.Errorf("%w: layer %d of %d has zero thickness but is not the halfspace",
				ErrModelShape, i, len(layers))
		case l.Thickness != 0 && i == last:
			return fmt.Errorf("%w: last layer has thickness %v, want a zero-thickness halfspace",
				ErrModelShape, l.Thickness)
		}
	}

	return nil
}
