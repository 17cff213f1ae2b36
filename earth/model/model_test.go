package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	m := New()

	require.NoError(t, m.Validate())
	assert.Equal(t, DefaultName, m.Name)
	assert.Len(t, m.Layers, 2)
	assert.InDelta(t, 35.0, m.HalfspaceDepth(), 1e-12)
	assert.Equal(t, Crust, m.Layers[0].Type)
	assert.True(t, m.Layers[1].IsHalfspace())
	assert.False(t, m.Flattened)
	require.NotNil(t, m.MomentTensor)
	assert.InDelta(t, 0.707, m.MomentTensor.Mne, 0)
}

func TestCloneIsDeep(t *testing.T) {
	m := New()
	m.Distance = IrregularDistances([]float64{100, 150}, 30)
	m.SetExtra("reduceVel", 8)

	c := m.Clone()
	c.Layers[0].Vp = 99
	c.SourceDepths[0] = 42
	c.Distance.List[0] = -1
	c.MomentTensor.Mnn = 7
	c.Extra["reduceVel"] = 6

	assert.InDelta(t, 6.5, m.Layers[0].Vp, 0)
	assert.InDelta(t, 0.001, m.SourceDepths[0], 0)
	assert.InDelta(t, 100.0, m.Distance.List[0], 0)
	assert.InDelta(t, 0.0, m.MomentTensor.Mnn, 0)
	assert.InDelta(t, 8.0, m.Extra["reduceVel"], 0)
}

func TestWithLayersLeavesOriginal(t *testing.T) {
	m := New()
	layers := []Layer{NewLayer(10, 5, 3, 2.5), NewLayer(0, 6, 3.5, 2.8)}

	out := m.WithLayers(layers)
	layers[0].Vp = 0

	assert.InDelta(t, 5.0, out.Layers[0].Vp, 0)
	assert.InDelta(t, 6.5, m.Layers[0].Vp, 0)
}

func TestValidateLayers(t *testing.T) {
	tests := []struct {
		name   string
		layers []Layer
		ok     bool
	}{
		{"empty", nil, false},
		{"halfspace only", []Layer{NewLayer(0, 8, 4.5, 3.3)}, true},
		{"two layers", []Layer{NewLayer(10, 6, 3.5, 2.7), NewLayer(0, 8, 4.5, 3.3)}, true},
		{"negative thickness", []Layer{NewLayer(-1, 6, 3.5, 2.7), NewLayer(0, 8, 4.5, 3.3)}, false},
		{"interior halfspace", []Layer{NewLayer(0, 6, 3.5, 2.7), NewLayer(0, 8, 4.5, 3.3)}, false},
		{"no halfspace", []Layer{NewLayer(10, 6, 3.5, 2.7), NewLayer(5, 8, 4.5, 3.3)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayers(tt.layers)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrModelShape), "got %v", err)
		})
	}
}

func TestLayerBottom(t *testing.T) {
	l := NewLayer(30, 6.0, 3.5, 2.7)
	l.VpGradient = 0.5 / 30
	l.VsGradient = 0.1 / 30
	l.RhoGradient = 0.1 / 30

	vp, vs, rho := l.Bottom()
	assert.InDelta(t, 6.5, vp, 1e-12)
	assert.InDelta(t, 3.6, vs, 1e-12)
	assert.InDelta(t, 2.8, rho, 1e-12)
	assert.True(t, l.HasGradient())

	vp, _, _ = l.At(15)
	assert.InDelta(t, 6.25, vp, 1e-12)
}

func TestDistances(t *testing.T) {
	tests := []struct {
		name string
		spec DistanceSpec
		want []float64
	}{
		{"single", SingleDistance(5003.8, 45), []float64{5003.8}},
		{"regular", RegularDistances(100, 50, 4, 0), []float64{100, 150, 200, 250}},
		{"irregular", IrregularDistances([]float64{330, 100, 150}, 0), []float64{330, 100, 150}},
		{"regular empty", RegularDistances(100, 50, 0, 0), []float64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.Distances())
		})
	}
}

func TestDistanceValidate(t *testing.T) {
	require.NoError(t, SingleDistance(10, 0).Validate())
	require.NoError(t, RegularDistances(0, 10, 3, 0).Validate())
	require.NoError(t, IrregularDistances([]float64{1}, 0).Validate())

	for _, bad := range []DistanceSpec{
		SingleDistance(0, 0),
		RegularDistances(0, 10, 0, 0),
		IrregularDistances(nil, 0),
		{Kind: DistanceKind(7)},
	} {
		err := bad.Validate()
		assert.ErrorIs(t, err, ErrInvalidParameter, "spec %+v", bad)
	}
}

func TestParseLayerType(t *testing.T) {
	for _, s := range []string{"crust", "mantle", "outer-core", "inner-core", "unknown"} {
		lt, ok := ParseLayerType(s)
		assert.True(t, ok, s)
		assert.Equal(t, LayerType(s), lt)
	}

	lt, ok := ParseLayerType("lithosphere")
	assert.False(t, ok)
	assert.Equal(t, Unknown, lt)
}
