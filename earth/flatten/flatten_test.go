package flatten

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-reflect/earth/model"
)

func sphericalModel() *model.Model {
	upper := model.NewLayer(20, 5.8, 3.46, 2.72)
	upper.Type = model.Crust
	lower := model.NewLayer(15, 6.5, 3.85, 2.92)
	lower.Type = model.Crust
	mantle := model.NewLayer(45, 8.04, 4.48, 3.32)
	mantle.VpGradient = 0.01 / 45
	mantle.VsGradient = 0.01 / 45
	mantle.Type = model.Mantle
	hs := model.NewLayer(0, 8.05, 4.49, 3.345)
	hs.Type = model.Mantle

	m := model.New()
	m.Name = "spherical"
	m.Layers = []model.Layer{upper, lower, mantle, hs}

	return m
}

func TestDepthFlatMonotonic(t *testing.T) {
	if DepthFlat(0) != 0 {
		t.Fatalf("DepthFlat(0) = %v, want 0", DepthFlat(0))
	}

	prev := DepthFlat(0)
	for d := 0.5; d < EarthRadius; d += 0.5 {
		got := DepthFlat(d)
		if !(got > prev) {
			t.Fatalf("DepthFlat not increasing at %v: %v <= %v", d, got, prev)
		}
		if got < d {
			t.Fatalf("DepthFlat(%v) = %v is shallower than the spherical depth", d, got)
		}
		prev = got
	}
}

func TestRadiusForDeltaVEndpoints(t *testing.T) {
	topV, botV := 6.0, 7.0
	topDepth, botDepth := 10.0, 60.0

	r := RadiusForDeltaV(topV, topDepth, botV, botDepth, 0, EarthRadius)
	assert.InDelta(t, EarthRadius-topDepth, r, 1e-9)

	full := VelocityFlat(botV, botDepth) - VelocityFlat(topV, topDepth)
	r = RadiusForDeltaV(topV, topDepth, botV, botDepth, full, EarthRadius)
	assert.InDelta(t, EarthRadius-botDepth, r, 1e-9)

	// half way in flattened velocity lands strictly inside the layer
	r = RadiusForDeltaV(topV, topDepth, botV, botDepth, full/2, EarthRadius)
	assert.Greater(t, r, EarthRadius-botDepth)
	assert.Less(t, r, EarthRadius-topDepth)
}

func TestLayerHalfspace(t *testing.T) {
	hs := model.NewLayer(0, 8.0, 4.5, 3.3)
	hs.VpGradient = 0.2

	out := Layer(hs, 100)
	require.Len(t, out, 1)
	assert.Zero(t, out[0].Thickness)
	assert.InDelta(t, VelocityFlat(8.0, 100), out[0].Vp, 1e-12)
	assert.InDelta(t, VelocityFlat(4.5, 100), out[0].Vs, 1e-12)
	assert.InDelta(t, DensityFlat(3.3, 100), out[0].Rho, 1e-12)
	assert.Zero(t, out[0].VpGradient)
}

func TestLayerSubdivision(t *testing.T) {
	l := model.NewLayer(100, 6.0, 3.5, 3.0)
	l.VpGradient = 0.01
	l.VsGradient = 0.002
	l.Type = model.Mantle

	top, bot := 200.0, 300.0
	dvpF := VelocityFlat(7.0, bot) - VelocityFlat(6.0, top)
	dvsF := VelocityFlat(3.7, bot) - VelocityFlat(3.5, top)
	want := max(int(math.Ceil(dvpF/0.1)), int(math.Ceil(dvsF/0.1)))

	out := Layer(l, top)
	require.Len(t, out, want)

	total := 0.0
	for i, sub := range out {
		assert.Greater(t, sub.Thickness, 0.0, "sublayer %d", i)
		assert.Greater(t, sub.Vp, VelocityFlat(6.0, top), "sublayer %d", i)
		assert.Less(t, sub.Vp, VelocityFlat(7.0, bot), "sublayer %d", i)
		assert.Equal(t, model.Mantle, sub.Type)
		assert.False(t, sub.HasGradient())
		if i > 0 {
			assert.Greater(t, sub.Vp, out[i-1].Vp)
		}
		total += sub.Thickness
	}

	assert.InDelta(t, DepthFlat(bot)-DepthFlat(top), total, 1e-9)
}

func TestLayerConstantFlatVp(t *testing.T) {
	// vp falls with depth exactly as fast as flattening raises it
	top := 20.0
	l := model.NewLayer(10, 6.0, 3.5, 3.0)
	l.VpGradient = -6.0 / (EarthRadius - top)
	l.VsGradient = 0.05

	out := Layer(l, top)
	require.Greater(t, len(out), 1)

	total := 0.0
	for i, sub := range out {
		assert.Greater(t, sub.Thickness, 0.0, "sublayer %d", i)
		assert.InDelta(t, VelocityFlat(6.0, top), sub.Vp, 1e-9, "sublayer %d", i)
		total += sub.Thickness
	}

	assert.InDelta(t, DepthFlat(top+10)-DepthFlat(top), total, 1e-9)

	hs := model.NewLayer(0, 8, 4.5, 3.3)
	require.NoError(t, model.ValidateLayers(append(out, hs)))
}

func TestLayerFixedStep(t *testing.T) {
	l := model.NewLayer(100, 6.0, 3.5, 3.0)
	l.VpGradient = 0.01

	out := Layer(l, 0, WithFixedStep())
	require.Len(t, out, 1)
	assert.InDelta(t, DepthFlat(100), out[0].Thickness, 1e-9)
}

func TestLayersPositiveThickness(t *testing.T) {
	m := sphericalModel()

	out, err := Layers(m.Layers)
	require.NoError(t, err)
	require.NoError(t, model.ValidateLayers(out))

	for i, l := range out[:len(out)-1] {
		assert.Greater(t, l.Thickness, 0.0, "layer %d", i)
	}

	assert.InDelta(t, DepthFlat(80), model.ColumnThickness(out), 1e-9)
}

func TestLayersBeyondRadius(t *testing.T) {
	layers := []model.Layer{model.NewLayer(7000, 8, 4.5, 3.3), model.NewLayer(0, 8, 4.5, 3.3)}

	_, err := Layers(layers)
	require.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestModel(t *testing.T) {
	m := sphericalModel()

	flat, err := Model(m)
	require.NoError(t, err)
	assert.True(t, flat.Flattened)
	assert.False(t, m.Flattened, "input model must not change")
	assert.Len(t, m.Layers, 4)
	require.NoError(t, flat.Validate())

	// the mantle gradient layer is expanded before flattening
	for _, l := range flat.Layers {
		assert.False(t, l.HasGradient())
	}
	assert.Greater(t, len(flat.Layers), len(m.Layers))

	_, err = Model(flat)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAlreadyFlattened))
}

func TestModelFixedStepOnePerLayer(t *testing.T) {
	m := sphericalModel()
	m.Layers[2].VpGradient = 0
	m.Layers[2].VsGradient = 0

	flat, err := Model(m, WithFixedStep())
	require.NoError(t, err)
	assert.Len(t, flat.Layers, len(m.Layers))
}

func TestWithRadius(t *testing.T) {
	l := model.NewLayer(0, 5, 3, 3)

	out := Layer(l, 100, WithRadius(1737.4))
	assert.InDelta(t, 1737.4*5/(1737.4-100), out[0].Vp, 1e-12)
}
