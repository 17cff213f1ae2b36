package ingest

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-reflect/earth/model"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func continentalPoints() []DepthPoint {
	pt := func(depth, vp, vs, rho float64, t model.LayerType) DepthPoint {
		return DepthPoint{Depth: depth, Vp: vp, Vs: vs, Rho: rho, Qp: model.DefaultQp, Qs: model.DefaultQs, Type: t}
	}

	return []DepthPoint{
		pt(0, 5.8, 3.46, 2.72, model.Crust),
		pt(20, 5.8, 3.46, 2.72, model.Crust),
		pt(20, 6.5, 3.85, 2.92, model.Crust),
		pt(35, 6.5, 3.85, 2.92, model.Crust),
		pt(35, 8.04, 4.48, 3.32, model.Mantle),
		pt(77.5, 8.045, 4.49, 3.345, model.Mantle),
	}
}

func TestParseND(t *testing.T) {
	doc := "0 5.8 3.2\n\n15 5.8 3.2 2.7\nmantle\n30 8 4.5 3.3 1000\r\n40 8.1 4.6 3.4 900 300\n"

	points, err := ParseND(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, points, 4)

	assert.Equal(t, DepthPoint{Depth: 0, Vp: 5.8, Vs: 3.2, Rho: DefaultRho, Qp: 1500, Qs: 600, Type: model.Crust}, points[0])
	assert.Equal(t, 2.7, points[1].Rho)
	assert.Equal(t, model.Mantle, points[2].Type)
	assert.Equal(t, 1000.0, points[2].Qp)
	assert.Equal(t, 600.0, points[2].Qs)
	assert.Equal(t, 300.0, points[3].Qs)
}

func TestParseNDErrors(t *testing.T) {
	tests := map[string]string{
		"empty":       "",
		"markers":     "mantle\nouter-core\n",
		"short row":   "0 5.8\n",
		"bad number":  "0 5.8 x\n",
		"decreasing":  "10 5 3\n5 5 3\n",
		"unknown tag": "0 5.8 3.2\nlower-mantle\n",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseND(strings.NewReader(doc))
			require.ErrorIs(t, err, model.ErrMalformedInput)
		})
	}
}

func TestBuildLayers(t *testing.T) {
	layers, err := BuildLayers(continentalPoints())
	require.NoError(t, err)
	require.Len(t, layers, 3)

	assert.Equal(t, 20.0, layers[0].Thickness)
	assert.Zero(t, layers[0].VpGradient)
	assert.Equal(t, model.Crust, layers[1].Type)
	assert.Equal(t, model.Mantle, layers[2].Type)
	assert.InDelta(t, 42.5, layers[2].Thickness, 1e-12)
	assert.InDelta(t, 0.005/42.5, layers[2].VpGradient, 1e-15)
	assert.InDelta(t, 0.025/42.5, layers[2].RhoGradient, 1e-15)

	_, err = BuildLayers([]DepthPoint{{Depth: 10}, {Depth: 5}})
	require.ErrorIs(t, err, model.ErrMalformedInput)
}

func TestEndToEndTwoPointProfile(t *testing.T) {
	points := []DepthPoint{
		{Depth: 0, Vp: 6.0, Vs: 3.5, Rho: 2.7, Type: model.Crust},
		{Depth: 30, Vp: 6.5, Vs: 3.6, Rho: 2.8, Type: model.Crust},
		{Depth: 30, Vp: 8.0, Vs: 4.5, Rho: 3.3, Type: model.Mantle},
	}

	layers, err := LayersFromPoints(points, 30)
	require.NoError(t, err)
	require.Len(t, layers, 2)

	assert.Equal(t, 30.0, layers[0].Thickness)
	assert.True(t, layers[0].HasGradient())
	assert.Zero(t, layers[1].Thickness)
	assert.InDelta(t, 6.5, layers[1].Vp, 1e-12)
	assert.InDelta(t, 3.6, layers[1].Vs, 1e-12)
	assert.False(t, layers[1].HasGradient())
	require.NoError(t, model.ValidateLayers(layers))
}

func TestTruncateToDepth(t *testing.T) {
	layers, err := BuildLayers(continentalPoints())
	require.NoError(t, err)

	t.Run("on boundary", func(t *testing.T) {
		out, err := TruncateToDepth(layers, 35)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, layers[1], out[1])
		assert.Zero(t, out[2].Thickness)
		assert.Equal(t, 6.5, out[2].Vp)
	})

	t.Run("inside layer", func(t *testing.T) {
		out, err := TruncateToDepth(layers, 50)
		require.NoError(t, err)
		require.Len(t, out, 4)
		assert.InDelta(t, 15, out[2].Thickness, 1e-12)
		assert.Equal(t, layers[2].VpGradient, out[2].VpGradient)
		assert.InDelta(t, 8.04+15*0.005/42.5, out[3].Vp, 1e-12)
		assert.InDelta(t, 3.32+15*0.025/42.5, out[3].Rho, 1e-12)
		assert.Zero(t, out[3].Thickness)
		assert.False(t, out[3].HasGradient())
		assert.InDelta(t, 50, model.ColumnThickness(out), 1e-12)
	})

	t.Run("too deep", func(t *testing.T) {
		_, err := TruncateToDepth(layers, 80)
		require.ErrorIs(t, err, model.ErrInsufficientData)
	})

	t.Run("through halfspace", func(t *testing.T) {
		m := model.New()
		out, err := TruncateToDepth(m.Layers, 50)
		require.NoError(t, err)
		require.Len(t, out, 3)
		assert.Equal(t, 15.0, out[1].Thickness)
		assert.Equal(t, 8.1, out[2].Vp)
	})

	t.Run("bad depth", func(t *testing.T) {
		_, err := TruncateToDepth(layers, 0)
		require.ErrorIs(t, err, model.ErrInvalidParameter)
	})
}

func TestLoadReferenceEmbedded(t *testing.T) {
	assert.Equal(t, []string{AK135FCont, PREM}, ReferenceNames())

	for _, name := range ReferenceNames() {
		points, err := LoadReference(name)
		require.NoError(t, err, name)
		assert.Greater(t, len(points), 50, name)
		assert.Equal(t, 0.0, points[0].Depth)
		assert.Equal(t, 6371.0, points[len(points)-1].Depth)
		assert.Equal(t, model.InnerCore, points[len(points)-1].Type)
	}

	_, err := LoadReference("no-such-model")
	require.ErrorIs(t, err, ErrUnknownReference)
}

func TestLoadReferenceFromDisk(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "local.nd"), []byte("0 4 2.3\n5 4.5 2.6\n"), 0o644))

	for _, name := range []string{filepath.Join(dir, "local"), filepath.Join(dir, "local.nd")} {
		points, err := LoadReference(name)
		require.NoError(t, err)
		require.Len(t, points, 2)
		assert.Equal(t, 4.5, points[1].Vp)
	}
}

func TestLoadReferenceFS(t *testing.T) {
	fsys := fstest.MapFS{
		"custom.nd": {Data: []byte("0 4 2.3\n5 4.5 2.6\n")},
		"plain":     {Data: []byte("0 3 1.7\n")},
		"broken.nd": {Data: []byte("0 oops\n")},
	}

	points, err := LoadReferenceFS(fsys, "custom")
	require.NoError(t, err)
	assert.Len(t, points, 2)

	points, err = LoadReferenceFS(fsys, "plain")
	require.NoError(t, err)
	assert.Len(t, points, 1)

	_, err = LoadReferenceFS(fsys, "broken")
	require.ErrorIs(t, err, model.ErrMalformedInput)

	_, err = LoadReferenceFS(fsys, "missing")
	require.True(t, errors.Is(err, ErrUnknownReference))
}

func TestModelFromReferencePREM(t *testing.T) {
	m, err := ModelFromReference(PREM, 100)
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	assert.Equal(t, "prem to 100", m.Name)
	require.Len(t, m.Layers, 7)
	assert.Equal(t, 15.0, m.Layers[0].Thickness)
	assert.InDelta(t, 9.4, m.Layers[1].Thickness, 1e-9)
	assert.Equal(t, model.Crust, m.Layers[1].Type)
	assert.Equal(t, model.Mantle, m.Layers[2].Type)
	assert.Equal(t, 8.11061, m.Layers[2].Vp)
	assert.InDelta(t, 100, m.HalfspaceDepth(), 1e-9)

	hs := m.Layers[6]
	assert.InDelta(t, 8.07625+(8.05461-8.07625)*20/35, hs.Vp, 1e-9)
}

func TestModifyCrustOceanic(t *testing.T) {
	layers, err := LayersFromReference(PREM, 100)
	require.NoError(t, err)

	out, err := ModifyCrustOceanic(layers)
	require.NoError(t, err)
	require.Len(t, out, len(layers))

	assert.Equal(t, 6.96, out[0].Thickness)
	assert.Equal(t, 6.6, out[0].Vp)
	assert.InDelta(t, 5.95, out[1].Thickness, 1e-12)
	assert.Equal(t, 7.11, out[1].Vp)
	assert.InDelta(t, 15.6+24.4-12.91, out[2].Thickness, 1e-9)
	assert.InDelta(t, 100, model.ColumnThickness(out), 1e-9)
	assert.Equal(t, 15.0, layers[0].Thickness, "input must not change")

	_, err = ModifyCrustOceanic(out)
	require.ErrorIs(t, err, model.ErrModelShape)

	m, err := ModelFromReference(PREM, 100)
	require.NoError(t, err)
	mo, err := ModifyModelCrustOceanic(m)
	require.NoError(t, err)
	assert.Equal(t, "prem to 100 oceanic crust", mo.Name)
}

type fixedCrust CrustProfile

func (f fixedCrust) Profile(lat, lon float64) (CrustProfile, error) {
	p := CrustProfile(f)
	p.Lat, p.Lon = lat, lon

	return p, nil
}

func highlandProfile() CrustProfile {
	return CrustProfile{
		Layers: []CrustLayer{
			{Top: -1, Bottom: 2, Vp: 2.5, Vs: 1.2, Rho: 2.1},
			{Top: 2, Bottom: 2, Vp: 3.5, Vs: 2.0, Rho: 2.3},
			{Top: 2, Bottom: 25, Vp: 6.1, Vs: 3.55, Rho: 2.75},
			{Top: 25, Bottom: 40, Vp: 6.9, Vs: 3.9, Rho: 2.95},
		},
		Mantle: CrustLayer{Top: 40, Bottom: 6371, Vp: 8.1, Vs: 4.5, Rho: 3.35},
	}
}

func TestModifyCrustOne(t *testing.T) {
	layers, err := LayersFromPoints(continentalPoints(), 60)
	require.NoError(t, err)

	profile := highlandProfile()
	assert.Equal(t, 41.0, profile.Thickness())
	assert.Equal(t, 1.0, profile.Elevation())

	out, elevation, err := ModifyCrustOne(layers, profile)
	require.NoError(t, err)
	assert.Equal(t, 1.0, elevation)

	require.Len(t, out, 5)
	for i, want := range []float64{3, 23, 15} {
		assert.Equal(t, want, out[i].Thickness)
		assert.Equal(t, model.Crust, out[i].Type)
	}
	assert.Equal(t, model.Mantle, out[3].Type)
	assert.InDelta(t, 20, out[3].Thickness, 1e-12)
	assert.InDelta(t, 61, model.ColumnThickness(out), 1e-12)
	require.NoError(t, model.ValidateLayers(out))
}

func TestModifyCrustOneErrors(t *testing.T) {
	layers, err := LayersFromPoints(continentalPoints(), 60)
	require.NoError(t, err)

	thick := highlandProfile()
	thick.Layers[3].Bottom = 90
	thick.Mantle.Top = 90

	_, _, err = ModifyCrustOne(layers, thick)
	require.ErrorIs(t, err, model.ErrModelShape)

	noCrust := model.CloneLayers(layers)
	for i := range noCrust {
		noCrust[i].Type = model.Unknown
	}
	_, _, err = ModifyCrustOne(noCrust, highlandProfile())
	require.ErrorIs(t, err, model.ErrModelShape)

	_, _, err = ModifyCrustOne(model.New().Layers, highlandProfile())
	require.ErrorIs(t, err, model.ErrModelShape)
}

func TestModifyModelCrustOne(t *testing.T) {
	m := model.New()
	m.Name = "local"
	m.Layers, _ = LayersFromPoints(continentalPoints(), 60)

	out, err := ModifyModelCrustOne(m, fixedCrust(highlandProfile()), 34.28, -81.26)
	require.NoError(t, err)

	assert.Equal(t, "local modified for Crust 1.0 at 34.28/-81.26", out.Name)
	assert.Equal(t, 1.0, out.Extra[ExtraElevation])
	assert.Nil(t, m.Extra)
	assert.Len(t, m.Layers, 4)
}

func TestPointsFromLayersRoundTrip(t *testing.T) {
	points := continentalPoints()

	layers, err := BuildLayers(points)
	require.NoError(t, err)

	got := PointsFromLayers(layers)
	if diff := cmp.Diff(points, got, approx); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}

	withHalfspace, err := TruncateToDepth(layers, 50)
	require.NoError(t, err)
	got = PointsFromLayers(withHalfspace)
	assert.InDelta(t, 50, got[len(got)-1].Depth, 1e-12)
}

func TestWriteNDRoundTrip(t *testing.T) {
	points := continentalPoints()

	var buf bytes.Buffer
	require.NoError(t, WriteND(&buf, points))

	lines := strings.Split(buf.String(), "\n")
	assert.Equal(t, "0        5.8      3.46     2.72     1500 600", lines[0])
	assert.Equal(t, "mantle", lines[4])

	got, err := ParseND(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(points, got, approx); diff != "" {
		t.Errorf("points mismatch (-want +got):\n%s", diff)
	}
}

func TestExtendWholeEarth(t *testing.T) {
	local := continentalPoints()

	prem, err := LoadReference(PREM)
	require.NoError(t, err)

	const elevation = 2.0
	out := ExtendWholeEarth(local, prem, elevation)

	want := len(local)
	for _, p := range prem {
		if p.Depth+elevation > 77.5 {
			want++
		}
	}
	require.Len(t, out, want)

	assert.Equal(t, local, out[:len(local)])
	assert.Equal(t, 82.0, out[len(local)].Depth)
	assert.Equal(t, 6373.0, out[len(out)-1].Depth)

	layers, err := BuildLayers(out)
	require.NoError(t, err)
	assert.InDelta(t, 6373, model.ColumnThickness(layers), 1e-9)
}

func TestShiftByElevation(t *testing.T) {
	p := DepthPoint{Depth: 100, Vp: 8}
	assert.Equal(t, DepthPoint{Depth: 98, Vp: 8}, ShiftByElevation(p, -2))
	assert.Equal(t, 100.0, p.Depth)
}
