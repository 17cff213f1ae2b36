package ingest

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/earth/model"
)

// ExtraElevation is the Model.Extra key of the surface elevation, km, added
// to the column by a Crust-1.0 overlay.
const ExtraElevation = "elevation"

// Reference shape expected by ModifyCrustOceanic: the two PREM crust layers
// and the top of the PREM mantle.
const (
	premUpperCrustThickness = 15.0
	premLowerCrustThickness = 9.4
	premMantleVp            = 8.11061
	shapeTolerance          = 1e-6
)

// Two-layer oceanic crust, after the CRUST 2.0 oceanic averages.
var (
	oceanicUpper = model.Layer{Thickness: 6.96, Vp: 6.6, Vs: 3.65, Rho: 2.90}
	oceanicLower = model.Layer{Thickness: 12.91 - 6.96, Vp: 7.11, Vs: 3.91, Rho: 3.05}
)

// CrustLayer is one layer of a crustal profile. Depths are km below sea
// level and negative above it.
type CrustLayer struct {
	Top    float64
	Bottom float64
	Vp     float64
	Vs     float64
	Rho    float64
}

// Thickness returns Bottom - Top.
func (l CrustLayer) Thickness() float64 {
	return l.Bottom - l.Top
}

// CrustProfile is the crust at one location, top down, and the mantle
// directly below it.
type CrustProfile struct {
	Lat    float64
	Lon    float64
	Layers []CrustLayer
	Mantle CrustLayer
}

// Thickness returns the crust thickness from the surface to the Moho.
func (p CrustProfile) Thickness() float64 {
	if len(p.Layers) == 0 {
		return 0
	}

	return p.Mantle.Top - p.Layers[0].Top
}

// Elevation returns the height of the surface above sea level, km.
func (p CrustProfile) Elevation() float64 {
	if len(p.Layers) == 0 {
		return -p.Mantle.Top
	}

	return -p.Layers[0].Top
}

// CrustProvider answers crustal profiles by location.
type CrustProvider interface {
	Profile(lat, lon float64) (CrustProfile, error)
}

// crustRun returns the number of leading crust layers and their thickness.
// The crust must be followed by a finite mantle layer.
func crustRun(layers []model.Layer) (int, float64, error) {
	n := 0
	for n < len(layers) && layers[n].Type == model.Crust {
		n++
	}

	if n == 0 {
		return 0, 0, fmt.Errorf("%w: model does not start with crust layers", model.ErrModelShape)
	}

	if n >= len(layers) || layers[n].IsHalfspace() {
		return 0, 0, fmt.Errorf("%w: no finite layer below the %d crust layers", model.ErrModelShape, n)
	}

	return n, model.ColumnThickness(layers[:n]), nil
}

// ModifyCrustOceanic replaces the two PREM crust layers with a two-layer
// oceanic crust and stretches the top mantle layer so the column keeps its
// thickness. Layers that do not look like PREM fail with ErrModelShape.
func ModifyCrustOceanic(layers []model.Layer) ([]model.Layer, error) {
	if len(layers) < 3 ||
		math.Abs(layers[0].Thickness-premUpperCrustThickness) > shapeTolerance ||
		math.Abs(layers[1].Thickness-premLowerCrustThickness) > shapeTolerance ||
		math.Abs(layers[2].Vp-premMantleVp) > shapeTolerance {
		return nil, fmt.Errorf("%w: layers do not start like PREM (crust %v km + %v km over mantle vp %v)",
			model.ErrModelShape, premUpperCrustThickness, premLowerCrustThickness, premMantleVp)
	}

	out := model.CloneLayers(layers)
	origCrust := out[0].Thickness + out[1].Thickness

	for i, oc := range []model.Layer{oceanicUpper, oceanicLower} {
		out[i].Thickness = oc.Thickness
		out[i].Vp = oc.Vp
		out[i].Vs = oc.Vs
		out[i].Rho = oc.Rho
		out[i].VpGradient = 0
		out[i].VsGradient = 0
		out[i].RhoGradient = 0
	}

	out[2].Thickness += origCrust - out[0].Thickness - out[1].Thickness

	return out, nil
}

// ModifyCrustOne replaces the leading crust layers with the layers of
// profile and resizes the top mantle layer so that its bottom moves down by
// the profile's elevation: the column grows by the elevation, as if the
// earth's radius grew by it. It returns the new layers and the elevation.
// Zero-thickness profile layers are dropped.
func ModifyCrustOne(layers []model.Layer, profile CrustProfile) ([]model.Layer, float64, error) {
	n, origCrust, err := crustRun(layers)
	if err != nil {
		return nil, 0, err
	}

	elevation := profile.Elevation()
	mantle := layers[n]
	newMantle := mantle.Thickness + origCrust + elevation - profile.Thickness()

	if newMantle <= 0 {
		return nil, 0, fmt.Errorf("%w: top mantle layer of %v km cannot absorb %v km of crust replacing %v km at elevation %v km",
			model.ErrModelShape, mantle.Thickness, profile.Thickness(), origCrust, elevation)
	}

	out := make([]model.Layer, 0, len(layers)-n+len(profile.Layers))
	for _, cl := range profile.Layers {
		if cl.Thickness() <= 0 {
			continue
		}

		l := model.NewLayer(cl.Thickness(), cl.Vp, cl.Vs, cl.Rho)
		l.Type = model.Crust
		out = append(out, l)
	}

	mantle.Thickness = newMantle
	out = append(out, mantle)
	out = append(out, layers[n+1:]...)

	return out, elevation, nil
}

// ModifyModelCrustOne returns a copy of m with the Crust-1.0 profile at
// (lat, lon) in place of its crust. The elevation is recorded in Extra.
func ModifyModelCrustOne(m *model.Model, provider CrustProvider, lat, lon float64) (*model.Model, error) {
	profile, err := provider.Profile(lat, lon)
	if err != nil {
		return nil, err
	}

	layers, elevation, err := ModifyCrustOne(m.Layers, profile)
	if err != nil {
		return nil, err
	}

	out := m.WithLayers(layers)
	out.SetExtra(ExtraElevation, elevation)
	out.Name = fmt.Sprintf("%s modified for Crust 1.0 at %g/%g", m.Name, lat, lon)

	return out, nil
}

// ModifyModelCrustOceanic returns a copy of m with an oceanic crust.
func ModifyModelCrustOceanic(m *model.Model) (*model.Model, error) {
	layers, err := ModifyCrustOceanic(m.Layers)
	if err != nil {
		return nil, err
	}

	out := m.WithLayers(layers)
	out.Name = m.Name + " oceanic crust"

	return out, nil
}
