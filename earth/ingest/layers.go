package ingest

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-reflect/earth/model"
)

// boundaryTolerance is how close, in km, a truncation depth must be to a
// layer bottom to count as lying on the boundary.
const boundaryTolerance = 1e-9

// BuildLayers turns consecutive control points into gradient layers. A pair
// at the same depth is a discontinuity and emits nothing. The result has no
// halfspace; TruncateToDepth adds one.
func BuildLayers(points []DepthPoint) ([]model.Layer, error) {
	if len(points) == 0 {
		return nil, nil
	}

	layers := make([]model.Layer, 0, len(points)-1)
	prev := points[0]

	for i, p := range points[1:] {
		thick := p.Depth - prev.Depth

		switch {
		case thick < 0:
			return nil, fmt.Errorf("%w: point %d at %v km is above point %d at %v km",
				model.ErrMalformedInput, i+1, p.Depth, i, prev.Depth)
		case thick > 0:
			l := model.NewLayer(thick, prev.Vp, prev.Vs, prev.Rho)
			l.VpGradient = (p.Vp - prev.Vp) / thick
			l.VsGradient = (p.Vs - prev.Vs) / thick
			l.RhoGradient = (p.Rho - prev.Rho) / thick
			l.Qp = prev.Qp
			l.Qs = prev.Qs
			l.Type = prev.Type
			layers = append(layers, l)
		}

		prev = p
	}

	return layers, nil
}

// TruncateToDepth keeps layers down to maxDepth km. The layer containing
// maxDepth is cut there and followed by a halfspace with the cut layer's
// values at the cut. If maxDepth lies on a layer bottom nothing is split.
// A halfspace in the input reaches any depth and is cut like a layer.
func TruncateToDepth(layers []model.Layer, maxDepth float64) ([]model.Layer, error) {
	if !(maxDepth > 0) || math.IsInf(maxDepth, 0) {
		return nil, fmt.Errorf("%w: truncation depth must be finite and > 0, got %v", model.ErrInvalidParameter, maxDepth)
	}

	out := make([]model.Layer, 0, len(layers)+1)
	depth := 0.0

	for _, l := range layers {
		bottom := depth + l.Thickness
		if l.IsHalfspace() {
			bottom = math.Inf(1)
			l.VpGradient = 0
			l.VsGradient = 0
			l.RhoGradient = 0
		}

		if bottom < maxDepth-boundaryTolerance {
			out = append(out, l)
			depth = bottom
			continue
		}

		last := l
		if bottom > maxDepth+boundaryTolerance {
			last.Thickness = maxDepth - depth
		}
		out = append(out, last)

		hs := last
		hs.Thickness = 0
		hs.Vp, hs.Vs, hs.Rho = last.Bottom()
		hs.VpGradient = 0
		hs.VsGradient = 0
		hs.RhoGradient = 0

		return append(out, hs), nil
	}

	return nil, fmt.Errorf("%w: profile reaches %v km, truncation depth is %v km",
		model.ErrInsufficientData, depth, maxDepth)
}

// LayersFromReference loads a reference profile, builds its layers and
// truncates them at maxDepth km.
func LayersFromReference(name string, maxDepth float64) ([]model.Layer, error) {
	points, err := LoadReference(name)
	if err != nil {
		return nil, err
	}

	return LayersFromPoints(points, maxDepth)
}

// LayersFromPoints builds layers from points and truncates them at maxDepth.
func LayersFromPoints(points []DepthPoint, maxDepth float64) ([]model.Layer, error) {
	layers, err := BuildLayers(points)
	if err != nil {
		return nil, err
	}

	return TruncateToDepth(layers, maxDepth)
}

// ModelFromReference returns a default model whose layers come from the
// named reference profile, truncated at maxDepth km.
func ModelFromReference(name string, maxDepth float64) (*model.Model, error) {
	layers, err := LayersFromReference(name, maxDepth)
	if err != nil {
		return nil, err
	}

	m := model.New()
	m.Name = fmt.Sprintf("%s to %g", name, maxDepth)
	m.Layers = layers

	return m, nil
}

// PointsFromLayers converts layers back to control points: the top and the
// bottom of every layer, sharing a point where consecutive layers meet
// without a jump in vp or vs.
func PointsFromLayers(layers []model.Layer) []DepthPoint {
	thick := make([]float64, len(layers))
	for i, l := range layers {
		thick[i] = l.Thickness
	}

	bottoms := make([]float64, len(layers))
	floats.CumSum(bottoms, thick)

	points := make([]DepthPoint, 0, 2*len(layers))

	for i, l := range layers {
		top := DepthPoint{
			Depth: bottoms[i] - l.Thickness,
			Vp:    l.Vp,
			Vs:    l.Vs,
			Rho:   l.Rho,
			Qp:    l.Qp,
			Qs:    l.Qs,
			Type:  l.Type,
		}

		if n := len(points); n == 0 || !sameVelocity(points[n-1], top) {
			points = append(points, top)
		}

		if l.IsHalfspace() {
			continue
		}

		bot := top
		bot.Depth = bottoms[i]
		bot.Vp, bot.Vs, bot.Rho = l.Bottom()
		points = append(points, bot)
	}

	return points
}

// sameVelocity compares vp and vs up to the rounding noise of Layer.Bottom.
func sameVelocity(a, b DepthPoint) bool {
	const tol = 1e-9

	return math.Abs(a.Vp-b.Vp) <= tol && math.Abs(a.Vs-b.Vs) <= tol
}

// ShiftByElevation moves p down by elevation km. Pasting a sea-level
// reference below a local model whose surface is elevation km above sea
// level needs this shift.
func ShiftByElevation(p DepthPoint, elevation float64) DepthPoint {
	p.Depth += elevation

	return p
}

// ExtendWholeEarth appends the points of extend, shifted by elevation, that
// lie below the last point of points. A shifted point at exactly the last
// depth is kept only if it is a velocity discontinuity.
func ExtendWholeEarth(points, extend []DepthPoint, elevation float64) []DepthPoint {
	out := append([]DepthPoint(nil), points...)

	for _, p := range extend {
		p = ShiftByElevation(p, elevation)

		if len(out) == 0 {
			out = append(out, p)
			continue
		}

		last := out[len(out)-1]

		switch {
		case p.Depth < last.Depth:
			// above the local model
		case p.Depth == last.Depth:
			if p.Vp != last.Vp || p.Vs != last.Vs {
				out = append(out, p)
			}
		default:
			out = append(out, p)
		}
	}

	return out
}
