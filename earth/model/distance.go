package model

import "fmt"

// DistanceKind selects the DistanceSpec variant. The numeric values are the
// type codes of the GER distance line.
type DistanceKind int

const (
	DistanceIrregular DistanceKind = -1
	DistanceRegular   DistanceKind = 0
	DistanceSingle    DistanceKind = 1
)

func (k DistanceKind) String() string {
	switch k {
	case DistanceIrregular:
		return "irregular"
	case DistanceRegular:
		return "regular"
	case DistanceSingle:
		return "single"
	default:
		return fmt.Sprintf("DistanceKind(%d)", int(k))
	}
}

// DistanceSpec describes the receiver ranges (km) of a run. Only the fields
// of the selected Kind are meaningful:
//
//   - DistanceSingle: Distance
//   - DistanceRegular: Min, Delta, Count
//   - DistanceIrregular: List
type DistanceSpec struct {
	Kind     DistanceKind
	Distance float64
	Min      float64
	Delta    float64
	Count    int
	List     []float64
	Azimuth  float64
}

// SingleDistance returns a single-range spec.
func SingleDistance(distance, azimuth float64) DistanceSpec {
	return DistanceSpec{Kind: DistanceSingle, Distance: distance, Azimuth: azimuth}
}

// RegularDistances returns count ranges starting at min, delta apart.
func RegularDistances(min, delta float64, count int, azimuth float64) DistanceSpec {
	return DistanceSpec{Kind: DistanceRegular, Min: min, Delta: delta, Count: count, Azimuth: azimuth}
}

// IrregularDistances returns a spec for an explicit range list.
func IrregularDistances(list []float64, azimuth float64) DistanceSpec {
	return DistanceSpec{Kind: DistanceIrregular, List: append([]float64(nil), list...), Azimuth: azimuth}
}

// Distances enumerates the ranges described by d.
func (d DistanceSpec) Distances() []float64 {
	switch d.Kind {
	case DistanceSingle:
		return []float64{d.Distance}
	case DistanceRegular:
		out := make([]float64, 0, max(d.Count, 0))
		for i := 0; i < d.Count; i++ {
			out = append(out, d.Min+float64(i)*d.Delta)
		}
		return out
	case DistanceIrregular:
		return append([]float64(nil), d.List...)
	default:
		return nil
	}
}

// Validate checks that the fields required by Kind are consistent.
func (d DistanceSpec) Validate() error {
	switch d.Kind {
	case DistanceSingle:
		if d.Distance <= 0 {
			return fmt.Errorf("%w: single distance must be > 0, got %v", ErrInvalidParameter, d.Distance)
		}
	case DistanceRegular:
		if d.Count <= 0 {
			return fmt.Errorf("%w: regular distance count must be > 0, got %d", ErrInvalidParameter, d.Count)
		}
	case DistanceIrregular:
		if len(d.List) == 0 {
			return fmt.Errorf("%w: irregular distance list is empty", ErrInvalidParameter)
		}
	default:
		return fmt.Errorf("%w: unknown distance kind %d", ErrInvalidParameter, int(d.Kind))
	}

	return nil
}

func (d DistanceSpec) clone() DistanceSpec {
	out := d
	if d.List != nil {
		out.List = append([]float64(nil), d.List...)
	}

	return out
}
