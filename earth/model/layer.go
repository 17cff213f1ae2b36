package model

// LayerType tags the region a layer belongs to. It is only used to find the
// crust/mantle boundary when replacing a crust.
type LayerType string

const (
	Crust     LayerType = "crust"
	Mantle    LayerType = "mantle"
	OuterCore LayerType = "outer-core"
	InnerCore LayerType = "inner-core"
	Unknown   LayerType = "unknown"
)

// ParseLayerType maps a section marker to a LayerType. ok is false for
// anything that is not one of the known markers.
func ParseLayerType(s string) (LayerType, bool) {
	switch LayerType(s) {
	case Crust, Mantle, OuterCore, InnerCore, Unknown:
		return LayerType(s), true
	default:
		return Unknown, false
	}
}

// Defaults for optional layer attributes.
const (
	DefaultQp  = 1500.0
	DefaultQs  = 600.0
	DefaultTp1 = 1.0e4
	DefaultTp2 = 0.0001
	DefaultTs1 = 1.0e4
	DefaultTs2 = 0.0001
)

// Layer is one depth interval of a layered model. Velocities are km/s,
// density g/cm^3, thickness km, gradients per km. A zero thickness marks the
// halfspace, whose gradients are ignored.
//
// Tp1, Tp2, Ts1 and Ts2 are transverse-isotropy placeholders that the
// reflectivity program reads but does not use; they are carried through
// every transform unchanged.
type Layer struct {
	Thickness   float64
	Vp          float64
	VpGradient  float64
	Vs          float64
	VsGradient  float64
	Rho         float64
	RhoGradient float64
	Qp          float64
	Qs          float64
	Tp1         float64
	Tp2         float64
	Ts1         float64
	Ts2         float64
	Type        LayerType
}

// NewLayer returns a homogeneous layer with default Q and anisotropy values.
func NewLayer(thickness, vp, vs, rho float64) Layer {
	return Layer{
		Thickness: thickness,
		Vp:        vp,
		Vs:        vs,
		Rho:       rho,
		Qp:        DefaultQp,
		Qs:        DefaultQs,
		Tp1:       DefaultTp1,
		Tp2:       DefaultTp2,
		Ts1:       DefaultTs1,
		Ts2:       DefaultTs2,
		Type:      Unknown,
	}
}

// IsHalfspace reports whether l is a zero-thickness halfspace.
func (l Layer) IsHalfspace() bool {
	return l.Thickness == 0
}

// HasGradient reports whether vp or vs vary within the layer.
func (l Layer) HasGradient() bool {
	return l.VpGradient != 0 || l.VsGradient != 0
}

// Bottom returns vp, vs and rho evaluated at the bottom of the layer.
func (l Layer) Bottom() (vp, vs, rho float64) {
	return l.Vp + l.VpGradient*l.Thickness,
		l.Vs + l.VsGradient*l.Thickness,
		l.Rho + l.RhoGradient*l.Thickness
}

// At returns vp, vs and rho at dz km below the top of the layer.
func (l Layer) At(dz float64) (vp, vs, rho float64) {
	return l.Vp + l.VpGradient*dz,
		l.Vs + l.VsGradient*dz,
		l.Rho + l.RhoGradient*dz
}

// CloneLayers returns a copy of layers that shares no storage with it.
func CloneLayers(layers []Layer) []Layer {
	if layers == nil {
		return nil
	}

	out := make([]Layer, len(layers))
	copy(out, layers)

	return out
}
