// Package momenttensor converts seismic moment tensors between the
// (r, theta, phi) convention used by global catalogs and the
// (north, east, down) convention expected by the reflectivity program, and
// scales scalar moments to the program's output units.
package momenttensor

import "math"

const (
	dyneCmPerNewtonMeter = 1e7
	// reflectivity output is displacement in cm with a factor of 1e-20 per dyne-cm
	reflectivityUnitScale = 1e20
	cmPerMeter            = 100
)

// NED is a symmetric moment tensor in north, east, down coordinates.
type NED struct {
	Mnn float64 `json:"m_nn" yaml:"m_nn" msgpack:"m_nn"`
	Mne float64 `json:"m_ne" yaml:"m_ne" msgpack:"m_ne"`
	Mnd float64 `json:"m_nd" yaml:"m_nd" msgpack:"m_nd"`
	Mee float64 `json:"m_ee" yaml:"m_ee" msgpack:"m_ee"`
	Med float64 `json:"m_ed" yaml:"m_ed" msgpack:"m_ed"`
	Mdd float64 `json:"m_dd" yaml:"m_dd" msgpack:"m_dd"`
}

// RTP is a symmetric moment tensor in r (up), theta (south), phi (east)
// coordinates, as published by USGS and Global CMT.
type RTP struct {
	Mrr float64 `json:"m_rr" yaml:"m_rr" msgpack:"m_rr"`
	Mtt float64 `json:"m_tt" yaml:"m_tt" msgpack:"m_tt"`
	Mpp float64 `json:"m_pp" yaml:"m_pp" msgpack:"m_pp"`
	Mrt float64 `json:"m_rt" yaml:"m_rt" msgpack:"m_rt"`
	Mrp float64 `json:"m_rp" yaml:"m_rp" msgpack:"m_rp"`
	Mtp float64 `json:"m_tp" yaml:"m_tp" msgpack:"m_tp"`
}

// RTPToNED converts an r, theta, phi tensor to north, east, down.
//
// Diagonal terms permute without a sign change. Of the off-diagonal terms,
// those pairing east with another axis flip sign because phi is east but
// theta is south.
func RTPToNED(mt RTP) NED {
	return NED{
		Mdd: mt.Mrr,
		Mnn: mt.Mtt,
		Mee: mt.Mpp,
		Mnd: mt.Mrt,
		Med: -mt.Mrp,
		Mne: -mt.Mtp,
	}
}

// NEDToRTP is the inverse of RTPToNED.
func NEDToRTP(mt NED) RTP {
	return RTP{
		Mrr: mt.Mdd,
		Mtt: mt.Mnn,
		Mpp: mt.Mee,
		Mrt: mt.Mnd,
		Mrp: -mt.Med,
		Mtp: -mt.Mne,
	}
}

// Components returns the tensor in GER line order: nn, ne, nd, ee, ed, dd.
func (mt NED) Components() [6]float64 {
	return [6]float64{mt.Mnn, mt.Mne, mt.Mnd, mt.Mee, mt.Med, mt.Mdd}
}

// FromComponents builds a tensor from GER line order.
func FromComponents(c [6]float64) NED {
	return NED{Mnn: c[0], Mne: c[1], Mnd: c[2], Mee: c[3], Med: c[4], Mdd: c[5]}
}

// Scale returns the tensor with every component multiplied by s.
func (mt NED) Scale(s float64) NED {
	return NED{
		Mnn: mt.Mnn * s,
		Mne: mt.Mne * s,
		Mnd: mt.Mnd * s,
		Mee: mt.Mee * s,
		Med: mt.Med * s,
		Mdd: mt.Mdd * s,
	}
}

// MomentScaleFactor converts a scalar moment in newton-meters into the
// multiplier that takes a raw reflectivity response (dyne-cm, 1e-20 scaled,
// cm output) to m or m/s amplitudes.
func MomentScaleFactor(scalarMomentNm float64) float64 {
	return scalarMomentNm * dyneCmPerNewtonMeter / reflectivityUnitScale / cmPerMeter
}

// MwToNewtonMeters converts moment magnitude to scalar moment in N-m
// (Lay and Wallace, p. 384).
func MwToNewtonMeters(mw float64) float64 {
	return math.Pow(10, (mw+10.73)*1.5-7.0)
}

// MwScaleFactor is MomentScaleFactor applied to MwToNewtonMeters(mw).
func MwScaleFactor(mw float64) float64 {
	return MomentScaleFactor(MwToNewtonMeters(mw))
}
