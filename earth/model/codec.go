package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-reflect/earth/momenttensor"
)

// Format selects a structured interchange encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
	FormatMsgpack
)

// FormatForPath picks an interchange format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".msgpack", ".mpk":
		return FormatMsgpack, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// The document types mirror the model one to one. Optional fields are
// pointers so that a document which omits them decodes to the defaults of
// New, which lets hand-written documents stay short. An encoded model always
// sets them, so empty source depths, an empty extra bag and an untyped layer
// survive a round trip.

type layerDoc struct {
	Thick       float64  `json:"thick" yaml:"thick" msgpack:"thick"`
	Vp          float64  `json:"vp" yaml:"vp" msgpack:"vp"`
	VpGradient  *float64 `json:"vp_gradient,omitempty" yaml:"vp_gradient,omitempty" msgpack:"vp_gradient,omitempty"`
	Vs          float64  `json:"vs" yaml:"vs" msgpack:"vs"`
	VsGradient  *float64 `json:"vs_gradient,omitempty" yaml:"vs_gradient,omitempty" msgpack:"vs_gradient,omitempty"`
	Rho         float64  `json:"rho" yaml:"rho" msgpack:"rho"`
	RhoGradient *float64 `json:"rho_gradient,omitempty" yaml:"rho_gradient,omitempty" msgpack:"rho_gradient,omitempty"`
	Qp          *float64 `json:"qp,omitempty" yaml:"qp,omitempty" msgpack:"qp,omitempty"`
	Qs          *float64 `json:"qs,omitempty" yaml:"qs,omitempty" msgpack:"qs,omitempty"`
	Tp1         *float64 `json:"tp1,omitempty" yaml:"tp1,omitempty" msgpack:"tp1,omitempty"`
	Tp2         *float64 `json:"tp2,omitempty" yaml:"tp2,omitempty" msgpack:"tp2,omitempty"`
	Ts1         *float64 `json:"ts1,omitempty" yaml:"ts1,omitempty" msgpack:"ts1,omitempty"`
	Ts2         *float64 `json:"ts2,omitempty" yaml:"ts2,omitempty" msgpack:"ts2,omitempty"`
	Type        *string  `json:"type,omitempty" yaml:"type,omitempty" msgpack:"type,omitempty"`
}

type slownessDoc struct {
	LowCut     float64 `json:"lowcut" yaml:"lowcut" msgpack:"lowcut"`
	LowPass    float64 `json:"lowpass" yaml:"lowpass" msgpack:"lowpass"`
	HighPass   float64 `json:"highpass" yaml:"highpass" msgpack:"highpass"`
	HighCut    float64 `json:"highcut" yaml:"highcut" msgpack:"highcut"`
	ControlFac float64 `json:"controlfac" yaml:"controlfac" msgpack:"controlfac"`
}

type frequencyDoc struct {
	Min           float64 `json:"min" yaml:"min" msgpack:"min"`
	Max           float64 `json:"max" yaml:"max" msgpack:"max"`
	Nyquist       float64 `json:"nyquist" yaml:"nyquist" msgpack:"nyquist"`
	NumTimePoints int     `json:"numtimepoints" yaml:"numtimepoints" msgpack:"numtimepoints"`
}

type distanceDoc struct {
	Type         int       `json:"type" yaml:"type" msgpack:"type"`
	Distance     float64   `json:"distance,omitempty" yaml:"distance,omitempty" msgpack:"distance,omitempty"`
	Min          float64   `json:"min,omitempty" yaml:"min,omitempty" msgpack:"min,omitempty"`
	Delta        float64   `json:"delta,omitempty" yaml:"delta,omitempty" msgpack:"delta,omitempty"`
	Num          int       `json:"num,omitempty" yaml:"num,omitempty" msgpack:"num,omitempty"`
	DistanceList []float64 `json:"distanceList,omitempty" yaml:"distanceList,omitempty" msgpack:"distanceList,omitempty"`
	Azimuth      float64   `json:"azimuth" yaml:"azimuth" msgpack:"azimuth"`
}

type modelDoc struct {
	Name          *string       `json:"name,omitempty" yaml:"name,omitempty" msgpack:"name,omitempty"`
	GradientThick *float64      `json:"gradientthick,omitempty" yaml:"gradientthick,omitempty" msgpack:"gradientthick,omitempty"`
	EFTThick      *float64      `json:"eftthick,omitempty" yaml:"eftthick,omitempty" msgpack:"eftthick,omitempty"`
	IsEFT         bool          `json:"isEFT" yaml:"isEFT" msgpack:"isEFT"`
	Layers        []layerDoc    `json:"layers,omitempty" yaml:"layers,omitempty" msgpack:"layers,omitempty"`
	Slowness      *slownessDoc  `json:"slowness,omitempty" yaml:"slowness,omitempty" msgpack:"slowness,omitempty"`
	Frequency     *frequencyDoc `json:"frequency,omitempty" yaml:"frequency,omitempty" msgpack:"frequency,omitempty"`
	Distance      *distanceDoc  `json:"distance,omitempty" yaml:"distance,omitempty" msgpack:"distance,omitempty"`
	SourceDepths  *[]float64    `json:"sourceDepths,omitempty" yaml:"sourceDepths,omitempty" msgpack:"sourceDepths,omitempty"`
	ReceiverDepth *float64      `json:"receiverDepth,omitempty" yaml:"receiverDepth,omitempty" msgpack:"receiverDepth,omitempty"`
	// An empty map means "no tensor"; a missing key keeps the default.
	MomentTensor map[string]float64  `json:"momentTensor" yaml:"momentTensor" msgpack:"momentTensor"`
	Extra        *map[string]float64 `json:"extra,omitempty" yaml:"extra,omitempty" msgpack:"extra,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func toDoc(m *Model) modelDoc {
	doc := modelDoc{
		Name:          ptr(m.Name),
		GradientThick: ptr(m.GradientStep),
		EFTThick:      ptr(m.EFTStep),
		IsEFT:         m.Flattened,
		Slowness: &slownessDoc{
			LowCut:     m.Slowness.LowCut,
			LowPass:    m.Slowness.LowPass,
			HighPass:   m.Slowness.HighPass,
			HighCut:    m.Slowness.HighCut,
			ControlFac: m.Slowness.ControlFactor,
		},
		Frequency: &frequencyDoc{
			Min:           m.Frequency.Min,
			Max:           m.Frequency.Max,
			Nyquist:       m.Frequency.Nyquist,
			NumTimePoints: m.Frequency.NumTimePoints,
		},
		Distance: &distanceDoc{
			Type:         int(m.Distance.Kind),
			Distance:     m.Distance.Distance,
			Min:          m.Distance.Min,
			Delta:        m.Distance.Delta,
			Num:          m.Distance.Count,
			DistanceList: m.Distance.List,
			Azimuth:      m.Distance.Azimuth,
		},
		ReceiverDepth: ptr(m.ReceiverDepth),
		MomentTensor:  map[string]float64{},
	}

	if m.SourceDepths != nil {
		doc.SourceDepths = ptr(m.SourceDepths)
	}

	if m.Extra != nil {
		doc.Extra = ptr(m.Extra)
	}

	doc.Layers = make([]layerDoc, len(m.Layers))
	for i, l := range m.Layers {
		doc.Layers[i] = layerDoc{
			Thick:       l.Thickness,
			Vp:          l.Vp,
			VpGradient:  ptr(l.VpGradient),
			Vs:          l.Vs,
			VsGradient:  ptr(l.VsGradient),
			Rho:         l.Rho,
			RhoGradient: ptr(l.RhoGradient),
			Qp:          ptr(l.Qp),
			Qs:          ptr(l.Qs),
			Tp1:         ptr(l.Tp1),
			Tp2:         ptr(l.Tp2),
			Ts1:         ptr(l.Ts1),
			Ts2:         ptr(l.Ts2),
			Type:        ptr(string(l.Type)),
		}
	}

	if mt := m.MomentTensor; mt != nil {
		doc.MomentTensor = map[string]float64{
			"m_nn": mt.Mnn,
			"m_ne": mt.Mne,
			"m_nd": mt.Mnd,
			"m_ee": mt.Mee,
			"m_ed": mt.Med,
			"m_dd": mt.Mdd,
		}
	}

	return doc
}

func fromDoc(doc modelDoc) (*Model, error) {
	m := New()

	if doc.Name != nil {
		m.Name = *doc.Name
	}

	if doc.GradientThick != nil {
		m.GradientStep = *doc.GradientThick
	}

	if doc.EFTThick != nil {
		m.EFTStep = *doc.EFTThick
	}

	m.Flattened = doc.IsEFT

	if doc.Layers != nil {
		m.Layers = make([]Layer, len(doc.Layers))
		for i, ld := range doc.Layers {
			l, err := layerFromDoc(ld)
			if err != nil {
				return nil, fmt.Errorf("layer %d: %w", i, err)
			}
			m.Layers[i] = l
		}
	}

	if s := doc.Slowness; s != nil {
		m.Slowness = SlownessWindow{
			LowCut:        s.LowCut,
			LowPass:       s.LowPass,
			HighPass:      s.HighPass,
			HighCut:       s.HighCut,
			ControlFactor: s.ControlFac,
		}
	}

	if f := doc.Frequency; f != nil {
		m.Frequency = FrequencyWindow{
			Min:           f.Min,
			Max:           f.Max,
			Nyquist:       f.Nyquist,
			NumTimePoints: f.NumTimePoints,
		}
	}

	if d := doc.Distance; d != nil {
		kind := DistanceKind(d.Type)
		switch {
		case d.Type > 0:
			kind = DistanceSingle
		case d.Type < 0:
			kind = DistanceIrregular
		}

		m.Distance = DistanceSpec{
			Kind:     kind,
			Distance: d.Distance,
			Min:      d.Min,
			Delta:    d.Delta,
			Count:    d.Num,
			List:     d.DistanceList,
			Azimuth:  d.Azimuth,
		}
	}

	if doc.SourceDepths != nil {
		m.SourceDepths = append([]float64{}, *doc.SourceDepths...)
	}

	if doc.ReceiverDepth != nil {
		m.ReceiverDepth = *doc.ReceiverDepth
	}

	if doc.MomentTensor != nil {
		mt, err := tensorFromMap(doc.MomentTensor)
		if err != nil {
			return nil, err
		}
		m.MomentTensor = mt
	}

	m.Extra = nil
	if doc.Extra != nil {
		m.Extra = make(map[string]float64, len(*doc.Extra))
		maps.Copy(m.Extra, *doc.Extra)
	}

	return m, nil
}

func layerFromDoc(ld layerDoc) (Layer, error) {
	l := NewLayer(ld.Thick, ld.Vp, ld.Vs, ld.Rho)

	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&l.VpGradient, ld.VpGradient)
	set(&l.VsGradient, ld.VsGradient)
	set(&l.RhoGradient, ld.RhoGradient)
	set(&l.Qp, ld.Qp)
	set(&l.Qs, ld.Qs)
	set(&l.Tp1, ld.Tp1)
	set(&l.Tp2, ld.Tp2)
	set(&l.Ts1, ld.Ts1)
	set(&l.Ts2, ld.Ts2)

	switch {
	case ld.Type == nil:
	case *ld.Type == "":
		l.Type = ""
	default:
		t, ok := ParseLayerType(*ld.Type)
		if !ok {
			return Layer{}, fmt.Errorf("%w: unknown layer type %q", ErrMalformedInput, *ld.Type)
		}
		l.Type = t
	}

	return l, nil
}

// tensorFromMap accepts either north/east/down or r/theta/phi keys.
func tensorFromMap(in map[string]float64) (*momenttensor.NED, error) {
	if len(in) == 0 {
		return nil, nil
	}

	if _, ok := in["m_rr"]; ok {
		ned := momenttensor.RTPToNED(momenttensor.RTP{
			Mrr: in["m_rr"],
			Mtt: in["m_tt"],
			Mpp: in["m_pp"],
			Mrt: in["m_rt"],
			Mrp: in["m_rp"],
			Mtp: in["m_tp"],
		})
		return &ned, nil
	}

	for _, k := range []string{"m_nn", "m_ne", "m_nd", "m_ee", "m_ed", "m_dd"} {
		if _, ok := in[k]; ok {
			return &momenttensor.NED{
				Mnn: in["m_nn"],
				Mne: in["m_ne"],
				Mnd: in["m_nd"],
				Mee: in["m_ee"],
				Med: in["m_ed"],
				Mdd: in["m_dd"],
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: cannot interpret moment tensor keys %v", ErrMalformedInput, keys(in))
}

func keys(in map[string]float64) []string {
	out := make([]string, 0, len(in))
	for k := range in {
		out = append(out, k)
	}

	return out
}

// Encode writes m to w in the given interchange format.
func Encode(w io.Writer, m *Model, format Format) error {
	doc := toDoc(m)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(doc)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case FormatMsgpack:
		return msgpack.NewEncoder(w).Encode(doc)
	default:
		return fmt.Errorf("%w: format %d", ErrUnsupportedFormat, int(format))
	}
}

// Decode reads a model in the given interchange format from r. Fields the
// document omits take the defaults of New.
func Decode(r io.Reader, format Format) (*Model, error) {
	var (
		doc modelDoc
		err error
	)

	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&doc)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&doc)
	case FormatMsgpack:
		err = msgpack.NewDecoder(r).Decode(&doc)
	default:
		return nil, fmt.Errorf("%w: format %d", ErrUnsupportedFormat, int(format))
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}

	return fromDoc(doc)
}

// Marshal encodes m into a byte slice.
func Marshal(m *Model, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, m, format); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes a model from data.
func Unmarshal(data []byte, format Format) (*Model, error) {
	return Decode(bytes.NewReader(data), format)
}

// LoadFile reads an interchange document, choosing the format from the file
// extension. A model still carrying DefaultName is named after the file.
func LoadFile(path string) (*Model, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if m.Name == DefaultName {
		m.Name = filepath.Base(path)
	}

	return m, nil
}

// SaveFile writes m as an interchange document chosen by extension.
func SaveFile(path string, m *Model) (err error) {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()

	return Encode(f, m, format)
}
