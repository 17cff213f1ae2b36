// Package ger reads and writes the fixed-layout text model ("GER" format)
// that is the input contract of the reflectivity program.
//
// Layout, one item per line:
//
//	layer count
//	thick vp vs rho qp qs tp1 tp2 ts1 ts2      (one line per layer)
//	lowcut lowpass highpass highcut controlfac
//	fmin fmax nyquist numtimepoints
//	distance block                             (see below)
//	source depth count
//	source depths
//	receiver depth
//	m_nn m_ne m_nd m_ee m_ed m_dd              (optional)
//
// The distance block starts with "type azimuth". A positive type is a single
// distance equal to the type itself. Type 0 is followed by "min delta count",
// type -1 by a count line and a list line.
package ger

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-reflect/earth/gradient"
	"github.com/cwbudde/algo-reflect/earth/model"
	"github.com/cwbudde/algo-reflect/earth/momenttensor"
)

// LayerDecimals is the fixed precision of layer lines.
const LayerDecimals = 4

// Write renders m in GER format. Gradient layers are expanded first, at the
// model's GradientStep, because the format has no gradient columns.
func Write(w io.Writer, m *model.Model) error {
	expanded, err := gradient.EvaluateModel(m)
	if err != nil {
		return fmt.Errorf("ger: %w", err)
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "%d\n", len(expanded.Layers))
	for _, l := range expanded.Layers {
		writeFixed(bw, l.Thickness, l.Vp, l.Vs, l.Rho, l.Qp, l.Qs, l.Tp1, l.Tp2, l.Ts1, l.Ts2)
	}

	s := expanded.Slowness
	writeFloats(bw, s.LowCut, s.LowPass, s.HighPass, s.HighCut, s.ControlFactor)

	f := expanded.Frequency
	fmt.Fprintf(bw, "%s %s %s %d\n", formatFloat(f.Min), formatFloat(f.Max), formatFloat(f.Nyquist), f.NumTimePoints)

	d := expanded.Distance
	if err := d.Validate(); err != nil {
		return fmt.Errorf("ger: %w", err)
	}

	if len(expanded.SourceDepths) == 0 {
		return fmt.Errorf("ger: %w: no source depths", model.ErrInvalidParameter)
	}

	switch d.Kind {
	case model.DistanceSingle:
		writeFloats(bw, d.Distance, d.Azimuth)
	case model.DistanceRegular:
		fmt.Fprintf(bw, "%d %s\n", int(model.DistanceRegular), formatFloat(d.Azimuth))
		fmt.Fprintf(bw, "%s %s %d\n", formatFloat(d.Min), formatFloat(d.Delta), d.Count)
	case model.DistanceIrregular:
		fmt.Fprintf(bw, "%d %s\n", int(model.DistanceIrregular), formatFloat(d.Azimuth))
		fmt.Fprintf(bw, "%d\n", len(d.List))
		writeFloats(bw, d.List...)
	}

	fmt.Fprintf(bw, "%d\n", len(expanded.SourceDepths))
	writeFloats(bw, expanded.SourceDepths...)
	writeFloats(bw, expanded.ReceiverDepth)

	if mt := expanded.MomentTensor; mt != nil {
		c := mt.Components()
		writeFloats(bw, c[:]...)
	}

	return bw.Flush()
}

// Marshal renders m in GER format.
func Marshal(m *model.Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, m); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeFixed(w *bufio.Writer, vals ...float64) {
	for i, v := range vals {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(strconv.FormatFloat(v, 'f', LayerDecimals, 64))
	}
	w.WriteByte('\n')
}

func writeFloats(w *bufio.Writer, vals ...float64) {
	for i, v := range vals {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(formatFloat(v))
	}
	w.WriteByte('\n')
}

// lineReader hands out the non-blank lines of a GER document as fields,
// remembering line numbers for error messages.
type lineReader struct {
	sc   *bufio.Scanner
	line int
}

func (lr *lineReader) next(what string) ([]string, error) {
	for lr.sc.Scan() {
		lr.line++
		fields := strings.Fields(lr.sc.Text())
		if len(fields) > 0 {
			return fields, nil
		}
	}

	if err := lr.sc.Err(); err != nil {
		return nil, err
	}

	return nil, fmt.Errorf("%w: unexpected end of input reading %s after line %d", model.ErrMalformedInput, what, lr.line)
}

// more reports whether another non-blank line follows, returning it.
func (lr *lineReader) more() ([]string, bool, error) {
	fields, err := lr.next("")
	if err == nil {
		return fields, true, nil
	}

	if errors.Is(err, model.ErrMalformedInput) {
		return nil, false, nil
	}

	return nil, false, err
}

func (lr *lineReader) floats(fields []string, min int, what string) ([]float64, error) {
	if len(fields) < min {
		return nil, fmt.Errorf("%w: line %d: %s needs %d values, got %d",
			model.ErrMalformedInput, lr.line, what, min, len(fields))
	}

	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s value %q: %w", model.ErrMalformedInput, lr.line, what, f, err)
		}
		out[i] = v
	}

	return out, nil
}

func (lr *lineReader) count(fields []string, what string) (int, error) {
	if len(fields) < 1 {
		return 0, fmt.Errorf("%w: line %d: missing %s", model.ErrMalformedInput, lr.line, what)
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: line %d: %s %q is not a positive count", model.ErrMalformedInput, lr.line, what, fields[0])
	}

	return n, nil
}

// Parse reads a GER document. Layers come back without gradients and with
// Unknown type, which the format does not carry.
func Parse(r io.Reader) (*model.Model, error) {
	lr := &lineReader{sc: bufio.NewScanner(r)}
	m := model.New()

	fields, err := lr.next("layer count")
	if err != nil {
		return nil, err
	}

	numLayers, err := lr.count(fields, "layer count")
	if err != nil {
		return nil, err
	}

	m.Layers = make([]model.Layer, 0, numLayers)
	for i := range numLayers {
		fields, err := lr.next(fmt.Sprintf("layer %d", i))
		if err != nil {
			return nil, err
		}

		v, err := lr.floats(fields, 6, "layer")
		if err != nil {
			return nil, err
		}

		l := model.NewLayer(v[0], v[1], v[2], v[3])
		l.Qp = v[4]
		l.Qs = v[5]
		if len(v) >= 10 {
			l.Tp1, l.Tp2, l.Ts1, l.Ts2 = v[6], v[7], v[8], v[9]
		}
		m.Layers = append(m.Layers, l)
	}

	if fields, err = lr.next("slowness window"); err != nil {
		return nil, err
	}
	v, err := lr.floats(fields, 5, "slowness window")
	if err != nil {
		return nil, err
	}
	m.Slowness = model.SlownessWindow{LowCut: v[0], LowPass: v[1], HighPass: v[2], HighCut: v[3], ControlFactor: v[4]}

	if fields, err = lr.next("frequency window"); err != nil {
		return nil, err
	}
	if v, err = lr.floats(fields, 4, "frequency window"); err != nil {
		return nil, err
	}
	m.Frequency = model.FrequencyWindow{Min: v[0], Max: v[1], Nyquist: v[2], NumTimePoints: int(v[3])}

	if m.Distance, err = parseDistance(lr); err != nil {
		return nil, err
	}

	if fields, err = lr.next("source count"); err != nil {
		return nil, err
	}
	numSources, err := lr.count(fields, "source count")
	if err != nil {
		return nil, err
	}
	if fields, err = lr.next("source depths"); err != nil {
		return nil, err
	}
	if m.SourceDepths, err = lr.floats(fields, numSources, "source depths"); err != nil {
		return nil, err
	}
	m.SourceDepths = m.SourceDepths[:numSources]

	if fields, err = lr.next("receiver depth"); err != nil {
		return nil, err
	}
	if v, err = lr.floats(fields, 1, "receiver depth"); err != nil {
		return nil, err
	}
	m.ReceiverDepth = v[0]

	fields, ok, err := lr.more()
	if err != nil {
		return nil, err
	}
	m.MomentTensor = nil
	if ok {
		if v, err = lr.floats(fields, 6, "moment tensor"); err != nil {
			return nil, err
		}
		mt := momenttensor.FromComponents([6]float64(v[:6]))
		m.MomentTensor = &mt
	}

	return m, nil
}

func parseDistance(lr *lineReader) (model.DistanceSpec, error) {
	fields, err := lr.next("distance type")
	if err != nil {
		return model.DistanceSpec{}, err
	}

	v, err := lr.floats(fields, 2, "distance type and azimuth")
	if err != nil {
		return model.DistanceSpec{}, err
	}

	kind, azimuth := v[0], v[1]

	switch {
	case kind > 0:
		return model.SingleDistance(kind, azimuth), nil
	case kind == 0:
		if fields, err = lr.next("regular distances"); err != nil {
			return model.DistanceSpec{}, err
		}
		if v, err = lr.floats(fields, 3, "regular distances"); err != nil {
			return model.DistanceSpec{}, err
		}
		return model.RegularDistances(v[0], v[1], int(v[2]), azimuth), nil
	default:
		if fields, err = lr.next("distance count"); err != nil {
			return model.DistanceSpec{}, err
		}
		n, err := lr.count(fields, "distance count")
		if err != nil {
			return model.DistanceSpec{}, err
		}
		if fields, err = lr.next("distance list"); err != nil {
			return model.DistanceSpec{}, err
		}
		if v, err = lr.floats(fields, n, "distance list"); err != nil {
			return model.DistanceSpec{}, err
		}
		return model.IrregularDistances(v[:n], azimuth), nil
	}
}

// ReadFile parses a GER file and names the model after the file.
func ReadFile(path string) (*model.Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Name = filepath.Base(path)

	return m, nil
}

// WriteFile writes m to path in GER format.
func WriteFile(path string, m *model.Model) error {
	data, err := Marshal(m)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
