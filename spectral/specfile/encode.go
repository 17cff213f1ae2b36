package specfile

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// recordWriter writes framed records.
type recordWriter struct {
	w     *bufio.Writer
	order binary.ByteOrder
	buf   []byte
}

func (rw *recordWriter) begin(n int) {
	if cap(rw.buf) < n+2*markerSize {
		rw.buf = make([]byte, n+2*markerSize)
	}
	rw.buf = rw.buf[:n+2*markerSize]
	rw.order.PutUint32(rw.buf, uint32(n))
	rw.order.PutUint32(rw.buf[markerSize+n:], uint32(n))
}

func (rw *recordWriter) putFloat(i int, v float64) {
	rw.order.PutUint32(rw.buf[markerSize+4*i:], math.Float32bits(float32(v)))
}

func (rw *recordWriter) putInt(i, v int) {
	rw.order.PutUint32(rw.buf[markerSize+4*i:], uint32(int32(v)))
}

func (rw *recordWriter) flush() error {
	_, err := rw.w.Write(rw.buf)
	return err
}

func (rw *recordWriter) floats(v []float64) error {
	rw.begin(4 * len(v))
	for i, x := range v {
		rw.putFloat(i, x)
	}

	return rw.flush()
}

// Encode writes h and spectra in the layout Decode reads. Spectra must be
// given in range, depth, source order and hold NumFreqPoints bins each;
// only the computed band is written. Values are stored as float32.
func Encode(w io.Writer, h Header, spectra []RawSpectrum, opts ...Option) error {
	if err := h.Validate(); err != nil {
		return err
	}

	if len(spectra) != h.NumSpectra() {
		return fmt.Errorf("%w: %d spectra, header declares %d", ErrMalformedInput, len(spectra), h.NumSpectra())
	}

	cfg := applyOptions(opts)
	rw := &recordWriter{w: bufio.NewWriter(w), order: cfg.ByteOrder}

	rw.begin(headerSize)
	rw.putFloat(0, h.FreqMin)
	rw.putFloat(1, h.FreqMax)
	rw.putFloat(2, h.FreqDelta)
	rw.putInt(3, h.NumBandPoints)
	rw.putFloat(4, h.Nyquist)
	rw.putInt(5, h.NumFreqPoints)
	rw.putInt(6, h.NumRanges)
	rw.putInt(7, h.NumSources)
	rw.putInt(8, h.NumDepths)
	rw.putFloat(9, h.Azimuth)
	if err := rw.flush(); err != nil {
		return err
	}

	if err := rw.floats(h.Ranges); err != nil {
		return err
	}

	if err := rw.floats(h.Depths); err != nil {
		return err
	}

	start, end := h.BandStart(), h.BandEnd()

	for i, s := range spectra {
		if len(s.U0) != h.NumFreqPoints || len(s.W0) != h.NumFreqPoints || len(s.Tn) != h.NumFreqPoints {
			return fmt.Errorf("%w: spectrum %d: component lengths %d/%d/%d, want %d",
				ErrMalformedInput, i, len(s.U0), len(s.W0), len(s.Tn), h.NumFreqPoints)
		}

		for f := start; f <= end; f++ {
			rw.begin(frequencySize)
			rw.putFloat(0, real(s.U0[f]))
			rw.putFloat(1, imag(s.U0[f]))
			rw.putFloat(2, real(s.W0[f]))
			rw.putFloat(3, imag(s.W0[f]))
			rw.putFloat(4, real(s.Tn[f]))
			rw.putFloat(5, imag(s.Tn[f]))
			if err := rw.flush(); err != nil {
				return err
			}
		}
	}

	return rw.w.Flush()
}

// Amplitude returns |X[k]| for each bin of a component spectrum.
func Amplitude(in []complex128) []float64 {
	if len(in) == 0 {
		return nil
	}

	re := make([]float64, len(in))
	im := make([]float64, len(in))
	for i, c := range in {
		re[i] = real(c)
		im[i] = imag(c)
	}

	out := make([]float64, len(in))
	vecmath.Magnitude(out, re, im)

	return out
}
