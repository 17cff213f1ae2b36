// Package specfile decodes the binary spectral output ("mspec") of the
// reflectivity program.
//
// The file is a sequence of sequential-access Fortran records, each framed
// by a 4-byte length marker before and after its payload:
//
//	fmin fmax delf nffpts fny nfpts nr nsrc nd azis    (3f i f i 3i f)
//	range[0..nr)                                        (f)
//	depth[0..nd)                                        (f)
//
// followed, for every range, depth and source in that nesting order, by one
// record per frequency index in [ifmin, ifmax] holding the real and
// imaginary parts of the vertical, radial and transverse spectra (6f).
// Markers are read and discarded without checking them against the payload.
package specfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	ErrMalformedInput  = errors.New("specfile: malformed input")
	ErrTruncatedStream = errors.New("specfile: truncated stream")
)

const (
	markerSize    = 4
	headerSize    = 10 * 4
	frequencySize = 6 * 4

	// maxCount bounds the range, depth, source and frequency counts a header
	// may declare.
	maxCount = 1 << 20
)

// GenericMechanism tags the spectra of a single-source run.
const GenericMechanism = "mij"

// MechanismNames tags source indices of a multi-source run, one per
// moment-tensor component Green's function.
var MechanismNames = [...]string{"zz", "xy", "xz", "xx", "yz", "yy"}

// Mechanism returns the tag of source index s out of numSources.
func Mechanism(s, numSources int) string {
	if numSources <= 1 {
		return GenericMechanism
	}

	if s < 0 || s >= len(MechanismNames) {
		return fmt.Sprintf("source%d", s)
	}

	return MechanismNames[s]
}

// Config controls decoding and encoding.
type Config struct {
	ByteOrder binary.ByteOrder
}

// Option mutates a Config.
type Option func(*Config)

// DefaultConfig returns little-endian records.
func DefaultConfig() Config {
	return Config{ByteOrder: binary.LittleEndian}
}

// WithByteOrder sets the byte order of markers and payloads.
func WithByteOrder(order binary.ByteOrder) Option {
	return func(cfg *Config) {
		if order != nil {
			cfg.ByteOrder = order
		}
	}
}

func applyOptions(opts []Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// Header is the run description at the start of a spectral file.
type Header struct {
	FreqMin   float64
	FreqMax   float64
	FreqDelta float64
	// NumBandPoints is the number of computed frequencies, nffpts.
	NumBandPoints int
	Nyquist       float64
	// NumFreqPoints is the full one-sided spectrum length, nfpts.
	NumFreqPoints int
	NumRanges     int
	NumSources    int
	NumDepths     int
	Azimuth       float64
	Ranges        []float64
	Depths        []float64
}

// BandStart returns ifmin, the index of the first computed frequency.
func (h Header) BandStart() int {
	return int(math.Round(h.FreqMin / h.FreqDelta))
}

// BandEnd returns ifmax, the index of the last computed frequency.
func (h Header) BandEnd() int {
	return h.BandStart() + h.NumBandPoints - 1
}

// SampleInterval returns dt = 1/(2 nyquist), seconds.
func (h Header) SampleInterval() float64 {
	return 1 / (2 * h.Nyquist)
}

// NumTimePoints returns the time series length, 2(nfpts-1).
func (h Header) NumTimePoints() int {
	return 2 * (h.NumFreqPoints - 1)
}

// NumSpectra returns the number of (range, depth, source) combinations.
func (h Header) NumSpectra() int {
	return h.NumRanges * h.NumDepths * h.NumSources
}

// Validate checks the header's counts, frequency band and that Ranges and
// Depths match the declared counts.
func (h Header) Validate() error {
	if err := h.validateCounts(); err != nil {
		return err
	}

	if len(h.Ranges) != h.NumRanges || len(h.Depths) != h.NumDepths {
		return fmt.Errorf("%w: %d ranges and %d depths, header declares %d and %d",
			ErrMalformedInput, len(h.Ranges), len(h.Depths), h.NumRanges, h.NumDepths)
	}

	return nil
}

func (h Header) validateCounts() error {
	for _, c := range []struct {
		name string
		n    int
	}{
		{"range count", h.NumRanges},
		{"depth count", h.NumDepths},
		{"source count", h.NumSources},
		{"band points", h.NumBandPoints},
	} {
		if c.n < 1 || c.n > maxCount {
			return fmt.Errorf("%w: %s %d outside [1, %d]", ErrMalformedInput, c.name, c.n, maxCount)
		}
	}

	if h.NumFreqPoints < 2 || h.NumFreqPoints > maxCount {
		return fmt.Errorf("%w: spectrum length %d outside [2, %d]", ErrMalformedInput, h.NumFreqPoints, maxCount)
	}

	if !(h.FreqDelta > 0) || math.IsInf(h.FreqDelta, 0) {
		return fmt.Errorf("%w: frequency step %v", ErrMalformedInput, h.FreqDelta)
	}

	if !(h.Nyquist > 0) || math.IsInf(h.Nyquist, 0) {
		return fmt.Errorf("%w: nyquist %v", ErrMalformedInput, h.Nyquist)
	}

	if start, end := h.BandStart(), h.BandEnd(); start < 0 || end >= h.NumFreqPoints {
		return fmt.Errorf("%w: band [%d, %d] outside spectrum of %d points", ErrMalformedInput, start, end, h.NumFreqPoints)
	}

	return nil
}

// RawSpectrum holds the three one-sided spectra of one (range, depth,
// source) combination. Bins outside [BandStart, BandEnd] are zero.
type RawSpectrum struct {
	RangeIndex  int
	DepthIndex  int
	SourceIndex int
	Range       float64
	Depth       float64
	Mechanism   string
	U0          []complex128
	W0          []complex128
	Tn          []complex128
}

// recordReader reads framed records.
type recordReader struct {
	r     *bufio.Reader
	order binary.ByteOrder
	buf   []byte
}

// read returns the payload of the next record, which must hold at least n
// bytes. The returned slice is valid until the next call.
func (rr *recordReader) read(n int, what string) ([]byte, error) {
	if cap(rr.buf) < n+2*markerSize {
		rr.buf = make([]byte, n+2*markerSize)
	}
	buf := rr.buf[:n+2*markerSize]

	if _, err := io.ReadFull(rr.r, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %s: need %d bytes: %w", ErrTruncatedStream, what, n+2*markerSize, err)
		}
		return nil, err
	}

	return buf[markerSize : markerSize+n], nil
}

func (rr *recordReader) float(b []byte, i int) float64 {
	return float64(math.Float32frombits(rr.order.Uint32(b[4*i:])))
}

func (rr *recordReader) int(b []byte, i int) int {
	return int(int32(rr.order.Uint32(b[4*i:])))
}

func (rr *recordReader) floats(n int, what string) ([]float64, error) {
	b, err := rr.read(4*n, what)
	if err != nil {
		return nil, err
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = rr.float(b, i)
	}

	return out, nil
}

// Decode reads a spectral file. Spectra come back in range, depth, source
// order.
func Decode(r io.Reader, opts ...Option) (Header, []RawSpectrum, error) {
	cfg := applyOptions(opts)
	rr := &recordReader{r: bufio.NewReader(r), order: cfg.ByteOrder}

	b, err := rr.read(headerSize, "header")
	if err != nil {
		return Header{}, nil, err
	}

	h := Header{
		FreqMin:       rr.float(b, 0),
		FreqMax:       rr.float(b, 1),
		FreqDelta:     rr.float(b, 2),
		NumBandPoints: rr.int(b, 3),
		Nyquist:       rr.float(b, 4),
		NumFreqPoints: rr.int(b, 5),
		NumRanges:     rr.int(b, 6),
		NumSources:    rr.int(b, 7),
		NumDepths:     rr.int(b, 8),
		Azimuth:       rr.float(b, 9),
	}

	if err := h.validateCounts(); err != nil {
		return Header{}, nil, err
	}

	if h.Ranges, err = rr.floats(h.NumRanges, "ranges"); err != nil {
		return Header{}, nil, err
	}

	if h.Depths, err = rr.floats(h.NumDepths, "depths"); err != nil {
		return Header{}, nil, err
	}

	start, end := h.BandStart(), h.BandEnd()
	spectra := make([]RawSpectrum, 0, h.NumSpectra())

	for ir, rng := range h.Ranges {
		for id, depth := range h.Depths {
			for is := range h.NumSources {
				s := RawSpectrum{
					RangeIndex:  ir,
					DepthIndex:  id,
					SourceIndex: is,
					Range:       rng,
					Depth:       depth,
					Mechanism:   Mechanism(is, h.NumSources),
					U0:          make([]complex128, h.NumFreqPoints),
					W0:          make([]complex128, h.NumFreqPoints),
					Tn:          make([]complex128, h.NumFreqPoints),
				}

				for f := start; f <= end; f++ {
					what := fmt.Sprintf("range %d depth %d source %d frequency %d", ir, id, is, f)
					b, err := rr.read(frequencySize, what)
					if err != nil {
						return Header{}, nil, err
					}

					s.U0[f] = complex(rr.float(b, 0), rr.float(b, 1))
					s.W0[f] = complex(rr.float(b, 2), rr.float(b, 3))
					s.Tn[f] = complex(rr.float(b, 4), rr.float(b, 5))
				}

				spectra = append(spectra, s)
			}
		}
	}

	return h, spectra, nil
}

// DecodeFile decodes the spectral file at path.
func DecodeFile(path string, opts ...Option) (Header, []RawSpectrum, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()

	h, spectra, err := Decode(f, opts...)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}

	return h, spectra, nil
}
