package testutil

import (
	"bytes"
	"encoding/binary"
	"math/rand"

	"github.com/cwbudde/algo-reflect/spectral/specfile"
)

// FixtureHeader returns a small spectral header: 17 one-sided bins of
// 0.125 Hz (32 time samples at 0.25 s) with bins 2..11 computed.
func FixtureHeader(numRanges, numDepths, numSources int) specfile.Header {
	h := specfile.Header{
		FreqMin:       0.25,
		FreqMax:       1.375,
		FreqDelta:     0.125,
		NumBandPoints: 10,
		Nyquist:       2,
		NumFreqPoints: 17,
		NumRanges:     numRanges,
		NumSources:    numSources,
		NumDepths:     numDepths,
		Azimuth:       30,
	}

	for i := range numRanges {
		h.Ranges = append(h.Ranges, float64(50*(i+1)))
	}
	for i := range numDepths {
		h.Depths = append(h.Depths, 1.5*float64(i+1))
	}

	return h
}

// DeterministicSpectra fills every (range, depth, source) combination of h
// with seeded pseudo-random values inside the computed band. Values are
// representable as float32 so they survive an encode/decode cycle exactly.
func DeterministicSpectra(h specfile.Header, seed int64) []specfile.RawSpectrum {
	rng := rand.New(rand.NewSource(seed))
	value := func() complex128 {
		re := float64(float32(rng.Float64()*2 - 1))
		im := float64(float32(rng.Float64()*2 - 1))
		return complex(re, im)
	}

	out := make([]specfile.RawSpectrum, 0, h.NumSpectra())
	for ir, r := range h.Ranges {
		for id, d := range h.Depths {
			for is := range h.NumSources {
				s := specfile.RawSpectrum{
					RangeIndex:  ir,
					DepthIndex:  id,
					SourceIndex: is,
					Range:       r,
					Depth:       d,
					Mechanism:   specfile.Mechanism(is, h.NumSources),
					U0:          make([]complex128, h.NumFreqPoints),
					W0:          make([]complex128, h.NumFreqPoints),
					Tn:          make([]complex128, h.NumFreqPoints),
				}
				for f := h.BandStart(); f <= h.BandEnd(); f++ {
					s.U0[f], s.W0[f], s.Tn[f] = value(), value(), value()
				}
				out = append(out, s)
			}
		}
	}

	return out
}

// Record frames values (float32, int32 or slices of them) as one
// sequential-access record with matching length markers.
func Record(order binary.ByteOrder, values ...any) []byte {
	var payload bytes.Buffer
	for _, v := range values {
		if err := binary.Write(&payload, order, v); err != nil {
			panic(err)
		}
	}

	var out bytes.Buffer
	marker := uint32(payload.Len())
	_ = binary.Write(&out, order, marker)
	out.Write(payload.Bytes())
	_ = binary.Write(&out, order, marker)

	return out.Bytes()
}
