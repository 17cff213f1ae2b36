// Package ingest builds layer models from depth-sampled reference profiles.
//
// A reference profile ("ND" text) lists control points, one per line:
//
//	depth vp vs [rho qp qs]
//
// Bare "mantle", "outer-core" and "inner-core" lines retag the points that
// follow. Points before the first marker are crust. Consecutive points at
// distinct depths become one gradient layer; a repeated depth is a
// discontinuity.
package ingest

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-reflect/earth/model"
)

// Names of the embedded reference profiles.
const (
	PREM       = "prem"
	AK135FCont = "ak135fcont"
)

// DefaultRho is the density, g/cm^3, of a profile row without a rho column.
const DefaultRho = 2.6

// ErrUnknownReference is returned when a reference profile cannot be found
// on disk or among the embedded profiles.
var ErrUnknownReference = errors.New("ingest: unknown reference profile")

//go:embed data/*.nd
var embedded embed.FS

// DepthPoint is a control point of a piecewise-linear depth profile.
type DepthPoint struct {
	Depth float64
	Vp    float64
	Vs    float64
	Rho   float64
	Qp    float64
	Qs    float64
	Type  model.LayerType
}

// ParseND reads an ND profile. Depths must not decrease.
func ParseND(r io.Reader) ([]DepthPoint, error) {
	sc := bufio.NewScanner(r)
	layerType := model.Crust

	var points []DepthPoint

	for line := 1; sc.Scan(); line++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		if t, ok := sectionMarker(text); ok {
			layerType = t
			continue
		}

		fields := strings.Fields(text)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: need depth vp vs, got %q", model.ErrMalformedInput, line, text)
		}

		vals := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q: %w", model.ErrMalformedInput, line, f, err)
			}
			vals[i] = v
		}

		p := DepthPoint{
			Depth: vals[0],
			Vp:    vals[1],
			Vs:    vals[2],
			Rho:   DefaultRho,
			Qp:    model.DefaultQp,
			Qs:    model.DefaultQs,
			Type:  layerType,
		}
		if len(vals) > 3 {
			p.Rho = vals[3]
		}
		if len(vals) > 4 {
			p.Qp = vals[4]
		}
		if len(vals) > 5 {
			p.Qs = vals[5]
		}

		if n := len(points); n > 0 && p.Depth < points[n-1].Depth {
			return nil, fmt.Errorf("%w: line %d: depth %v above previous point at %v",
				model.ErrMalformedInput, line, p.Depth, points[n-1].Depth)
		}

		points = append(points, p)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("%w: profile has no points", model.ErrMalformedInput)
	}

	return points, nil
}

func sectionMarker(line string) (model.LayerType, bool) {
	switch t := model.LayerType(line); t {
	case model.Mantle, model.OuterCore, model.InnerCore:
		return t, true
	default:
		return "", false
	}
}

// LoadReference loads a reference profile by name. It tries "<name>.nd" and
// then "<name>" on disk before falling back to the embedded profiles.
func LoadReference(name string) ([]DepthPoint, error) {
	for _, candidate := range []string{name + ".nd", name} {
		info, err := os.Stat(candidate)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		f, err := os.Open(candidate)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		points, err := ParseND(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", candidate, err)
		}

		return points, nil
	}

	sub, err := fs.Sub(embedded, "data")
	if err != nil {
		return nil, err
	}

	return LoadReferenceFS(sub, name)
}

// LoadReferenceFS loads "<name>.nd", or else "<name>", from fsys.
func LoadReferenceFS(fsys fs.FS, name string) ([]DepthPoint, error) {
	for _, candidate := range []string{name + ".nd", name} {
		data, err := fs.ReadFile(fsys, candidate)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			continue
		}
		if err != nil {
			return nil, err
		}

		points, err := ParseND(strings.NewReader(string(data)))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", candidate, err)
		}

		return points, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownReference, name)
}

// ReferenceNames lists the embedded reference profiles.
func ReferenceNames() []string {
	entries, err := embedded.ReadDir("data")
	if err != nil {
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if ext := path.Ext(e.Name()); ext == ".nd" {
			names = append(names, strings.TrimSuffix(e.Name(), ext))
		}
	}
	sort.Strings(names)

	return names
}

// WriteND writes points as ND text, emitting a section marker where the
// layer type changes to mantle, outer core or inner core.
func WriteND(w io.Writer, points []DepthPoint) error {
	bw := bufio.NewWriter(w)
	current := model.Crust

	for _, p := range points {
		if p.Type != model.Unknown && p.Type != current {
			if _, ok := sectionMarker(string(p.Type)); ok {
				fmt.Fprintln(bw, p.Type)
			}
			current = p.Type
		}

		fmt.Fprintf(bw, "%-8s %-8s %-8s %-8s %s %s\n",
			ndNumber(p.Depth), ndNumber(p.Vp), ndNumber(p.Vs), ndNumber(p.Rho), ndNumber(p.Qp), ndNumber(p.Qs))
	}

	return bw.Flush()
}

// ndNumber rounds to 6 decimals and drops trailing zeros.
func ndNumber(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}

	return s
}
