// Package crustone reads the Crust-1.0 global crustal model, a 1x1 degree
// grid of nine-layer profiles, and answers profiles by location.
//
// The model ships as four text files with one line of nine values per cell:
// crust1.bnds (top of each layer, km above sea level), crust1.vp, crust1.vs
// and crust1.rho. Cells run from 89.5N to 89.5S, and within each latitude
// row from 179.5W to 179.5E.
package crustone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-reflect/earth/ingest"
)

// Grid dimensions.
const (
	NumLat    = 180
	NumLon    = 360
	NumCells  = NumLat * NumLon
	NumLayers = 9
)

// File names of the four grids.
const (
	BoundsFile  = "crust1.bnds"
	VpFile      = "crust1.vp"
	VsFile      = "crust1.vs"
	DensityFile = "crust1.rho"
)

const earthRadius = 6371.0

// LayerNames names the nine layers of a cell, top down. The last is the
// uppermost mantle.
var LayerNames = [NumLayers]string{
	"water",
	"ice",
	"upper sediments",
	"middle sediments",
	"lower sediments",
	"upper crust",
	"middle crust",
	"lower crust",
	"mantle",
}

var (
	ErrMalformedInput  = errors.New("crustone: malformed grid file")
	ErrInvalidLocation = errors.New("crustone: invalid location")
)

type grid [][NumLayers]float64

// Model is a loaded Crust-1.0 grid. It is safe for concurrent use.
type Model struct {
	bounds grid
	vp     grid
	vs     grid
	rho    grid
}

// Load reads the four grid files from dir.
func Load(dir string) (*Model, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads the four grid files from the root of fsys.
func LoadFS(fsys fs.FS) (*Model, error) {
	files := [4]string{BoundsFile, VpFile, VsFile, DensityFile}
	readers := make([]io.Reader, 0, len(files))

	for _, name := range files {
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()

		readers = append(readers, f)
	}

	return Parse(readers[0], readers[1], readers[2], readers[3])
}

// Parse reads the grids from the given readers. The four are parsed
// concurrently.
func Parse(bounds, vp, vs, rho io.Reader) (*Model, error) {
	m := &Model{}

	var g errgroup.Group

	for _, job := range []struct {
		name string
		r    io.Reader
		dst  *grid
	}{
		{BoundsFile, bounds, &m.bounds},
		{VpFile, vp, &m.vp},
		{VsFile, vs, &m.vs},
		{DensityFile, rho, &m.rho},
	} {
		g.Go(func() error {
			parsed, err := parseGrid(job.r)
			if err != nil {
				return fmt.Errorf("%s: %w", job.name, err)
			}
			*job.dst = parsed

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return m, nil
}

func parseGrid(r io.Reader) (grid, error) {
	sc := bufio.NewScanner(r)
	out := make(grid, 0, NumCells)

	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}

		if len(fields) != NumLayers {
			return nil, fmt.Errorf("%w: line %d has %d values, want %d", ErrMalformedInput, line, len(fields), NumLayers)
		}

		if len(out) == NumCells {
			return nil, fmt.Errorf("%w: more than %d cells", ErrMalformedInput, NumCells)
		}

		var cell [NumLayers]float64
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedInput, line, err)
			}
			cell[i] = v
		}
		out = append(out, cell)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(out) != NumCells {
		return nil, fmt.Errorf("%w: %d cells, want %d", ErrMalformedInput, len(out), NumCells)
	}

	return out, nil
}

// CellIndex returns the grid cell containing (lat, lon). Longitudes are
// wrapped into [-180, 180).
func CellIndex(lat, lon float64) (int, error) {
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || math.IsInf(lon, 0) {
		return 0, fmt.Errorf("%w: (%v, %v)", ErrInvalidLocation, lat, lon)
	}

	lon = math.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}

	ilat := min(max(int(math.Floor(90-lat)), 0), NumLat-1)
	ilon := min(max(int(math.Floor(lon)), 0), NumLon-1)

	return ilat*NumLon + ilon, nil
}

// Profile returns the crust at (lat, lon). Depths are km below sea level.
func (m *Model) Profile(lat, lon float64) (ingest.CrustProfile, error) {
	idx, err := CellIndex(lat, lon)
	if err != nil {
		return ingest.CrustProfile{}, err
	}

	b := m.bounds[idx]
	p := ingest.CrustProfile{
		Lat:    lat,
		Lon:    lon,
		Layers: make([]ingest.CrustLayer, 0, NumLayers-1),
	}

	for i := range NumLayers - 1 {
		p.Layers = append(p.Layers, ingest.CrustLayer{
			Top:    -b[i],
			Bottom: -b[i+1],
			Vp:     m.vp[idx][i],
			Vs:     m.vs[idx][i],
			Rho:    m.rho[idx][i],
		})
	}

	last := NumLayers - 1
	p.Mantle = ingest.CrustLayer{
		Top:    -b[last],
		Bottom: earthRadius,
		Vp:     m.vp[idx][last],
		Vs:     m.vs[idx][last],
		Rho:    m.rho[idx][last],
	}

	return p, nil
}

var _ ingest.CrustProvider = (*Model)(nil)
