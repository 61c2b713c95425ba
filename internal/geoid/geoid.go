// Package geoid loads a gridded WGS84-to-geoid height table and interpolates
// the ellipsoid/geoid separation at arbitrary query points.
package geoid

import (
	"encoding/binary"
	"fmt"
	"math"

	"golang.org/x/exp/mmap"
)

const headerSize = 2*2 + 7*4 // nlat, nlng uint16 + 7 float32 fields

// Grid is a memory-mapped gridded geoid height table, read-only for its
// whole lifetime.
type Grid struct {
	nlat, nlng                    int
	latMin, latStep, latMax       float64
	lngMin, lngStep, lngMax       float64
	qscale                        float64

	r *mmap.ReaderAt
}

// Open reads the header and memory-maps the remainder of path for random
// access. The returned Grid must be closed by the caller.
func Open(path string) (*Grid, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoid grid %s: %w", path, err)
	}

	header := make([]byte, headerSize)
	if _, err := r.ReadAt(header, 0); err != nil {
		r.Close()
		return nil, fmt.Errorf("read geoid grid header: %w", err)
	}

	g := &Grid{r: r}
	g.nlat = int(binary.LittleEndian.Uint16(header[0:2]))
	g.nlng = int(binary.LittleEndian.Uint16(header[2:4]))
	g.latMin = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[4:8])))
	g.latStep = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[8:12])))
	g.latMax = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[12:16])))
	g.lngMin = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[16:20])))
	g.lngStep = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[20:24])))
	g.lngMax = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[24:28])))
	g.qscale = float64(math.Float32frombits(binary.LittleEndian.Uint32(header[28:32])))

	return g, nil
}

// Close releases the memory mapping.
func (g *Grid) Close() error {
	return g.r.Close()
}

// cell reads grid cell (ilng, ilat), dequantized by qscale.
func (g *Grid) cell(ilng, ilat int) (float64, error) {
	idx := ilng*g.nlat + ilat
	off := int64(headerSize + idx*2)

	var raw [2]byte
	if _, err := g.r.ReadAt(raw[:], off); err != nil {
		return 0, fmt.Errorf("read geoid cell (%d,%d): %w", ilng, ilat, err)
	}
	v := int16(binary.LittleEndian.Uint16(raw[:]))
	return float64(v) / g.qscale, nil
}

// Correction returns the ellipsoid-to-geoid separation (metres) at
// (latDeg, lngDeg), or NaN if the point falls outside the grid's bounding
// box.
func (g *Grid) Correction(latDeg, lngDeg float64) float64 {
	if latDeg < g.latMin || latDeg > g.latMax || lngDeg < g.lngMin || lngDeg > g.lngMax {
		return math.NaN()
	}

	slat := (latDeg - g.latMin) / g.latStep
	slng := (lngDeg - g.lngMin) / g.lngStep

	ilat0, ilat1 := bracket(slat)
	ilng0, ilng1 := bracket(slng)

	g00, err := g.cell(ilng0, ilat0)
	if err != nil {
		return math.NaN()
	}
	g01, err := g.cell(ilng1, ilat0)
	if err != nil {
		return math.NaN()
	}
	g10, err := g.cell(ilng0, ilat1)
	if err != nil {
		return math.NaN()
	}
	g11, err := g.cell(ilng1, ilat1)
	if err != nil {
		return math.NaN()
	}

	x := slng - math.Floor(slng)
	y := slat - math.Floor(slat)
	xBar := 1 - x
	yBar := 1 - y

	return g00*xBar*yBar + g01*x*yBar + g10*xBar*y + g11*x*y
}

// bracket returns the floor/ceil index pair bracketing s, collapsing to a
// single row/column when s is exactly grid-aligned (rounding s+0.5 back to
// s signals alignment, per the source's test-for-exactness).
func bracket(s float64) (lo, hi int) {
	if math.Floor(s+0.5) == s {
		i := int(s)
		return i, i
	}
	return int(math.Floor(s)), int(math.Ceil(s))
}

// RadToDeg converts a fix's radian coordinate to the degrees Correction
// expects.
func RadToDeg(rad float64) float64 {
	return rad * 360 / (2 * math.Pi)
}
