/*
Copyright © 2026 the LagFilter authors.
This file is part of LagFilter.

LagFilter is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LagFilter is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LagFilter.  If not, see <http://www.gnu.org/licenses/>.
*/

package lagfilter

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Grid is the Eulerian output grid, taken from the coordinate
// variables of the input files. Grid points are indexed row-major:
// index = iy*len(Lon) + ix.
type Grid struct {
	Lon []float64 // x or longitude coordinates, increasing
	Lat []float64 // y or latitude coordinates, increasing
}

// NumPoints returns the number of grid points.
func (g *Grid) NumPoints() int { return len(g.Lon) * len(g.Lat) }

// Point returns the position of the grid point with the given index.
func (g *Grid) Point(i int) Point {
	nx := len(g.Lon)
	return Point{X: g.Lon[i%nx], Y: g.Lat[i/nx]}
}

// FieldStore provides velocity and sampled-variable values at
// arbitrary positions and times within a bounded extent.
type FieldStore interface {
	// ValueAt returns the value of the variable with the given key at
	// position p and time t. Positions or times outside the variable's
	// valid extent return a SampleGap error.
	ValueAt(key string, p Point, t float64) (float64, error)

	// VelocityAt returns the velocity vector [m/s] at position p and
	// time t. Positions or times outside the velocity field's valid
	// extent return a DomainExit error.
	VelocityAt(p Point, t float64) (u, v float64, err error)

	// TimeExtent returns the earliest and latest times covered.
	TimeExtent() (t0, t1 float64)

	// InputTimes returns the input time coordinate.
	InputTimes() []float64

	// Grid returns the Eulerian grid of the input fields.
	Grid() *Grid

	Close() error
}

// slabKey identifies one time record of one variable.
type slabKey struct {
	key string
	it  int
}

// ncVariable is one mapped variable within an open NetCDF file.
type ncVariable struct {
	nc   *cdf.File
	name string
	fill float64 // recognized fill value, NaN if none
}

// NCFStore is a FieldStore backed by NetCDF files. All files must
// share the same grid and time coordinates. Time records are read on
// demand and held in a bounded LRU cache, so a full window of data
// never needs to fit in memory at once.
//
// The cache is safe for concurrent readers; record loading is funneled
// through a single gate because the underlying file reader is not
// reentrant.
type NCFStore struct {
	grid  *Grid
	times []float64
	vars  map[string]*ncVariable
	files []*os.File
	cache *lru.Cache[slabKey, *sparse.DenseArray]

	mx sync.Mutex // serializes record reads
}

var _ FieldStore = (*NCFStore)(nil)

// OpenNCFStore opens the files in c.Filenames and maps the velocity
// and sample variables per c.VarNames and c.Dims.
func OpenNCFStore(c *Config) (*NCFStore, error) {
	keys := append([]string{UKey, VKey}, c.SampleVariables...)

	size := c.SlabCacheSize
	if size <= 0 {
		size = defaultSlabCacheSize
	}
	cache, err := lru.New[slabKey, *sparse.DenseArray](size)
	if err != nil {
		return nil, fmt.Errorf("lagfilter: creating slab cache: %v", err)
	}
	s := &NCFStore{
		vars:  make(map[string]*ncVariable),
		cache: cache,
	}

	// Several keys commonly map to the same file.
	open := make(map[string]*cdf.File)
	for _, key := range keys {
		if _, ok := s.vars[key]; ok {
			continue
		}
		path, ok := c.Filenames[key]
		if !ok {
			s.Close()
			return nil, configErrorf("no filename given for variable %q", key)
		}
		nc, ok := open[path]
		if !ok {
			f, err := os.Open(path)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("lagfilter: opening input file: %v", err)
			}
			s.files = append(s.files, f)
			nc, err = cdf.Open(f)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("lagfilter: reading input file %s: %v", path, err)
			}
			open[path] = nc
		}
		name, ok := c.VarNames[key]
		if !ok {
			s.Close()
			return nil, configErrorf("no variable name given for variable %q", key)
		}
		s.vars[key] = &ncVariable{nc: nc, name: name, fill: fillValueAttr(nc, name)}
	}

	// Coordinates come from the velocity file; all files must share them.
	unc := s.vars[UKey].nc
	lon, err := readCoord(unc, c.Dims.Lon)
	if err == nil {
		var lat []float64
		lat, err = readCoord(unc, c.Dims.Lat)
		if err == nil {
			s.grid = &Grid{Lon: lon, Lat: lat}
			s.times, err = readCoord(unc, c.Dims.Time)
		}
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	// bracket assumes increasing coordinates; reanalysis products often
	// store latitude north to south, which must be rejected here rather
	// than masking every lookup later.
	for _, coord := range []struct {
		name string
		vals []float64
	}{{c.Dims.Lon, s.grid.Lon}, {c.Dims.Lat, s.grid.Lat}, {c.Dims.Time, s.times}} {
		if !sort.Float64sAreSorted(coord.vals) {
			s.Close()
			return nil, fmt.Errorf("lagfilter: coordinate %q is not increasing", coord.name)
		}
	}

	for key, v := range s.vars {
		dims := v.nc.Header.Lengths(v.name)
		want := []int{len(s.times), len(s.grid.Lat), len(s.grid.Lon)}
		if len(dims) != 3 || dims[0] != want[0] || dims[1] != want[1] || dims[2] != want[2] {
			s.Close()
			return nil, fmt.Errorf("lagfilter: variable %q (%s) has shape %v; expected (time, lat, lon) = %v",
				key, v.name, dims, want)
		}
	}
	return s, nil
}

// readCoord reads a 1-D floating point coordinate variable.
func readCoord(nc *cdf.File, name string) ([]float64, error) {
	dims := nc.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("lagfilter: coordinate variable %q not in file", name)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("lagfilter: coordinate variable %q has %d dimensions; expected 1", name, len(dims))
	}
	r := nc.Reader(name, nil, nil)
	buf := r.Zero(-1)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("lagfilter: reading coordinate variable %q: %v", name, err)
	}
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("lagfilter: coordinate variable %q has non-floating-point type %T", name, buf)
	}
}

// fillValueAttr returns the variable's fill value, or NaN if it has none.
func fillValueAttr(nc *cdf.File, name string) float64 {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		switch v := nc.Header.GetAttribute(name, attr).(type) {
		case []float32:
			if len(v) > 0 {
				return float64(v[0])
			}
		case []float64:
			if len(v) > 0 {
				return v[0]
			}
		}
	}
	return math.NaN()
}

// TimeExtent implements FieldStore.
func (s *NCFStore) TimeExtent() (float64, float64) {
	return s.times[0], s.times[len(s.times)-1]
}

// InputTimes implements FieldStore.
func (s *NCFStore) InputTimes() []float64 { return s.times }

// Grid implements FieldStore.
func (s *NCFStore) Grid() *Grid { return s.grid }

// Close closes the underlying files.
func (s *NCFStore) Close() error {
	var err error
	for _, f := range s.files {
		if e := f.Close(); e != nil && err == nil {
			err = e
		}
	}
	s.files = nil
	return err
}

// ValueAt implements FieldStore.
func (s *NCFStore) ValueAt(key string, p Point, t float64) (float64, error) {
	v, ok, err := s.sample(key, p, t)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, sampleGap("variable %q has no valid value at (%g, %g) t=%g", key, p.X, p.Y, t)
	}
	return v, nil
}

// VelocityAt implements FieldStore.
func (s *NCFStore) VelocityAt(p Point, t float64) (float64, float64, error) {
	u, ok, err := s.sample(UKey, p, t)
	if err != nil {
		return 0, 0, err
	}
	var v float64
	if ok {
		v, ok, err = s.sample(VKey, p, t)
		if err != nil {
			return 0, 0, err
		}
	}
	if !ok {
		return 0, 0, domainExit("no valid velocity at (%g, %g) t=%g", p.X, p.Y, t)
	}
	return u, v, nil
}

// sample interpolates the variable with the given key at (p, t).
// ok is false if the position or time is outside the valid extent or
// the surrounding data are masked. A non-nil error indicates an I/O
// or format problem, not a per-particle condition.
func (s *NCFStore) sample(key string, p Point, t float64) (val float64, ok bool, err error) {
	v, exists := s.vars[key]
	if !exists {
		return 0, false, fmt.Errorf("lagfilter: unknown variable %q", key)
	}
	ix, wx, okx := bracket(s.grid.Lon, p.X)
	iy, wy, oky := bracket(s.grid.Lat, p.Y)
	it, wt, okt := bracket(s.times, t)
	if !okx || !oky || !okt {
		return 0, false, nil
	}

	v0, err := s.slab(key, v, it)
	if err != nil {
		return 0, false, err
	}
	val0 := interp2(v0, ix, wx, iy, wy)
	if wt == 0 {
		if math.IsNaN(val0) {
			return 0, false, nil
		}
		return val0, true, nil
	}
	v1, err := s.slab(key, v, it+1)
	if err != nil {
		return 0, false, err
	}
	val1 := interp2(v1, ix, wx, iy, wy)
	if math.IsNaN(val0) || math.IsNaN(val1) {
		return 0, false, nil
	}
	return (1-wt)*val0 + wt*val1, true, nil
}

// slab returns the (lat, lon) array for one time record of one
// variable, reading it from file on a cache miss.
func (s *NCFStore) slab(key string, v *ncVariable, it int) (*sparse.DenseArray, error) {
	k := slabKey{key: key, it: it}
	if d, ok := s.cache.Get(k); ok {
		return d, nil
	}

	s.mx.Lock()
	defer s.mx.Unlock()
	if d, ok := s.cache.Get(k); ok { // lost the race; already loaded
		return d, nil
	}

	dims := v.nc.Header.Lengths(v.name)
	start, end := make([]int, len(dims)), make([]int, len(dims))
	start[0], end[0] = it, it+1
	nread := 1
	for _, dim := range dims[1:] {
		nread *= dim
	}
	r := v.nc.Reader(v.name, start, end)
	buf := r.Zero(nread)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("lagfilter: reading record %d of variable %s: %v", it, v.name, err)
	}
	data := sparse.ZerosDense(dims[1:]...)
	switch b := buf.(type) {
	case []float32:
		for i, val := range b {
			data.Elements[i] = float64(val)
		}
	case []float64:
		copy(data.Elements, b)
	default:
		return nil, fmt.Errorf("lagfilter: variable %s has non-floating-point type %T", v.name, buf)
	}
	if !math.IsNaN(v.fill) {
		for i, val := range data.Elements {
			if val == v.fill {
				data.Elements[i] = math.NaN()
			}
		}
	}
	s.cache.Add(k, data)
	return data, nil
}

// bracket locates x within the increasing coordinate array, returning
// the lower index i and the weight w such that
// x = (1-w)*coords[i] + w*coords[i+1]. ok is false if x is outside
// the array's range.
func bracket(coords []float64, x float64) (i int, w float64, ok bool) {
	n := len(coords)
	if n == 0 || x < coords[0] || x > coords[n-1] {
		return 0, 0, false
	}
	j := sort.SearchFloat64s(coords, x) // coords[j] >= x
	switch {
	case j == 0:
		return 0, 0, true
	case coords[j] == x:
		if j == n-1 {
			return j - 1, 1, true
		}
		return j, 0, true
	default:
		return j - 1, (x - coords[j-1]) / (coords[j] - coords[j-1]), true
	}
}

// interp2 bilinearly interpolates within one (lat, lon) slab. Indices
// one past i are only touched when the corresponding weight is
// nonzero, so single-element axes are usable.
func interp2(slab *sparse.DenseArray, ix int, wx float64, iy int, wy float64) float64 {
	ix1, iy1 := ix, iy
	if wx > 0 {
		ix1 = ix + 1
	}
	if wy > 0 {
		iy1 = iy + 1
	}
	v00 := slab.Get(iy, ix)
	v01 := slab.Get(iy, ix1)
	v10 := slab.Get(iy1, ix)
	v11 := slab.Get(iy1, ix1)
	return (1-wy)*((1-wx)*v00+wx*v01) + wy*((1-wx)*v10+wx*v11)
}
