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
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
)

const testMaskFill = -9999.

// writeTestInput writes a NetCDF file with a 4×3 grid and 5 time
// records. The variable theta is linear in longitude, latitude index,
// and time, so interpolated values can be checked exactly; masked
// equals theta except for one cell filled with testMaskFill.
func writeTestInput(t *testing.T, path string) {
	writeTestInputLat(t, path, []float64{10, 11, 12})
}

// writeTestInputLat is writeTestInput with the latitude coordinate
// values given by the caller.
func writeTestInputLat(t *testing.T, path string, lat []float64) {
	t.Helper()

	lon := []float64{0, 1, 2, 3}
	times := []float64{0, 100, 200, 300, 400}

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{len(times), len(lat), len(lon)})
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("time", []string{"time"}, []float64{0})
	for _, v := range []string{"u", "v", "theta", "masked"} {
		h.AddVariable(v, []string{"time", "lat", "lon"}, []float64{0})
	}
	h.AddAttribute("masked", "_FillValue", []float64{testMaskFill})
	h.Define()
	if errs := h.Check(); len(errs) > 0 {
		t.Fatal(errs[0])
	}

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	nc, err := cdf.Create(f, h)
	if err != nil {
		t.Fatal(err)
	}

	n := len(times) * len(lat) * len(lon)
	u := make([]float64, n)
	v := make([]float64, n)
	theta := make([]float64, n)
	masked := make([]float64, n)
	i := 0
	for it := range times {
		for iy := range lat {
			for ix := range lon {
				u[i] = 1
				v[i] = 2
				theta[i] = lon[ix] + 10*float64(iy) + times[it]
				masked[i] = theta[i]
				if it == 2 && iy == 1 && ix == 1 {
					masked[i] = testMaskFill
				}
				i++
			}
		}
	}

	for _, c := range []struct {
		name string
		data []float64
	}{{"lon", lon}, {"lat", lat}, {"time", times},
		{"u", u}, {"v", v}, {"theta", theta}, {"masked", masked}} {
		end := nc.Header.Lengths(c.name)
		start := make([]int, len(end))
		w := nc.Writer(c.name, start, end)
		if _, err := w.Write(c.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(f); err != nil {
		t.Fatal(err)
	}
}

func testStoreConfig(path string) *Config {
	files := map[string]string{UKey: path, VKey: path, "T": path, "M": path}
	return &Config{
		Filenames:       files,
		VarNames:        map[string]string{UKey: "u", VKey: "v", "T": "theta", "M": "masked"},
		Dims:            DimNames{Lon: "lon", Lat: "lat", Time: "time"},
		SampleVariables: []string{"T", "M"},
	}
}

func TestOpenNCFStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInput(t, path)

	s, err := OpenNCFStore(testStoreConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	grid := s.Grid()
	if len(grid.Lon) != 4 || len(grid.Lat) != 3 || grid.NumPoints() != 12 {
		t.Errorf("grid is %d×%d; want 4×3", len(grid.Lon), len(grid.Lat))
	}
	t0, t1 := s.TimeExtent()
	if t0 != 0 || t1 != 400 {
		t.Errorf("time extent [%g, %g]; want [0, 400]", t0, t1)
	}
	if n := len(s.InputTimes()); n != 5 {
		t.Errorf("%d input times; want 5", n)
	}
}

func TestNCFStoreSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInput(t, path)

	s, err := OpenNCFStore(testStoreConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// theta = lon + 10*(lat-10) + time, which bilinear interpolation in
	// space and linear interpolation in time reproduce exactly.
	cases := []struct {
		p Point
		t float64
	}{
		{Point{X: 2, Y: 11}, 100},   // exactly on a grid point and time record
		{Point{X: 0.5, Y: 10}, 0},   // between longitudes
		{Point{X: 1, Y: 11.25}, 200}, // between latitudes
		{Point{X: 1, Y: 11}, 150},   // between time records
		{Point{X: 2.75, Y: 10.5}, 130},
	}
	for _, c := range cases {
		want := c.p.X + 10*(c.p.Y-10) + c.t
		got, err := s.ValueAt("T", c.p, c.t)
		if err != nil {
			t.Errorf("(%g, %g) t=%g: %v", c.p.X, c.p.Y, c.t, err)
			continue
		}
		if different(got, want, testTolerance) {
			t.Errorf("(%g, %g) t=%g: got %g; want %g", c.p.X, c.p.Y, c.t, got, want)
		}
	}

	u, v, err := s.VelocityAt(Point{X: 1.5, Y: 10.5}, 250)
	if err != nil {
		t.Fatal(err)
	}
	if different(u, 1, testTolerance) || different(v, 2, testTolerance) {
		t.Errorf("velocity = (%g, %g); want (1, 2)", u, v)
	}
}

func TestNCFStoreOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInput(t, path)

	s, err := OpenNCFStore(testStoreConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	_, err = s.ValueAt("T", Point{X: -1, Y: 11}, 100)
	if cond, ok := Cond(err); !ok || cond != SampleGap {
		t.Errorf("sampling outside the grid: got %v; want a SampleGap condition", err)
	}
	_, _, err = s.VelocityAt(Point{X: 1, Y: 11}, 500)
	if cond, ok := Cond(err); !ok || cond != DomainExit {
		t.Errorf("velocity outside the time extent: got %v; want a DomainExit condition", err)
	}
}

func TestNCFStoreFillValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInput(t, path)

	s, err := OpenNCFStore(testStoreConfig(path))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// The cell (it=2, iy=1, ix=1) of masked is filled; sampling at or
	// next to it is a gap, but theta at the same place is fine.
	for _, c := range []struct {
		p Point
		t float64
	}{
		{Point{X: 1, Y: 11}, 200},
		{Point{X: 1.5, Y: 11}, 200}, // interpolation touches the filled cell
		{Point{X: 1, Y: 11}, 150},   // time interpolation touches it too
	} {
		_, err := s.ValueAt("M", c.p, c.t)
		if cond, ok := Cond(err); !ok || cond != SampleGap {
			t.Errorf("(%g, %g) t=%g: got %v; want a SampleGap condition", c.p.X, c.p.Y, c.t, err)
		}
		if _, err := s.ValueAt("T", c.p, c.t); err != nil {
			t.Errorf("(%g, %g) t=%g: theta should be valid: %v", c.p.X, c.p.Y, c.t, err)
		}
	}

	// Far from the filled cell the variable is usable.
	got, err := s.ValueAt("M", Point{X: 3, Y: 12}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if different(got, 3+10*2, testTolerance) {
		t.Errorf("got %g; want %g", got, 3+10*2.)
	}
}

// TestOpenNCFStoreDescendingCoord rejects a latitude axis stored north
// to south at open; accepting it would silently put every interpolation
// out of range.
func TestOpenNCFStoreDescendingCoord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInputLat(t, path, []float64{12, 11, 10})

	_, err := OpenNCFStore(testStoreConfig(path))
	if err == nil {
		t.Fatal("expected an error for a descending latitude coordinate")
	}
	if !strings.Contains(err.Error(), `"lat"`) {
		t.Errorf("error %q does not name the offending coordinate", err)
	}
}

func TestOpenNCFStoreBadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.nc")
	writeTestInput(t, path)

	cfg := testStoreConfig(path)
	cfg.VarNames["T"] = "lon" // 1-D, not (time, lat, lon)
	if _, err := OpenNCFStore(cfg); err == nil {
		t.Fatal("expected an error for a variable with the wrong shape")
	}
}
