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
	"os"
	"sort"
	"sync"

	"github.com/ctessum/cdf"
)

// NCFOutputWriter writes filtered fields to a NetCDF file with the
// same spatial and temporal coordinates as the input. For each
// sampled variable KEY it holds a "var_KEY" field and a "mask_KEY"
// failure layer whose values are Condition codes (0 = ok). Each
// completed output time is flushed as one record and not touched
// again.
type NCFOutputWriter struct {
	mx   sync.Mutex
	file *os.File
	nc   *cdf.File
	grid *Grid
}

var _ OutputWriter = (*NCFOutputWriter)(nil)

// NewNCFOutputWriter creates path and writes the header and the
// coordinate variables. outputTimes must be the full list of planned
// output times; keys the sampled variable keys; fill the value
// written at unresolved grid points.
func NewNCFOutputWriter(path string, grid *Grid, outputTimes []float64, keys []string, fill float64) (*NCFOutputWriter, error) {
	nx, ny, nt := len(grid.Lon), len(grid.Lat), len(outputTimes)

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{nt, ny, nx})
	h.AddAttribute("", "comment", "Lagrangian-filtered fields")

	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "s")

	sorted := append([]string(nil), keys...)
	sort.Strings(sorted) // write in the same order every time
	for _, k := range sorted {
		v := "var_" + k
		h.AddVariable(v, []string{"time", "lat", "lon"}, []float64{0})
		h.AddAttribute(v, "description", fmt.Sprintf("Lagrangian-filtered %s", k))
		h.AddAttribute(v, "_FillValue", []float64{fill})

		m := "mask_" + k
		h.AddVariable(m, []string{"time", "lat", "lon"}, []int32{0})
		h.AddAttribute(m, "description", fmt.Sprintf(
			"failure mask for %s: 0=ok 1=domain exit 2=sample gap 3=invalid series", k))
	}
	h.Define()
	for _, err := range h.Check() {
		return nil, fmt.Errorf("lagfilter: creating output header: %v", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("lagfilter: creating output file: %v", err)
	}
	nc, err := cdf.Create(f, h)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("lagfilter: writing output header: %v", err)
	}
	w := &NCFOutputWriter{file: f, nc: nc, grid: grid}

	for _, c := range []struct {
		name string
		data []float64
	}{{"lon", grid.Lon}, {"lat", grid.Lat}, {"time", outputTimes}} {
		wr := nc.Writer(c.name, []int{0}, []int{len(c.data)})
		if _, err := wr.Write(c.data); err != nil {
			f.Close()
			return nil, fmt.Errorf("lagfilter: writing output coordinate %s: %v", c.name, err)
		}
	}
	return w, nil
}

// WriteTimeStep implements OutputWriter.
func (w *NCFOutputWriter) WriteTimeStep(a *Accumulator) error {
	if !a.Complete() {
		return fmt.Errorf("lagfilter: refusing to flush incomplete output time %g", a.Time)
	}
	w.mx.Lock()
	defer w.mx.Unlock()

	nx, ny := len(w.grid.Lon), len(w.grid.Lat)
	begin := []int{a.TimeIndex, 0, 0}
	end := []int{a.TimeIndex + 1, ny, nx}
	for key, field := range a.Fields() {
		wr := w.nc.Writer("var_"+key, begin, end)
		if _, err := wr.Write(field.Elements); err != nil {
			return fmt.Errorf("lagfilter: writing output time %g of variable %s: %v", a.Time, key, err)
		}

		mask := a.Masks()[key]
		m32 := make([]int32, len(mask))
		for i, c := range mask {
			m32[i] = int32(c)
		}
		wr = w.nc.Writer("mask_"+key, begin, end)
		if _, err := wr.Write(m32); err != nil {
			return fmt.Errorf("lagfilter: writing failure mask of output time %g of variable %s: %v", a.Time, key, err)
		}
	}
	return nil
}

// Close finalizes and closes the output file.
func (w *NCFOutputWriter) Close() error {
	w.mx.Lock()
	defer w.mx.Unlock()
	if err := cdf.UpdateNumRecs(w.file); err != nil {
		w.file.Close()
		return fmt.Errorf("lagfilter: finalizing output file: %v", err)
	}
	return w.file.Close()
}
