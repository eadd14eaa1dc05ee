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
	"sync"

	"github.com/ctessum/sparse"
)

// Accumulator collects filtered values for one output time. Values
// arrive in arbitrary grid-point order from parallel producers; each
// (variable, grid index) slot is written exactly once, so the final
// layout is deterministic regardless of arrival order. The output
// time is complete once every grid point has either a value or a
// recorded failure for every variable.
type Accumulator struct {
	Time      float64
	TimeIndex int

	mx       sync.Mutex
	grid     *Grid
	keys     []string
	values   map[string]*sparse.DenseArray
	mask     map[string][]int8
	resolved []bool
	pending  int
}

// NewAccumulator prepares an accumulator for the output time with the
// given index, pre-filling every variable with fill.
func NewAccumulator(grid *Grid, keys []string, timeIndex int, t, fill float64) *Accumulator {
	n := grid.NumPoints()
	a := &Accumulator{
		Time:      t,
		TimeIndex: timeIndex,
		grid:      grid,
		keys:      keys,
		values:    make(map[string]*sparse.DenseArray, len(keys)),
		mask:      make(map[string][]int8, len(keys)),
		resolved:  make([]bool, n),
		pending:   n,
	}
	for _, k := range keys {
		d := sparse.ZerosDense(len(grid.Lat), len(grid.Lon))
		for i := range d.Elements {
			d.Elements[i] = fill
		}
		a.values[k] = d
		a.mask[k] = make([]int8, n)
	}
	return a
}

// Put resolves one grid point: values holds the filtered value per
// variable and conds the failure condition for variables without one.
// Resolving the same grid point twice is an internal invariant
// violation and panics.
func (a *Accumulator) Put(gridIndex int, values map[string]float64, conds map[string]Condition) {
	a.mx.Lock()
	defer a.mx.Unlock()
	a.resolve(gridIndex)
	for _, k := range a.keys {
		if v, ok := values[k]; ok {
			a.values[k].Elements[gridIndex] = v
			continue
		}
		cond, ok := conds[k]
		if !ok {
			panic(fmt.Sprintf("lagfilter: grid point %d has neither value nor condition for variable %q", gridIndex, k))
		}
		a.mask[k][gridIndex] = int8(cond)
	}
}

// Fail resolves one grid point with the same failure condition for
// every variable, e.g. when the particle's trajectory left the domain
// before any sampling happened.
func (a *Accumulator) Fail(gridIndex int, cond Condition) {
	a.mx.Lock()
	defer a.mx.Unlock()
	a.resolve(gridIndex)
	for _, k := range a.keys {
		a.mask[k][gridIndex] = int8(cond)
	}
}

func (a *Accumulator) resolve(gridIndex int) {
	if a.resolved[gridIndex] {
		panic(fmt.Sprintf("lagfilter: grid point %d resolved twice for output time %g", gridIndex, a.Time))
	}
	a.resolved[gridIndex] = true
	a.pending--
}

// Complete reports whether every grid point has been resolved.
func (a *Accumulator) Complete() bool {
	a.mx.Lock()
	defer a.mx.Unlock()
	return a.pending == 0
}

// Fields returns the accumulated per-variable fields. The result must
// be treated as read-only and is only meaningful once Complete.
func (a *Accumulator) Fields() map[string]*sparse.DenseArray { return a.values }

// Masks returns the per-variable failure masks, indexed by grid point,
// with values from the Condition constants.
func (a *Accumulator) Masks() map[string][]int8 { return a.mask }

// OutputWriter persists completed output times. Completed times are
// immutable once written.
type OutputWriter interface {
	// WriteTimeStep flushes one complete output time.
	WriteTimeStep(a *Accumulator) error
	Close() error
}
