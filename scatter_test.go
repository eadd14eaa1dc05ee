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
	"math"
	"testing"
)

func testGrid() *Grid {
	return &Grid{Lon: []float64{0, 1, 2}, Lat: []float64{10, 11}}
}

func TestAccumulatorOutOfOrder(t *testing.T) {
	grid := testGrid()
	a := NewAccumulator(grid, []string{"A"}, 0, 100, math.NaN())

	// Resolve grid points in reverse order.
	for i := grid.NumPoints() - 1; i >= 0; i-- {
		a.Put(i, map[string]float64{"A": float64(i)}, nil)
	}
	if !a.Complete() {
		t.Fatal("accumulator should be complete")
	}
	field := a.Fields()["A"]
	for i := 0; i < grid.NumPoints(); i++ {
		if absDifferent(field.Elements[i], float64(i), testTolerance) {
			t.Errorf("grid point %d = %g; want %d", i, field.Elements[i], i)
		}
	}
	for i, c := range a.Masks()["A"] {
		if c != int8(ConditionOK) {
			t.Errorf("grid point %d has condition %d; want ok", i, c)
		}
	}
}

func TestAccumulatorWriteOnce(t *testing.T) {
	a := NewAccumulator(testGrid(), []string{"A"}, 0, 0, math.NaN())
	a.Put(2, map[string]float64{"A": 1}, nil)

	defer func() {
		if recover() == nil {
			t.Error("resolving the same grid point twice should panic")
		}
	}()
	a.Fail(2, DomainExit)
}

func TestAccumulatorCompletion(t *testing.T) {
	grid := testGrid()
	a := NewAccumulator(grid, []string{"A"}, 0, 0, math.NaN())
	for i := 0; i < grid.NumPoints()-1; i++ {
		a.Put(i, map[string]float64{"A": 0}, nil)
	}
	if a.Complete() {
		t.Fatal("accumulator complete with one grid point unresolved")
	}
	a.Fail(grid.NumPoints()-1, SampleGap)
	if !a.Complete() {
		t.Fatal("accumulator should be complete")
	}
}

func TestAccumulatorFailures(t *testing.T) {
	const fill = -999.
	grid := testGrid()
	a := NewAccumulator(grid, []string{"A", "B"}, 0, 0, fill)

	a.Fail(0, DomainExit)
	a.Put(1, map[string]float64{"A": 7}, map[string]Condition{"B": InvalidSeries})
	for i := 2; i < grid.NumPoints(); i++ {
		a.Put(i, map[string]float64{"A": 0, "B": 0}, nil)
	}
	if !a.Complete() {
		t.Fatal("accumulator should be complete")
	}

	fieldA, fieldB := a.Fields()["A"], a.Fields()["B"]
	maskA, maskB := a.Masks()["A"], a.Masks()["B"]

	if fieldA.Elements[0] != fill || fieldB.Elements[0] != fill {
		t.Errorf("failed grid point 0 = (%g, %g); want fill", fieldA.Elements[0], fieldB.Elements[0])
	}
	if maskA[0] != int8(DomainExit) || maskB[0] != int8(DomainExit) {
		t.Errorf("grid point 0 masks = (%d, %d); want domain exit", maskA[0], maskB[0])
	}
	if absDifferent(fieldA.Elements[1], 7, testTolerance) || maskA[1] != int8(ConditionOK) {
		t.Errorf("variable A at grid point 1 = %g (mask %d); want 7 (ok)", fieldA.Elements[1], maskA[1])
	}
	if fieldB.Elements[1] != fill || maskB[1] != int8(InvalidSeries) {
		t.Errorf("variable B at grid point 1 = %g (mask %d); want fill (invalid series)", fieldB.Elements[1], maskB[1])
	}
}

func TestAccumulatorMissingCondition(t *testing.T) {
	a := NewAccumulator(testGrid(), []string{"A", "B"}, 0, 0, math.NaN())
	defer func() {
		if recover() == nil {
			t.Error("a grid point with neither value nor condition should panic")
		}
	}()
	a.Put(0, map[string]float64{"A": 1}, nil)
}
