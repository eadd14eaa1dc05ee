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
)

const testTolerance = 1.e-8

func different(a, b, tolerance float64) bool {
	if 2*math.Abs(a-b)/math.Abs(a+b) > tolerance || math.IsNaN(a) || math.IsNaN(b) {
		return true
	}
	return false
}

func absDifferent(a, b, tolerance float64) bool {
	return math.Abs(a-b) > tolerance || math.IsNaN(a) || math.IsNaN(b)
}

// funcStore is an analytic FieldStore: velocities and variable values
// are functions of position and time, so integration and sampling can
// be checked against closed-form solutions.
type funcStore struct {
	grid   *Grid
	times  []float64
	uv     func(p Point, t float64) (u, v float64, err error)
	values map[string]func(p Point, t float64) (float64, error)
}

func (s *funcStore) ValueAt(key string, p Point, t float64) (float64, error) {
	f, ok := s.values[key]
	if !ok {
		return 0, fmt.Errorf("lagfilter: unknown variable %q", key)
	}
	return f(p, t)
}

func (s *funcStore) VelocityAt(p Point, t float64) (float64, float64, error) {
	return s.uv(p, t)
}

func (s *funcStore) TimeExtent() (float64, float64) {
	return s.times[0], s.times[len(s.times)-1]
}

func (s *funcStore) InputTimes() []float64 { return s.times }

func (s *funcStore) Grid() *Grid { return s.grid }

func (s *funcStore) Close() error { return nil }

// timeSeq returns n times starting at t0 spaced dt apart.
func timeSeq(t0, dt float64, n int) []float64 {
	o := make([]float64, n)
	for i := range o {
		o[i] = t0 + float64(i)*dt
	}
	return o
}

// still is a velocity field that is zero everywhere.
func still(Point, float64) (float64, float64, error) { return 0, 0, nil }
