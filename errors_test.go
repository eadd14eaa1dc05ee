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
	"errors"
	"fmt"
	"testing"
)

func TestCond(t *testing.T) {
	cases := []struct {
		err  error
		cond Condition
		ok   bool
	}{
		{domainExit("left the grid"), DomainExit, true},
		{sampleGap("masked cell"), SampleGap, true},
		{&ConditionError{Condition: InvalidSeries, Message: "NaN"}, InvalidSeries, true},
		{fmt.Errorf("wrapped: %w", domainExit("left the grid")), DomainExit, true},
		{errors.New("disk on fire"), ConditionOK, false},
		{nil, ConditionOK, false},
	}
	for _, c := range cases {
		cond, ok := Cond(c.err)
		if cond != c.cond || ok != c.ok {
			t.Errorf("Cond(%v) = %v, %t; want %v, %t", c.err, cond, ok, c.cond, c.ok)
		}
	}
}

func TestConditionString(t *testing.T) {
	for cond, want := range map[Condition]string{
		ConditionOK:   "ok",
		DomainExit:    "domain exit",
		SampleGap:     "sample gap",
		InvalidSeries: "invalid series",
	} {
		if got := cond.String(); got != want {
			t.Errorf("%d.String() = %q; want %q", cond, got, want)
		}
	}
}
