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

func TestWindowStationary(t *testing.T) {
	store := &funcStore{uv: still}
	in := &Integrator{Store: store, Geom: flatGeometry{}, Dt: 10, Steps: 5}

	release := Point{X: 3, Y: -7}
	traj, err := in.Window(release, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if len(traj.Times) != 11 || len(traj.Points) != 11 {
		t.Fatalf("trajectory has %d samples; want 11", len(traj.Times))
	}
	if traj.Center != 5 {
		t.Fatalf("center = %d; want 5", traj.Center)
	}
	for i, p := range traj.Points {
		wantT := 1000 + float64(i-5)*10
		if absDifferent(traj.Times[i], wantT, testTolerance) {
			t.Errorf("sample %d: time %g; want %g", i, traj.Times[i], wantT)
		}
		if p != release {
			t.Errorf("sample %d: particle moved to (%g, %g) in still water", i, p.X, p.Y)
		}
	}
}

func TestWindowUniform(t *testing.T) {
	store := &funcStore{
		uv: func(Point, float64) (float64, float64, error) { return 1, 2, nil },
	}
	in := &Integrator{Store: store, Geom: flatGeometry{}, Dt: 0.5, Steps: 8}

	traj, err := in.Window(Point{}, 0)
	if err != nil {
		t.Fatal(err)
	}
	// Integration is exact for a uniform velocity field.
	for i := range traj.Points {
		dt := traj.Times[i]
		if absDifferent(traj.Points[i].X, dt, testTolerance) ||
			absDifferent(traj.Points[i].Y, 2*dt, testTolerance) {
			t.Errorf("sample %d: got (%g, %g); want (%g, %g)",
				i, traj.Points[i].X, traj.Points[i].Y, dt, 2*dt)
		}
	}
}

// TestWindowSolidBody integrates through a solid-body rotation, for
// which the trajectory is a circle, and checks the fourth-order
// accuracy of the integrator.
func TestWindowSolidBody(t *testing.T) {
	const omega = 0.1 // rad/s
	store := &funcStore{
		uv: func(p Point, _ float64) (float64, float64, error) {
			return -omega * p.Y, omega * p.X, nil
		},
	}
	in := &Integrator{Store: store, Geom: flatGeometry{}, Dt: 0.1, Steps: 50}

	release := Point{X: 1, Y: 0}
	traj, err := in.Window(release, 0)
	if err != nil {
		t.Fatal(err)
	}
	for i := range traj.Points {
		a := omega * traj.Times[i]
		wantX, wantY := math.Cos(a), math.Sin(a)
		if absDifferent(traj.Points[i].X, wantX, 1.e-6) ||
			absDifferent(traj.Points[i].Y, wantY, 1.e-6) {
			t.Errorf("t=%g: got (%g, %g); want (%g, %g)",
				traj.Times[i], traj.Points[i].X, traj.Points[i].Y, wantX, wantY)
		}
	}
}

func TestWindowDomainExit(t *testing.T) {
	store := &funcStore{
		uv: func(p Point, t float64) (float64, float64, error) {
			if math.Abs(p.X) > 2 {
				return 0, 0, domainExit("no valid velocity at (%g, %g) t=%g", p.X, p.Y, t)
			}
			return 1, 0, nil
		},
	}
	in := &Integrator{Store: store, Geom: flatGeometry{}, Dt: 1, Steps: 10}

	_, err := in.Window(Point{}, 0)
	if err == nil {
		t.Fatal("expected a domain exit")
	}
	if cond, ok := Cond(err); !ok || cond != DomainExit {
		t.Errorf("got %v; want a DomainExit condition", err)
	}
}
