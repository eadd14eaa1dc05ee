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

// Trajectory is the path of one particle through the velocity field,
// sampled at a fixed time step over the filtering window. Times is
// increasing; Points[Center] is the release position at exactly the
// release time.
type Trajectory struct {
	Times  []float64
	Points []Point
	Center int
}

// Integrator advances particles through a velocity field using
// classical fourth-order Runge-Kutta integration, with the velocity
// field evaluated at sub-step interpolated positions and times.
type Integrator struct {
	Store FieldStore
	Geom  Geometry
	Dt    float64 // step length [s], positive
	Steps int     // steps on each side of the release time
}

// Window integrates a particle released at p at time t0 backward to
// t0 − Steps·Dt and forward to t0 + Steps·Dt, returning the combined
// trajectory centered on the release sample. If any sub-step requires
// velocity outside the valid domain, a DomainExit error is returned.
func (in *Integrator) Window(release Point, t0 float64) (*Trajectory, error) {
	n := 2*in.Steps + 1
	traj := &Trajectory{
		Times:  make([]float64, n),
		Points: make([]Point, n),
		Center: in.Steps,
	}
	traj.Times[traj.Center] = t0
	traj.Points[traj.Center] = release

	// Backward from the release time.
	p, t := release, t0
	for i := traj.Center - 1; i >= 0; i-- {
		next, err := in.step(p, t, -in.Dt)
		if err != nil {
			return nil, err
		}
		p, t = next, t-in.Dt
		traj.Times[i] = t
		traj.Points[i] = p
	}

	// Forward from the release time.
	p, t = release, t0
	for i := traj.Center + 1; i < n; i++ {
		next, err := in.step(p, t, in.Dt)
		if err != nil {
			return nil, err
		}
		p, t = next, t+in.Dt
		traj.Times[i] = t
		traj.Points[i] = p
	}
	return traj, nil
}

// step advances one RK4 step of length dt (which may be negative)
// from position p at time t.
func (in *Integrator) step(p Point, t, dt float64) (Point, error) {
	u1, v1, err := in.Store.VelocityAt(p, t)
	if err != nil {
		return Point{}, err
	}
	p2 := in.Geom.Displace(p, u1, v1, dt/2)
	u2, v2, err := in.Store.VelocityAt(p2, t+dt/2)
	if err != nil {
		return Point{}, err
	}
	p3 := in.Geom.Displace(p, u2, v2, dt/2)
	u3, v3, err := in.Store.VelocityAt(p3, t+dt/2)
	if err != nil {
		return Point{}, err
	}
	p4 := in.Geom.Displace(p, u3, v3, dt)
	u4, v4, err := in.Store.VelocityAt(p4, t+dt)
	if err != nil {
		return Point{}, err
	}
	u := (u1 + 2*u2 + 2*u3 + u4) / 6
	v := (v1 + 2*v2 + 2*v3 + v4) / 6
	return in.Geom.Displace(p, u, v, dt), nil
}
