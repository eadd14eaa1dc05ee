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

import "math"

// earthRadius is the mean radius of the Earth [m].
const earthRadius = 6371000.

// Point is a horizontal position. For a flat mesh the coordinates are
// distances [m]; for a spherical mesh they are longitude and
// latitude [degrees].
type Point struct {
	X, Y float64
}

// Geometry converts a velocity [m/s] acting over an interval [s] into
// a displacement in grid coordinates.
type Geometry interface {
	// Displace returns the position reached from p by moving with
	// velocity (u, v) [m/s] for dt seconds. dt may be negative.
	Displace(p Point, u, v, dt float64) Point
}

// flatGeometry treats coordinates as distances on a plane.
type flatGeometry struct{}

func (flatGeometry) Displace(p Point, u, v, dt float64) Point {
	return Point{X: p.X + u*dt, Y: p.Y + v*dt}
}

// sphericalGeometry treats coordinates as longitude and latitude on a
// sphere. Zonal displacement accounts for meridian convergence: the
// length of a degree of longitude shrinks with the cosine of latitude.
type sphericalGeometry struct{}

func (sphericalGeometry) Displace(p Point, u, v, dt float64) Point {
	const degPerMeter = 180. / math.Pi / earthRadius
	coslat := math.Cos(p.Y * math.Pi / 180.)
	return Point{
		X: p.X + u*dt*degPerMeter/coslat,
		Y: p.Y + v*dt*degPerMeter,
	}
}

// NewGeometry returns the Geometry for the given mesh type, which
// must be either "flat" or "spherical".
func NewGeometry(mesh string) (Geometry, error) {
	switch mesh {
	case "flat":
		return flatGeometry{}, nil
	case "spherical":
		return sphericalGeometry{}, nil
	default:
		return nil, configErrorf("unsupported mesh type %q; expected \"flat\" or \"spherical\"", mesh)
	}
}
