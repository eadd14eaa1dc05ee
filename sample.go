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
	"github.com/ctessum/sparse"
)

// SampleBuffer holds the per-variable time series of every particle
// in one chunk: one (time × particle) array per sampled variable.
// All particles in a chunk share the same output time and therefore
// the same time axis.
type SampleBuffer struct {
	Data map[string]*sparse.DenseArray // shape (seriesLength, nParticles)
	n    int                           // particles
	nt   int                           // series length
}

// NewSampleBuffer allocates buffers for nParticles particles and
// series of length nt for the given variable keys.
func NewSampleBuffer(keys []string, nt, nParticles int) *SampleBuffer {
	b := &SampleBuffer{
		Data: make(map[string]*sparse.DenseArray, len(keys)),
		n:    nParticles,
		nt:   nt,
	}
	for _, k := range keys {
		b.Data[k] = sparse.ZerosDense(nt, nParticles)
	}
	return b
}

// Series copies particle j's series for the given variable into dst,
// which must have length equal to the series length.
func (b *SampleBuffer) Series(key string, j int, dst []float64) {
	d := b.Data[key]
	for i := range dst {
		dst[i] = d.Elements[i*b.n+j]
	}
}

// SampleTrajectory walks traj and records the value of every variable
// in buf at each time step, writing into particle column j. A variable
// whose value is unavailable at any step yields a SampleGap for that
// variable only; the filter cannot tolerate missing interior points,
// so no partial series is recorded. A non-nil error indicates an I/O
// or format problem rather than a per-particle condition. Concurrent
// calls are safe for distinct j.
func SampleTrajectory(store FieldStore, traj *Trajectory, buf *SampleBuffer, j int) (map[string]Condition, error) {
	failed := make(map[string]Condition)
	for key, d := range buf.Data {
		for i, t := range traj.Times {
			v, err := store.ValueAt(key, traj.Points[i], t)
			if err != nil {
				cond, ok := Cond(err)
				if !ok {
					return nil, err
				}
				failed[key] = cond
				break
			}
			d.Elements[i*buf.n+j] = v
		}
	}
	return failed, nil
}
