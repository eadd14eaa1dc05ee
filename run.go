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

// Package lagfilter removes sub-inertial-frequency signal from gridded
// geophysical fluid data by filtering in a frame that moves with the
// fluid. For every output location and time a virtual particle is
// released, advected backward and forward through the velocity field
// across a finite window, sampled along its trajectory, filtered in
// the frequency domain, and the filtered value at the window center
// is scattered back to the originating Eulerian grid cell.
package lagfilter

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

// Version is the version of this software.
const Version = "0.1.0"

// ChunkState tracks a chunk of particles through the pipeline stages.
type ChunkState int

// The chunk states, in processing order. ChunkFailed is terminal and
// reachable from the advected, sampled, and filtered stages; it never
// blocks other chunks.
const (
	ChunkSeeded ChunkState = iota
	ChunkAdvected
	ChunkSampled
	ChunkFiltered
	ChunkScattered
	ChunkFailed
)

func (s ChunkState) String() string {
	switch s {
	case ChunkSeeded:
		return "seeded"
	case ChunkAdvected:
		return "advected"
	case ChunkSampled:
		return "sampled"
	case ChunkFiltered:
		return "filtered"
	case ChunkScattered:
		return "scattered"
	case ChunkFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown state (%d)", int(s))
	}
}

// Failure identifies one particle that could not produce a filtered
// value, with enough information to re-run just the failed subset.
type Failure struct {
	GridIndex  int
	OutputTime float64
	Variable   string // empty when every variable failed together
	Condition  Condition
}

// RunSummary aggregates the outcome of a run.
type RunSummary struct {
	DomainExits   int
	SampleGaps    int
	InvalidSeries int
	Failures      []Failure

	PlannedTimes   int
	CompletedTimes int
	SkippedTimes   []float64 // dropped at plan time by the window policy
	ChunkErrors    []error
	Cancelled      bool
}

func (s *RunSummary) record(f Failure) {
	switch f.Condition {
	case DomainExit:
		s.DomainExits++
	case SampleGap:
		s.SampleGaps++
	case InvalidSeries:
		s.InvalidSeries++
	}
	s.Failures = append(s.Failures, f)
}

// OK reports whether every planned output time was completed and
// flushed. Per-particle failures do not make a run not-OK; incomplete
// output times do.
func (s *RunSummary) OK() bool {
	return !s.Cancelled && len(s.ChunkErrors) == 0 && s.CompletedTimes == s.PlannedTimes
}

// Pipeline sequences a whole filtering run: seeding, chunking,
// parallel dispatch, and scattering, without requiring the full
// particle set to exist simultaneously.
type Pipeline struct {
	Config *Config
	Store  FieldStore

	// Output receives completed output times. It must be set before
	// Run is called; NewNCFOutputWriter needs the planned output
	// times, so it is created from OutputTimes after NewPipeline.
	Output OutputWriter

	// Log receives progress information. If nil, the logrus standard
	// logger is used.
	Log logrus.FieldLogger

	// Highpass, if set, gives a per-release-point low-frequency cutoff
	// [cycles/s] used in place of Config.HighpassFrequency. NewPipeline
	// sets it when Config.InertialHighpass is true; it may also be
	// assigned directly before Run is called.
	Highpass func(Point) float64

	geom        Geometry
	outputTimes []float64
	skipped     []float64
}

// NewPipeline validates the configuration and plans the run. Output
// times whose windows extend outside the store's time extent cause a
// WindowError, or are dropped and reported when the configured policy
// is "skip". Data is never extrapolated to cover a short window.
func NewPipeline(cfg *Config, store FieldStore) (*Pipeline, error) {
	if err := cfg.check(); err != nil {
		return nil, err
	}
	geom, err := NewGeometry(cfg.Mesh)
	if err != nil {
		return nil, err
	}
	p := &Pipeline{Config: cfg, Store: store, geom: geom}
	if cfg.InertialHighpass {
		p.Highpass = func(pt Point) float64 { return InertialFrequency(pt.Y) }
	}

	candidates := cfg.OutputTimes
	if len(candidates) == 0 {
		candidates = store.InputTimes()
	}
	t0, t1 := store.TimeExtent()
	for _, t := range candidates {
		if t-cfg.WindowSize < t0 || t+cfg.WindowSize > t1 {
			if cfg.OnWindowOutOfRange == "skip" {
				p.skipped = append(p.skipped, t)
				continue
			}
			return nil, &WindowError{OutputTime: t, HalfWidth: cfg.WindowSize, T0: t0, T1: t1}
		}
		p.outputTimes = append(p.outputTimes, t)
	}
	if len(p.outputTimes) == 0 {
		return nil, configErrorf("no output times remain within the available time extent [%g, %g]", t0, t1)
	}
	return p, nil
}

// OutputTimes returns the planned output times.
func (p *Pipeline) OutputTimes() []float64 { return p.outputTimes }

// SkippedTimes returns output times dropped at plan time because
// their windows extend outside the available time extent.
func (p *Pipeline) SkippedTimes() []float64 { return p.skipped }

// NewOutputWriter creates a NetCDF output writer at path covering the
// planned output times, ready to be assigned to p.Output.
func (p *Pipeline) NewOutputWriter(path string) (*NCFOutputWriter, error) {
	return NewNCFOutputWriter(path, p.Store.Grid(), p.outputTimes,
		p.Config.SampleVariables, p.Config.fillValue())
}

// Run executes the pipeline over all planned output times and
// returns the failure summary. Cancelling ctx stops the run at the
// next chunk boundary: the in-flight chunk finishes, no further chunk
// starts, and a partially resolved output time is never flushed.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	if p.Output == nil {
		return nil, configErrorf("no output writer configured")
	}
	log := p.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	grid := p.Store.Grid()
	n := grid.NumPoints()
	nt := p.Config.seriesLength()
	summary := &RunSummary{
		PlannedTimes: len(p.outputTimes),
		SkippedTimes: p.skipped,
	}

	for it, t := range p.outputTimes {
		if done(ctx) {
			summary.Cancelled = true
			break
		}
		acc := NewAccumulator(grid, p.Config.SampleVariables, it, t, p.Config.fillValue())
		for lo := 0; lo < n; lo += p.Config.ChunkSize {
			if done(ctx) { // finish in-flight work only; do not start the next chunk
				summary.Cancelled = true
				break
			}
			hi := min(lo+p.Config.ChunkSize, n)
			if err := p.runChunk(t, lo, hi, nt, acc, summary, log); err != nil {
				log.WithFields(logrus.Fields{
					"time": t, "chunk": lo / p.Config.ChunkSize, "state": ChunkFailed.String(),
				}).Error(err)
				summary.ChunkErrors = append(summary.ChunkErrors, err)
			}
		}
		if summary.Cancelled {
			log.WithFields(logrus.Fields{"time": t}).Warn("run cancelled; output time not flushed")
			break
		}
		if !acc.Complete() { // a failed chunk left unresolved grid points
			continue
		}
		if err := p.Output.WriteTimeStep(acc); err != nil {
			return summary, err
		}
		summary.CompletedTimes++
		log.WithFields(logrus.Fields{
			"time": t, "completed": summary.CompletedTimes, "planned": summary.PlannedTimes,
		}).Info("output time complete")
	}

	log.WithFields(logrus.Fields{
		"domainExits":   summary.DomainExits,
		"sampleGaps":    summary.SampleGaps,
		"invalidSeries": summary.InvalidSeries,
		"completed":     summary.CompletedTimes,
		"planned":       summary.PlannedTimes,
	}).Info("run finished")
	return summary, nil
}

// runChunk carries the particles seeded at grid indexes [lo, hi) for
// output time t through advection, sampling, filtering, and
// scattering. Per-particle conditions are recorded in acc and summary;
// only infrastructure problems are returned as errors.
func (p *Pipeline) runChunk(t float64, lo, hi, nt int, acc *Accumulator, summary *RunSummary, log logrus.FieldLogger) error {
	grid := p.Store.Grid()
	nPart := hi - lo
	clog := log.WithFields(logrus.Fields{"time": t, "particles": nPart})
	clog.WithField("state", ChunkSeeded.String()).Debug("processing chunk")

	nprocs := runtime.GOMAXPROCS(0)
	hardErrs := make([]error, nprocs)
	var wg sync.WaitGroup

	// Advection. Each particle is independent, so the chunk is
	// striped across the workers with no locking.
	trajs := make([]*Trajectory, nPart)
	advectConds := make([]Condition, nPart)
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			in := &Integrator{
				Store: p.Store,
				Geom:  p.geom,
				Dt:    p.Config.TimeStep,
				Steps: p.Config.windowSteps(),
			}
			for j := pp; j < nPart; j += nprocs {
				traj, err := in.Window(grid.Point(lo+j), t)
				if err != nil {
					cond, ok := Cond(err)
					if !ok {
						hardErrs[pp] = err
						return
					}
					advectConds[j] = cond
					continue
				}
				trajs[j] = traj
			}
		}(pp)
	}
	wg.Wait()
	if err := firstError(hardErrs); err != nil {
		return err
	}
	clog.WithField("state", ChunkAdvected.String()).Debug("processing chunk")

	// Sampling into the shared (time × particle) buffers; workers
	// write disjoint particle columns.
	buf := NewSampleBuffer(p.Config.SampleVariables, nt, nPart)
	sampleConds := make([]map[string]Condition, nPart)
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			for j := pp; j < nPart; j += nprocs {
				if trajs[j] == nil {
					continue
				}
				conds, err := SampleTrajectory(p.Store, trajs[j], buf, j)
				if err != nil {
					hardErrs[pp] = err
					return
				}
				sampleConds[j] = conds
			}
		}(pp)
	}
	wg.Wait()
	if err := firstError(hardErrs); err != nil {
		return err
	}
	clog.WithField("state", ChunkSampled.String()).Debug("processing chunk")

	// Filtering. FFT plans are not concurrent-safe, so each worker
	// owns one filter.
	results := make([]map[string]float64, nPart)
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			defer wg.Done()
			filt, err := NewSpectralFilter(
				p.Config.HighpassFrequency, p.Config.LowpassFrequency, p.Config.TimeStep, nt)
			if err != nil {
				hardErrs[pp] = err
				return
			}
			scratch := make([]float64, nt)
			for j := pp; j < nPart; j += nprocs {
				if trajs[j] == nil {
					continue
				}
				highpass := p.Config.HighpassFrequency
				if p.Highpass != nil {
					highpass = p.Highpass(grid.Point(lo + j))
				}
				vals := make(map[string]float64, len(p.Config.SampleVariables))
				for _, key := range p.Config.SampleVariables {
					if _, bad := sampleConds[j][key]; bad {
						continue
					}
					buf.Series(key, j, scratch)
					v, err := filt.CenterValueBand(scratch, highpass, p.Config.LowpassFrequency)
					if err != nil {
						cond, ok := Cond(err)
						if !ok {
							hardErrs[pp] = err
							return
						}
						sampleConds[j][key] = cond
						continue
					}
					vals[key] = v
				}
				results[j] = vals
			}
		}(pp)
	}
	wg.Wait()
	if err := firstError(hardErrs); err != nil {
		return err
	}
	clog.WithField("state", ChunkFiltered.String()).Debug("processing chunk")

	// Scatter back to the Eulerian grid, in grid order so the
	// failure summary is reproducible.
	for j := 0; j < nPart; j++ {
		gi := lo + j
		if trajs[j] == nil {
			acc.Fail(gi, advectConds[j])
			summary.record(Failure{GridIndex: gi, OutputTime: t, Condition: advectConds[j]})
			continue
		}
		acc.Put(gi, results[j], sampleConds[j])
		for _, key := range p.Config.SampleVariables {
			if cond, ok := sampleConds[j][key]; ok {
				summary.record(Failure{GridIndex: gi, OutputTime: t, Variable: key, Condition: cond})
			}
		}
	}
	clog.WithField("state", ChunkScattered.String()).Debug("processing chunk")
	return nil
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func done(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
