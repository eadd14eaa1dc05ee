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

// Default values for optional configuration fields.
const (
	defaultChunkSize     = 4096
	defaultSlabCacheSize = 16
)

// UKey and VKey are the conventional keys for the zonal and meridional
// velocity components in Config.Filenames and Config.VarNames.
const (
	UKey = "U"
	VKey = "V"
)

// DimNames maps the pipeline's coordinate axes onto the names of the
// coordinate variables in the input files.
type DimNames struct {
	Lon  string // longitude or x coordinate variable
	Lat  string // latitude or y coordinate variable
	Time string // time coordinate variable
}

// Config holds the complete configuration of a filtering run.
type Config struct {
	// Filenames maps variable keys (UKey, VKey, and the entries of
	// SampleVariables) to the NetCDF files holding them. Several keys
	// may map to the same file.
	Filenames map[string]string

	// VarNames maps variable keys to the variable names within the
	// corresponding files.
	VarNames map[string]string

	// Dims names the coordinate variables of the input files.
	Dims DimNames

	// SampleVariables lists the variable keys to sample along
	// trajectories and filter.
	SampleVariables []string

	// Mesh selects the coordinate interpretation: "flat" (meters) or
	// "spherical" (degrees longitude and latitude).
	Mesh string

	// WindowSize is the half-width of the filtering window [s].
	WindowSize float64

	// TimeStep is the advection and sampling time step [s].
	TimeStep float64

	// OutputTimes lists the times [s] at which filtered fields are
	// required. If empty, every input time whose window lies within
	// the input time extent is used.
	OutputTimes []float64

	// HighpassFrequency is the low-frequency cutoff [cycles/s]:
	// components below it (including the mean) are removed. Zero
	// disables the low-frequency bound.
	HighpassFrequency float64

	// LowpassFrequency, if positive, additionally removes components
	// above it [cycles/s].
	LowpassFrequency float64

	// InertialHighpass, if true, replaces HighpassFrequency with the
	// local inertial frequency at each particle's release latitude, so
	// the cutoff loosens toward the equator. It requires the
	// "spherical" mesh and may not be combined with a fixed
	// HighpassFrequency.
	InertialHighpass bool

	// ChunkSize bounds the number of particles processed at once.
	ChunkSize int

	// OnDomainExit selects what is written at grid points whose
	// particles could not be filtered: "skip" leaves them as NaN,
	// "fill" writes FillValue.
	OnDomainExit string

	// FillValue is written at failed grid points when OnDomainExit
	// is "fill".
	FillValue float64

	// OnWindowOutOfRange selects what happens when the window around
	// an output time extends outside the input time extent: "error"
	// (the default) aborts the run before any work is dispatched,
	// "skip" drops the offending output times and reports them.
	OnWindowOutOfRange string

	// SlabCacheSize is the number of per-variable time records the
	// field store keeps in memory.
	SlabCacheSize int
}

// check validates the configuration and applies defaults,
// returning a ConfigError on inconsistency.
func (c *Config) check() error {
	if _, err := NewGeometry(c.Mesh); err != nil {
		return err
	}
	if c.WindowSize <= 0 {
		return configErrorf("window_size must be positive; got %g", c.WindowSize)
	}
	if c.TimeStep <= 0 {
		return configErrorf("time_step must be positive; got %g", c.TimeStep)
	}
	if c.TimeStep > c.WindowSize {
		return configErrorf("time_step (%g) must not exceed window_size (%g)", c.TimeStep, c.WindowSize)
	}
	if len(c.SampleVariables) == 0 {
		return configErrorf("sample_variables must not be empty")
	}
	for _, keys := range [][]string{{UKey, VKey}, c.SampleVariables} {
		for _, k := range keys {
			if _, ok := c.Filenames[k]; !ok {
				return configErrorf("no filename given for variable %q", k)
			}
			if _, ok := c.VarNames[k]; !ok {
				return configErrorf("no variable name given for variable %q", k)
			}
		}
	}
	if c.Dims.Lon == "" || c.Dims.Lat == "" || c.Dims.Time == "" {
		return configErrorf("dimension names for lon, lat and time must all be given")
	}
	if c.HighpassFrequency < 0 {
		return configErrorf("highpass_frequency must not be negative; got %g", c.HighpassFrequency)
	}
	if c.LowpassFrequency < 0 {
		return configErrorf("lowpass_frequency must not be negative; got %g", c.LowpassFrequency)
	}
	if c.InertialHighpass {
		if c.Mesh != "spherical" {
			return configErrorf("inertial_highpass requires the \"spherical\" mesh; got %q", c.Mesh)
		}
		if c.HighpassFrequency > 0 {
			return configErrorf("inertial_highpass and highpass_frequency (%g) may not be combined",
				c.HighpassFrequency)
		}
	}
	if c.HighpassFrequency == 0 && c.LowpassFrequency == 0 && !c.InertialHighpass {
		return configErrorf("at least one of highpass_frequency, lowpass_frequency and inertial_highpass must be set")
	}
	if c.LowpassFrequency > 0 && c.LowpassFrequency <= c.HighpassFrequency {
		return configErrorf("lowpass_frequency (%g) must exceed highpass_frequency (%g)",
			c.LowpassFrequency, c.HighpassFrequency)
	}
	nyquist := 1. / (2. * c.TimeStep)
	if c.HighpassFrequency >= nyquist {
		return configErrorf("highpass_frequency (%g) must be below the Nyquist frequency (%g) of the sampling time step",
			c.HighpassFrequency, nyquist)
	}
	switch c.OnDomainExit {
	case "":
		c.OnDomainExit = "skip"
	case "skip", "fill":
	default:
		return configErrorf("on_domain_exit must be \"skip\" or \"fill\"; got %q", c.OnDomainExit)
	}
	switch c.OnWindowOutOfRange {
	case "":
		c.OnWindowOutOfRange = "error"
	case "error", "skip":
	default:
		return configErrorf("on_window_out_of_range must be \"error\" or \"skip\"; got %q", c.OnWindowOutOfRange)
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = defaultChunkSize
	}
	if c.ChunkSize < 0 {
		return configErrorf("chunk_size must be positive; got %d", c.ChunkSize)
	}
	if c.SlabCacheSize == 0 {
		c.SlabCacheSize = defaultSlabCacheSize
	}
	if c.SlabCacheSize < 0 {
		return configErrorf("slab_cache_size must be positive; got %d", c.SlabCacheSize)
	}
	return nil
}

// windowSteps is the number of advection steps on each side of an
// output time.
func (c *Config) windowSteps() int {
	return int(math.Round(c.WindowSize / c.TimeStep))
}

// seriesLength is the length of every per-particle sample series.
// It is odd by construction, so the series center is well defined.
func (c *Config) seriesLength() int {
	return 2*c.windowSteps() + 1
}

// fillValue returns the value written at unresolved grid points.
func (c *Config) fillValue() float64 {
	if c.OnDomainExit == "fill" {
		return c.FillValue
	}
	return math.NaN()
}
