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
)

// Condition classifies why a single particle could not produce a
// filtered value. Conditions are recorded in the output failure mask
// and in the run summary; they never abort a run.
type Condition int8

const (
	// ConditionOK indicates a successfully filtered value.
	ConditionOK Condition = iota

	// DomainExit indicates that a particle trajectory left the valid
	// domain of the velocity field (land mask, grid boundary, or
	// time range) during advection.
	DomainExit

	// SampleGap indicates that a required sample along a trajectory
	// was outside the valid extent of the sampled variable.
	SampleGap

	// InvalidSeries indicates that non-finite data reached the
	// window filter.
	InvalidSeries
)

func (c Condition) String() string {
	switch c {
	case ConditionOK:
		return "ok"
	case DomainExit:
		return "domain exit"
	case SampleGap:
		return "sample gap"
	case InvalidSeries:
		return "invalid series"
	default:
		return fmt.Sprintf("unknown condition (%d)", int(c))
	}
}

// ConditionError is an error that carries a per-particle failure
// Condition.
type ConditionError struct {
	Condition Condition
	Message   string
}

func (e *ConditionError) Error() string {
	if e.Message == "" {
		return "lagfilter: " + e.Condition.String()
	}
	return fmt.Sprintf("lagfilter: %s: %s", e.Condition, e.Message)
}

// domainExit returns a DomainExit error for the given position and time.
func domainExit(format string, args ...interface{}) error {
	return &ConditionError{Condition: DomainExit, Message: fmt.Sprintf(format, args...)}
}

// sampleGap returns a SampleGap error for the given position and time.
func sampleGap(format string, args ...interface{}) error {
	return &ConditionError{Condition: SampleGap, Message: fmt.Sprintf(format, args...)}
}

// Cond extracts the failure Condition from err, or returns
// ConditionOK, false if err does not carry one.
func Cond(err error) (Condition, bool) {
	var ce *ConditionError
	if errors.As(err, &ce) {
		return ce.Condition, true
	}
	return ConditionOK, false
}

// ConfigError indicates inconsistent or missing run configuration.
// It is a run-level error: no work is dispatched when it occurs.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return "lagfilter: configuration: " + e.Message
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

// WindowError indicates that the filtering window around an output
// time extends outside the time extent of the field store. It is a
// run-level error unless the run is configured to skip the offending
// output times.
type WindowError struct {
	OutputTime float64 // the requested output time [s]
	HalfWidth  float64 // window half-width [s]
	T0, T1     float64 // available time extent [s]
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("lagfilter: window [%g, %g] around output time %g is outside the available time extent [%g, %g]",
		e.OutputTime-e.HalfWidth, e.OutputTime+e.HalfWidth, e.OutputTime, e.T0, e.T1)
}
