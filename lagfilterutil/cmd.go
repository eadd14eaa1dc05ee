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

// Package lagfilterutil holds the configuration and command-line
// interface for the lagfilter command.
package lagfilterutil

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/lagfilter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to LagFilter.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path to the NetCDF file where the filtered
              fields will be written.`,
			shorthand:  "o",
			defaultVal: "filtered.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the file where run progress is logged.
              If LogFile is left blank, the log will be written next to the
              OutputFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Filenames",
			usage: `
              Filenames maps variable keys to the NetCDF files holding them.
              The keys "U" and "V" are required and name the zonal and
              meridional velocity components; every key listed in
              SampleVariables must also be present. Several keys may map to
              the same file, and files may be given as http:// or https://
              addresses, in which case they will be downloaded before the
              run starts.`,
			defaultVal: map[string]string{"U": "velocities.nc", "V": "velocities.nc"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "VarNames",
			usage: `
              VarNames maps variable keys to the variable names inside the
              corresponding NetCDF files. It must have the same keys as
              Filenames.`,
			defaultVal: map[string]string{"U": "U", "V": "V"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "LonName",
			usage: `
              LonName is the name of the longitude or x coordinate variable
              in the input files.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "LatName",
			usage: `
              LatName is the name of the latitude or y coordinate variable
              in the input files.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "TimeName",
			usage: `
              TimeName is the name of the time coordinate variable in the
              input files.`,
			defaultVal: "time",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
		{
			name: "SampleVariables",
			usage: `
              SampleVariables lists the variable keys that are sampled along
              particle trajectories and filtered.`,
			defaultVal: []string{"U", "V"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Mesh",
			usage: `
              Mesh selects the coordinate interpretation of the input grid:
              "flat" for Cartesian coordinates in meters or "spherical" for
              longitude and latitude in degrees.`,
			defaultVal: "flat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "WindowSize",
			usage: `
              WindowSize is the half-width, in seconds, of the filtering
              window centered on each output time. It should comfortably
              exceed the longest period that must be fully removed.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "TimeStep",
			usage: `
              TimeStep is the advection and sampling time step in seconds.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputTimes",
			usage: `
              OutputTimes lists the times, in seconds, at which filtered
              fields are required. If it is empty, every input time whose
              filtering window lies within the input time extent is used.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "HighpassFrequency",
			usage: `
              HighpassFrequency is the low-frequency cutoff in cycles per
              second: frequency components below it, including the mean,
              are removed from every sampled series. Zero disables the
              low-frequency bound.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "InertialHighpass",
			usage: `
              InertialHighpass replaces HighpassFrequency with the local
              inertial frequency at each particle's release latitude. It
              requires Mesh to be "spherical" and may not be combined
              with a nonzero HighpassFrequency.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LowpassFrequency",
			usage: `
              LowpassFrequency, if positive, additionally removes frequency
              components above it, in cycles per second.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ChunkSize",
			usage: `
              ChunkSize bounds the number of particles processed at once,
              which in turn bounds memory use. Zero selects a default.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OnDomainExit",
			usage: `
              OnDomainExit selects what is written at grid points whose
              particles could not be filtered: "skip" leaves them as NaN
              and "fill" writes FillValue.`,
			defaultVal: "skip",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "FillValue",
			usage: `
              FillValue is written at failed grid points when OnDomainExit
              is "fill".`,
			defaultVal: 9.969209968386869e+36,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OnWindowOutOfRange",
			usage: `
              OnWindowOutOfRange selects what happens when the window around
              an output time extends outside the input time extent: "error"
              aborts the run before any work is dispatched and "skip" drops
              the offending output times and reports them.`,
			defaultVal: "error",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "SlabCacheSize",
			usage: `
              SlabCacheSize is the number of per-variable time records kept
              in memory while sampling. Zero selects a default.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), describeCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("LAGFILTER")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(describeCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Printf(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("lagfilter: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "lagfilter",
	Short: "A Lagrangian filter for gridded fluid data.",
	Long: `LagFilter separates the wave and eddy parts of gridded velocity and
tracer fields by filtering them in the frame of reference of the moving
fluid: virtual particles are seeded at every grid point, advected
backward and forward through a window around each output time, sampled
along the way, and high-pass filtered at the window center.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'LAGFILTER_var' where 'var' is the name of the variable to be set.
Refer to https://github.com/spf13/viper for additional configuration
information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of LagFilter.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("LagFilter v%s\n", lagfilter.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the filter.",
	Long: `run performs a filtering run: it opens the input files, plans the
output times, advects and samples a particle for every grid point and
output time, filters the sampled series, and writes the filtered fields
to the output file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		cfg, err := filterConfig(Cfg, outChan)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("OutputFile"))
		if err != nil {
			return err
		}
		return Run(
			cmd,
			checkLogFile(Cfg.GetString("LogFile"), outputFile),
			outputFile,
			cfg)
	},
	DisableAutoGenTag: true,
}

var describeCmd = &cobra.Command{
	Use:   "describe",
	Short: "Describe the input data",
	Long: `describe opens the configured input files and prints their grid
dimensions, time extent, and the configured variables, without running
the filter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		cfg, err := filterConfig(Cfg, outChan)
		if err != nil {
			return err
		}
		return Describe(cmd, cfg)
	},
	DisableAutoGenTag: true,
}
