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

package lagfilterutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/spatialmodel/lagfilter"
	"github.com/spf13/cast"
)

// filterConfig translates the viper configuration into a filter
// configuration, expanding environment variables and downloading any
// input files given as URLs. c is a channel across which download
// progress messages will be sent.
func filterConfig(cfg *viper.Viper, c chan string) (*lagfilter.Config, error) {
	outputTimes, err := getFloat64Slice("OutputTimes", cfg)
	if err != nil {
		return nil, err
	}
	filenames := expandStringMap(GetStringMapString("Filenames", cfg))
	for k, f := range filenames {
		filenames[k] = maybeDownload(f, c)
	}
	return &lagfilter.Config{
		Filenames: filenames,
		VarNames:  GetStringMapString("VarNames", cfg),
		Dims: lagfilter.DimNames{
			Lon:  cfg.GetString("LonName"),
			Lat:  cfg.GetString("LatName"),
			Time: cfg.GetString("TimeName"),
		},
		SampleVariables:    cfg.GetStringSlice("SampleVariables"),
		Mesh:               cfg.GetString("Mesh"),
		WindowSize:         cfg.GetFloat64("WindowSize"),
		TimeStep:           cfg.GetFloat64("TimeStep"),
		OutputTimes:        outputTimes,
		HighpassFrequency:  cfg.GetFloat64("HighpassFrequency"),
		LowpassFrequency:   cfg.GetFloat64("LowpassFrequency"),
		InertialHighpass:   cfg.GetBool("InertialHighpass"),
		ChunkSize:          cfg.GetInt("ChunkSize"),
		OnDomainExit:       cfg.GetString("OnDomainExit"),
		FillValue:          cfg.GetFloat64("FillValue"),
		OnWindowOutOfRange: cfg.GetString("OnWindowOutOfRange"),
		SlabCacheSize:      cfg.GetInt("SlabCacheSize"),
	}, nil
}

// GetStringMapString returns a map[string]string from a viper
// configuration, accounting for the fact that it might be a json object
// if it was set from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// getFloat64Slice returns a []float64 from a viper configuration,
// accounting for the fact that it might be a slice of strings if it was
// set from a command line argument.
func getFloat64Slice(varName string, cfg *viper.Viper) ([]float64, error) {
	var o []float64
	for _, s := range cfg.GetStringSlice(varName) {
		v, err := cast.ToFloat64E(s)
		if err != nil {
			return nil, fmt.Errorf("lagfilter: invalid value %q for configuration variable %s: %v", s, varName, err)
		}
		o = append(o, v)
	}
	return o, nil
}

// expandStringMap expands the environment variables in the values of a
// map of strings.
func expandStringMap(m map[string]string) map[string]string {
	for k, v := range m {
		m[k] = os.ExpandEnv(v)
	}
	return m
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expands any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`you need to specify an output file configuration variable (for example: OutputFile="filtered.nc")`)
	}
	f = os.ExpandEnv(f)
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("lagfilter: the OutputFile directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one
// isn't specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}
