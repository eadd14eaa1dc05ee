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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/lagfilter"
	"github.com/spf13/cobra"
)

// Run performs a filtering run with the given configuration, writing
// the filtered fields to outputFile and progress information to
// logFile and the command's output. An interrupt stops the run at the
// next chunk boundary; completed output times stay valid.
func Run(cmd *cobra.Command, logFile, outputFile string, cfg *lagfilter.Config) error {
	lf, err := os.Create(logFile)
	if err != nil {
		return fmt.Errorf("lagfilter: creating log file: %v", err)
	}
	defer lf.Close()
	log := logrus.New()
	log.SetOutput(io.MultiWriter(cmd.OutOrStdout(), lf))

	store, err := lagfilter.OpenNCFStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := lagfilter.NewPipeline(cfg, store)
	if err != nil {
		return err
	}
	p.Log = log
	if skipped := p.SkippedTimes(); len(skipped) > 0 {
		log.WithFields(logrus.Fields{"times": skipped}).Warn(
			"skipping output times whose windows extend outside the input time extent")
	}

	w, err := p.NewOutputWriter(outputFile)
	if err != nil {
		return err
	}
	p.Output = w

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := p.Run(ctx)
	if cerr := w.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if summary.DomainExits+summary.SampleGaps+summary.InvalidSeries > 0 {
		log.WithFields(logrus.Fields{
			"domainExits":   summary.DomainExits,
			"sampleGaps":    summary.SampleGaps,
			"invalidSeries": summary.InvalidSeries,
		}).Warn("some grid points could not be filtered; see the failure masks in the output file")
	}
	if !summary.OK() {
		return fmt.Errorf("lagfilter: completed %d of %d planned output times (%d chunk errors, cancelled: %t)",
			summary.CompletedTimes, summary.PlannedTimes, len(summary.ChunkErrors), summary.Cancelled)
	}
	return nil
}

// Describe opens the configured input files and prints a short summary
// of the grid, the time extent, and the configured variables.
func Describe(cmd *cobra.Command, cfg *lagfilter.Config) error {
	store, err := lagfilter.OpenNCFStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	grid := store.Grid()
	t0, t1 := store.TimeExtent()
	times := store.InputTimes()
	cmd.Printf("grid: %d longitudes × %d latitudes (%d points)\n",
		len(grid.Lon), len(grid.Lat), grid.NumPoints())
	cmd.Printf("time: %d records from %g s to %g s\n", len(times), t0, t1)

	keys := make([]string, 0, len(cfg.Filenames))
	for k := range cfg.Filenames {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("variable %s: %q in %s\n", k, cfg.VarNames[k], cfg.Filenames[k])
	}
	return nil
}
