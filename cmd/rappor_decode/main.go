//
// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// This is a command line utility which estimates the distribution of values
// collected with RAPPOR.
// Usage example:
// Single variable, from aggregated counts:
// go run ./cmd/rappor_decode --mode=dist --params_file=params.csv --counts_file=counts.csv --map_file=map.csv --output_file=fit.csv --chart_file=fit.png
// Joint distribution of two variables, from individual reports:
// go run ./cmd/rappor_decode --mode=assoc --params_file=params.csv --reports_files=var1.csv,var2.csv --map_files=map1.csv,map2.csv --output_file=joint.csv --estimate_var
package main

import (
	"context"
	"flag"
	"strconv"
	"strings"

	"github.com/ananthr/rappor/analysis"
	"github.com/ananthr/rappor/decode"
	"github.com/ananthr/rappor/em"
	log "github.com/golang/glog"
)

var (
	mode = flag.String("mode", "dist", "Analysis to run:\n"+
		"dist - distribution of a single variable from aggregated bit counts.\n"+
		"assoc - joint distribution of several variables from individual reports.")
	paramsFile   = flag.String("params_file", "", "Input csv file with the randomization parameters (header k,h,m,p,q,f).")
	countsFile   = flag.String("counts_file", "", "Input csv file with the bit counts of every cohort (dist mode).")
	mapFile      = flag.String("map_file", "", "Input csv file with the candidate map (dist mode).")
	reportsFiles = flag.String("reports_files", "", "Comma-separated input csv files with the reports of every variable (assoc mode).")
	mapFiles     = flag.String("map_files", "", "Comma-separated input csv files with the candidate map of every variable (assoc mode).")
	outputFile   = flag.String("output_file", "", "Output csv file name for the results.")
	chartFile    = flag.String("chart_file", "", "Optional output image file for a bar chart of the results.")

	alpha      = flag.Float64("alpha", 0.05, "Significance level of the adjusted p-values (dist mode).")
	correction = flag.String("correction", "BenjaminiHochberg", "Multiple comparison correction: BenjaminiHochberg, Bonferroni, Holm or None (dist mode).")

	ignoreOther   = flag.Bool("ignore_other", false, "Drop the cell of values outside the maps (assoc mode).")
	marginals     = flag.String("marginals", "", "Comma-separated 0-based variables to report the distribution of; all by default (assoc mode).")
	estimateVar   = flag.Bool("estimate_var", false, "Estimate the variance-covariance of the fit (assoc mode).")
	maxIterations = flag.Int("max_iterations", 1000, "Maximum number of EM iterations (assoc mode).")
	tolerance     = flag.Float64("tolerance", 1e-6, "EM convergence tolerance (assoc mode).")
)

const (
	distMode  = "dist"
	assocMode = "assoc"
)

var corrections = map[string]decode.Kind{
	"BenjaminiHochberg": decode.BenjaminiHochbergCorrection,
	"Bonferroni":        decode.BonferroniCorrection,
	"Holm":              decode.HolmCorrection,
	"None":              decode.NoCorrection,
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func main() {
	flag.Parse()

	log.Infof("rappor_decode was run with arguments: mode = %q, paramsFile = %q, outputFile = %q, chartFile = %q",
		*mode, *paramsFile, *outputFile, *chartFile)

	if *paramsFile == "" {
		log.Exit("No params file was chosen")
	}
	if *outputFile == "" {
		log.Exit("No output file was chosen")
	}

	switch *mode {
	case distMode:
		if *countsFile == "" || *mapFile == "" {
			log.Exit("dist mode needs --counts_file and --map_file")
		}
		kind, ok := corrections[*correction]
		if !ok {
			log.Exitf("There is no correction with name = %s", *correction)
		}
		res, err := analysis.RunDist(&analysis.DistOptions{
			ParamsFile: *paramsFile,
			CountsFile: *countsFile,
			MapFile:    *mapFile,
			OutputFile: *outputFile,
			ChartFile:  *chartFile,
			Decode:     decode.Options{Alpha: *alpha, Correction: decode.ToCorrection(kind)},
		})
		if err != nil {
			log.Exitf("Couldn't decode the counts, err = %v", err)
		}
		log.Infof("Detected %d of %d candidates", res.Summary.NumDetected, res.Summary.NumCandidates)
	case assocMode:
		reports, maps := splitList(*reportsFiles), splitList(*mapFiles)
		if len(reports) == 0 {
			log.Exit("assoc mode needs --reports_files and --map_files")
		}
		var vars []int
		for _, s := range splitList(*marginals) {
			v, err := strconv.Atoi(s)
			if err != nil {
				log.Exitf("Couldn't read marginal = %s as int, err = %v", s, err)
			}
			vars = append(vars, v)
		}
		res, err := analysis.RunAssoc(context.Background(), &analysis.AssocOptions{
			ParamsFile:  *paramsFile,
			ReportFiles: reports,
			MapFiles:    maps,
			OutputFile:  *outputFile,
			ChartFile:   *chartFile,
			EM: em.Options{
				IgnoreOther:   *ignoreOther,
				Marginals:     vars,
				EstimateVar:   *estimateVar,
				MaxIterations: *maxIterations,
				Tolerance:     *tolerance,
			},
		})
		if err != nil {
			log.Exitf("Couldn't estimate the joint distribution, err = %v", err)
		}
		log.Infof("Fitted %d cells in %d iterations", res.Fit.Len(), res.Iterations)
	default:
		log.Exitf("There is no mode with name = %s", *mode)
	}

	log.Infof("Successfully finished the analysis")
}
