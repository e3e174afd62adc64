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

// Package analysis runs the estimators over csv inputs and writes their
// results as csv files and charts.
package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/decode"
	"github.com/ananthr/rappor/em"
	log "github.com/golang/glog"
	"golang.org/x/sync/errgroup"
)

// z-value of the two-sided 95% normal interval.
const z95 = 1.959963984540054

// maxOpenFiles bounds the number of input files read at the same time.
const maxOpenFiles = 8

// DistOptions configures RunDist.
type DistOptions struct {
	ParamsFile string // Required.
	CountsFile string // Required.
	MapFile    string // Required.
	OutputFile string // Required.
	// ChartFile, if set, receives a bar chart of the detected candidates.
	ChartFile string
	Decode    decode.Options
}

// RunDist decodes the single-variable distribution of the counts in
// opt.CountsFile and writes the fit of every candidate to opt.OutputFile.
func RunDist(opt *DistOptions) (*decode.Result, error) {
	params, err := ReadParams(opt.ParamsFile)
	if err != nil {
		return nil, err
	}
	counts, err := ReadCounts(opt.CountsFile, params)
	if err != nil {
		return nil, err
	}
	m, err := ReadMap(opt.MapFile, params)
	if err != nil {
		return nil, err
	}
	res, err := decode.Decode(counts, m, params, &opt.Decode)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		log.Warningf("analysis.RunDist: %v", w)
	}
	log.Infof("analysis.RunDist: detected %d of %d candidates, allocated mass %.4f, explained variance %.4f",
		res.Summary.NumDetected, res.Summary.NumCandidates, res.Summary.AllocatedMass, res.Summary.ExplainedVariance)

	if err := WriteFit(opt.OutputFile, res); err != nil {
		return nil, err
	}
	if opt.ChartFile != "" {
		var labels []string
		var values, stdDevs []float64
		for _, row := range res.Rows {
			if row.Significant {
				labels = append(labels, row.String)
				values = append(values, row.Proportion)
				stdDevs = append(stdDevs, row.PropStdDev)
			}
		}
		if len(labels) == 0 {
			log.Warningf("analysis.RunDist: no candidate detected, skipping the chart")
		} else if err := DrawDistribution(opt.ChartFile, "Detected candidates", labels, values, stdDevs); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// AssocOptions configures RunAssoc.
type AssocOptions struct {
	ParamsFile string // Required.
	// ReportFiles[v] and MapFiles[v] hold the reports and the candidate map of
	// variable v. Reports of the same respondent share a row number.
	ReportFiles []string
	MapFiles    []string
	OutputFile  string // Required.
	// ChartFile, if set, receives a bar chart of the fitted cells.
	ChartFile string
	EM        em.Options
}

// RunAssoc estimates the joint distribution of the variables in
// opt.ReportFiles and writes every cell of the fit to opt.OutputFile. Input
// files are read concurrently.
func RunAssoc(ctx context.Context, opt *AssocOptions) (*em.Result, error) {
	if len(opt.ReportFiles) != len(opt.MapFiles) {
		return nil, fmt.Errorf("analysis.RunAssoc: %d report files and %d map files: %w", len(opt.ReportFiles), len(opt.MapFiles), rappor.ErrDimensionMismatch)
	}
	params, err := ReadParams(opt.ParamsFile)
	if err != nil {
		return nil, err
	}
	reports := make([][]rappor.Report, len(opt.ReportFiles))
	maps := make([]*rappor.Map, len(opt.MapFiles))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxOpenFiles)
	for v := range reports {
		v := v
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := ReadReports(opt.ReportFiles[v], params)
			if err != nil {
				return err
			}
			reports[v] = r
			return nil
		})
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := ReadMap(opt.MapFiles[v], params)
			if err != nil {
				return err
			}
			maps[v] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res, err := em.ComputeDistributionEM(reports, maps, params, &opt.EM)
	if err != nil {
		return nil, err
	}
	for _, w := range res.Warnings {
		log.Warningf("analysis.RunAssoc: %v", w)
	}
	log.Infof("analysis.RunAssoc: %d cells fitted in %d iterations (converged: %t)", res.Fit.Len(), res.Iterations, res.Converged)

	if err := WriteTable(opt.OutputFile, res); err != nil {
		return nil, err
	}
	if opt.ChartFile != "" {
		labels := make([]string, res.Fit.Len())
		coords := make([]int, len(res.Fit.Dims))
		for i := range labels {
			coords = res.Fit.Coords(i, coords)
			parts := make([]string, len(coords))
			for a, c := range coords {
				parts[a] = res.Labels[a][c]
			}
			labels[i] = strings.Join(parts, " × ")
		}
		if err := DrawDistribution(opt.ChartFile, "Joint distribution", labels, res.Fit.Probs, res.StdDev()); err != nil {
			return nil, err
		}
	}
	return res, nil
}
