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

package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// errorPoints places an error bar on top of every bar.
type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// finite replaces the NaN and infinite entries of xs, which the plotters
// reject, by 0.
func finite(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			out[i] = x
		}
	}
	return out
}

// DrawDistribution saves a bar chart of values, one bar per label, to
// outputFile. The image format follows the file extension (.png, .svg, .pdf,
// ...). If stdDevs is not nil, every bar gets a ±1.96·stdDev error bar.
// Undefined values are drawn as 0.
func DrawDistribution(outputFile, title string, labels []string, values, stdDevs []float64) error {
	if len(labels) != len(values) || (stdDevs != nil && len(stdDevs) != len(values)) {
		return fmt.Errorf("got %d labels, %d values and %d standard deviations, want as many of each", len(labels), len(values), len(stdDevs))
	}
	values = finite(values)
	if stdDevs != nil {
		stdDevs = finite(stdDevs)
	}
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = "Proportion"

	w := vg.Points(20)
	bars, err := plotter.NewBarChart(plotter.Values(values), w)
	if err != nil {
		return fmt.Errorf("could not create bars from points %v: %v", plotter.Values(values), err)
	}
	bars.LineStyle.Width = vg.Length(0)
	bars.Color = plotutil.Color(2)
	p.Add(bars)
	p.NominalX(labels...)

	if stdDevs != nil {
		pts := errorPoints{XYs: make(plotter.XYs, len(values)), YErrors: make(plotter.YErrors, len(values))}
		for i, v := range values {
			pts.XYs[i].X = float64(i)
			pts.XYs[i].Y = v
			pts.YErrors[i].Low = z95 * stdDevs[i]
			pts.YErrors[i].High = z95 * stdDevs[i]
		}
		errBars, err := plotter.NewYErrorBars(pts)
		if err != nil {
			return fmt.Errorf("could not create error bars: %v", err)
		}
		p.Add(errBars)
	}

	width := vg.Length(len(values)+2) * 2 * w
	if width < 5*vg.Inch {
		width = 5 * vg.Inch
	}
	if err := p.Save(width, 5*vg.Inch, outputFile); err != nil {
		return fmt.Errorf("could not save plot to %q: %v", outputFile, err)
	}
	return nil
}
