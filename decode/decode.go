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

// Package decode estimates the distribution of a single variable from
// aggregated reports.
//
// The per-bit rates of every cohort are de-noised through the inverse of the
// randomized response channel and regressed on the stacked candidate map. The
// regression coefficient of a candidate is its estimated share of the
// population. Each candidate is then tested for being present, with a
// pluggable multiple-comparison correction.
package decode

import (
	"fmt"
	"math"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/checks"
	"github.com/ananthr/rappor/internal/linalg"
	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	defaultAlpha = 0.05
	// z-value of the two-sided 95% normal interval.
	z95 = 1.959963984540054
)

// Options configures Decode. The zero value is valid.
type Options struct {
	// Alpha is the significance level the adjusted p-values are compared to.
	// Defaults to 0.05.
	Alpha float64
	// Correction adjusts the p-values of all candidates. Defaults to
	// BenjaminiHochberg.
	Correction Correction
}

// ConfidenceInterval holds the lower and upper bounds of an interval.
type ConfidenceInterval struct {
	LowerBound, UpperBound float64
}

// Row is the fit of one candidate string.
type Row struct {
	String string
	// Proportion is the estimated share of reports holding String. It is not
	// clamped to [0, 1], and is NaN when no report can carry String.
	Proportion float64
	// PropStdDev is the standard error of Proportion.
	PropStdDev float64
	// Estimate and StdDev are Proportion and PropStdDev scaled to the
	// number of reports.
	Estimate float64
	StdDev   float64
	// Interval is the 95% confidence interval of Estimate.
	Interval ConfidenceInterval
	// ZScore tests Proportion > 0.
	ZScore         float64
	PValue         float64
	AdjustedPValue float64
	Significant    bool
}

// Summary describes a fit as a whole.
type Summary struct {
	NumCandidates int
	NumDetected   int
	NumReports    int64
	// AllocatedMass is the sum of the proportions of significant candidates.
	AllocatedMass float64
	// ExplainedVariance is the weighted R² of the regression of the
	// de-noised bit rates.
	ExplainedVariance float64
}

// Result holds the outcome of Decode.
type Result struct {
	Rows    []Row
	Summary Summary
	// Covariance is the n × n covariance of the proportions, in candidate
	// order. Rows and columns of unsupported candidates are NaN.
	Covariance *mat.SymDense
	Warnings   []rappor.Warning
}

// Decode fits the share of every candidate of m to counts.
//
// It returns an error wrapping rappor.ErrDegenerateChannel if params cannot be
// inverted, and one wrapping rappor.ErrShape if counts or m do not match
// params. Numerical problems are reported as warnings on the result.
func Decode(counts *rappor.Counts, m *rappor.Map, params rappor.Params, opt *Options) (*Result, error) {
	if opt == nil {
		opt = &Options{}
	}
	alpha := opt.Alpha
	if alpha == 0 {
		alpha = defaultAlpha
	}
	if err := checks.CheckAlpha("decode.Decode", alpha); err != nil {
		return nil, err
	}
	correction := opt.Correction
	if correction == nil {
		correction = BenjaminiHochberg()
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("decode.Decode: %w", err)
	}
	if err := m.Check(params); err != nil {
		return nil, fmt.Errorf("decode.Decode: map: %w", err)
	}
	if err := counts.Check(params.NumCohorts, params.NumBits); err != nil {
		return nil, fmt.Errorf("decode.Decode: counts: %w", err)
	}

	d := newDesign(counts, m, params.Channel())
	res := &Result{Warnings: d.warnings}
	reg := d.fit()
	res.Warnings = append(res.Warnings, reg.warnings...)

	n := m.NumCandidates()
	total := counts.Total()
	pvalues := make([]float64, n)
	res.Rows = make([]Row, n)
	for s, value := range m.Candidates() {
		row := Row{String: value}
		row.Proportion = reg.beta[s]
		row.PropStdDev = math.Sqrt(math.Max(0, reg.cov.At(s, s)))
		if math.IsNaN(row.Proportion) {
			row.PropStdDev = math.NaN()
		}
		row.Estimate = row.Proportion * float64(total)
		row.StdDev = row.PropStdDev * float64(total)
		row.Interval = ConfidenceInterval{
			LowerBound: row.Estimate - z95*row.StdDev,
			UpperBound: row.Estimate + z95*row.StdDev,
		}
		row.ZScore = zScore(row.Proportion, row.PropStdDev)
		row.PValue = distuv.UnitNormal.Survival(row.ZScore)
		pvalues[s] = row.PValue
		res.Rows[s] = row
	}
	adjusted := correction.Adjust(pvalues)
	res.Summary = Summary{
		NumCandidates:     n,
		NumReports:        total,
		ExplainedVariance: reg.r2,
	}
	for s := range res.Rows {
		row := &res.Rows[s]
		row.AdjustedPValue = adjusted[s]
		row.Significant = row.AdjustedPValue < alpha
		if row.Significant {
			res.Summary.NumDetected++
			res.Summary.AllocatedMass += row.Proportion
		}
	}
	res.Covariance = reg.cov
	log.V(1).Infof("decode.Decode: %d of %d candidates detected over %d reports (alpha=%g, %T)",
		res.Summary.NumDetected, n, total, alpha, correction)
	return res, nil
}

// zScore is the one-sided statistic for beta > 0. A zero standard error makes
// any non-zero estimate infinitely significant.
func zScore(beta, sd float64) float64 {
	if sd == 0 {
		switch {
		case beta > 0:
			return math.Inf(1)
		case beta < 0:
			return math.Inf(-1)
		}
		return 0
	}
	return beta / sd
}

// design is the weighted regression problem y ≈ Xβ over the m·k stacked bits.
type design struct {
	stacked  rappor.Matrix
	n        int
	y        []float64 // de-noised bit rates
	w        []float64 // regression weights: reports in the cohort
	v        []float64 // variance of y
	warnings []rappor.Warning
}

func newDesign(counts *rappor.Counts, m *rappor.Map, ch rappor.Channel) *design {
	k := m.NumBits()
	rows, n := m.Stacked().Dims()
	d := &design{
		stacked: m.Stacked(),
		n:       n,
		y:       make([]float64, rows),
		w:       make([]float64, rows),
		v:       make([]float64, rows),
	}
	for c, nc := range counts.Totals {
		if nc == 0 {
			msg := fmt.Sprintf("cohort %d has no reports and does not constrain the fit", c)
			log.Warningf("decode.Decode: %s", msg)
			d.warnings = append(d.warnings, rappor.Warning{Kind: rappor.DataSparsityWarning, Message: msg})
			continue
		}
		for b, x := range counts.Bits[c] {
			i := c*k + b
			t := ch.TrueRate(float64(x) / float64(nc))
			d.y[i] = t
			d.w[i] = float64(nc)
			d.v[i] = ch.TrueRateVariance(t, nc)
		}
	}
	return d
}

type regression struct {
	beta     []float64
	cov      *mat.SymDense
	r2       float64
	warnings []rappor.Warning
}

// supported returns the candidates that set at least one bit in a cohort
// with reports. The others cannot be estimated.
func (d *design) supported() []int {
	var cols []int
	for j := 0; j < d.n; j++ {
		for _, i := range d.stacked.Col(j) {
			if d.w[i] > 0 {
				cols = append(cols, j)
				break
			}
		}
	}
	return cols
}

func (d *design) fit() regression {
	f := regression{
		beta: make([]float64, d.n),
		cov:  mat.NewSymDense(d.n, nil),
	}
	for j := range f.beta {
		f.beta[j] = math.NaN()
		for l := j; l < d.n; l++ {
			f.cov.SetSym(j, l, math.NaN())
		}
	}
	cols := d.supported()
	if len(cols) < d.n {
		msg := fmt.Sprintf("%d of %d candidates set no bit in any cohort with reports", d.n-len(cols), d.n)
		log.Warningf("decode.Decode: %s", msg)
		f.warnings = append(f.warnings, rappor.Warning{Kind: rappor.DataSparsityWarning, Message: msg})
	}
	if len(cols) == 0 {
		f.r2 = math.NaN()
		return f
	}

	rows := len(d.y)
	p := len(cols)
	x := mat.NewDense(rows, p, nil)
	wx := mat.NewDense(rows, p, nil)
	for a, j := range cols {
		for _, i := range d.stacked.Col(j) {
			x.Set(i, a, 1)
			wx.Set(i, a, d.w[i])
		}
	}
	var g mat.Dense
	g.Mul(x.T(), wx)
	var xtwy mat.VecDense
	xtwy.MulVec(wx.T(), mat.NewVecDense(rows, d.y))

	// (XᵀWX)⁻¹, and the pseudo-inverse when the candidates are collinear.
	inv, exact := linalg.Inverse(&g)
	var beta mat.VecDense
	if !exact {
		msg := fmt.Sprintf("regression on %d candidates is singular or ill-conditioned; using the pseudo-inverse", p)
		log.Warningf("decode.Decode: %s", msg)
		f.warnings = append(f.warnings, rappor.Warning{Kind: rappor.DataSparsityWarning, Message: msg})
		beta.MulVec(inv, &xtwy)
	} else if err := beta.SolveVec(&g, &xtwy); err != nil {
		beta.MulVec(inv, &xtwy)
	}

	// Cov(β) = A V Aᵀ with A = (XᵀWX)⁻¹ XᵀW.
	var a mat.Dense
	a.Mul(inv, wx.T())
	av := mat.DenseCopyOf(&a)
	for i, vi := range d.v {
		for r := 0; r < p; r++ {
			av.Set(r, i, av.At(r, i)*vi)
		}
	}
	var cov mat.Dense
	cov.Mul(av, a.T())
	sym := linalg.Symmetrize(&cov)
	for ai, j := range cols {
		f.beta[j] = beta.AtVec(ai)
		for bi, l := range cols {
			if l >= j {
				f.cov.SetSym(j, l, sym.At(ai, bi))
			}
		}
	}

	var yhat mat.VecDense
	yhat.MulVec(x, &beta)
	f.r2 = d.explainedVariance(yhat.RawVector().Data)
	return f
}

// explainedVariance returns the weighted R² of yhat against y.
func (d *design) explainedVariance(yhat []float64) float64 {
	var sw, swy float64
	for i, w := range d.w {
		sw += w
		swy += w * d.y[i]
	}
	mean := swy / sw
	var rss, tss float64
	for i, w := range d.w {
		rss += w * (d.y[i] - yhat[i]) * (d.y[i] - yhat[i])
		tss += w * (d.y[i] - mean) * (d.y[i] - mean)
	}
	if tss == 0 {
		if rss == 0 {
			return 1
		}
		return math.NaN()
	}
	return 1 - rss/tss
}
