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

// Package em estimates the joint distribution of several variables reported
// by the same respondents, using Expectation-Maximization.
//
// Every variable contributes an axis to a joint Table: one cell per candidate
// of its map, plus an "other" cell for values outside the map unless
// IgnoreOther is set. Respondents with identical cohorts and reports are
// grouped into weighted buckets. Each iteration computes, for every bucket,
// the posterior over joint cells given its reports (E-step), and sets the
// table to the average posterior (M-step).
package em

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/checks"
	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// OtherLabel names the cell of values outside a variable's map.
const OtherLabel = "<other>"

const (
	defaultMaxIterations = 1000
	defaultTolerance     = 1e-6
)

// Options configures ComputeDistributionEM. The zero value is valid.
type Options struct {
	// IgnoreOther drops the other cell of every variable. Reports that no
	// candidate can explain are then discarded.
	IgnoreOther bool
	// Marginals lists the variables to report the distribution of. The joint
	// table is summed over the others. Empty means all variables, in order.
	Marginals []int
	// EstimateVar requests the variance-covariance matrix of the fit.
	EstimateVar bool
	// MaxIterations caps the number of EM iterations. Defaults to 1000.
	MaxIterations int
	// Tolerance stops the iteration once no cell moves by more than it.
	// Defaults to 1e-6.
	Tolerance float64
}

// Result holds the outcome of ComputeDistributionEM.
type Result struct {
	// Fit is the distribution over the variables of Options.Marginals.
	Fit *Table
	// Labels[a] names the cells of axis a of Fit.
	Labels [][]string
	// Joint is the distribution over all variables.
	Joint *Table
	// VarCov is the covariance of Fit.Probs, or nil unless EstimateVar is set.
	VarCov *mat.SymDense
	// Iterations is the number of EM iterations run.
	Iterations int
	// Converged is false if MaxIterations was reached first.
	Converged bool
	// LogLikelihood[i] is the log-likelihood of the reports under the table
	// entering iteration i+1. It is non-decreasing.
	LogLikelihood []float64
	// DroppedReports counts the respondents whose reports have zero
	// likelihood under every cell.
	DroppedReports int64
	Warnings       []rappor.Warning
}

// StdDev returns the standard deviation of every cell of Fit, or nil if the
// variance was not estimated.
func (r *Result) StdDev() []float64 {
	if r.VarCov == nil {
		return nil
	}
	n := r.VarCov.SymmetricDim()
	sd := make([]float64, n)
	for i := range sd {
		sd[i] = math.Sqrt(math.Max(0, r.VarCov.At(i, i)))
	}
	return sd
}

// ComputeDistributionEM estimates the joint distribution of len(maps)
// variables. reports[v][i] is the report of respondent i for variable v; the
// report carries the cohort it was encoded under.
//
// It returns an error wrapping rappor.ErrDegenerateChannel if params cannot be
// inverted, one wrapping rappor.ErrDimensionMismatch if reports and maps
// describe different numbers of variables, and one wrapping rappor.ErrShape if
// a report or map does not match params or the variables have different
// numbers of respondents.
func ComputeDistributionEM(reports [][]rappor.Report, maps []*rappor.Map, params rappor.Params, opt *Options) (*Result, error) {
	if opt == nil {
		opt = &Options{}
	}
	maxIterations := opt.MaxIterations
	if maxIterations == 0 {
		maxIterations = defaultMaxIterations
	}
	tolerance := opt.Tolerance
	if tolerance == 0 {
		tolerance = defaultTolerance
	}
	if err := checks.CheckMaxIterations("em.ComputeDistributionEM", maxIterations); err != nil {
		return nil, err
	}
	if err := checks.CheckTolerance("em.ComputeDistributionEM", tolerance); err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("em.ComputeDistributionEM: %w", err)
	}
	if err := checkInputs(reports, maps, params); err != nil {
		return nil, fmt.Errorf("em.ComputeDistributionEM: %w", err)
	}
	marginals := opt.Marginals
	if len(marginals) == 0 {
		marginals = make([]int, len(maps))
		for v := range marginals {
			marginals[v] = v
		}
	}
	if err := checkMarginals(marginals, len(maps)); err != nil {
		return nil, fmt.Errorf("em.ComputeDistributionEM: %w", err)
	}

	vars := make([]*variable, len(maps))
	for v, m := range maps {
		vars[v] = &variable{m: m, ch: params.Channel(), withOther: !opt.IgnoreOther, cache: make(map[string]likelihood)}
		if vars[v].numCells() == 0 {
			return nil, fmt.Errorf("em.ComputeDistributionEM: variable %d has no candidates and no other cell: %w", v, rappor.ErrShape)
		}
		if !opt.IgnoreOther {
			rates, err := otherRates(reports[v], m, params)
			if err != nil {
				return nil, fmt.Errorf("em.ComputeDistributionEM: variable %d: %w", v, err)
			}
			vars[v].other = rates
		}
	}
	e := newEstimator(vars, reports)
	res := &Result{Warnings: e.warnings, DroppedReports: e.dropped}
	for _, v := range marginals {
		res.Labels = append(res.Labels, vars[v].labels())
	}
	log.V(1).Infof("em.ComputeDistributionEM: %d variables, %d cells, %d buckets, %d dropped respondents",
		len(vars), e.joint.Len(), len(e.buckets), e.dropped)
	if len(e.buckets) == 0 {
		// Nothing to fit: every cell is undefined.
		for i := range e.joint.Probs {
			e.joint.Probs[i] = math.NaN()
		}
		res.Joint = e.joint
		res.Fit = e.joint.Marginal(marginals...)
		return res, nil
	}

	res.Iterations, res.Converged, res.LogLikelihood = e.run(maxIterations, tolerance)
	if !res.Converged {
		msg := fmt.Sprintf("no convergence after %d iterations (tolerance %g)", maxIterations, tolerance)
		log.Warningf("em.ComputeDistributionEM: %s", msg)
		res.Warnings = append(res.Warnings, rappor.Warning{Kind: rappor.ConvergenceWarning, Message: msg})
	}

	res.Joint = e.joint
	res.Fit = e.joint.Marginal(marginals...)
	if opt.EstimateVar {
		cov, warnings := e.varCov(tolerance)
		res.Warnings = append(res.Warnings, warnings...)
		res.VarCov = marginalCov(cov, e.joint, marginals)
	}
	return res, nil
}

func checkInputs(reports [][]rappor.Report, maps []*rappor.Map, params rappor.Params) error {
	if len(maps) == 0 {
		return fmt.Errorf("no variables: %w", rappor.ErrDimensionMismatch)
	}
	if len(reports) != len(maps) {
		return fmt.Errorf("reports for %d variables and maps for %d variables: %w", len(reports), len(maps), rappor.ErrDimensionMismatch)
	}
	for v, m := range maps {
		if m == nil {
			return fmt.Errorf("map of variable %d is nil: %w", v, rappor.ErrDimensionMismatch)
		}
		if err := m.Check(params); err != nil {
			return fmt.Errorf("variable %d: %w", v, err)
		}
		if len(reports[v]) != len(reports[0]) {
			return fmt.Errorf("variable %d has %d respondents, variable 0 has %d: %w", v, len(reports[v]), len(reports[0]), rappor.ErrShape)
		}
		for i, r := range reports[v] {
			if err := r.Check(params.NumCohorts, params.NumBits); err != nil {
				return fmt.Errorf("variable %d report %d: %w", v, i, err)
			}
		}
	}
	return nil
}

func checkMarginals(marginals []int, numVars int) error {
	seen := make(map[int]bool)
	for _, v := range marginals {
		if v < 0 || v >= numVars {
			return fmt.Errorf("marginal variable %d is out of range [0, %d): %w", v, numVars, rappor.ErrDimensionMismatch)
		}
		if seen[v] {
			return fmt.Errorf("marginal variable %d is listed twice", v)
		}
		seen[v] = true
	}
	return nil
}

// variable holds the per-cell likelihood model of one variable.
type variable struct {
	m         *rappor.Map
	ch        rappor.Channel
	withOther bool
	other     [][]float64 // other[c][b]: rate of true 1s for the other cell
	cache     map[string]likelihood
}

func (v *variable) numCells() int {
	if v.withOther {
		return v.m.NumCandidates() + 1
	}
	return v.m.NumCandidates()
}

func (v *variable) labels() []string {
	l := v.m.Candidates()
	if v.withOther {
		l = append(l, OtherLabel)
	}
	return l
}

// likelihood is P(report | cell) for every cell of a variable, scaled by
// exp(-offset) so that its largest entry is 1.
type likelihood struct {
	vals   []float64
	offset float64
}

// zero reports whether no cell can produce the report.
func (l likelihood) zero() bool {
	return math.IsInf(l.offset, -1)
}

func (v *variable) likelihood(r rappor.Report) likelihood {
	key := reportKey(r)
	if l, ok := v.cache[key]; ok {
		return l
	}
	logs := make([]float64, v.numCells())
	cohort := v.m.Cohort(r.Cohort)
	for s := 0; s < v.m.NumCandidates(); s++ {
		set := cohort.Col(s)
		var ll float64
		j := 0
		for b, reported := range r.Bits {
			truth := j < len(set) && set[j] == b
			if truth {
				j++
			}
			ll += math.Log(v.ch.BitProb(reported, truth))
		}
		logs[s] = ll
	}
	if v.withOther {
		var ll float64
		for b, reported := range r.Bits {
			p1 := v.ch.ObservedRate(v.other[r.Cohort][b])
			if reported {
				ll += math.Log(p1)
			} else {
				ll += math.Log(1 - p1)
			}
		}
		logs[len(logs)-1] = ll
	}
	l := likelihood{vals: logs, offset: floats.Max(logs)}
	if !l.zero() {
		for i, ll := range logs {
			l.vals[i] = math.Exp(ll - l.offset)
		}
	}
	v.cache[key] = l
	return l
}

func reportKey(r rappor.Report) string {
	key := make([]byte, 4+(len(r.Bits)+7)/8)
	binary.BigEndian.PutUint32(key, uint32(r.Cohort))
	for b, set := range r.Bits {
		if set {
			key[4+b/8] |= 1 << (b % 8)
		}
	}
	return string(key)
}

// bucket groups the respondents sharing a report for every variable.
type bucket struct {
	weight float64
	liks   []likelihood
}

type estimator struct {
	joint    *Table
	buckets  []*bucket
	total    float64
	dropped  int64
	warnings []rappor.Warning

	// scratch space of joint.Len() floats
	cellLik []float64
}

func newEstimator(vars []*variable, reports [][]rappor.Report) *estimator {
	dims := make([]int, len(vars))
	for v, x := range vars {
		dims[v] = x.numCells()
	}
	e := &estimator{joint: NewTable(dims...)}
	e.cellLik = make([]float64, e.joint.Len())

	index := make(map[string]*bucket)
	for i := range reports[0] {
		var key []byte
		for v := range vars {
			key = append(key, reportKey(reports[v][i])...)
		}
		if b, ok := index[string(key)]; ok {
			b.weight++
			continue
		}
		b := &bucket{weight: 1, liks: make([]likelihood, len(vars))}
		dropped := false
		for v, x := range vars {
			b.liks[v] = x.likelihood(reports[v][i])
			if b.liks[v].zero() {
				dropped = true
			}
		}
		index[string(key)] = b
		if !dropped {
			e.buckets = append(e.buckets, b)
		}
	}
	var kept float64
	for _, b := range e.buckets {
		kept += b.weight
	}
	e.total = kept
	e.dropped = int64(len(reports[0])) - int64(kept)
	if e.dropped > 0 {
		msg := fmt.Sprintf("%d of %d respondents have reports that no cell can produce", e.dropped, len(reports[0]))
		log.Warningf("em: %s", msg)
		e.warnings = append(e.warnings, rappor.Warning{Kind: rappor.DataSparsityWarning, Message: msg})
	}
	return e
}

// cellLikelihoods sets e.cellLik to the likelihood of b under every joint
// cell: the outer product of the per-variable likelihoods.
func (e *estimator) cellLikelihoods(b *bucket) []float64 {
	out := e.cellLik[:1]
	out[0] = 1
	for _, l := range b.liks {
		n := len(out)
		out = e.cellLik[:n*len(l.vals)]
		// Fill from the end so that entries of the previous product are read
		// before they are overwritten.
		for i := n - 1; i >= 0; i-- {
			prev := out[i]
			for s := len(l.vals) - 1; s >= 0; s-- {
				out[i*len(l.vals)+s] = prev * l.vals[s]
			}
		}
	}
	return out
}

func (b *bucket) offset() float64 {
	var o float64
	for _, l := range b.liks {
		o += l.offset
	}
	return o
}

// run iterates EM from the uniform table and returns the number of
// iterations, whether the tolerance was reached and the log-likelihood
// history.
func (e *estimator) run(maxIterations int, tolerance float64) (int, bool, []float64) {
	prob := e.joint.Probs
	for i := range prob {
		prob[i] = 1 / float64(len(prob))
	}
	next := make([]float64, len(prob))
	var history []float64
	for it := 1; it <= maxIterations; it++ {
		for i := range next {
			next[i] = 0
		}
		var ll float64
		for _, b := range e.buckets {
			lik := e.cellLikelihoods(b)
			denom := floats.Dot(prob, lik)
			if denom == 0 {
				continue
			}
			ll += b.weight * (math.Log(denom) + b.offset())
			scale := b.weight / denom
			for i, l := range lik {
				if l != 0 {
					next[i] += scale * prob[i] * l
				}
			}
		}
		floats.Scale(1/e.total, next)
		history = append(history, ll)
		delta := floats.Distance(prob, next, math.Inf(1))
		copy(prob, next)
		log.V(2).Infof("em: iteration %d: log-likelihood %f, max change %g", it, ll, delta)
		if delta < tolerance {
			return it, true, history
		}
	}
	return maxIterations, false, history
}
