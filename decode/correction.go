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

package decode

import (
	"math"
	"sort"

	log "github.com/golang/glog"
)

// Kind is an enum type for the multiple-comparison corrections.
type Kind int

// Corrections available to Decode.
const (
	BenjaminiHochbergCorrection Kind = iota
	BonferroniCorrection
	HolmCorrection
	NoCorrection
	Unrecognised
)

// Correction adjusts the p-values of a family of tests so that comparing them
// against a significance level controls the false discovery rate or the
// family-wise error rate.
type Correction interface {
	// Adjust returns the adjusted p-values, in the order of pvalues. NaN
	// p-values are not counted as tests and stay NaN.
	Adjust(pvalues []float64) []float64
}

// ToCorrection converts a Kind into the corresponding Correction.
func ToCorrection(k Kind) Correction {
	switch k {
	case BenjaminiHochbergCorrection:
		return BenjaminiHochberg()
	case BonferroniCorrection:
		return Bonferroni()
	case HolmCorrection:
		return Holm()
	case NoCorrection:
		return None()
	case Unrecognised:
		log.Warningf("ToCorrection: Unrecognised correction specified, returning nil")
	default:
		log.Warningf("ToCorrection: unknown kind (%v) specified, returning nil", k)
	}
	return nil
}

// ToKind converts a Correction into the corresponding Kind.
func ToKind(c Correction) Kind {
	switch c {
	case BenjaminiHochberg():
		return BenjaminiHochbergCorrection
	case Bonferroni():
		return BonferroniCorrection
	case Holm():
		return HolmCorrection
	case None():
		return NoCorrection
	case nil:
		log.Warningf("ToKind: nil correction specified, returning Unrecognised")
	default:
		log.Warningf("ToKind: unknown Correction (%v) specified, returning Unrecognised", c)
	}
	return Unrecognised
}

type benjaminiHochberg struct{}
type bonferroni struct{}
type holm struct{}
type none struct{}

// BenjaminiHochberg returns the step-up correction controlling the false
// discovery rate.
func BenjaminiHochberg() Correction { return benjaminiHochberg{} }

// Bonferroni returns the correction controlling the family-wise error rate by
// multiplying every p-value by the number of tests.
func Bonferroni() Correction { return bonferroni{} }

// Holm returns the step-down correction controlling the family-wise error
// rate.
func Holm() Correction { return holm{} }

// None returns the p-values unchanged.
func None() Correction { return none{} }

// ascending returns the indices of the non-NaN p-values sorted by p-value.
// Ties keep their input order.
func ascending(pvalues []float64) []int {
	idx := make([]int, 0, len(pvalues))
	for i, p := range pvalues {
		if !math.IsNaN(p) {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(a, b int) bool { return pvalues[idx[a]] < pvalues[idx[b]] })
	return idx
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func (benjaminiHochberg) Adjust(pvalues []float64) []float64 {
	adj := nanSlice(len(pvalues))
	idx := ascending(pvalues)
	m := float64(len(idx))
	running := 1.0
	for r := len(idx) - 1; r >= 0; r-- {
		i := idx[r]
		running = math.Min(running, pvalues[i]*m/float64(r+1))
		adj[i] = running
	}
	return adj
}

func (bonferroni) Adjust(pvalues []float64) []float64 {
	adj := nanSlice(len(pvalues))
	idx := ascending(pvalues)
	m := float64(len(idx))
	for _, i := range idx {
		adj[i] = math.Min(1, pvalues[i]*m)
	}
	return adj
}

func (holm) Adjust(pvalues []float64) []float64 {
	adj := nanSlice(len(pvalues))
	idx := ascending(pvalues)
	m := len(idx)
	running := 0.0
	for r, i := range idx {
		running = math.Max(running, math.Min(1, pvalues[i]*float64(m-r)))
		adj[i] = running
	}
	return adj
}

func (none) Adjust(pvalues []float64) []float64 {
	return append([]float64(nil), pvalues...)
}
