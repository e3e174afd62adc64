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

package em

import (
	"fmt"
	"math"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/internal/linalg"
	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
)

// varCov returns the asymptotic covariance of the joint cell probabilities:
// the inverse of the observed information
//
//	I = Σ_buckets w · L Lᵀ / (πᵀL)²
//
// restricted to the active cells. Rows and columns of the other cells are zero.
//
// EM only approaches the boundary, so a cell heading to zero stops at a
// probability of the order of the convergence tolerance. A cell is active
// when its probability exceeds both the tolerance and half a report.
func (e *estimator) varCov(tolerance float64) (*mat.SymDense, []rappor.Warning) {
	prob := e.joint.Probs
	cutoff := math.Max(tolerance, 0.5/e.total)
	var active []int
	for i, p := range prob {
		if p > cutoff {
			active = append(active, i)
		}
	}
	cov := mat.NewSymDense(len(prob), nil)
	if len(active) == 0 {
		return cov, nil
	}

	info := mat.NewSymDense(len(active), nil)
	l := make([]float64, len(active))
	for _, b := range e.buckets {
		lik := e.cellLikelihoods(b)
		var denom float64
		for a, i := range active {
			l[a] = lik[i]
			denom += prob[i] * lik[i]
		}
		if denom == 0 {
			continue
		}
		x := mat.NewVecDense(len(l), l)
		info.SymRankOne(info, b.weight/(denom*denom), x)
	}

	var warnings []rappor.Warning
	inv, exact := linalg.Inverse(info)
	if !exact {
		msg := fmt.Sprintf("information matrix over %d cells is singular; using the pseudo-inverse", len(active))
		log.Warningf("em: %s", msg)
		warnings = append(warnings, rappor.Warning{Kind: rappor.DataSparsityWarning, Message: msg})
	}
	sym := linalg.Symmetrize(inv)
	for a, i := range active {
		for b := a; b < len(active); b++ {
			cov.SetSym(i, active[b], sym.At(a, b))
		}
	}
	return cov, warnings
}

// marginalCov returns J Σ Jᵀ, where J sums the joint cells of every cell of
// the marginal over axes.
func marginalCov(cov *mat.SymDense, joint *Table, axes []int) *mat.SymDense {
	identity := len(axes) == len(joint.Dims)
	for i, a := range axes {
		identity = identity && a == i
	}
	if identity {
		return cov
	}
	proj := joint.projection(axes)
	size := 1
	for _, a := range axes {
		size *= joint.Dims[a]
	}
	out := mat.NewSymDense(size, nil)
	for i := range proj {
		for j := range proj {
			pi, pj := proj[i], proj[j]
			if pi <= pj {
				out.SetSym(pi, pj, out.At(pi, pj)+cov.At(i, j))
			}
		}
	}
	return out
}
