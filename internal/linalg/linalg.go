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

// Package linalg holds the matrix inversion shared by the estimators.
package linalg

import (
	"math"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/mat"
)

// Inverse returns the inverse of the square matrix a. When a is singular or
// ill-conditioned it returns the Moore-Penrose pseudo-inverse instead, and
// exact is false.
func Inverse(a mat.Matrix) (inv *mat.Dense, exact bool) {
	inv = new(mat.Dense)
	if err := inv.Inverse(a); err != nil {
		log.V(1).Infof("linalg.Inverse: %v; falling back to the pseudo-inverse", err)
		return PseudoInverse(a), false
	}
	return inv, true
}

// PseudoInverse returns the Moore-Penrose inverse of a, discarding singular
// values below max(r, c)·ε·σ_max.
func PseudoInverse(a mat.Matrix) *mat.Dense {
	r, c := a.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		log.Warningf("linalg.PseudoInverse: SVD factorization failed; returning a zero matrix")
		return mat.NewDense(c, r, nil)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var tol float64
	if len(values) > 0 {
		tol = values[0] * float64(max(r, c)) * epsilon
	}
	sInv := mat.NewDiagDense(len(values), nil)
	for i, s := range values {
		if s > tol {
			sInv.SetDiag(i, 1/s)
		}
	}
	var vs, out mat.Dense
	vs.Mul(&v, sInv)
	out.Mul(&vs, u.T())
	return &out
}

// epsilon is the machine epsilon of float64.
var epsilon = math.Nextafter(1, 2) - 1

// Symmetrize returns (a + aᵀ)/2 as a SymDense.
func Symmetrize(a mat.Matrix) *mat.SymDense {
	n, _ := a.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			s.SetSym(i, j, (a.At(i, j)+a.At(j, i))/2)
		}
	}
	return s
}
