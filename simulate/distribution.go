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

package simulate

import (
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution assigns a probability to each of n candidates.
type Distribution interface {
	// Probs returns n probabilities summing to 1.
	Probs(n int) []float64
}

type uniform struct{}

type exponential struct {
	rate float64
}

type gaussian struct {
	sigma float64
}

type zipf struct {
	s float64
}

type explicit struct {
	weights []float64
}

// Uniform gives every candidate the same probability.
func Uniform() Distribution { return uniform{} }

// Exponential gives candidate i a weight proportional to exp(-rate·i).
func Exponential(rate float64) Distribution { return exponential{rate: rate} }

// Gaussian gives candidate i a weight proportional to the normal density at
// i, with mean n/2 and standard deviation sigma·n.
func Gaussian(sigma float64) Distribution { return gaussian{sigma: sigma} }

// Zipf gives candidate i a weight proportional to 1/(i+1)^s.
func Zipf(s float64) Distribution { return zipf{s: s} }

// Explicit uses the given weights, normalized. It expects exactly one
// weight per candidate.
func Explicit(weights []float64) Distribution {
	return explicit{weights: append([]float64(nil), weights...)}
}

func normalize(w []float64) []float64 {
	sum := floats.Sum(w)
	if sum <= 0 {
		log.Warningf("simulate: weights sum to %f; using the uniform distribution", sum)
		for i := range w {
			w[i] = 1 / float64(len(w))
		}
		return w
	}
	floats.Scale(1/sum, w)
	return w
}

func (uniform) Probs(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return normalize(w)
}

func (d exponential) Probs(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Exp(-d.rate * float64(i))
	}
	return normalize(w)
}

func (d gaussian) Probs(n int) []float64 {
	dist := distuv.Normal{Mu: float64(n) / 2, Sigma: d.sigma * float64(n)}
	w := make([]float64, n)
	for i := range w {
		w[i] = dist.Prob(float64(i))
	}
	return normalize(w)
}

func (d zipf) Probs(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = math.Pow(float64(i+1), -d.s)
	}
	return normalize(w)
}

func (d explicit) Probs(n int) []float64 {
	if len(d.weights) != n {
		panic(fmt.Sprintf("simulate: explicit distribution has %d weights for %d candidates", len(d.weights), n))
	}
	return normalize(append([]float64(nil), d.weights...))
}

// ExactCounts splits total among the probabilities so that the counts sum to
// total and each differs from total·probs[i] by less than 1. Remainders are
// handed out largest first, ties to the lowest index.
func ExactCounts(probs []float64, total int) []int {
	counts := make([]int, len(probs))
	rem := make([]float64, len(probs))
	assigned := 0
	for i, p := range probs {
		x := p * float64(total)
		counts[i] = int(math.Floor(x))
		rem[i] = x - float64(counts[i])
		assigned += counts[i]
	}
	order := make([]int, len(probs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for j := 0; assigned < total && len(order) > 0; j++ {
		counts[order[j%len(order)]]++
		assigned++
	}
	return counts
}
