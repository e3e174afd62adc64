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

// Package stattestutils provides basic statistical utility functions for
// comparing estimated distributions against a known truth.
//
// This package is not optimized for performance or speed and is only intended
// to be used in tests.
package stattestutils

import (
	"math"

	"github.com/grd/stat"
	"gonum.org/v1/gonum/floats"
)

// SampleMean returns the mean of a slice, or 0 for an empty slice.
func SampleMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(stat.Float64Slice(values))
}

// SampleVariance returns the variance of a slice, calculated as the sum of
// squares of the distance to the mean of each of the values, divided by the
// number of values.
func SampleVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := SampleMean(values)
	var sumOfSquares float64
	for _, v := range values {
		sumOfSquares += (v - mean) * (v - mean)
	}
	return sumOfSquares / float64(len(values))
}

// MaxAbsDiff returns the largest |got[i] - want[i]|. It returns +∞ if the
// slices have different lengths or got holds a NaN.
func MaxAbsDiff(got, want []float64) float64 {
	if len(got) != len(want) || floats.HasNaN(got) {
		return math.Inf(1)
	}
	return floats.Distance(got, want, math.Inf(1))
}

// TotalVariation returns the total variation distance between two
// distributions over the same cells: half the L1 distance.
func TotalVariation(p, q []float64) float64 {
	if len(p) != len(q) {
		return math.Inf(1)
	}
	return floats.Distance(p, q, 1) / 2
}
