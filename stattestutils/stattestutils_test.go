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

package stattestutils

import (
	"math"
	"testing"
)

func TestSampleMean(t *testing.T) {
	for _, tc := range []struct {
		input    []float64
		wantMean float64
	}{
		{
			input:    []float64{},
			wantMean: 0,
		},
		{
			input:    []float64{100.123},
			wantMean: 100.123,
		},
		{
			input:    []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantMean: 5,
		},
	} {
		output := SampleMean(tc.input)
		if math.Abs(output-tc.wantMean) > 10e-10 {
			t.Errorf("got sampleMean(%v)=%f, want %f", tc.input, output, tc.wantMean)
		}
	}
}

func TestSampleVariance(t *testing.T) {
	for _, tc := range []struct {
		input        []float64
		wantVariance float64
	}{
		{
			input:        []float64{},
			wantVariance: 0,
		},
		{
			input:        []float64{100.123},
			wantVariance: 0,
		},
		{
			input:        []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
			wantVariance: 10,
		},
	} {
		output := SampleVariance(tc.input)
		if math.Abs(output-tc.wantVariance) > 10e-10 {
			t.Errorf("got sampleVariance(%v)=%f, want %f", tc.input, output, tc.wantVariance)
		}
	}
}

func TestMaxAbsDiff(t *testing.T) {
	for _, tc := range []struct {
		got, want []float64
		wantDiff  float64
	}{
		{[]float64{0.5, 0.5}, []float64{0.5, 0.5}, 0},
		{[]float64{0.4, 0.7}, []float64{0.5, 0.5}, 0.2},
		{[]float64{0.4}, []float64{0.5, 0.5}, math.Inf(1)},
		{[]float64{math.NaN(), 0.5}, []float64{0.5, 0.5}, math.Inf(1)},
	} {
		if got := MaxAbsDiff(tc.got, tc.want); math.Abs(got-tc.wantDiff) > 1e-12 && got != tc.wantDiff {
			t.Errorf("MaxAbsDiff(%v, %v) = %f, want %f", tc.got, tc.want, got, tc.wantDiff)
		}
	}
}

func TestTotalVariation(t *testing.T) {
	if got := TotalVariation([]float64{1, 0}, []float64{0, 1}); got != 1 {
		t.Errorf("TotalVariation of disjoint distributions = %f, want 1", got)
	}
	if got := TotalVariation([]float64{0.25, 0.75}, []float64{0.25, 0.75}); got != 0 {
		t.Errorf("TotalVariation of equal distributions = %f, want 0", got)
	}
	if got := TotalVariation([]float64{0.5, 0.5}, []float64{0.25, 0.75}); got != 0.25 {
		t.Errorf("TotalVariation of overlapping distributions = %f, want 0.25", got)
	}
	if got := TotalVariation([]float64{1}, []float64{0.5, 0.5}); !math.IsInf(got, 1) {
		t.Errorf("TotalVariation of distributions of different sizes = %f, want +Inf", got)
	}
}
