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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCorrectionAdjust(t *testing.T) {
	nan := math.NaN()
	pvalues := []float64{0.01, 0.04, 0.03, nan, 0.005}
	for _, tc := range []struct {
		correction Correction
		want       []float64
	}{
		// Four tests; sorted p-values 0.005, 0.01, 0.03, 0.04.
		{BenjaminiHochberg(), []float64{0.02, 0.04, 0.04, nan, 0.02}},
		{Bonferroni(), []float64{0.04, 0.16, 0.12, nan, 0.02}},
		{Holm(), []float64{0.03, 0.06, 0.06, nan, 0.02}},
		{None(), []float64{0.01, 0.04, 0.03, nan, 0.005}},
	} {
		got := tc.correction.Adjust(pvalues)
		if diff := cmp.Diff(tc.want, got, cmpopts.EquateApprox(0, 1e-12), cmpopts.EquateNaNs()); diff != "" {
			t.Errorf("%T.Adjust mismatch (-want +got):\n%s", tc.correction, diff)
		}
	}
}

func TestCorrectionCapsAtOne(t *testing.T) {
	pvalues := []float64{0.6, 0.9, 0.7}
	for _, c := range []Correction{BenjaminiHochberg(), Bonferroni(), Holm()} {
		for i, p := range c.Adjust(pvalues) {
			if p > 1 || p < pvalues[i] {
				t.Errorf("%T.Adjust: adjusted p-value %d is %f, want within [%f, 1]", c, i, p, pvalues[i])
			}
		}
	}
}

func TestCorrectionKindRoundTrip(t *testing.T) {
	for _, k := range []Kind{BenjaminiHochbergCorrection, BonferroniCorrection, HolmCorrection, NoCorrection} {
		if got := ToKind(ToCorrection(k)); got != k {
			t.Errorf("ToKind(ToCorrection(%d)) = %d", k, got)
		}
	}
	if ToCorrection(Unrecognised) != nil {
		t.Errorf("ToCorrection(Unrecognised) should be nil")
	}
	if ToKind(nil) != Unrecognised {
		t.Errorf("ToKind(nil) should be Unrecognised")
	}
}
