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
	"testing"

	"github.com/ananthr/rappor"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestOtherRates(t *testing.T) {
	// v1 sets bit 0; the unmapped half of the respondents sets bit 1.
	m, err := rappor.NewMap([]string{"v1"}, 2, [][][]int{{{0}}})
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	for _, tc := range []struct {
		desc    string
		reports []rappor.Report
		want    [][]float64
	}{
		{"half unmapped", concat(repeat(50, 0, "01"), repeat(50, 0, "10")), [][]float64{{0, 1}}},
		{"fully explained", repeat(100, 0, "01"), [][]float64{{0.5, 0.5}}},
	} {
		got, err := otherRates(tc.reports, m, noiseFree)
		if err != nil {
			t.Fatalf("%s: otherRates: %v", tc.desc, err)
		}
		if diff := cmp.Diff(tc.want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
			t.Errorf("%s: otherRates mismatch (-want +got):\n%s", tc.desc, diff)
		}
	}
}
