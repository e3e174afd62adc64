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

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestTable() *Table {
	t := NewTable(2, 3)
	for i := range t.Probs {
		t.Probs[i] = float64(i)
	}
	return t
}

func TestTableIndexAndCoords(t *testing.T) {
	tbl := newTestTable()
	if got := tbl.Len(); got != 6 {
		t.Errorf("Len() = %d, want 6", got)
	}
	for i := 0; i < tbl.Len(); i++ {
		coords := tbl.Coords(i, nil)
		if got := tbl.Index(coords...); got != i {
			t.Errorf("Index(Coords(%d)) = %d", i, got)
		}
	}
	if diff := cmp.Diff([]int{1, 2}, tbl.Coords(5, make([]int, 0, 2))); diff != "" {
		t.Errorf("Coords(5) mismatch (-want +got):\n%s", diff)
	}
	if got := tbl.At(1, 0); got != 3 {
		t.Errorf("At(1, 0) = %f, want 3", got)
	}
	if got := tbl.Sum(); got != 15 {
		t.Errorf("Sum() = %f, want 15", got)
	}
}

func TestTableIndexPanics(t *testing.T) {
	tbl := newTestTable()
	for _, coords := range [][]int{{1}, {2, 0}, {0, -1}, {0, 0, 0}} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Index(%v) did not panic", coords)
				}
			}()
			tbl.Index(coords...)
		}()
	}
}

func TestTableMarginal(t *testing.T) {
	tbl := newTestTable()
	for _, tc := range []struct {
		axes      []int
		wantDims  []int
		wantProbs []float64
	}{
		{[]int{0}, []int{2}, []float64{3, 12}},
		{[]int{1}, []int{3}, []float64{3, 5, 7}},
		{[]int{0, 1}, []int{2, 3}, []float64{0, 1, 2, 3, 4, 5}},
		{[]int{1, 0}, []int{3, 2}, []float64{0, 3, 1, 4, 2, 5}},
		{nil, []int{}, []float64{15}},
	} {
		got := tbl.Marginal(tc.axes...)
		if diff := cmp.Diff(&Table{Dims: tc.wantDims, Probs: tc.wantProbs}, got, cmpopts.EquateEmpty()); diff != "" {
			t.Errorf("Marginal(%v) mismatch (-want +got):\n%s", tc.axes, diff)
		}
	}
}
