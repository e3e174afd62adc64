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

package rappor

import (
	"fmt"
	"sort"
)

// Matrix is a read-only boolean matrix. Candidate maps expose their per-cohort
// and stacked layouts through it, so estimators don't depend on a concrete
// sparse representation.
type Matrix interface {
	// Dims returns the number of rows and columns.
	Dims() (r, c int)
	// MulVec sets dst = M·x. len(x) must be c and len(dst) must be r.
	MulVec(dst, x []float64)
	// Col returns the ascending row indices set in column j. The returned
	// slice must not be modified.
	Col(j int) []int
	// Row returns the ascending column indices set in row i. The returned
	// slice must not be modified.
	Row(i int) []int
}

// sparseBool is a Matrix stored as both column and row index lists.
type sparseBool struct {
	rows, cols int
	colIdx     [][]int
	rowIdx     [][]int
}

// newSparseBool builds a rows × len(colIdx) matrix from the set rows of every
// column. Row indices are deduplicated and sorted.
func newSparseBool(rows int, colIdx [][]int) (*sparseBool, error) {
	m := &sparseBool{
		rows:   rows,
		cols:   len(colIdx),
		colIdx: make([][]int, len(colIdx)),
		rowIdx: make([][]int, rows),
	}
	for j, col := range colIdx {
		c := append([]int(nil), col...)
		sort.Ints(c)
		uniq := make([]int, 0, len(c))
		for _, r := range c {
			if r < 0 || r >= rows {
				return nil, shapeErrorf("column %d sets row %d, must be within [0, %d)", j, r, rows)
			}
			if n := len(uniq); n > 0 && uniq[n-1] == r {
				continue
			}
			uniq = append(uniq, r)
		}
		m.colIdx[j] = uniq
		for _, r := range uniq {
			m.rowIdx[r] = append(m.rowIdx[r], j)
		}
	}
	return m, nil
}

func (m *sparseBool) Dims() (int, int) {
	return m.rows, m.cols
}

func (m *sparseBool) MulVec(dst, x []float64) {
	if len(x) != m.cols || len(dst) != m.rows {
		panic(fmt.Sprintf("rappor: MulVec dimension mismatch: matrix is %d×%d, len(x)=%d, len(dst)=%d", m.rows, m.cols, len(x), len(dst)))
	}
	for i, row := range m.rowIdx {
		var s float64
		for _, j := range row {
			s += x[j]
		}
		dst[i] = s
	}
}

func (m *sparseBool) Col(j int) []int {
	return m.colIdx[j]
}

func (m *sparseBool) Row(i int) []int {
	return m.rowIdx[i]
}

// At reports whether the entry (i, j) of mat is set.
func At(mat Matrix, i, j int) bool {
	col := mat.Col(j)
	k := sort.SearchInts(col, i)
	return k < len(col) && col[k] == i
}
