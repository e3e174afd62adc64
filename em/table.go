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

	"gonum.org/v1/gonum/floats"
)

// Table is a dense probability table over the cross product of several
// categorical variables. Cells are stored row-major: the last axis varies
// fastest.
type Table struct {
	Dims  []int
	Probs []float64
}

// NewTable returns a table of zeros with the given axis sizes.
func NewTable(dims ...int) *Table {
	size := 1
	for _, d := range dims {
		size *= d
	}
	return &Table{Dims: append([]int(nil), dims...), Probs: make([]float64, size)}
}

// Len returns the number of cells.
func (t *Table) Len() int {
	return len(t.Probs)
}

// Index returns the flat index of the cell at coords.
func (t *Table) Index(coords ...int) int {
	if len(coords) != len(t.Dims) {
		panic(fmt.Sprintf("em: Index got %d coordinates for a %d-dimensional table", len(coords), len(t.Dims)))
	}
	i := 0
	for a, c := range coords {
		if c < 0 || c >= t.Dims[a] {
			panic(fmt.Sprintf("em: coordinate %d of axis %d is out of range [0, %d)", c, a, t.Dims[a]))
		}
		i = i*t.Dims[a] + c
	}
	return i
}

// Coords writes the coordinates of flat index i into dst, which is grown if
// needed, and returns it.
func (t *Table) Coords(i int, dst []int) []int {
	if cap(dst) < len(t.Dims) {
		dst = make([]int, len(t.Dims))
	}
	dst = dst[:len(t.Dims)]
	for a := len(t.Dims) - 1; a >= 0; a-- {
		dst[a] = i % t.Dims[a]
		i /= t.Dims[a]
	}
	return dst
}

// At returns the probability of the cell at coords.
func (t *Table) At(coords ...int) float64 {
	return t.Probs[t.Index(coords...)]
}

// Sum returns the total probability.
func (t *Table) Sum() float64 {
	return floats.Sum(t.Probs)
}

// Marginal sums t over every axis not listed in axes. The axes of the result
// follow the order of axes.
func (t *Table) Marginal(axes ...int) *Table {
	dims := make([]int, len(axes))
	for i, a := range axes {
		dims[i] = t.Dims[a]
	}
	out := NewTable(dims...)
	proj := t.projection(axes)
	for i, p := range t.Probs {
		out.Probs[proj[i]] += p
	}
	return out
}

// projection maps every cell of t to its cell in the marginal over axes.
func (t *Table) projection(axes []int) []int {
	dims := make([]int, len(axes))
	for i, a := range axes {
		dims[i] = t.Dims[a]
	}
	marginal := &Table{Dims: dims}
	proj := make([]int, len(t.Probs))
	coords := make([]int, len(t.Dims))
	sub := make([]int, len(axes))
	for i := range t.Probs {
		coords = t.Coords(i, coords)
		for j, a := range axes {
			sub[j] = coords[a]
		}
		proj[i] = marginal.Index(sub...)
	}
	return proj
}
