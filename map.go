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
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/ananthr/rappor/checks"
)

// Map states which bits every known candidate string sets in every cohort.
//
// A Map is immutable once built and safe for concurrent use by several
// estimations.
type Map struct {
	candidates []string
	numBits    int
	cohorts    []*sparseBool // one k × n matrix per cohort
	stacked    *sparseBool   // (m·k) × n
}

// NewMap builds a Map from explicit bit positions: bits[c][s] lists the bits
// (in [0, numBits)) that candidate s sets in cohort c.
func NewMap(candidates []string, numBits int, bits [][][]int) (*Map, error) {
	if err := checks.CheckBloomBits("rappor.NewMap", numBits); err != nil {
		return nil, err
	}
	if err := checks.CheckCohorts("rappor.NewMap", len(bits)); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(candidates))
	for _, s := range candidates {
		if seen[s] {
			return nil, fmt.Errorf("rappor.NewMap: candidate %q appears more than once", s)
		}
		seen[s] = true
	}
	m := &Map{
		candidates: append([]string(nil), candidates...),
		numBits:    numBits,
		cohorts:    make([]*sparseBool, len(bits)),
	}
	stackedCols := make([][]int, len(candidates))
	for c, cols := range bits {
		if len(cols) != len(candidates) {
			return nil, shapeErrorf("cohort %d lists bits for %d candidates, want %d", c, len(cols), len(candidates))
		}
		cm, err := newSparseBool(numBits, cols)
		if err != nil {
			return nil, fmt.Errorf("rappor.NewMap: cohort %d: %w", c, err)
		}
		m.cohorts[c] = cm
		for s := range candidates {
			for _, b := range cm.Col(s) {
				stackedCols[s] = append(stackedCols[s], c*numBits+b)
			}
		}
	}
	stacked, err := newSparseBool(len(bits)*numBits, stackedCols)
	if err != nil {
		return nil, err
	}
	m.stacked = stacked
	return m, nil
}

// NewBasicMap returns the map of the basic scheme, where candidate s is
// reported as bit s in every cohort.
func NewBasicMap(candidates []string, numCohorts int) (*Map, error) {
	bits := make([][][]int, numCohorts)
	for c := range bits {
		bits[c] = make([][]int, len(candidates))
		for s := range candidates {
			bits[c][s] = []int{s}
		}
	}
	return NewMap(candidates, len(candidates), bits)
}

// NewBloomMap hashes every candidate into a Bloom filter of every cohort
// using the parameters' k, h and m.
func NewBloomMap(candidates []string, params Params) (*Map, error) {
	if err := checks.CheckBloomBits("rappor.NewBloomMap", params.NumBits); err != nil {
		return nil, err
	}
	if err := checks.CheckHashes("rappor.NewBloomMap", params.NumHashes); err != nil {
		return nil, err
	}
	if err := checks.CheckCohorts("rappor.NewBloomMap", params.NumCohorts); err != nil {
		return nil, err
	}
	bits := make([][][]int, params.NumCohorts)
	for c := range bits {
		bits[c] = make([][]int, len(candidates))
		for s, value := range candidates {
			bits[c][s] = BloomBits(value, c, params.NumHashes, params.NumBits)
		}
	}
	return NewMap(candidates, params.NumBits, bits)
}

// BloomBits returns the bits that value sets in the Bloom filter of cohort.
// The i-th bit is byte i of MD5(bigEndian32(cohort) || value), modulo
// numBits. Colliding hashes yield fewer than numHashes distinct bits.
func BloomBits(value string, cohort, numHashes, numBits int) []int {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(cohort))
	digest := md5.Sum(append(prefix[:], value...))
	bits := make([]int, 0, numHashes)
	for i := 0; i < numHashes && i < len(digest); i++ {
		bits = append(bits, int(digest[i])%numBits)
	}
	return bits
}

// Candidates returns a copy of the candidate strings, in column order.
func (m *Map) Candidates() []string {
	return append([]string(nil), m.candidates...)
}

// NumCandidates returns the number of candidate strings n.
func (m *Map) NumCandidates() int {
	return len(m.candidates)
}

// NumBits returns k.
func (m *Map) NumBits() int {
	return m.numBits
}

// NumCohorts returns m.
func (m *Map) NumCohorts() int {
	return len(m.cohorts)
}

// Cohort returns the k × n matrix of cohort c.
func (m *Map) Cohort(c int) Matrix {
	return m.cohorts[c]
}

// Stacked returns the (m·k) × n vertical concatenation of all cohorts.
// Row c·k+b is bit b of cohort c.
func (m *Map) Stacked() Matrix {
	return m.stacked
}

// Check returns an error wrapping ErrShape if the map does not have k bits
// and m cohorts.
func (m *Map) Check(params Params) error {
	if m.numBits != params.NumBits {
		return shapeErrorf("map has %d bits per cohort, params have k=%d", m.numBits, params.NumBits)
	}
	if len(m.cohorts) != params.NumCohorts {
		return shapeErrorf("map has %d cohorts, params have m=%d", len(m.cohorts), params.NumCohorts)
	}
	return nil
}
