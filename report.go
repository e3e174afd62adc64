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
	"strings"

	"github.com/ananthr/rappor/checks"
)

// Report is a single randomized bit vector together with the cohort it was
// generated under. Cohorts are numbered from 0 to NumCohorts-1.
type Report struct {
	Cohort int
	Bits   []bool
}

// NewReport returns a Report from a string of '0' and '1' characters, most
// significant (highest index) bit first, as written by RAPPOR clients.
func NewReport(cohort int, bits string) Report {
	b := make([]bool, len(bits))
	for i := range bits {
		b[len(bits)-1-i] = bits[i] == '1'
	}
	return Report{Cohort: cohort, Bits: b}
}

// String returns the bits of r, highest index first.
func (r Report) String() string {
	var sb strings.Builder
	for i := len(r.Bits) - 1; i >= 0; i-- {
		if r.Bits[i] {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Check returns an error wrapping ErrShape if r is not a k-bit report of one
// of m cohorts.
func (r Report) Check(m, k int) error {
	if err := checks.CheckCohortIndex("rappor.Report", r.Cohort, m); err != nil {
		return shapeErrorf("%v", err)
	}
	if err := checks.CheckBitVectorLength("rappor.Report", len(r.Bits), k); err != nil {
		return shapeErrorf("%v", err)
	}
	return nil
}

// Counts holds the per-cohort number of reports and, for every cohort and
// bit, the number of reports with that bit set.
type Counts struct {
	// Totals[c] is the number of reports in cohort c.
	Totals []int64
	// Bits[c][b] is the number of reports in cohort c with bit b set.
	Bits [][]int64
}

// NewCounts returns zeroed counts for m cohorts of k bits.
func NewCounts(m, k int) *Counts {
	c := &Counts{
		Totals: make([]int64, m),
		Bits:   make([][]int64, m),
	}
	for i := range c.Bits {
		c.Bits[i] = make([]int64, k)
	}
	return c
}

// NumCohorts returns m.
func (c *Counts) NumCohorts() int {
	return len(c.Totals)
}

// NumBits returns k, or 0 if there are no cohorts.
func (c *Counts) NumBits() int {
	if len(c.Bits) == 0 {
		return 0
	}
	return len(c.Bits[0])
}

// Total returns the number of reports over all cohorts.
func (c *Counts) Total() int64 {
	var n int64
	for _, t := range c.Totals {
		n += t
	}
	return n
}

// Check returns an error wrapping ErrShape if c is not an m × k matrix, or if
// a bit count is negative or exceeds the number of reports of its cohort.
func (c *Counts) Check(m, k int) error {
	if len(c.Totals) != m || len(c.Bits) != m {
		return shapeErrorf("counts have %d totals and %d cohort rows, want %d", len(c.Totals), len(c.Bits), m)
	}
	for cohort, row := range c.Bits {
		if len(row) != k {
			return shapeErrorf("cohort %d has %d bit counts, want %d", cohort, len(row), k)
		}
		if c.Totals[cohort] < 0 {
			return shapeErrorf("cohort %d has %d reports, cannot be negative", cohort, c.Totals[cohort])
		}
		for b, n := range row {
			if n < 0 || n > c.Totals[cohort] {
				return shapeErrorf("cohort %d bit %d has count %d, must be within [0, %d]", cohort, b, n, c.Totals[cohort])
			}
		}
	}
	return nil
}
