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

// Package aggregate reduces randomized reports into per-cohort bit counts.
package aggregate

import (
	"fmt"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/checks"
	log "github.com/golang/glog"
)

// Counts returns, for every cohort c and bit b, the number of reports of
// cohort c with bit b set, along with the number of reports per cohort.
//
// It returns an error wrapping rappor.ErrShape if a report is not a k-bit
// vector or its cohort does not lie in [0, m).
func Counts(reports []rappor.Report, m, k int) (*rappor.Counts, error) {
	c, err := NewCounter(&CounterOptions{NumCohorts: m, NumBits: k})
	if err != nil {
		return nil, err
	}
	for i, r := range reports {
		if err := c.Add(r); err != nil {
			return nil, fmt.Errorf("aggregate.Counts: report %d: %w", i, err)
		}
	}
	return c.Result()
}

// Counter accumulates reports into rappor.Counts.
//
// Partial counters built over disjoint sets of reports (e.g. reports that were
// collected separately) can be combined with Merge. A Counter returns its
// result once.
//
// Not thread-safe.
type Counter struct {
	// Parameters
	numCohorts int
	numBits    int

	// State variables
	counts *rappor.Counts
	state  aggregationState
}

// CounterOptions contains the options necessary to initialize a Counter.
type CounterOptions struct {
	NumCohorts int // Number of cohorts m. Required.
	NumBits    int // Number of bits k per report. Required.
}

// NewCounter returns a new Counter with all counts at 0.
func NewCounter(opt *CounterOptions) (*Counter, error) {
	if opt == nil {
		opt = &CounterOptions{}
	}
	if err := checks.CheckCohorts("aggregate.NewCounter", opt.NumCohorts); err != nil {
		return nil, err
	}
	if err := checks.CheckBloomBits("aggregate.NewCounter", opt.NumBits); err != nil {
		return nil, err
	}
	return &Counter{
		numCohorts: opt.NumCohorts,
		numBits:    opt.NumBits,
		counts:     rappor.NewCounts(opt.NumCohorts, opt.NumBits),
		state:      defaultState,
	}, nil
}

// Add counts a single report.
func (c *Counter) Add(r rappor.Report) error {
	if c.state != defaultState {
		return fmt.Errorf("Counter cannot be amended: %v", c.state.errorMessage())
	}
	if err := r.Check(c.numCohorts, c.numBits); err != nil {
		return err
	}
	c.counts.Totals[r.Cohort]++
	row := c.counts.Bits[r.Cohort]
	for b, set := range r.Bits {
		if set {
			row[b]++
		}
	}
	return nil
}

// Merge merges c2 into c (i.e., adds to c all reports that were added to c2).
// c2 is consumed by this operation: it may not be used after it is merged
// into c.
func (c *Counter) Merge(c2 *Counter) error {
	if err := checkMergeCounter(c, c2); err != nil {
		return err
	}
	for cohort := range c.counts.Totals {
		c.counts.Totals[cohort] += c2.counts.Totals[cohort]
		for b := range c.counts.Bits[cohort] {
			c.counts.Bits[cohort][b] += c2.counts.Bits[cohort][b]
		}
	}
	c2.state = merged
	return nil
}

func checkMergeCounter(c1, c2 *Counter) error {
	if c1.state != defaultState {
		return fmt.Errorf("checkMergeCounter: c1 cannot be merged with another Counter instance: %v", c1.state.errorMessage())
	}
	if c2.state != defaultState {
		return fmt.Errorf("checkMergeCounter: c2 cannot be merged with another Counter instance: %v", c2.state.errorMessage())
	}
	if c1.numCohorts != c2.numCohorts || c1.numBits != c2.numBits {
		return fmt.Errorf("checkMergeCounter: c1 (m=%d, k=%d) and c2 (m=%d, k=%d) are not compatible: %w",
			c1.numCohorts, c1.numBits, c2.numCohorts, c2.numBits, rappor.ErrShape)
	}
	return nil
}

// Result returns the accumulated counts. The method can be called only once.
func (c *Counter) Result() (*rappor.Counts, error) {
	if c.state != defaultState {
		return nil, fmt.Errorf("Counts cannot be computed: %v", c.state.errorMessage())
	}
	c.state = resultReturned
	for cohort, n := range c.counts.Totals {
		if n == 0 {
			log.V(1).Infof("aggregate: cohort %d received no reports", cohort)
		}
	}
	return c.counts, nil
}

// encodableCounter can be encoded by the gob package.
type encodableCounter struct {
	NumCohorts int
	NumBits    int
	Totals     []int64
	Bits       [][]int64
}

// GobEncode encodes Counter.
func (c *Counter) GobEncode() ([]byte, error) {
	if c.state != defaultState {
		return nil, fmt.Errorf("Counter object cannot be serialized: %v", c.state.errorMessage())
	}
	enc := encodableCounter{
		NumCohorts: c.numCohorts,
		NumBits:    c.numBits,
		Totals:     c.counts.Totals,
		Bits:       c.counts.Bits,
	}
	c.state = serialized
	return encode(enc)
}

// GobDecode decodes Counter.
func (c *Counter) GobDecode(data []byte) error {
	var enc encodableCounter
	if err := decode(&enc, data); err != nil {
		log.Errorf("GobDecode: couldn't decode Counter from bytes")
		return err
	}
	counts := &rappor.Counts{Totals: enc.Totals, Bits: enc.Bits}
	if err := counts.Check(enc.NumCohorts, enc.NumBits); err != nil {
		return fmt.Errorf("GobDecode: %w", err)
	}
	*c = Counter{
		numCohorts: enc.NumCohorts,
		numBits:    enc.NumBits,
		counts:     counts,
		state:      defaultState,
	}
	return nil
}
