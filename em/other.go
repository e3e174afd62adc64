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
	"math"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/aggregate"
	"github.com/ananthr/rappor/decode"
	log "github.com/golang/glog"
)

// unexplainedMass is the share of reports below which the other category is
// considered empty and its bits are modelled as fair coins.
const unexplainedMass = 1e-6

// otherRates estimates, for every cohort and bit, the probability that the
// Bloom filter of a value outside the map has that bit set.
//
// The known candidates are decoded linearly; what remains of each de-noised
// bit rate once their contribution is removed is attributed to the other
// category and rescaled by its share.
func otherRates(reports []rappor.Report, m *rappor.Map, params rappor.Params) ([][]float64, error) {
	counts, err := aggregate.Counts(reports, m.NumCohorts(), m.NumBits())
	if err != nil {
		return nil, err
	}
	fit, err := decode.Decode(counts, m, params, &decode.Options{Correction: decode.None()})
	if err != nil {
		return nil, fmt.Errorf("decoding known candidates: %w", err)
	}
	known := make([]float64, m.NumCandidates())
	var mass float64
	for s, row := range fit.Rows {
		if row.Proportion > 0 {
			known[s] = row.Proportion
			mass += row.Proportion
		}
	}
	k := m.NumBits()
	explained := make([]float64, m.NumCohorts()*k)
	m.Stacked().MulVec(explained, known)
	ch := params.Channel()
	rates := make([][]float64, m.NumCohorts())
	for c := range rates {
		rates[c] = make([]float64, k)
		n := counts.Totals[c]
		if n == 0 || 1-mass < unexplainedMass {
			for b := range rates[c] {
				rates[c][b] = 0.5
			}
			continue
		}
		for b := range rates[c] {
			t := ch.TrueRate(float64(counts.Bits[c][b]) / float64(n))
			rates[c][b] = math.Min(1, math.Max(0, (t-explained[c*k+b])/(1-mass)))
		}
	}
	log.V(2).Infof("em: known candidates explain %.4f of the reports", mass)
	return rates, nil
}
