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

// Package rappor contains the data model shared by the RAPPOR estimators:
// randomization parameters, reports, per-cohort bit counts and candidate maps.
//
// Respondents encode a true value into a k-bit Bloom filter (or a one-hot
// vector in the basic scheme) that depends on their cohort, and then report a
// randomized version of it. The analyzer only sees the randomized reports (or
// their per-cohort bit counts) and a map telling which bits each known
// candidate string sets in each cohort.
package rappor

import (
	"fmt"
	"math"

	"github.com/ananthr/rappor/checks"
)

// Params holds the encoding parameters of a RAPPOR collection.
//
// A bit of the Bloom filter is first passed through the permanent randomized
// response (PRR): with probability F it is replaced by a fair coin, otherwise
// it is kept. The PRR bit is then passed through the instantaneous randomized
// response (IRR): a 1 is reported with probability Q if the PRR bit is 1, and
// with probability P if it is 0.
type Params struct {
	NumBits    int     // k: bits per cohort Bloom filter, or number of categories in the basic scheme.
	NumHashes  int     // h: hash functions per string. Not used by decoding.
	NumCohorts int     // m: number of cohorts.
	P          float64 // Probability that a 0 bit is reported as 1.
	Q          float64 // Probability that a 1 bit is reported as 1.
	F          float64 // Probability that a bit is redrawn by the permanent randomized response.
}

func (p Params) String() string {
	return fmt.Sprintf("Params(k=%d, h=%d, m=%d, p=%g, q=%g, f=%g)",
		p.NumBits, p.NumHashes, p.NumCohorts, p.P, p.Q, p.F)
}

// Validate returns an error if the parameters are out of range. If the
// randomized response channel cannot be inverted the error wraps
// ErrDegenerateChannel.
func (p Params) Validate() error {
	const label = "rappor.Params"
	if err := checks.CheckBloomBits(label, p.NumBits); err != nil {
		return err
	}
	if err := checks.CheckHashes(label, p.NumHashes); err != nil {
		return err
	}
	if err := checks.CheckCohorts(label, p.NumCohorts); err != nil {
		return err
	}
	for _, prob := range []struct {
		name  string
		value float64
	}{{"P", p.P}, {"Q", p.Q}, {"F", p.F}} {
		if err := checks.CheckProbability(label, prob.name, prob.value); err != nil {
			return err
		}
	}
	if err := checks.CheckChannel(label, p.P, p.Q, p.F); err != nil {
		return fmt.Errorf("%w: %v", ErrDegenerateChannel, err)
	}
	return nil
}

// Channel returns the end-to-end randomized response channel of the
// parameters.
func (p Params) Channel() Channel {
	return Channel{
		PStar: (1-p.F/2)*p.P + p.F/2*p.Q,
		QStar: (1-p.F/2)*p.Q + p.F/2*p.P,
	}
}

// Channel is the composition of the permanent and the instantaneous
// randomized response, seen as a binary channel from a true Bloom bit to a
// reported bit.
type Channel struct {
	// PStar is the probability that a true 0 is reported as 1.
	PStar float64
	// QStar is the probability that a true 1 is reported as 1.
	QStar float64
}

// Gain returns QStar - PStar, i.e. (1-f)(q-p).
func (c Channel) Gain() float64 {
	return c.QStar - c.PStar
}

// ObservedRate returns the expected rate of reported 1s for a bit that is
// truly set with probability trueRate.
func (c Channel) ObservedRate(trueRate float64) float64 {
	return c.PStar + trueRate*c.Gain()
}

// TrueRate inverts ObservedRate. The result is an unbiased estimate of the
// rate of true 1s and is not clamped to [0, 1].
func (c Channel) TrueRate(observedRate float64) float64 {
	return (observedRate - c.PStar) / c.Gain()
}

// TrueRateVariance returns the variance that the channel adds to TrueRate
// when n reports, a trueRate share of which carry a true 1, are observed. The
// population itself is held fixed, so a noise-free channel has variance 0.
func (c Channel) TrueRateVariance(trueRate float64, n int64) float64 {
	t := math.Min(1, math.Max(0, trueRate))
	g := c.Gain()
	perReport := t*c.QStar*(1-c.QStar) + (1-t)*c.PStar*(1-c.PStar)
	return perReport / (float64(n) * g * g)
}

// BitProb returns P(reported bit | true bit).
func (c Channel) BitProb(reported, truth bool) float64 {
	var one float64
	if truth {
		one = c.QStar
	} else {
		one = c.PStar
	}
	if reported {
		return one
	}
	return 1 - one
}
