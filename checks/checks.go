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

// Package checks contains argument checks for the RAPPOR estimators.
package checks

import (
	"fmt"
	"math"

	log "github.com/golang/glog"
)

// maxHashes is the number of hash functions a single MD5 digest can feed.
const maxHashes = 16

// CheckProbability returns an error if prob is NaN or outside [0, 1].
func CheckProbability(label, name string, prob float64) error {
	if math.IsNaN(prob) || prob < 0 || prob > 1 {
		return fmt.Errorf("%s: %s is %f, must be within [0, 1]", label, name, prob)
	}
	return nil
}

// CheckBloomBits returns an error if k is nonpositive.
func CheckBloomBits(label string, k int) error {
	if k <= 0 {
		return fmt.Errorf("%s: NumBits (k) is %d, must be strictly positive", label, k)
	}
	return nil
}

// CheckHashes returns an error if h is negative or larger than what a single
// MD5 digest can supply.
func CheckHashes(label string, h int) error {
	if h < 0 {
		return fmt.Errorf("%s: NumHashes (h) is %d, cannot be negative", label, h)
	}
	if h > maxHashes {
		return fmt.Errorf("%s: NumHashes (h) is %d, must be at most %d", label, h, maxHashes)
	}
	return nil
}

// CheckCohorts returns an error if m is nonpositive.
func CheckCohorts(label string, m int) error {
	if m <= 0 {
		return fmt.Errorf("%s: NumCohorts (m) is %d, must be strictly positive", label, m)
	}
	return nil
}

// CheckCohortIndex returns an error if cohort does not lie in [0, m).
func CheckCohortIndex(label string, cohort, m int) error {
	if cohort < 0 || cohort >= m {
		return fmt.Errorf("%s: cohort is %d, must be within [0, %d)", label, cohort, m)
	}
	return nil
}

// CheckChannel returns an error if the randomized response channel with the
// given p, q and f cannot be inverted, i.e. if q <= p or f == 1.
func CheckChannel(label string, p, q, f float64) error {
	if q <= p {
		return fmt.Errorf("%s: q is %f and p is %f, q must be strictly larger than p", label, q, p)
	}
	if f >= 1 {
		return fmt.Errorf("%s: f is %f, must be strictly less than 1", label, f)
	}
	if f > 0.9 {
		log.Warningf("%s: f is %f, the permanent randomized response leaves very little signal", label, f)
	}
	return nil
}

// CheckAlpha returns an error if the supplied alpha is not between 0 and 1.
func CheckAlpha(label string, alpha float64) error {
	if alpha <= 0 || alpha >= 1 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return fmt.Errorf("%s: Alpha is %f, must be within (0, 1) and finite", label, alpha)
	}
	return nil
}

// CheckMaxIterations returns an error if maxIterations is nonpositive.
func CheckMaxIterations(label string, maxIterations int) error {
	if maxIterations <= 0 {
		return fmt.Errorf("%s: MaxIterations is %d, must be strictly positive", label, maxIterations)
	}
	return nil
}

// CheckTolerance returns an error if tolerance is nonpositive, NaN or +∞.
func CheckTolerance(label string, tolerance float64) error {
	if tolerance <= 0 || math.IsNaN(tolerance) || math.IsInf(tolerance, 0) {
		return fmt.Errorf("%s: Tolerance is %e, must be strictly positive and finite", label, tolerance)
	}
	return nil
}

// CheckBitVectorLength returns an error if a report has got bits set in a
// layout of a different length than k.
func CheckBitVectorLength(label string, got, k int) error {
	if got != k {
		return fmt.Errorf("%s: bit vector has length %d, want %d", label, got, k)
	}
	return nil
}
