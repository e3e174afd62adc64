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
	"errors"
	"fmt"
)

// Errors returned by the estimators. They abort the call with no partial
// output; use errors.Is to tell them apart.
var (
	// ErrDegenerateChannel is returned when the randomized response channel
	// cannot be inverted (q <= p, or f == 1).
	ErrDegenerateChannel = errors.New("degenerate randomized response channel")
	// ErrShape is returned when a bit vector, cohort index or map does not
	// have the dimensions implied by the parameters.
	ErrShape = errors.New("shape mismatch")
	// ErrDimensionMismatch is returned when the number of variables implied by
	// the different inputs of a joint estimation differ.
	ErrDimensionMismatch = errors.New("dimension mismatch")
)

// WarningKind is an enum type. Its values are the non-fatal numerical-quality
// conditions that an estimator can attach to its result.
type WarningKind int

// Kinds of warnings attached to estimator results.
const (
	// ConvergenceWarning means the EM iteration cap was reached before the
	// joint table stopped changing.
	ConvergenceWarning WarningKind = iota
	// DataSparsityWarning means a cohort, cell or report had zero or near-zero
	// support, making some ratio unstable or undefined.
	DataSparsityWarning
)

var warningKindName = map[WarningKind]string{
	ConvergenceWarning:  "ConvergenceWarning",
	DataSparsityWarning: "DataSparsityWarning",
}

func (k WarningKind) String() string {
	if name, ok := warningKindName[k]; ok {
		return name
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// Warning is a non-fatal condition attached to an estimate.
type Warning struct {
	Kind    WarningKind
	Message string
}

func (w Warning) String() string {
	return w.Kind.String() + ": " + w.Message
}

// HasWarning reports whether any of warnings is of the given kind.
func HasWarning(warnings []Warning, kind WarningKind) bool {
	for _, w := range warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func shapeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrShape, fmt.Sprintf(format, args...))
}
