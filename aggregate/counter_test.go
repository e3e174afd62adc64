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

package aggregate

import (
	"errors"
	"testing"

	"github.com/ananthr/rappor"
	"github.com/google/go-cmp/cmp"
)

func testReports() []rappor.Report {
	return []rappor.Report{
		rappor.NewReport(0, "0011"),
		rappor.NewReport(0, "0110"),
		rappor.NewReport(1, "1000"),
		rappor.NewReport(2, "1111"),
		rappor.NewReport(2, "0001"),
	}
}

func TestCounts(t *testing.T) {
	got, err := Counts(testReports(), 3, 4)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	want := &rappor.Counts{
		Totals: []int64{2, 1, 2},
		Bits: [][]int64{
			{1, 2, 1, 0},
			{0, 0, 0, 1},
			{2, 1, 1, 1},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCountsRejectsBadReports(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		reports []rappor.Report
	}{
		{"bit vector too long", []rappor.Report{rappor.NewReport(0, "00110")}},
		{"bit vector too short", []rappor.Report{rappor.NewReport(0, "011")}},
		{"cohort out of range", []rappor.Report{rappor.NewReport(3, "0011")}},
		{"negative cohort", []rappor.Report{rappor.NewReport(-1, "0011")}},
	} {
		if _, err := Counts(tc.reports, 3, 4); !errors.Is(err, rappor.ErrShape) {
			t.Errorf("Counts: when %s got err %v, want ErrShape", tc.desc, err)
		}
	}
}

func TestCountsEmpty(t *testing.T) {
	got, err := Counts(nil, 2, 3)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if diff := cmp.Diff(rappor.NewCounts(2, 3), got); diff != "" {
		t.Errorf("Counts(nil) mismatch (-want +got):\n%s", diff)
	}
}

func newTestCounter(t *testing.T) *Counter {
	t.Helper()
	c, err := NewCounter(&CounterOptions{NumCohorts: 3, NumBits: 4})
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	return c
}

func TestNewCounterValidation(t *testing.T) {
	for _, tc := range []struct {
		desc string
		opt  *CounterOptions
	}{
		{"nil options", nil},
		{"zero cohorts", &CounterOptions{NumCohorts: 0, NumBits: 4}},
		{"zero bits", &CounterOptions{NumCohorts: 3, NumBits: 0}},
	} {
		if _, err := NewCounter(tc.opt); err == nil {
			t.Errorf("NewCounter: when %s got nil error", tc.desc)
		}
	}
}

func TestCounterMerge(t *testing.T) {
	reports := testReports()
	c1, c2 := newTestCounter(t), newTestCounter(t)
	for _, r := range reports[:2] {
		if err := c1.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for _, r := range reports[2:] {
		if err := c2.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if err := c1.Merge(c2); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if c2.state != merged {
		t.Errorf("Merge: c2 state got %v, want Merged", c2.state)
	}
	got, err := c1.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	want, err := Counts(reports, 3, 4)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCounterMergeIncompatible(t *testing.T) {
	c1 := newTestCounter(t)
	c2, err := NewCounter(&CounterOptions{NumCohorts: 3, NumBits: 5})
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	if err := c1.Merge(c2); !errors.Is(err, rappor.ErrShape) {
		t.Errorf("Merge: got err %v, want ErrShape", err)
	}
}

// Tests that Add, Merge, Result and GobEncode return errors correctly with
// different Counter states.
func TestCounterStateChecks(t *testing.T) {
	for _, tc := range []struct {
		state   aggregationState
		wantErr bool
	}{
		{defaultState, false},
		{merged, true},
		{serialized, true},
		{resultReturned, true},
	} {
		c := newTestCounter(t)
		c.state = tc.state
		if err := c.Add(rappor.NewReport(0, "0001")); (err != nil) != tc.wantErr {
			t.Errorf("Add: when state %v for err got %v, wantErr %t", tc.state, err, tc.wantErr)
		}

		c1, c2 := newTestCounter(t), newTestCounter(t)
		c1.state = tc.state
		if err := c1.Merge(c2); (err != nil) != tc.wantErr {
			t.Errorf("Merge: when c1 state %v for err got %v, wantErr %t", tc.state, err, tc.wantErr)
		}
		c1, c2 = newTestCounter(t), newTestCounter(t)
		c2.state = tc.state
		if err := c1.Merge(c2); (err != nil) != tc.wantErr {
			t.Errorf("Merge: when c2 state %v for err got %v, wantErr %t", tc.state, err, tc.wantErr)
		}

		c = newTestCounter(t)
		c.state = tc.state
		if _, err := c.GobEncode(); (err != nil) != tc.wantErr {
			t.Errorf("GobEncode: when state %v for err got %v, wantErr %t", tc.state, err, tc.wantErr)
		}

		c = newTestCounter(t)
		c.state = tc.state
		if _, err := c.Result(); (err != nil) != tc.wantErr {
			t.Errorf("Result: when state %v for err got %v, wantErr %t", tc.state, err, tc.wantErr)
		}
	}
}

// Tests that serialization for Counter works as expected.
func TestCounterSerialization(t *testing.T) {
	c := newTestCounter(t)
	for _, r := range testReports() {
		if err := c.Add(r); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	bytes, err := encode(c)
	if err != nil {
		t.Fatalf("encode(Counter) error: %v", err)
	}
	if c.state != serialized {
		t.Errorf("Counter should have its state set to Serialized, got %v", c.state)
	}
	decoded := new(Counter)
	if err := decode(decoded, bytes); err != nil {
		t.Fatalf("decode(Counter) error: %v", err)
	}
	got, err := decoded.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	want, err := Counts(testReports(), 3, 4)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("decode(encode(_)) mismatch (-want +got):\n%s", diff)
	}
}
