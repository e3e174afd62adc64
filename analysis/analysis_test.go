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

package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/decode"
	"github.com/ananthr/rappor/em"
	"github.com/google/go-cmp/cmp"
)

const noiseFreeParams = "k,h,m,p,q,f\n2,1,2,0,1,0\n"

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
	return path
}

func TestReadParams(t *testing.T) {
	dir := t.TempDir()
	got, err := ReadParams(writeFile(t, dir, "params.csv", "k,h,m,p,q,f\n16,2,64,0.25,0.75,0.5\n"))
	if err != nil {
		t.Fatalf("ReadParams: %v", err)
	}
	want := rappor.Params{NumBits: 16, NumHashes: 2, NumCohorts: 64, P: 0.25, Q: 0.75, F: 0.5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadParams mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		desc     string
		contents string
	}{
		{"no header", "16,2,64,0.25,0.75,0.5\n"},
		{"wrong header", "k,h,m,p,q\n16,2,64,0.25,0.75\n"},
		{"two rows", "k,h,m,p,q,f\n16,2,64,0.25,0.75,0.5\n16,2,64,0.25,0.75,0.5\n"},
		{"non-integer k", "k,h,m,p,q,f\nsixteen,2,64,0.25,0.75,0.5\n"},
		{"non-numeric p", "k,h,m,p,q,f\n16,2,64,low,0.75,0.5\n"},
		{"probability above 1", "k,h,m,p,q,f\n16,2,64,0.25,1.5,0.5\n"},
	} {
		if _, err := ReadParams(writeFile(t, dir, "bad.csv", tc.contents)); err == nil {
			t.Errorf("ReadParams with %s: got nil error", tc.desc)
		}
	}
	if _, err := ReadParams(writeFile(t, dir, "degenerate.csv", "k,h,m,p,q,f\n16,2,64,0.5,0.5,0\n")); !errors.Is(err, rappor.ErrDegenerateChannel) {
		t.Errorf("ReadParams with p = q: got error %v, want %v", err, rappor.ErrDegenerateChannel)
	}
	if _, err := ReadParams(filepath.Join(dir, "missing.csv")); err == nil {
		t.Errorf("ReadParams of a missing file: got nil error")
	}
}

func TestReadCounts(t *testing.T) {
	dir := t.TempDir()
	params := rappor.Params{NumBits: 2, NumHashes: 1, NumCohorts: 2, P: 0, Q: 1, F: 0}
	got, err := ReadCounts(writeFile(t, dir, "counts.csv", "10,3,7\n5,0,5\n"), params)
	if err != nil {
		t.Fatalf("ReadCounts: %v", err)
	}
	want := &rappor.Counts{Totals: []int64{10, 5}, Bits: [][]int64{{3, 7}, {0, 5}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadCounts mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		desc      string
		contents  string
		wantShape bool
	}{
		{"missing cohort", "10,3,7\n", true},
		{"missing bit", "10,3\n5,0,5\n", true},
		{"bit count above total", "10,3,11\n5,0,5\n", true},
		{"non-integer count", "10,3,x\n5,0,5\n", false},
	} {
		_, err := ReadCounts(writeFile(t, dir, "bad.csv", tc.contents), params)
		if err == nil {
			t.Errorf("ReadCounts with %s: got nil error", tc.desc)
			continue
		}
		if tc.wantShape && !errors.Is(err, rappor.ErrShape) {
			t.Errorf("ReadCounts with %s: got error %v, want %v", tc.desc, err, rappor.ErrShape)
		}
	}
}

func TestReadMap(t *testing.T) {
	dir := t.TempDir()
	params := rappor.Params{NumBits: 4, NumHashes: 2, NumCohorts: 2, P: 0, Q: 1, F: 0}
	got, err := ReadMap(writeFile(t, dir, "map.csv", "apple,1,3,6\nbanana,2,8\n"), params)
	if err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if diff := cmp.Diff([]string{"apple", "banana"}, got.Candidates()); diff != "" {
		t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
	}
	for _, tc := range []struct {
		cohort, candidate int
		want              []int
	}{
		{0, 0, []int{0, 2}},
		{1, 0, []int{1}},
		{0, 1, []int{1}},
		{1, 1, []int{3}},
	} {
		if diff := cmp.Diff(tc.want, got.Cohort(tc.cohort).Col(tc.candidate)); diff != "" {
			t.Errorf("bits of candidate %d in cohort %d mismatch (-want +got):\n%s", tc.candidate, tc.cohort, diff)
		}
	}

	if _, err := ReadMap(writeFile(t, dir, "bad.csv", "apple,9\n"), params); !errors.Is(err, rappor.ErrShape) {
		t.Errorf("ReadMap with a bit out of range: got error %v, want %v", err, rappor.ErrShape)
	}
	if _, err := ReadMap(writeFile(t, dir, "bad.csv", "apple,1\napple,2\n"), params); err == nil {
		t.Errorf("ReadMap with a duplicate candidate: got nil error")
	}
}

func TestReadReports(t *testing.T) {
	dir := t.TempDir()
	params := rappor.Params{NumBits: 4, NumHashes: 2, NumCohorts: 2, P: 0, Q: 1, F: 0}
	got, err := ReadReports(writeFile(t, dir, "reports.csv", "cohort,bits\n0,0011\n1,1000\n"), params)
	if err != nil {
		t.Fatalf("ReadReports: %v", err)
	}
	want := []rappor.Report{rappor.NewReport(0, "0011"), rappor.NewReport(1, "1000")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ReadReports mismatch (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		desc     string
		contents string
	}{
		{"no header", "0,0011\n"},
		{"short report", "cohort,bits\n0,011\n"},
		{"cohort out of range", "cohort,bits\n2,0011\n"},
		{"bad bit", "cohort,bits\n0,0021\n"},
		{"extra field", "cohort,bits\n0,0011,1\n"},
	} {
		if _, err := ReadReports(writeFile(t, dir, "bad.csv", tc.contents), params); err == nil {
			t.Errorf("ReadReports with %s: got nil error", tc.desc)
		}
	}
}

func readRecords(t *testing.T, path string) [][]string {
	t.Helper()
	records, err := readCSV(path)
	if err != nil {
		t.Fatalf("readCSV(%q): %v", path, err)
	}
	return records
}

func TestRunDist(t *testing.T) {
	dir := t.TempDir()
	opt := &DistOptions{
		ParamsFile: writeFile(t, dir, "params.csv", noiseFreeParams),
		CountsFile: writeFile(t, dir, "counts.csv", "50,25,25\n50,25,25\n"),
		MapFile:    writeFile(t, dir, "map.csv", "v1,1,3\nv2,2,4\n"),
		OutputFile: filepath.Join(dir, "fit.csv"),
		ChartFile:  filepath.Join(dir, "fit.svg"),
		Decode:     decode.Options{Correction: decode.Bonferroni()},
	}
	res, err := RunDist(opt)
	if err != nil {
		t.Fatalf("RunDist: %v", err)
	}
	if res.Summary.NumDetected != 2 {
		t.Errorf("NumDetected = %d, want 2", res.Summary.NumDetected)
	}
	records := readRecords(t, opt.OutputFile)
	if len(records) != 3 {
		t.Fatalf("got %d records in the output, want a header and 2 rows", len(records))
	}
	for _, record := range records[1:] {
		if record[3] != "0.5" || record[len(record)-1] != "true" {
			t.Errorf("got output row %v, want proportion 0.5 and significant", record)
		}
	}
	if _, err := os.Stat(opt.ChartFile); err != nil {
		t.Errorf("chart was not written: %v", err)
	}
}

func TestRunDistMissingInput(t *testing.T) {
	dir := t.TempDir()
	_, err := RunDist(&DistOptions{
		ParamsFile: writeFile(t, dir, "params.csv", noiseFreeParams),
		CountsFile: filepath.Join(dir, "missing.csv"),
		MapFile:    writeFile(t, dir, "map.csv", "v1,1,3\nv2,2,4\n"),
		OutputFile: filepath.Join(dir, "fit.csv"),
	})
	if err == nil {
		t.Errorf("RunDist with a missing counts file: got nil error")
	}
}

func TestRunAssoc(t *testing.T) {
	dir := t.TempDir()
	reports := "cohort,bits\n0,01\n1,01\n0,10\n1,10\n"
	opt := &AssocOptions{
		ParamsFile: writeFile(t, dir, "params.csv", noiseFreeParams),
		ReportFiles: []string{
			writeFile(t, dir, "reports1.csv", reports),
			writeFile(t, dir, "reports2.csv", reports),
		},
		MapFiles: []string{
			writeFile(t, dir, "map1.csv", "x,1,3\ny,2,4\n"),
			writeFile(t, dir, "map2.csv", "u,1,3\nv,2,4\n"),
		},
		OutputFile: filepath.Join(dir, "joint.csv"),
		ChartFile:  filepath.Join(dir, "joint.svg"),
		EM:         em.Options{IgnoreOther: true, EstimateVar: true},
	}
	res, err := RunAssoc(context.Background(), opt)
	if err != nil {
		t.Fatalf("RunAssoc: %v", err)
	}
	if diff := cmp.Diff([]float64{0.5, 0, 0, 0.5}, res.Fit.Probs); diff != "" {
		t.Errorf("Fit mismatch (-want +got):\n%s", diff)
	}
	records := readRecords(t, opt.OutputFile)
	want := [][]string{
		{"var1", "var2", "proportion", "std_error"},
		{"x", "u", "0.5"},
		{"x", "v", "0"},
		{"y", "u", "0"},
		{"y", "v", "0.5"},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records in the output, want %d", len(records), len(want))
	}
	if diff := cmp.Diff(want[0], records[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	for i, w := range want[1:] {
		if diff := cmp.Diff(w, records[i+1][:3]); diff != "" {
			t.Errorf("row %d mismatch (-want +got):\n%s", i+1, diff)
		}
	}
	if _, err := os.Stat(opt.ChartFile); err != nil {
		t.Errorf("chart was not written: %v", err)
	}
}

func TestRunAssocErrors(t *testing.T) {
	dir := t.TempDir()
	params := writeFile(t, dir, "params.csv", noiseFreeParams)
	reports := writeFile(t, dir, "reports.csv", "cohort,bits\n0,01\n")
	m := writeFile(t, dir, "map.csv", "x,1,3\ny,2,4\n")

	_, err := RunAssoc(context.Background(), &AssocOptions{
		ParamsFile:  params,
		ReportFiles: []string{reports},
		MapFiles:    []string{m, m},
		OutputFile:  filepath.Join(dir, "joint.csv"),
	})
	if !errors.Is(err, rappor.ErrDimensionMismatch) {
		t.Errorf("RunAssoc with more maps than report files: got error %v, want %v", err, rappor.ErrDimensionMismatch)
	}

	_, err = RunAssoc(context.Background(), &AssocOptions{
		ParamsFile:  params,
		ReportFiles: []string{reports, filepath.Join(dir, "missing.csv")},
		MapFiles:    []string{m, m},
		OutputFile:  filepath.Join(dir, "joint.csv"),
	})
	if err == nil {
		t.Errorf("RunAssoc with a missing report file: got nil error")
	}
}

func TestDrawDistributionValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chart.svg")
	if err := DrawDistribution(path, "t", []string{"a"}, []float64{0.5, 0.5}, nil); err == nil {
		t.Errorf("DrawDistribution with mismatched labels: got nil error")
	}
	if err := DrawDistribution(path, "t", []string{"a", "b"}, []float64{0.5, 0.5}, []float64{0.1}); err == nil {
		t.Errorf("DrawDistribution with mismatched standard deviations: got nil error")
	}
}
