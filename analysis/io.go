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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/decode"
	"github.com/ananthr/rappor/em"
)

var paramsHeader = []string{"k", "h", "m", "p", "q", "f"}

// readCSV returns every record of a csv file. Records may have different
// numbers of fields.
func readCSV(inputFile string) ([][]string, error) {
	csvFile, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the csv file = %q, err = %v", inputFile, err)
	}
	defer csvFile.Close()

	r := csv.NewReader(csvFile)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var records [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("couldn't read the csv file = %q, err = %v", inputFile, err)
		}
		records = append(records, record)
	}
	return records, nil
}

// ReadParams reads the randomization parameters from a csv file holding the
// header "k,h,m,p,q,f" and a single row of values.
func ReadParams(inputFile string) (rappor.Params, error) {
	records, err := readCSV(inputFile)
	if err != nil {
		return rappor.Params{}, err
	}
	if len(records) != 2 || strings.Join(records[0], ",") != strings.Join(paramsHeader, ",") || len(records[1]) != len(paramsHeader) {
		return rappor.Params{}, fmt.Errorf("the csv file = %q has incorrect format, want the header %q and one row of values", inputFile, strings.Join(paramsHeader, ","))
	}
	row := records[1]
	ints := make([]int, 3)
	for i := range ints {
		if ints[i], err = strconv.Atoi(row[i]); err != nil {
			return rappor.Params{}, fmt.Errorf("couldn't read %s = %s as int in the csv file = %q, err = %v", paramsHeader[i], row[i], inputFile, err)
		}
	}
	probs := make([]float64, 3)
	for i := range probs {
		if probs[i], err = strconv.ParseFloat(row[3+i], 64); err != nil {
			return rappor.Params{}, fmt.Errorf("couldn't read %s = %s as float64 in the csv file = %q, err = %v", paramsHeader[3+i], row[3+i], inputFile, err)
		}
	}
	params := rappor.Params{
		NumBits:    ints[0],
		NumHashes:  ints[1],
		NumCohorts: ints[2],
		P:          probs[0],
		Q:          probs[1],
		F:          probs[2],
	}
	if err := params.Validate(); err != nil {
		return rappor.Params{}, fmt.Errorf("invalid parameters in the csv file = %q: %w", inputFile, err)
	}
	return params, nil
}

// ReadCounts reads aggregated bit counts: one row per cohort, in cohort
// order, holding the number of reports of the cohort followed by the count
// of every bit from bit 0 to bit k-1.
func ReadCounts(inputFile string, params rappor.Params) (*rappor.Counts, error) {
	records, err := readCSV(inputFile)
	if err != nil {
		return nil, err
	}
	if len(records) != params.NumCohorts {
		return nil, fmt.Errorf("the csv file = %q has %d rows, want one per cohort (%d): %w", inputFile, len(records), params.NumCohorts, rappor.ErrShape)
	}
	counts := rappor.NewCounts(params.NumCohorts, params.NumBits)
	for c, record := range records {
		if len(record) != params.NumBits+1 {
			return nil, fmt.Errorf("row %d of the csv file = %q has %d fields, want %d: %w", c+1, inputFile, len(record), params.NumBits+1, rappor.ErrShape)
		}
		for j, field := range record {
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("couldn't read count = %s as int64 in row %d of the csv file = %q, err = %v", field, c+1, inputFile, err)
			}
			if j == 0 {
				counts.Totals[c] = n
			} else {
				counts.Bits[c][j-1] = n
			}
		}
	}
	if err := counts.Check(params.NumCohorts, params.NumBits); err != nil {
		return nil, fmt.Errorf("the csv file = %q: %w", inputFile, err)
	}
	return counts, nil
}

// ReadMap reads a candidate map. Every row holds a candidate string followed
// by the 1-based positions of the bits it sets in the stacked layout, where
// position c·k+b+1 is bit b of cohort c.
func ReadMap(inputFile string, params rappor.Params) (*rappor.Map, error) {
	records, err := readCSV(inputFile)
	if err != nil {
		return nil, err
	}
	k, m := params.NumBits, params.NumCohorts
	candidates := make([]string, len(records))
	bits := make([][][]int, m)
	for c := range bits {
		bits[c] = make([][]int, len(records))
	}
	for s, record := range records {
		candidates[s] = record[0]
		for _, field := range record[1:] {
			idx, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("couldn't read the bit index = %s of candidate %q as int in the csv file = %q, err = %v", field, record[0], inputFile, err)
			}
			if idx < 1 || idx > m*k {
				return nil, fmt.Errorf("candidate %q sets bit %d in the csv file = %q, must be within [1, %d]: %w", record[0], idx, inputFile, m*k, rappor.ErrShape)
			}
			c, b := (idx-1)/k, (idx-1)%k
			bits[c][s] = append(bits[c][s], b)
		}
	}
	cm, err := rappor.NewMap(candidates, k, bits)
	if err != nil {
		return nil, fmt.Errorf("the csv file = %q: %w", inputFile, err)
	}
	return cm, nil
}

// ReadReports reads individual reports from a csv file with the header
// "cohort,bits". Cohorts are 0-based and bits are written highest index
// first.
func ReadReports(inputFile string, params rappor.Params) ([]rappor.Report, error) {
	records, err := readCSV(inputFile)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || strings.Join(records[0], ",") != "cohort,bits" {
		return nil, fmt.Errorf("the csv file = %q has incorrect format, want the header %q", inputFile, "cohort,bits")
	}
	reports := make([]rappor.Report, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != 2 {
			return nil, fmt.Errorf("row %d of the csv file = %q has %d fields, want 2", i+2, inputFile, len(record))
		}
		cohort, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, fmt.Errorf("couldn't read cohort = %s as int in the csv file = %q, err = %v", record[0], inputFile, err)
		}
		if strings.Trim(record[1], "01") != "" {
			return nil, fmt.Errorf("row %d of the csv file = %q has bits %q, want only '0' and '1'", i+2, inputFile, record[1])
		}
		r := rappor.NewReport(cohort, record[1])
		if err := r.Check(params.NumCohorts, params.NumBits); err != nil {
			return nil, fmt.Errorf("row %d of the csv file = %q: %w", i+2, inputFile, err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func writeCSV(outputFile string, records [][]string) error {
	csvFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("couldn't open the csv file = %q, err = %v", outputFile, err)
	}

	writer := csv.NewWriter(csvFile)
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("couldn't write to the csv file = %q, err = %v", outputFile, combineErrors(err, csvFile.Close()))
	}
	if err := csvFile.Close(); err != nil {
		return fmt.Errorf("couldn't close the csv file = %q, err = %v", outputFile, err)
	}
	return nil
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}

// WriteFit writes one row per candidate of a linear decoding, in candidate
// order.
func WriteFit(outputFile string, res *decode.Result) error {
	records := [][]string{{
		"string", "estimate", "std_error", "proportion", "prop_std_error",
		"prop_low_95", "prop_high_95", "z_score", "p_value", "adjusted_p_value", "significant",
	}}
	for _, row := range res.Rows {
		records = append(records, []string{
			row.String,
			formatFloat(row.Estimate),
			formatFloat(row.StdDev),
			formatFloat(row.Proportion),
			formatFloat(row.PropStdDev),
			formatFloat(row.Interval.LowerBound),
			formatFloat(row.Interval.UpperBound),
			formatFloat(row.ZScore),
			formatFloat(row.PValue),
			formatFloat(row.AdjustedPValue),
			strconv.FormatBool(row.Significant),
		})
	}
	return writeCSV(outputFile, records)
}

// WriteTable writes one row per cell of an EM fit: the label of the cell on
// every axis, its proportion and, if the variance was estimated, its
// standard deviation.
func WriteTable(outputFile string, res *em.Result) error {
	var header []string
	for a := range res.Labels {
		header = append(header, "var"+strconv.Itoa(a+1))
	}
	header = append(header, "proportion")
	sd := res.StdDev()
	if sd != nil {
		header = append(header, "std_error")
	}
	records := [][]string{header}
	coords := make([]int, len(res.Fit.Dims))
	for i, p := range res.Fit.Probs {
		coords = res.Fit.Coords(i, coords)
		record := make([]string, 0, len(header))
		for a, c := range coords {
			record = append(record, res.Labels[a][c])
		}
		record = append(record, formatFloat(p))
		if sd != nil {
			record = append(record, formatFloat(sd[i]))
		}
		records = append(records, record)
	}
	return writeCSV(outputFile, records)
}

func combineErrors(errors ...error) string {
	var nonNilErrors []error
	for _, err := range errors {
		if err != nil {
			nonNilErrors = append(nonNilErrors, err)
		}
	}
	return fmt.Sprintf("%+v", nonNilErrors)
}
