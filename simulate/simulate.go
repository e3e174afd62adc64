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

// Package simulate generates synthetic populations and their encoded
// reports, to check estimators against a known ground truth.
//
// All functions draw from an explicit rand.Source; a seeded source makes a
// whole simulation reproducible.
package simulate

import (
	"encoding/binary"
	"fmt"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/noise"
	"github.com/ananthr/rappor/rand"
	log "github.com/golang/glog"
)

// Population returns numClients values, candidates[i] appearing exactly
// ExactCounts(dist.Probs(n), numClients)[i] times. Values are shuffled with
// src, or grouped by candidate if src is nil. An explicit distribution must
// hold one weight per candidate.
func Population(candidates []string, dist Distribution, numClients int, src rand.Source) ([]string, error) {
	if d, ok := dist.(explicit); ok && len(d.weights) != len(candidates) {
		return nil, fmt.Errorf("simulate.Population: %d weights for %d candidates: %w", len(d.weights), len(candidates), rappor.ErrDimensionMismatch)
	}
	counts := ExactCounts(dist.Probs(len(candidates)), numClients)
	values := make([]string, 0, numClients)
	for i, c := range counts {
		for j := 0; j < c; j++ {
			values = append(values, candidates[i])
		}
	}
	if src != nil {
		rand.Shuffle(src, len(values), func(i, j int) { values[i], values[j] = values[j], values[i] })
	}
	return values, nil
}

// Tuple is one joint value of several variables.
type Tuple []string

// JointPopulation returns, for every variable, the values of numClients
// respondents whose joint values follow weights over tuples exactly. values[v][i]
// is the value of variable v for respondent i.
func JointPopulation(tuples []Tuple, weights []float64, numClients int, src rand.Source) ([][]string, error) {
	if len(tuples) == 0 || len(tuples) != len(weights) {
		return nil, fmt.Errorf("simulate.JointPopulation: %d tuples and %d weights, want the same positive number", len(tuples), len(weights))
	}
	numVars := len(tuples[0])
	for i, t := range tuples {
		if len(t) != numVars {
			return nil, fmt.Errorf("simulate.JointPopulation: tuple %d has %d values, want %d: %w", i, len(t), numVars, rappor.ErrDimensionMismatch)
		}
	}
	counts := ExactCounts(Explicit(weights).Probs(len(weights)), numClients)
	order := make([]int, 0, numClients)
	for i, c := range counts {
		for j := 0; j < c; j++ {
			order = append(order, i)
		}
	}
	if src != nil {
		rand.Shuffle(src, len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	values := make([][]string, numVars)
	for v := range values {
		values[v] = make([]string, numClients)
		for i, t := range order {
			values[v][i] = tuples[t][v]
		}
	}
	return values, nil
}

// AssignCohorts draws a uniform cohort in [0, m) for each of numClients
// clients. With a nil src cohorts are assigned round robin.
func AssignCohorts(numClients, m int, src rand.Source) []int {
	cohorts := make([]int, numClients)
	for i := range cohorts {
		if src == nil {
			cohorts[i] = i % m
		} else {
			cohorts[i] = int(src.I63n(int64(m)))
		}
	}
	return cohorts
}

// Encode encodes values[i] for a client in cohorts[i]. Every client gets its
// own secret, drawn from src, which also drives the instantaneous noise.
func Encode(values []string, cohorts []int, params rappor.Params, src rand.Source) ([]rappor.Report, error) {
	return encode(len(values), cohorts, params, src, func(e *noise.Encoder, i int) (rappor.Report, error) {
		return e.Encode(values[i]), nil
	})
}

// EncodeCategories encodes category values[i] of the basic scheme for a
// client in cohorts[i].
func EncodeCategories(values []int, cohorts []int, params rappor.Params, src rand.Source) ([]rappor.Report, error) {
	return encode(len(values), cohorts, params, src, func(e *noise.Encoder, i int) (rappor.Report, error) {
		return e.EncodeCategory(values[i])
	})
}

func encode(n int, cohorts []int, params rappor.Params, src rand.Source, fn func(*noise.Encoder, int) (rappor.Report, error)) ([]rappor.Report, error) {
	if len(cohorts) != n {
		return nil, fmt.Errorf("simulate: %d values and %d cohorts: %w", n, len(cohorts), rappor.ErrShape)
	}
	reports := make([]rappor.Report, n)
	for i := range reports {
		secret := make([]byte, 16)
		binary.BigEndian.PutUint64(secret, src.U64())
		binary.BigEndian.PutUint64(secret[8:], src.U64())
		e, err := noise.NewEncoder(&noise.EncoderOptions{
			Params: params,
			Cohort: cohorts[i],
			Secret: secret,
			Source: src,
		})
		if err != nil {
			return nil, fmt.Errorf("simulate: client %d: %w", i, err)
		}
		if reports[i], err = fn(e, i); err != nil {
			return nil, fmt.Errorf("simulate: client %d: %w", i, err)
		}
	}
	log.V(1).Infof("simulate: encoded %d reports with %v", n, params)
	return reports, nil
}

// Simulation is a single-variable population together with its reports.
type Simulation struct {
	Params     rappor.Params
	Candidates []string
	// Truth[i] is the share of clients holding Candidates[i].
	Truth   []float64
	Values  []string
	Cohorts []int
	Reports []rappor.Report
}

// Options configures Run.
type Options struct {
	Params       rappor.Params // Required.
	Candidates   []string      // Required.
	Distribution Distribution  // Defaults to Uniform.
	NumClients   int           // Required.
	// Seed of the source of randomness used throughout the simulation.
	Seed int64
}

// Run draws a population, assigns cohorts and encodes the reports.
func Run(opt *Options) (*Simulation, error) {
	if opt == nil || opt.NumClients <= 0 || len(opt.Candidates) == 0 {
		return nil, fmt.Errorf("simulate.Run: NumClients and Candidates are required")
	}
	if err := opt.Params.Validate(); err != nil {
		return nil, fmt.Errorf("simulate.Run: %w", err)
	}
	dist := opt.Distribution
	if dist == nil {
		dist = Uniform()
	}
	src := rand.NewSeeded(opt.Seed)
	values, err := Population(opt.Candidates, dist, opt.NumClients, src)
	if err != nil {
		return nil, err
	}
	sim := &Simulation{
		Params:     opt.Params,
		Candidates: append([]string(nil), opt.Candidates...),
		Values:     values,
		Cohorts:    AssignCohorts(opt.NumClients, opt.Params.NumCohorts, src),
	}
	counts := make(map[string]int)
	for _, v := range sim.Values {
		counts[v]++
	}
	sim.Truth = make([]float64, len(sim.Candidates))
	for i, c := range sim.Candidates {
		sim.Truth[i] = float64(counts[c]) / float64(opt.NumClients)
	}
	reports, err := Encode(sim.Values, sim.Cohorts, opt.Params, src)
	if err != nil {
		return nil, err
	}
	sim.Reports = reports
	return sim, nil
}
