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

// Package noise implements the client side of randomized response: it turns a
// value into the k-bit report that a client sends.
//
// Encoding runs in two stages. The permanent randomized response (PRR)
// replaces each Bloom bit by a fair coin with probability f; it is a
// deterministic function of the client secret and the Bloom bits, so a client
// reporting the same value repeatedly always lands on the same PRR. The
// instantaneous randomized response (IRR) then reports each PRR bit as 1 with
// probability q if it is set and p otherwise, using fresh randomness.
package noise

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ananthr/rappor"
	"github.com/ananthr/rappor/checks"
	"github.com/ananthr/rappor/rand"
)

// Encoder encodes the values of a single client.
//
// Safe for concurrent use if its Source is.
type Encoder struct {
	params rappor.Params
	cohort int
	secret []byte
	src    rand.Source
}

// EncoderOptions contains the options necessary to initialize an Encoder.
type EncoderOptions struct {
	Params rappor.Params // Required.
	Cohort int           // Cohort of the client, in [0, Params.NumCohorts).
	// Secret keys the permanent randomized response. Required for f > 0.
	Secret []byte
	// Source of randomness for the instantaneous randomized response.
	// Defaults to rand.Secure().
	Source rand.Source
}

// NewEncoder returns an Encoder for one client.
func NewEncoder(opt *EncoderOptions) (*Encoder, error) {
	if opt == nil {
		opt = &EncoderOptions{}
	}
	if err := opt.Params.Validate(); err != nil {
		return nil, fmt.Errorf("noise.NewEncoder: %w", err)
	}
	if err := checks.CheckCohortIndex("noise.NewEncoder", opt.Cohort, opt.Params.NumCohorts); err != nil {
		return nil, err
	}
	if opt.Params.F > 0 && len(opt.Secret) == 0 {
		return nil, fmt.Errorf("noise.NewEncoder: Secret is empty, must be set when F (%f) > 0", opt.Params.F)
	}
	src := opt.Source
	if src == nil {
		src = rand.Secure()
	}
	return &Encoder{
		params: opt.Params,
		cohort: opt.Cohort,
		secret: append([]byte(nil), opt.Secret...),
		src:    src,
	}, nil
}

// Cohort returns the cohort of the client.
func (e *Encoder) Cohort() int {
	return e.cohort
}

// Encode hashes value into the cohort's Bloom filter and encodes the result.
func (e *Encoder) Encode(value string) rappor.Report {
	bits := make([]bool, e.params.NumBits)
	for _, b := range rappor.BloomBits(value, e.cohort, e.params.NumHashes, e.params.NumBits) {
		bits[b] = true
	}
	return e.mustEncodeBits(bits)
}

// EncodeCategory encodes category s of the basic scheme, where value s sets
// bit s only.
func (e *Encoder) EncodeCategory(s int) (rappor.Report, error) {
	if s < 0 || s >= e.params.NumBits {
		return rappor.Report{}, fmt.Errorf("noise.EncodeCategory: category is %d, must be within [0, %d)", s, e.params.NumBits)
	}
	bits := make([]bool, e.params.NumBits)
	bits[s] = true
	return e.mustEncodeBits(bits), nil
}

// EncodeBits encodes an arbitrary k-bit vector.
func (e *Encoder) EncodeBits(bits []bool) (rappor.Report, error) {
	if err := checks.CheckBitVectorLength("noise.EncodeBits", len(bits), e.params.NumBits); err != nil {
		return rappor.Report{}, fmt.Errorf("%w: %v", rappor.ErrShape, err)
	}
	return e.mustEncodeBits(bits), nil
}

func (e *Encoder) mustEncodeBits(bits []bool) rappor.Report {
	prr := e.PermanentResponse(bits)
	irr := make([]bool, len(prr))
	for i, b := range prr {
		if b {
			irr[i] = e.src.Bernoulli(e.params.Q)
		} else {
			irr[i] = e.src.Bernoulli(e.params.P)
		}
	}
	return rappor.Report{Cohort: e.cohort, Bits: irr}
}

// PermanentResponse returns the PRR of bits: each bit is replaced by a fair
// coin with probability f. Nothing is cached; the coins are derived from the
// secret, so the same secret and bits always yield the same result.
func (e *Encoder) PermanentResponse(bits []bool) []bool {
	uniform, fMask := prrMasks(e.secret, e.cohort, bits, e.params.F)
	prr := make([]bool, len(bits))
	for i, b := range bits {
		if fMask[i] {
			prr[i] = uniform[i]
		} else {
			prr[i] = b
		}
	}
	return prr
}

// prrMasks derives, for every bit, a fair coin and whether the bit is redrawn.
// Bit i consumes 8 bytes of the stream HMAC-SHA256(secret, block || cohort ||
// bits) for block = 0, 1, ...: the lowest bit is the coin, and the 64 bits
// read as a big-endian integer in units of 2^-64 are compared against f.
func prrMasks(secret []byte, cohort int, bits []bool, f float64) (uniform, fMask []bool) {
	const bytesPerBit = 8
	uniform = make([]bool, len(bits))
	fMask = make([]bool, len(bits))

	msg := make([]byte, 8+len(bits))
	binary.BigEndian.PutUint32(msg[4:8], uint32(cohort))
	for i, b := range bits {
		if b {
			msg[8+i] = 1
		}
	}
	threshold := f * math.Exp2(64)

	var digest []byte
	for i := range bits {
		off := (i * bytesPerBit) % sha256.Size
		if off == 0 {
			binary.BigEndian.PutUint32(msg[:4], uint32(i*bytesPerBit/sha256.Size))
			mac := hmac.New(sha256.New, secret)
			mac.Write(msg)
			digest = mac.Sum(digest[:0])
		}
		chunk := digest[off : off+bytesPerBit]
		uniform[i] = chunk[bytesPerBit-1]&0x01 == 1
		fMask[i] = float64(binary.BigEndian.Uint64(chunk)) < threshold
	}
	return uniform, fMask
}
