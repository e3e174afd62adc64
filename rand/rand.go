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

// Package rand provides the sources of randomness used to encode reports and
// simulate populations.
//
// Clients encode with Secure(), which draws from crypto/rand. Simulations use
// NewSeeded so that a run can be reproduced bit for bit.
package rand

import (
	"bufio"
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math"
	"math/bits"
	mathrand "math/rand"
	"sync"

	log "github.com/golang/glog"
)

// Source is a stream of random values.
//
// Implementations are safe for concurrent use.
type Source interface {
	// U64 returns a uniformly random uint64.
	U64() uint64
	// Boolean returns true or false with equal probability.
	Boolean() bool
	// Bernoulli returns true with probability p.
	Bernoulli(p float64) bool
	// I63n returns an integer from {0,...,n-1} uniformly at random. n must be
	// positive.
	I63n(n int64) int64
	// Uniform returns a float64 from (0,1].
	Uniform() float64
	// Normal returns a standard normal float64.
	Normal() float64
}

// readerSource turns a stream of random bytes into a Source.
type readerSource struct {
	bufLock sync.Mutex
	buf     io.Reader

	bitLock sync.Mutex
	bitBuf  uint8
	bitPos  int8
}

func newReaderSource(r io.Reader) *readerSource {
	return &readerSource{buf: r, bitPos: math.MaxInt8}
}

var secure = newReaderSource(bufio.NewReaderSize(cryptorand.Reader, 65536))

// Secure returns the process-wide cryptographically secure Source.
func Secure() Source {
	return secure
}

// NewSeeded returns a deterministic Source: two sources built with the same
// seed return the same sequence of values. It must not be used to encode real
// reports.
func NewSeeded(seed int64) Source {
	return newReaderSource(mathrand.New(mathrand.NewSource(seed)))
}

func (s *readerSource) read(b []byte) {
	s.bufLock.Lock()
	defer s.bufLock.Unlock()
	if _, err := io.ReadFull(s.buf, b); err != nil {
		log.Fatalf("out of randomness, should never happen: %v", err)
	}
}

func (s *readerSource) U64() uint64 {
	var r [8]uint8
	s.read(r[:])
	return binary.LittleEndian.Uint64(r[:])
}

func (s *readerSource) u8() uint8 {
	var r [1]uint8
	s.read(r[:])
	return r[0]
}

func (s *readerSource) Boolean() bool {
	s.bitLock.Lock()
	defer s.bitLock.Unlock()
	if s.bitPos > 7 { // Out of random bits.
		s.bitBuf = s.u8()
		s.bitPos = 0
	}
	res := s.bitBuf&(1<<s.bitPos) > 0
	s.bitPos++
	return res
}

func (s *readerSource) Bernoulli(p float64) bool {
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	case p == 0.5:
		return s.Boolean()
	}
	return s.Uniform() <= p
}

func (s *readerSource) I63n(n int64) int64 {
	largestMultipleOfN := (math.MaxInt64 / n) * n
	for {
		// Draw random 64 bit sequence and set sign bit to 0.
		positiveRandomInteger := int64(s.U64()) & 0x7fffffffffffffff
		if positiveRandomInteger < largestMultipleOfN {
			return positiveRandomInteger % n
		}
	}
}

// Uniform returns a float64 from the interval (0,1] such that each float in
// the interval is returned with positive probability.
func (s *readerSource) Uniform() float64 {
	i := s.U64() % (1 << 53)
	r := (1 + float64(i)/(1<<53)) / math.Pow(2, s.geometric())
	if r == 0 {
		return 1
	}
	return r
}

// geometric counts the number of fair Bernoulli trials until the first
// success.
func (s *readerSource) geometric() float64 {
	// 1 plus the number of leading zeros from an infinite stream of random bits
	// follows the desired geometric distribution.
	b := 1
	var r uint8
	for r == 0 {
		r = s.u8()
		b += bits.LeadingZeros8(r)
	}
	return float64(b)
}

func (s *readerSource) Normal() float64 {
	return mathrand.New(int63Source{s}).NormFloat64()
}

// int63Source adapts a readerSource to math/rand.Source.
type int63Source struct {
	s *readerSource
}

// Int63 returns a uniformly random int64 in [0, 1<<63).
func (rs int63Source) Int63() int64 {
	return int64(rs.s.U64() & 0x7fffffffffffffff)
}

// Seed is a no-op.
func (rs int63Source) Seed(_ int64) {}

// Shuffle pseudo-randomizes the order of n elements using swap.
func Shuffle(src Source, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := int(src.I63n(int64(i + 1)))
		swap(i, j)
	}
}
