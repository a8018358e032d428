// pkg/rand/rand.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package rand

import (
	"sync"
	"time"

	"github.com/MichaelTJones/pcg"
)

///////////////////////////////////////////////////////////////////////////
// Random numbers.

// Rand is a PCG32 generator. A Rand is not safe for concurrent use; each
// goroutine that needs random numbers should have its own, typically
// created with Make().
type Rand struct {
	r *pcg.PCG32
}

func New() *Rand {
	return &Rand{r: pcg.NewPCG32()}
}

// Make returns a new generator seeded from the global generator, so that
// a single call to Seed makes an entire run reproducible.
func Make() *Rand {
	r := New()
	r.Seed(int64(Uint64()))
	return r
}

func (r *Rand) Seed(s int64) {
	r.r.Seed(uint64(s), 0xda3e39cb94b95bdb)
}

// Intn returns a uniformly distributed value in [0,n).
func (r *Rand) Intn(n int) int {
	return int(r.r.Bounded(uint32(n)))
}

// Float64 returns a value in [0,1).
func (r *Rand) Float64() float64 {
	return float64(r.r.Random()) / (1 << 32)
}

func (r *Rand) Uint32() uint32 {
	return r.r.Random()
}

func (r *Rand) Uint64() uint64 {
	return uint64(r.r.Random())<<32 | uint64(r.r.Random())
}

// Duration returns a duration uniformly distributed in [lo, hi) at
// millisecond granularity; hi must be greater than lo.
func (r *Rand) Duration(lo, hi time.Duration) time.Duration {
	ms := int((hi - lo) / time.Millisecond)
	return lo + time.Duration(r.Intn(ms))*time.Millisecond
}

// IntnExcept returns a uniformly distributed value in [0,n) that is not
// equal to except; n must be at least 2 if except is in range.
func (r *Rand) IntnExcept(n, except int) int {
	if except < 0 || except >= n {
		return r.Intn(n)
	}
	v := r.Intn(n - 1)
	if v >= except {
		v++
	}
	return v
}

// Global generator, protected by a mutex since the simulation's
// goroutines share it.
var (
	mu sync.Mutex
	r  *Rand
)

func init() {
	r = New()
	r.Seed(time.Now().UnixNano())
}

func Seed(s int64) {
	mu.Lock()
	defer mu.Unlock()
	r.Seed(s)
}

func Intn(n int) int {
	mu.Lock()
	defer mu.Unlock()
	return r.Intn(n)
}

func Float64() float64 {
	mu.Lock()
	defer mu.Unlock()
	return r.Float64()
}

func Uint64() uint64 {
	mu.Lock()
	defer mu.Unlock()
	return r.Uint64()
}
