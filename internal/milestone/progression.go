// Package milestone detects when a numeric signal crosses a new threshold
// from a p×10^k sequence and remembers the last announced threshold per key.
package milestone

import (
	"fmt"
	"math"
)

// Progression is an ascending set of leading digits in [1, 10). The candidate
// thresholds are every p×10^k for p in the progression and integer k.
type Progression []float64

var (
	// Default yields …, 10, 20, 50, 100, 200, 500, …
	Default = Progression{1, 2, 5}
	// EveryDigit yields one threshold per leading digit: …, 80, 90, 100, 200, …
	EveryDigit = Progression{1, 2, 3, 4, 5, 6, 7, 8, 9}
)

// Validate checks the progression is non-empty, ascending and within [1, 10).
func (p Progression) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("empty progression")
	}
	for i, v := range p {
		if v < 1 || v >= 10 {
			return fmt.Errorf("progression step %v out of [1, 10)", v)
		}
		if i > 0 && v <= p[i-1] {
			return fmt.Errorf("progression not strictly ascending at %v", v)
		}
	}
	return nil
}

// Previous returns the largest candidate that is <= x. For x <= 0 it returns
// the first step of the progression.
func (p Progression) Previous(x float64) float64 {
	if x <= 0 {
		return p[0]
	}
	k := decade(x)
	for j := len(p) - 1; j >= 0; j-- {
		if c := p[j] * math.Pow10(k); c <= x {
			return c
		}
	}
	return p[len(p)-1] * math.Pow10(k-1)
}

// Next returns the smallest candidate strictly greater than x. For x <= 0 it
// returns the first step of the progression.
func (p Progression) Next(x float64) float64 {
	if x <= 0 {
		return p[0]
	}
	k := decade(x)
	for _, step := range p {
		if c := step * math.Pow10(k); c > x {
			return c
		}
	}
	return p[0] * math.Pow10(k+1)
}

// Contains reports whether v is a member of the candidate sequence.
func (p Progression) Contains(v float64) bool {
	if v <= 0 {
		return false
	}
	return p.Previous(v) == v
}

// decade returns k such that 10^k <= x < 10^(k+1), correcting for
// floating point error in log10 at exact powers of ten.
func decade(x float64) int {
	k := int(math.Floor(math.Log10(x)))
	if math.Pow10(k+1) <= x {
		k++
	}
	if math.Pow10(k) > x {
		k--
	}
	return k
}
