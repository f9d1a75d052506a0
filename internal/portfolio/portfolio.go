package portfolio

import (
	"math/rand"
)

// Lookup supplies user-specific holding quantities. Market data never
// carries holdings; they come from an external portfolio store or stay
// at zero. The interface keeps that collaborator optional.
type Lookup interface {
	Units(symbol string) int
}

// Null reports no holdings for any symbol.
type Null struct{}

func (Null) Units(string) int { return 0 }

// Simulated returns a bounded random holding per symbol, stable within
// one run. Demo deployments use it in place of a real portfolio store.
type Simulated struct {
	Max int
	rng *rand.Rand

	memo map[string]int
}

func NewSimulated(rng *rand.Rand, max int) *Simulated {
	if max <= 0 {
		max = 100
	}
	return &Simulated{Max: max, rng: rng, memo: make(map[string]int)}
}

func (s *Simulated) Units(symbol string) int {
	if u, ok := s.memo[symbol]; ok {
		return u
	}
	u := 1 + s.rng.Intn(s.Max)
	s.memo[symbol] = u
	return u
}
