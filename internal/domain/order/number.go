package order

import (
	"math/rand/v2"
	"strconv"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

const (
	// NumberPrefix starts every order number.
	NumberPrefix = "MAC-"

	// widenAfter is the attempt index from which candidates use the wide range.
	widenAfter = 32
	// prefilterSkips bounds how many bloom hits are skipped per candidate.
	prefilterSkips = 8
)

// NumberSource produces order number candidates. Next is given the zero-based
// attempt index for the current order so implementations can widen their
// range after repeated collisions. Issued records a number known to be taken.
type NumberSource interface {
	Next(attempt int) string
	Issued(number string)
}

// NumberGenerator issues MAC-NNNNN numbers, widening to seven digits after
// widenAfter collisions. A bloom filter of issued numbers lets it skip
// candidates that are probably taken before they reach the store; the store
// remains the authority on uniqueness.
type NumberGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	issued *bloom.BloomFilter
}

var _ NumberSource = (*NumberGenerator)(nil)

// NewNumberGenerator returns a generator sized for about a million orders.
func NewNumberGenerator() *NumberGenerator {
	return NewNumberGeneratorWithSeed(rand.Uint64(), rand.Uint64())
}

// NewNumberGeneratorWithSeed returns a deterministic generator.
func NewNumberGeneratorWithSeed(seed1, seed2 uint64) *NumberGenerator {
	return &NumberGenerator{
		rng:    rand.New(rand.NewPCG(seed1, seed2)),
		issued: bloom.NewWithEstimates(1_000_000, 0.001),
	}
}

// Next returns a candidate that the filter has not seen, if one turns up
// within prefilterSkips draws.
func (g *NumberGenerator) Next(attempt int) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	candidate := g.draw(attempt)
	for i := 0; i < prefilterSkips && g.issued.TestString(candidate); i++ {
		candidate = g.draw(attempt)
	}
	return candidate
}

// Issued adds number to the filter.
func (g *NumberGenerator) Issued(number string) {
	g.mu.Lock()
	g.issued.AddString(number)
	g.mu.Unlock()
}

func (g *NumberGenerator) draw(attempt int) string {
	if attempt < widenAfter {
		return NumberPrefix + strconv.Itoa(10_000+g.rng.IntN(90_000))
	}
	return NumberPrefix + strconv.Itoa(1_000_000+g.rng.IntN(9_000_000))
}
