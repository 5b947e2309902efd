package order

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	shortNumber = regexp.MustCompile(`^MAC-[1-9]\d{4}$`)
	wideNumber  = regexp.MustCompile(`^MAC-[1-9]\d{6}$`)
)

func TestNumberGenerator_Format(t *testing.T) {
	g := NewNumberGeneratorWithSeed(1, 2)

	for attempt := 0; attempt < widenAfter; attempt++ {
		assert.Regexp(t, shortNumber, g.Next(attempt))
	}
	for attempt := widenAfter; attempt < maxNumberAttempts; attempt++ {
		assert.Regexp(t, wideNumber, g.Next(attempt))
	}
}

func TestNumberGenerator_SkipsIssued(t *testing.T) {
	g := NewNumberGeneratorWithSeed(3, 4)

	issued := make(map[string]bool)
	for len(issued) < 1000 {
		n := g.Next(0)
		issued[n] = true
		g.Issued(n)
	}

	for range 500 {
		assert.False(t, issued[g.Next(0)])
	}
}

func TestNumberGenerator_Deterministic(t *testing.T) {
	a := NewNumberGeneratorWithSeed(7, 7)
	b := NewNumberGeneratorWithSeed(7, 7)

	for range 10 {
		assert.Equal(t, a.Next(0), b.Next(0))
	}
}
