package fixture

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

const passwordAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// OffsetMode selects how far from the center a coordinate may land.
type OffsetMode string

const (
	// OffsetHalfRange draws each axis offset from [-spread/2, spread/2].
	OffsetHalfRange OffsetMode = "half"
	// OffsetFullRange draws each axis offset from [-spread, spread].
	OffsetFullRange OffsetMode = "full"
)

func ParseOffsetMode(s string) (OffsetMode, error) {
	switch OffsetMode(strings.ToLower(strings.TrimSpace(s))) {
	case OffsetHalfRange:
		return OffsetHalfRange, nil
	case OffsetFullRange:
		return OffsetFullRange, nil
	default:
		return "", fmt.Errorf("unknown offset mode %q (want half or full)", s)
	}
}

// Bound is the maximum absolute offset per axis for spread under mode.
func (m OffsetMode) Bound(spread float64) float64 {
	if m == OffsetFullRange {
		return spread
	}
	return spread / 2
}

var statusWeights = []domain.Status{
	domain.StatusPending,
	domain.StatusPending,
	domain.StatusPending,
	domain.StatusProcessing,
	domain.StatusCompleted,
}

// Generator produces randomized payload fields. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a generator; seed 0 picks a random seed.
func New(seed uint64) *Generator {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Int returns an integer uniformly in [min, max]; max < min yields min.
func (g *Generator) Int(min, max int) int {
	if max <= min {
		return min
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return min + g.rnd.IntN(max-min+1)
}

// Pick returns a uniform index in [0, n).
func (g *Generator) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return g.Int(0, n-1)
}

// Chance reports true with probability p.
func (g *Generator) Chance(p float64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Float64() < p
}

func (g *Generator) Coordinates(center domain.Point, spread float64, mode OffsetMode, precision int) domain.Point {
	bound := mode.Bound(math.Abs(spread))
	g.mu.Lock()
	latU, lonU := g.rnd.Float64(), g.rnd.Float64()
	g.mu.Unlock()

	return domain.Point{
		Latitude:  offset(center.Latitude, bound, latU, precision),
		Longitude: offset(center.Longitude, bound, lonU, precision),
	}
}

// offset draws a value in [center-bound, center+bound]. With precision >= 0
// the result is also a multiple of 10^-precision; when no such multiple lies
// in the band, center is returned unrounded.
func offset(center, bound, u float64, precision int) float64 {
	v := center + (2*u-1)*bound
	if precision < 0 {
		return math.Min(math.Max(v, center-bound), center+bound)
	}
	p := math.Pow(10, float64(precision))
	lo, hi := math.Ceil((center-bound)*p), math.Floor((center+bound)*p)
	if lo > hi {
		return center
	}
	return math.Min(math.Max(math.Round(v*p), lo), hi) / p
}

func (g *Generator) Password(n int) string {
	if n <= 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(n)
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := 0; i < n; i++ {
		b.WriteByte(passwordAlphabet[g.rnd.IntN(len(passwordAlphabet))])
	}
	return b.String()
}

// Status draws pending 3/5, processing 1/5, completed 1/5 of the time.
func (g *Generator) Status() domain.Status {
	return statusWeights[g.Pick(len(statusWeights))]
}
