package fixture

import (
	"math"
	"strings"
	"testing"

	"github.com/IBA-HOK/CoCoIRU/internal/domain"
)

var nagoya = domain.Point{Latitude: 35.1814, Longitude: 136.9063}

func TestCoordinatesStayInBand(t *testing.T) {
	g := New(1)
	cases := []struct {
		mode      OffsetMode
		precision int
		bound     float64
	}{
		{mode: OffsetHalfRange, precision: -1, bound: 0.05},
		{mode: OffsetHalfRange, precision: 5, bound: 0.05},
		{mode: OffsetFullRange, precision: -1, bound: 0.1},
		{mode: OffsetFullRange, precision: 5, bound: 0.1},
	}
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			for i := 0; i < 20000; i++ {
				p := g.Coordinates(nagoya, 0.1, tc.mode, tc.precision)
				if math.Abs(p.Latitude-nagoya.Latitude) > tc.bound+1e-12 {
					t.Fatalf("lat=%v outside ±%v", p.Latitude, tc.bound)
				}
				if math.Abs(p.Longitude-nagoya.Longitude) > tc.bound+1e-12 {
					t.Fatalf("lon=%v outside ±%v", p.Longitude, tc.bound)
				}
			}
		})
	}
}

func TestCoordinatesNagoyaScenario(t *testing.T) {
	g := New(7)
	for i := 0; i < 10000; i++ {
		p := g.Coordinates(nagoya, 0.1, OffsetHalfRange, -1)
		if p.Latitude < 35.1314-1e-9 || p.Latitude > 35.2314+1e-9 {
			t.Fatalf("lat=%v", p.Latitude)
		}
		if p.Longitude < 136.8563-1e-9 || p.Longitude > 136.9563+1e-9 {
			t.Fatalf("lon=%v", p.Longitude)
		}
	}
}

func TestCoordinatesPrecision(t *testing.T) {
	g := New(3)
	p := g.Coordinates(nagoya, 0.1, OffsetFullRange, 5)
	scaled := p.Latitude * 1e5
	if math.Abs(scaled-math.Round(scaled)) > 1e-6 {
		t.Fatalf("lat=%v not rounded to 5 places", p.Latitude)
	}
}

func TestOffsetRoundsInsideBand(t *testing.T) {
	onGrid := func(v float64, precision int) bool {
		p := math.Pow(10, float64(precision))
		return math.Round(v*p)/p == v
	}
	cases := []struct {
		name   string
		center float64
		bound  float64
		u      float64
		want   float64
	}{
		{name: "upper edge rounds down", center: 35.1858, bound: 0.05, u: 1, want: 35.23},
		{name: "lower edge rounds up", center: 35.1842, bound: 0.05, u: 0, want: 35.14},
		{name: "interior", center: 35.18, bound: 0.05, u: 0.5, want: 35.18},
		{name: "band narrower than grid", center: 35.1858, bound: 0.001, u: 1, want: 35.1858},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := offset(tc.center, tc.bound, tc.u, 2)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("offset=%v want %v", got, tc.want)
			}
			if math.Abs(got-tc.center) > tc.bound+1e-12 {
				t.Fatalf("offset=%v outside ±%v", got, tc.bound)
			}
		})
	}

	g := New(5)
	for i := 0; i < 20000; i++ {
		p := g.Coordinates(domain.Point{Latitude: 35.1858, Longitude: 136.9063}, 0.1, OffsetHalfRange, 3)
		if !onGrid(p.Latitude, 3) || !onGrid(p.Longitude, 3) {
			t.Fatalf("point %+v not rounded to 3 places", p)
		}
		if math.Abs(p.Latitude-35.1858) > 0.05+1e-12 || math.Abs(p.Longitude-136.9063) > 0.05+1e-12 {
			t.Fatalf("point %+v outside band", p)
		}
	}
}

func TestPasswordAlphabetAndLength(t *testing.T) {
	g := New(0)
	for _, n := range []int{0, 1, 8, 12, 64} {
		pw := g.Password(n)
		if len(pw) != n {
			t.Fatalf("len=%d want %d", len(pw), n)
		}
		for _, r := range pw {
			if !strings.ContainsRune(passwordAlphabet, r) {
				t.Fatalf("unexpected rune %q in %q", r, pw)
			}
		}
	}
}

func TestIntInclusiveBounds(t *testing.T) {
	g := New(11)
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		v := g.Int(1, 3)
		if v < 1 || v > 3 {
			t.Fatalf("v=%d", v)
		}
		seen[v] = true
	}
	if len(seen) != 3 {
		t.Fatalf("seen=%v", seen)
	}
	if got := g.Int(5, 5); got != 5 {
		t.Fatalf("Int(5,5)=%d", got)
	}
	if got := g.Int(9, 2); got != 9 {
		t.Fatalf("Int(9,2)=%d", got)
	}
}

func TestStatusConvergesToWeights(t *testing.T) {
	g := New(42)
	const trials = 50000
	counts := map[domain.Status]int{}
	for i := 0; i < trials; i++ {
		counts[g.Status()]++
	}
	want := map[domain.Status]float64{
		domain.StatusPending:    0.6,
		domain.StatusProcessing: 0.2,
		domain.StatusCompleted:  0.2,
	}
	if len(counts) != len(want) {
		t.Fatalf("unexpected statuses: %v", counts)
	}
	for s, w := range want {
		got := float64(counts[s]) / trials
		if math.Abs(got-w) > 0.02 {
			t.Fatalf("status %s share=%.3f want ~%.1f", s, got, w)
		}
	}
}

func TestSeededGeneratorsAreDeterministic(t *testing.T) {
	a, b := New(99), New(99)
	for i := 0; i < 50; i++ {
		if a.Password(8) != b.Password(8) {
			t.Fatalf("diverged at %d", i)
		}
	}
}

func TestParseOffsetMode(t *testing.T) {
	if m, err := ParseOffsetMode(" FULL "); err != nil || m != OffsetFullRange {
		t.Fatalf("m=%v err=%v", m, err)
	}
	if _, err := ParseOffsetMode("quarter"); err == nil {
		t.Fatalf("expected error")
	}
}
