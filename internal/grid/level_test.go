package grid

import (
	"errors"
	"math"
	"testing"

	"github.com/mohammed-shakir/pluscode-grid/internal/core/model"
)

func TestDistance(t *testing.T) {
	a := model.GeoPoint{X: 0, Y: 0}
	b := model.GeoPoint{X: 0, Y: 1}
	if d := Distance(a, b); math.Abs(d-111.19492664) > 1e-6 {
		t.Fatalf("one degree of latitude = %v km, want ~111.1949", d)
	}
	if d := Distance(a, a); d != 0 {
		t.Fatalf("distance to self = %v", d)
	}
	p := model.GeoPoint{X: 12, Y: 54}
	q := model.GeoPoint{X: 12.35, Y: 54.3}
	if Distance(p, q) != Distance(q, p) {
		t.Fatalf("distance not symmetric")
	}
	antipode := Distance(model.GeoPoint{X: 0, Y: 0}, model.GeoPoint{X: 180, Y: 0})
	if math.Abs(antipode-math.Pi*EarthRadiusKm) > 1e-6 {
		t.Fatalf("antipodal distance = %v", antipode)
	}
}

func TestLevelPolicy_Select(t *testing.T) {
	cases := []struct {
		policy LevelPolicy
		km     float64
		want   int
	}{
		{PolicyStandard, 0, 5},
		{PolicyStandard, 0.8, 5},
		{PolicyStandard, 0.81, 4},
		{PolicyStandard, 10, 4},
		{PolicyStandard, 99.9, 3},
		{PolicyStandard, 1000, 2},
		{PolicyStandard, 1000.1, 1},
		{PolicyStandard, math.Inf(1), 1},
		{PolicyStandard, math.NaN(), 1},
		{PolicyWide, 0.78, 4},
		{PolicyWide, 120, 3},
		{PolicyWide, 1200, 2},
		{PolicyWide, 2000, 1},
	}
	for _, tc := range cases {
		if got := tc.policy.Select(tc.km); got != tc.want {
			t.Fatalf("%s.Select(%v)=%d want %d", tc.policy.Name, tc.km, got, tc.want)
		}
	}
}

func TestLevelPolicy_Monotonic(t *testing.T) {
	for _, p := range []LevelPolicy{PolicyStandard, PolicyWide} {
		prev := MaxLevel
		for km := 0.0; km < 5000; km += 0.25 {
			l := p.Select(km)
			if l > prev {
				t.Fatalf("%s: level went finer from %d to %d at %v km", p.Name, prev, l, km)
			}
			if l < MinLevel || l > MaxLevel {
				t.Fatalf("%s: level %d out of range at %v km", p.Name, l, km)
			}
			prev = l
		}
	}
}

func TestLevelPolicy_Validate(t *testing.T) {
	if err := PolicyStandard.Validate(); err != nil {
		t.Fatalf("standard: %v", err)
	}
	if err := PolicyWide.Validate(); err != nil {
		t.Fatalf("wide: %v", err)
	}
	bad := LevelPolicy{Name: "bad", Breakpoints: [MaxLevel - 1]float64{1, 10, 5, 100}}
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for descending breakpoints")
	}
	unnamed := LevelPolicy{Breakpoints: PolicyStandard.Breakpoints}
	if err := unnamed.Validate(); err == nil {
		t.Fatalf("expected error for unnamed policy")
	}
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]string{"": "standard", "Standard": "standard", " wide ": "wide"} {
		p, err := ParsePolicy(in)
		if err != nil {
			t.Fatalf("ParsePolicy(%q): %v", in, err)
		}
		if p.Name != want {
			t.Fatalf("ParsePolicy(%q)=%s want %s", in, p.Name, want)
		}
	}
	if _, err := ParsePolicy("narrow"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestResolution(t *testing.T) {
	for l := MinLevel; l < MaxLevel; l++ {
		a, _ := Resolution(l)
		b, _ := Resolution(l + 1)
		if b >= a {
			t.Fatalf("resolution of level %d (%v) not finer than level %d (%v)", l+1, b, l, a)
		}
	}
	for _, l := range []int{0, 6, -1} {
		if _, err := Resolution(l); !errors.Is(err, ErrInvalidLevel) {
			t.Fatalf("level %d: expected ErrInvalidLevel, got %v", l, err)
		}
	}
}

func TestDecimals(t *testing.T) {
	cases := map[float64]int{20: 1, 1: 1, 0.05: 2, 0.0025: 4, 0.000125: 6}
	for v, want := range cases {
		if got := decimals(v); got != want {
			t.Fatalf("decimals(%v)=%d want %d", v, got, want)
		}
	}
	if NativePrecision != 6 {
		t.Fatalf("NativePrecision=%d want 6", NativePrecision)
	}
}
