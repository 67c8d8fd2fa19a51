package damage

import "testing"

func TestExplosionBaseScenarios(t *testing.T) {
	cases := []struct {
		name                string
		base, d, r, f, want float64
	}{
		{"inside plateau", 8, 0.5, 1, 2, 8},
		{"beyond radius", 8, 3, 1, 2, 4},
		{"exactly at edge", 8, 1, 1, 2, 8},
		{"zero at radius+base/falloff", 8, 5, 1, 2, 0},
		{"clamped past zero", 8, 50, 1, 2, 0},
	}
	for _, c := range cases {
		if got := ExplosionBase(c.base, c.d, c.r, c.f); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestExplosionBaseMonotonic(t *testing.T) {
	for _, p := range []struct{ base, r, f float64 }{{8, 1, 2}, {20, 4, 0.5}, {3, 0, 10}} {
		prev := ExplosionBase(p.base, 0, p.r, p.f)
		for d := 0.0; d < 60; d += 0.05 {
			v := ExplosionBase(p.base, d, p.r, p.f)
			if v > prev {
				t.Fatalf("increasing at d=%v: %v > %v", d, v, prev)
			}
			if d <= p.r && v != p.base {
				t.Fatalf("inside radius d=%v got %v want %v", d, v, p.base)
			}
			if d >= p.r+p.base/p.f && v != 0 {
				t.Fatalf("past zero point d=%v got %v", d, v)
			}
			prev = v
		}
	}
}

func TestArmorFloors(t *testing.T) {
	if got := ExplosionAfterArmor(4, 20, 0, 4, 0.5, 1); got != 1 {
		t.Fatalf("entity floor=%v want 1", got)
	}
	if got := ExplosionAfterArmor(4, 20, 10, 4, 0.5, 1); got != 0 {
		t.Fatalf("vehicle floor=%v want 0", got)
	}
	if got := ExplosionAfterArmor(10, 4, 0, 2, 0.5, 1); got != 6 {
		t.Fatalf("reduced=%v want 6", got)
	}
	if got := AfterArmor(4, 2, 0, 0.5); got != 3 {
		t.Fatalf("AfterArmor=%v want 3", got)
	}
	if got := AfterArmor(4, 100, 0, 0.5); got != 1 {
		t.Fatalf("AfterArmor floor=%v want 1", got)
	}
}

func TestAtDistance(t *testing.T) {
	if got := AtDistance(10, 30, 20, 0.5, 2); got != 5 {
		t.Fatalf("dropoff=%v want 5", got)
	}
	if got := AtDistance(10, 100, 20, 0.5, 2); got != 2 {
		t.Fatalf("floor=%v want 2", got)
	}
	if got := AtDistance(10, 100, 20, 0, 2); got != 10 {
		t.Fatalf("disabled=%v want 10", got)
	}
}

func TestMatch(t *testing.T) {
	if v, ok := Match("explosive_shell"); !ok || v != ExplosiveShell {
		t.Fatalf("Match=%v,%v", v, ok)
	}
	if _, ok := Match("laser"); ok {
		t.Fatalf("unknown name matched")
	}
	var tp Type
	if err := tp.UnmarshalText([]byte("Molotov")); err != nil || tp != Molotov {
		t.Fatalf("UnmarshalText=%v err=%v", tp, err)
	}
}
