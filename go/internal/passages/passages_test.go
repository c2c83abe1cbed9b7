package passages

import "testing"

func TestPoolFallsBackToDefaults(t *testing.T) {
	p := NewPool(nil, 1)
	if p.Size() == 0 {
		t.Fatal("empty pool after fallback")
	}
	if p.Pick() == "" {
		t.Error("picked empty passage")
	}
}

func TestPoolPicksFromConfigured(t *testing.T) {
	p := NewPool([]string{"alpha", "beta"}, 42)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		got := p.Pick()
		if got != "alpha" && got != "beta" {
			t.Fatalf("picked passage outside pool: %q", got)
		}
		seen[got] = true
	}
	if len(seen) != 2 {
		t.Errorf("50 picks hit %d of 2 passages", len(seen))
	}
}
