package identity

import "testing"

func TestFoldKey(t *testing.T) {
	tests := []struct {
		a, b string
		same bool
	}{
		{"Nirvana", "nirvana", true},
		{"NIRVANA", "nirvana", true},
		{"BJÖRK", "björk", true},
		{"İstanbul", "i̇stanbul", true},
		// Distinct letters must never fold together.
		{"Bić", "Bič", false},
		{"Björk", "Bjork", false},
		// Whitespace is part of the spelling.
		{"Tom Waits", "Tom  Waits", false},
		{"Tom Waits", "Tom Waits ", false},
	}
	for _, tt := range tests {
		got := FoldKey(tt.a) == FoldKey(tt.b)
		if got != tt.same {
			t.Errorf("FoldKey(%q) == FoldKey(%q): got %v, want %v", tt.a, tt.b, got, tt.same)
		}
	}
}

func TestCollisionHasBaggage(t *testing.T) {
	c := &Collision{CreditCount: 0}
	if c.HasBaggage() {
		t.Error("expected no baggage with zero credits")
	}
	c.CreditCount = 3
	if !c.HasBaggage() {
		t.Error("expected baggage with credits")
	}
}
