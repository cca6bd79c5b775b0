package ast

import "testing"

func TestQuantifierBounds(t *testing.T) {
	tests := []struct {
		repr      string
		min, max  int
		unbounded bool
	}{
		{"*", 0, 0, true},
		{"+", 1, 0, true},
		{"?", 0, 1, false},
		{"{3}", 3, 3, false},
		{"{2,}", 2, 0, true},
		{"{2,5}", 2, 5, false},
		{"{ 2 , 5 }", 2, 5, false},
		{"{,5}", 0, 5, false},
		{"{5,2}", 5, 2, false},
	}
	for _, tt := range tests {
		t.Run(tt.repr, func(t *testing.T) {
			q := &Quantifier{Repr: tt.repr}
			b := q.Bounds()
			if b.Min != tt.min || b.Unbounded != tt.unbounded || (!tt.unbounded && b.Max != tt.max) {
				t.Errorf("Bounds(%q) = %+v, want min=%d max=%d unbounded=%v",
					tt.repr, b, tt.min, tt.max, tt.unbounded)
			}
		})
	}
}

func TestQuantifierBoundsCached(t *testing.T) {
	a := &Quantifier{Repr: "{7,9}"}
	b := &Quantifier{Repr: "{7,9}"}
	if a.Bounds() != b.Bounds() {
		t.Error("equal reprs must yield equal bounds")
	}
}
