package pkgid

import "testing"

func v(s string) Version {
	ver, err := ParseVersion(s)
	if err != nil {
		panic(err)
	}
	return ver
}

func TestRangeAlgebra(t *testing.T) {
	a := NewRange(v("1.0.0"), v("2.0.0"))
	b := NewRange(v("1.5.0"), v("3.0.0"))

	inter := a.Intersect(b)
	if !inter.ContainsRange(Empty()) {
		t.Fatalf("expected intersect to contain empty trivially")
	}
	if !a.ContainsRange(inter) {
		t.Errorf("a ∩ b should be ⊆ a")
	}
	if !b.Union(a).ContainsRange(a) {
		t.Errorf("a ∪ b should be ⊇ a")
	}

	diff := a.Difference(b)
	if !diff.Disjoint(b) {
		t.Errorf("a \\ b should be disjoint from b")
	}

	if !inter.Contains(v("1.5.0")) {
		t.Errorf("expected 1.5.0 in intersection")
	}
	if inter.Contains(v("1.4.0")) {
		t.Errorf("did not expect 1.4.0 in intersection")
	}
}

func TestRangeShorthandSemantics(t *testing.T) {
	// "foo@1.2.3" -> [1.2.3, 2.0.0)
	at := NewRange(v("1.2.3"), v("1.2.3").NextMajor())
	if !at.Contains(v("1.9.9")) || at.Contains(v("2.0.0")) || at.Contains(v("1.2.2")) {
		t.Errorf("@ shorthand range incorrect: %+v", at)
	}

	// "foo~1.2.3" -> [1.2.3, 1.3.0)
	tilde := NewRange(v("1.2.3"), v("1.2.3").NextMinor())
	if !tilde.Contains(v("1.2.9")) || tilde.Contains(v("1.3.0")) {
		t.Errorf("~ shorthand range incorrect: %+v", tilde)
	}

	// "foo=1.2.3" -> [1.2.3, 1.2.4)
	eq := NewExact(v("1.2.3"))
	if !eq.Contains(v("1.2.3")) || eq.Contains(v("1.2.4")) || eq.Contains(v("1.2.2")) {
		t.Errorf("= shorthand range incorrect: %+v", eq)
	}

	// "foo+1.2.3" -> [1.2.3, ∞)
	plus := NewUnbounded(v("1.2.3"))
	if !plus.Contains(v("99.0.0")) || plus.Contains(v("1.2.2")) {
		t.Errorf("+ shorthand range incorrect: %+v", plus)
	}
}

func TestRangeUnionMergesAdjacent(t *testing.T) {
	a := NewRange(v("1.0.0"), v("2.0.0"))
	b := NewRange(v("2.0.0"), v("3.0.0"))
	u := a.Union(b)
	if !u.Contains(v("1.5.0")) || !u.Contains(v("2.5.0")) {
		t.Fatalf("expected merged union to cover both ranges")
	}
}

func TestRangeDifferenceUnbounded(t *testing.T) {
	all := NewUnbounded(v("0.0.0"))
	hole := NewRange(v("1.0.0"), v("2.0.0"))
	d := all.Difference(hole)
	if d.Contains(v("1.5.0")) {
		t.Errorf("expected hole to be removed")
	}
	if !d.Contains(v("0.5.0")) || !d.Contains(v("5.0.0")) {
		t.Errorf("expected surrounding versions to remain")
	}
}
