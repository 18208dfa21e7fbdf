package pkgid

import "testing"

func TestParseValid(t *testing.T) {
	cases := []string{"foo", "foo-bar", "foo.bar", "foo_bar", "a", "a1", "lib2.3-x"}
	for _, c := range cases {
		if _, err := Parse(c); err != nil {
			t.Errorf("Parse(%q) unexpectedly failed: %v", c, err)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	cases := []struct {
		in     string
		reason InvalidReason
	}{
		{"", ReasonEmpty},
		{"Foo", ReasonCapital},
		{"1foo", ReasonInitialNotAlpha},
		{"-foo", ReasonInitialNotAlpha},
		{"foo--bar", ReasonDoublePunct},
		{"foo._bar", ReasonDoublePunct},
		{"foo-", ReasonEndPunct},
		{"foo.", ReasonEndPunct},
		{"foo bar", ReasonWhitespace},
		{"foo\tbar", ReasonWhitespace},
		{"foo$bar", ReasonInvalidChar},
		{"foo/bar", ReasonInvalidChar},
	}
	for _, c := range cases {
		_, err := Parse(c.in)
		if err == nil {
			t.Fatalf("Parse(%q) unexpectedly succeeded", c.in)
		}
		ne, ok := err.(*NameError)
		if !ok {
			t.Fatalf("Parse(%q) returned non-NameError: %v", c.in, err)
		}
		if ne.Reason != c.reason {
			t.Errorf("Parse(%q) reason = %s, want %s", c.in, ne.Reason, c.reason)
		}
	}
}

func TestNameOrdering(t *testing.T) {
	a := MustParse("apple")
	b := MustParse("banana")
	if !a.Less(b) {
		t.Errorf("expected apple < banana")
	}
	if b.Less(a) {
		t.Errorf("did not expect banana < apple")
	}
}
