package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	cases := []struct {
		s    string
		want uint
		ok   bool
	}{
		{"42", 42, true},
		{"0", 0, false},
		{"-1", 0, false},
		{"", 0, false},
		{"4x", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseID(tc.s)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseID(%q) = (%d, %v); want (%d, %v)", tc.s, got, ok, tc.want, tc.ok)
		}
	}
}

func TestClampLimit(t *testing.T) {
	if got := ClampLimit(0, 50, 200); got != 50 {
		t.Fatalf("zero -> %d", got)
	}
	if got := ClampLimit(500, 50, 200); got != 200 {
		t.Fatalf("over max -> %d", got)
	}
	if got := ClampLimit(20, 50, 200); got != 20 {
		t.Fatalf("in range -> %d", got)
	}
	if got := ClampLimit(500, 50, 0); got != 500 {
		t.Fatalf("no max -> %d", got)
	}
}
