package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// no trimming
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestLimitParam(t *testing.T) {
	cases := map[string]int{
		"":     50,
		"10":   10,
		"0":    1,
		"-5":   1,
		"9000": 500,
		"abc":  50,
	}
	for in, want := range cases {
		if got := LimitParam(in, 50, 500); got != want {
			t.Errorf("LimitParam(%q) = %d; want %d", in, got, want)
		}
	}
}
