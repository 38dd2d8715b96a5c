package responder

import "testing"

func TestFormat(t *testing.T) {
	cases := []struct {
		name     string
		template string
		captures []string
		want     string
	}{
		{"whole and group", "$0 -> $1", []string{"PD-123", "PD-123"}, "PD-123 -> PD-123"},
		{"out of range kept", "$9", []string{"a"}, "$9"},
		{"no captures", "$0", nil, "$0"},
		{"repeated", "$1/$1", []string{"x", "y"}, "y/y"},
		{"multi digit index", "$10", []string{"0", "1"}, "$10"},
		{"multi digit in range", "$10", []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9", "ten"}, "ten"},
		{"no placeholders", "plain text", []string{"a"}, "plain text"},
		{"bare dollar", "cost: $ and $x", []string{"a"}, "cost: $ and $x"},
		{"huge index", "$99999999999999999999999", []string{"a"}, "$99999999999999999999999"},
		{"empty capture", "[$1]", []string{"a", ""}, "[]"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Format(tc.template, tc.captures); got != tc.want {
				t.Fatalf("Format(%q, %q) = %q; want %q", tc.template, tc.captures, got, tc.want)
			}
		})
	}
}
