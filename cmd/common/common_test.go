package common

import "testing"

func TestBeaut(t *testing.T) {
	cases := []struct {
		s    string
		n    int
		want string
	}{
		{"ab", 6, "  ab  "},
		{"abc", 6, " abc  "},
		{"PAUSED", 6, "PAUSED"},
	}
	for _, c := range cases {
		if got := Beaut(c.s, c.n); got != c.want {
			t.Errorf("Beaut(%q, %d) = %q; want %q", c.s, c.n, got, c.want)
		}
	}
}
