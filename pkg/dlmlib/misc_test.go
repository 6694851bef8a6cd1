package dlmlib

import (
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"report.pdf", "report.pdf"},
		{"a/b\\c:d.txt", "a_b_c_d.txt"},
		{"what?.bin", "what_.bin"},
		{"my%20file.zip", "my file.zip"},
		{"CON", "_CON"},
		{"con.txt", "_con.txt"},
		{"lpt9.log", "_lpt9.log"},
		{"console.log", "console.log"},
		{"trailing. ", "trailing"},
		{"", ""},
		{"...", "download"},
	}
	for _, c := range cases {
		if got := SanitizeFilename(c.in); got != c.want {
			t.Errorf("SanitizeFilename(%q) = %q; want %q", c.in, got, c.want)
		}
	}
}

func TestNewTaskId(t *testing.T) {
	a, b := NewTaskId(), NewTaskId()
	if len(a) != 8 || len(b) != 8 {
		t.Errorf("id lengths = %d, %d; want 8", len(a), len(b))
	}
	if a == b {
		t.Errorf("consecutive ids collided: %s", a)
	}
}

func TestHeadersOrderAndLookup(t *testing.T) {
	var h Headers
	h.Update("Accept", "*/*")
	h.Update("X-Token", "one")
	h.InitOrUpdate("X-Token", "two")
	if got := h.Value("x-token"); got != "one" {
		t.Errorf("InitOrUpdate overwrote existing value: %q", got)
	}
	h.Update("X-Token", "three")
	if got := h.Value("X-Token"); got != "three" {
		t.Errorf("Update did not replace value: %q", got)
	}
	if len(h) != 2 || h[0].Key != "Accept" {
		t.Errorf("capture order lost: %+v", h)
	}
	if h.Value("missing") != "" {
		t.Error("missing header returned a value")
	}
}

func TestHeadersSanitized(t *testing.T) {
	h := Headers{
		{Key: "Host", Value: "example.com"},
		{Key: "Content-Length", Value: "12"},
		{Key: "Referer", Value: "http://example.com"},
	}
	s := h.Sanitized()
	if len(s) != 1 || s[0].Key != "Referer" {
		t.Errorf("sanitized = %+v", s)
	}
	if len(h) != 3 {
		t.Error("sanitize mutated the original")
	}
}
