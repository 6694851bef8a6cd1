package dlmlib

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGetContentLengthHead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", "12345")
		if r.Method == http.MethodHead {
			return
		}
		w.Write(make([]byte, 12345))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	size, viaStream, err := c.GetContentLength(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if size != 12345 {
		t.Errorf("size = %d; want 12345", size)
	}
	if viaStream {
		t.Error("HEAD probe must not report viaStream")
	}
}

func TestGetContentLengthRangeFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			// No Content-Length on HEAD.
			w.WriteHeader(http.StatusOK)
			return
		}
		if r.Header.Get("Range") == "bytes=0-0" {
			w.Header().Set("Content-Range", "bytes 0-0/9999")
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte{0})
			return
		}
		t.Errorf("unexpected request: %s %q", r.Method, r.Header.Get("Range"))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	size, viaStream, err := c.GetContentLength(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if size != 9999 {
		t.Errorf("size = %d; want 9999 from Content-Range", size)
	}
	if viaStream {
		t.Error("ranged probe must not report viaStream")
	}
}

func TestGetContentLengthStreamFallback(t *testing.T) {
	payload := strings.Repeat("x", 2048)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead || r.Header.Get("Range") != "" {
			// Origin ignores HEAD and ranges.
			w.WriteHeader(http.StatusOK)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		io.WriteString(w, payload)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	size, viaStream, err := c.GetContentLength(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if size != int64(len(payload)) {
		t.Errorf("size = %d; want %d", size, len(payload))
	}
	if !viaStream {
		t.Error("stream fallback must be reported so the engine skips the re-probe")
	}
}

func TestGetContentLengthAuthError(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c := NewClient(srv.Client())
		_, _, err := c.GetContentLength(context.Background(), srv.URL, nil)
		srv.Close()
		if !IsAuthExpired(err) {
			t.Errorf("status %d: expected auth-expired class, got %v", code, err)
		}
	}
}

func TestGetContentLengthHTMLLanding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		io.WriteString(w, "<html><body>login</body></html>")
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	_, _, err := c.GetContentLength(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrHTMLLandingPage) {
		t.Errorf("expected HTML landing error, got %v", err)
	}
}

func TestSupportsRanges(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "bytes=0-0" {
			w.Header().Set("Content-Range", "bytes 0-0/100")
			w.WriteHeader(http.StatusPartialContent)
			w.Write([]byte{0})
			return
		}
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	ok, err := c.SupportsRanges(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("206 response must report range support")
	}

	flat := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer flat.Close()
	ok, err = NewClient(flat.Client()).SupportsRanges(context.Background(), flat.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("200 response must not report range support")
	}
}

func TestDownloadRangeSendsHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Range"); got != "bytes=100-199" {
			t.Errorf("Range = %q; want bytes=100-199", got)
		}
		w.WriteHeader(http.StatusPartialContent)
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	body, err := c.DownloadRange(context.Background(), srv.URL, 100, 199, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != 100 {
		t.Errorf("read %d bytes; want 100", len(b))
	}
}

func TestProbeFileName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="report final.pdf"`)
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	name, err := c.ProbeFileName(context.Background(), srv.URL+"/ignored/path", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "report final.pdf" {
		t.Errorf("name = %q; want from Content-Disposition", name)
	}
}

func TestProbeFileNameURLFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := NewClient(srv.Client())
	name, err := c.ProbeFileName(context.Background(), srv.URL+"/files/archive.tar.gz", nil)
	if err != nil {
		t.Fatal(err)
	}
	if name != "archive.tar.gz" {
		t.Errorf("name = %q; want archive.tar.gz", name)
	}
}

func TestSessionApplied(t *testing.T) {
	var gotUA, gotRef, gotCookie string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotRef = r.Header.Get("Referer")
		if c, err := r.Cookie("session"); err == nil {
			gotCookie = c.Value
		}
		w.Header().Set("Content-Length", "10")
	}))
	defer srv.Close()

	s := NewSession("http://origin.example", "TestAgent/2.0", Headers{{Key: "X-Extra", Value: "1"}}, []Cookie{{Name: "session", Value: "abc"}})
	c := NewClient(srv.Client())
	if _, _, err := c.GetContentLength(context.Background(), srv.URL, s); err != nil {
		t.Fatal(err)
	}
	if gotUA != "TestAgent/2.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if gotRef != "http://origin.example" {
		t.Errorf("Referer = %q", gotRef)
	}
	if gotCookie != "abc" {
		t.Errorf("session cookie = %q", gotCookie)
	}
}

func TestParseContentRange(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Range", "bytes 0-0/424242")
	if got := parseContentRange(h); got != 424242 {
		t.Errorf("got %d", got)
	}
	h.Set("Content-Range", "bytes 0-0/*")
	if got := parseContentRange(h); got != 0 {
		t.Errorf("unbounded total parsed as %d", got)
	}
	h.Del("Content-Range")
	if got := parseContentRange(h); got != 0 {
		t.Errorf("missing header parsed as %d", got)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	cases := []struct {
		head []byte
		want bool
	}{
		{[]byte("<!DOCTYPE HTML><html>"), true},
		{[]byte("  \n<HTML lang=\"en\">"), true},
		{[]byte("<head><title>hi</title>"), true},
		{[]byte{0x50, 0x4B, 0x03, 0x04}, false},
		{[]byte("plain text payload"), false},
	}
	for _, c := range cases {
		if got := LooksLikeHTML(c.head); got != c.want {
			t.Errorf("LooksLikeHTML(%q) = %v; want %v", c.head, got, c.want)
		}
	}
}
