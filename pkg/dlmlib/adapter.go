package dlmlib

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Client is the network adapter. It probes range capability and content
// length, and opens ranged or streaming GET bodies with a session
// descriptor replayed onto every request. It never mutates sessions.
type Client struct {
	hc *http.Client
}

// NewClient wraps an http.Client; pass nil for the engine default.
func NewClient(hc *http.Client) *Client {
	if hc == nil {
		hc = NewHTTPClient()
	}
	return &Client{hc: hc}
}

func (c *Client) newRequest(ctx context.Context, method, url string, s *Session) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(USER_AGENT_KEY, DEF_USER_AGENT)
	s.apply(req)
	return req, nil
}

func setRange(header http.Header, ioff, foff int64) {
	str := func(i int64) string {
		return strconv.FormatInt(i, 10)
	}
	var b strings.Builder
	b.WriteString("bytes=")
	b.WriteString(str(ioff))
	b.WriteRune('-')
	if foff >= 0 {
		b.WriteString(str(foff))
	}
	header.Set("Range", b.String())
}

func isHTML(h http.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Type")), "text/html")
}

// checkResponse maps status codes and HTML bodies onto the adapter's
// error taxonomy. 401/403/410 is the auth-expired class; an HTML body
// for a direct-download URL indicates a captive or expired origin.
func checkResponse(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusGone:
		return &AuthError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return &ServerError{StatusCode: resp.StatusCode}
	}
	if isHTML(resp.Header) {
		return &NetworkError{Err: ErrHTMLLandingPage}
	}
	return nil
}

// parseContentRange extracts the total size from a
// "Content-Range: bytes a-b/N" header; 0 when absent or unbounded.
func parseContentRange(h http.Header) int64 {
	cr := h.Get("Content-Range")
	idx := strings.LastIndex(cr, "/")
	if idx < 0 {
		return 0
	}
	total, err := strconv.ParseInt(cr[idx+1:], 10, 64)
	if err != nil || total < 0 {
		return 0
	}
	return total
}

// GetContentLength determines the remote file size. It tries HEAD
// first, then a GET with Range: bytes=0-0 parsing Content-Range, and
// finally a plain streamed GET whose Content-Length it reads without
// consuming the body. viaStream reports whether the last fallback was
// needed, so callers can avoid re-probing identically.
func (c *Client) GetContentLength(ctx context.Context, url string, s *Session) (size int64, viaStream bool, err error) {
	if req, er := c.newRequest(ctx, http.MethodHead, url, s); er == nil {
		if resp, er := c.hc.Do(req); er == nil {
			err = checkResponse(resp)
			resp.Body.Close()
			if err != nil {
				return 0, false, err
			}
			if resp.ContentLength > 0 {
				return resp.ContentLength, false, nil
			}
		}
	}

	req, er := c.newRequest(ctx, http.MethodGet, url, s)
	if er != nil {
		return 0, false, &NetworkError{Err: er}
	}
	setRange(req.Header, 0, 0)
	if resp, er := c.hc.Do(req); er == nil {
		err = checkResponse(resp)
		if err != nil {
			resp.Body.Close()
			return 0, false, err
		}
		total := parseContentRange(resp.Header)
		resp.Body.Close()
		if total > 0 {
			return total, false, nil
		}
	}

	req, er = c.newRequest(ctx, http.MethodGet, url, s)
	if er != nil {
		return 0, false, &NetworkError{Err: er}
	}
	resp, er := c.hc.Do(req)
	if er != nil {
		return 0, false, &NetworkError{Err: er}
	}
	defer resp.Body.Close()
	if err = checkResponse(resp); err != nil {
		return 0, false, err
	}
	if resp.ContentLength > 0 {
		return resp.ContentLength, true, nil
	}
	return 0, true, nil
}

// SupportsRanges issues a GET with Range: bytes=0-0 and reports whether
// the origin honoured it with a 206.
func (c *Client) SupportsRanges(ctx context.Context, url string, s *Session) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, s)
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	setRange(req.Header, 0, 0)
	resp, err := c.hc.Do(req)
	if err != nil {
		return false, &NetworkError{Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusGone:
		return false, &AuthError{StatusCode: resp.StatusCode}
	}
	return resp.StatusCode == http.StatusPartialContent, nil
}

// DownloadRange opens a ranged stream for [start, end]. The returned
// body is finite and not restartable; callers must tolerate short
// reads.
func (c *Client) DownloadRange(ctx context.Context, url string, start, end int64, s *Session) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, s)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	setRange(req.Header, start, end)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// DownloadStream opens an unranged stream. Same contract as
// DownloadRange without the range.
func (c *Client) DownloadStream(ctx context.Context, url string, s *Session) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, url, s)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	if err := checkResponse(resp); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// ProbeFileName asks the origin for a usable file name via a HEAD
// request's Content-Disposition, falling back to the URL path.
func (c *Client) ProbeFileName(ctx context.Context, url string, s *Session) (string, error) {
	req, err := c.newRequest(ctx, http.MethodHead, url, s)
	if err != nil {
		return "", &NetworkError{Err: err}
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		// The URL path alone still yields a name.
		fallback, ferr := http.NewRequest(http.MethodGet, url, nil)
		if ferr != nil {
			return "", &NetworkError{Err: err}
		}
		name := parseFileName(fallback, "")
		if name == "" {
			return "", ErrFileNameNotFound
		}
		return name, nil
	}
	defer resp.Body.Close()
	name := parseFileName(resp.Request, resp.Header.Get("Content-Disposition"))
	if name == "" {
		return "", ErrFileNameNotFound
	}
	return name, nil
}

// htmlMarkers are the signatures searched for in a stream head to
// detect a login/landing page masquerading as a download.
var htmlMarkers = []string{"<!doctype html", "<html", "<head", "<body"}

// LooksLikeHTML reports whether the first bytes of a payload resemble
// an HTML document.
func LooksLikeHTML(head []byte) bool {
	low := strings.ToLower(string(head))
	for _, m := range htmlMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

// FormatDiskSpaceError builds the user-facing message for a failed
// free-space precheck.
func FormatDiskSpaceError(required, available int64) error {
	return fmt.Errorf("%w: required space %s, available space %s",
		ErrInsufficientDiskSpace,
		ContentLength(required),
		ContentLength(available))
}
