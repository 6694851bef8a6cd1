package dlmlib

import "net/http"

// Cookie is a single captured cookie.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Session is the descriptor replayed for a browser-originated download:
// the page referer, captured headers in their original order, cookies
// and an optional user-agent override. The adapter never mutates a
// session.
type Session struct {
	Referer   string   `json:"referer,omitempty"`
	Headers   Headers  `json:"headers,omitempty"`
	Cookies   []Cookie `json:"cookies,omitempty"`
	UserAgent string   `json:"user_agent,omitempty"`
	SourceUrl string   `json:"source_url,omitempty"`
}

// NewSession builds a session from a raw capture, dropping the Host and
// Content-Length entries the transport manages itself.
func NewSession(referer, userAgent string, headers Headers, cookies []Cookie) *Session {
	return &Session{
		Referer:   referer,
		UserAgent: userAgent,
		Headers:   headers.Sanitized(),
		Cookies:   cookies,
	}
}

// apply replays the session onto an outgoing request: captured headers
// first (in order), then referer, cookies and user agent unless the
// capture already carried them.
func (s *Session) apply(req *http.Request) {
	if s == nil {
		return
	}
	s.Headers.Set(req.Header)
	if s.Referer != "" && req.Header.Get("Referer") == "" {
		req.Header.Set("Referer", s.Referer)
	}
	for _, c := range s.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	if s.UserAgent != "" {
		req.Header.Set(USER_AGENT_KEY, s.UserAgent)
	}
}

// Clone returns a deep copy so callers can persist sessions without
// sharing backing arrays with live workers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Headers = s.Headers.Clone()
	cp.Cookies = append([]Cookie(nil), s.Cookies...)
	return &cp
}
