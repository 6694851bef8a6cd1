package dlmlib

import (
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

var (
	ErrEmptyProxyURL     = errors.New("proxy URL cannot be empty")
	ErrUnsupportedScheme = errors.New("unsupported proxy scheme")
	ErrInvalidProxyURL   = errors.New("invalid proxy URL")
)

var supportedSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

// DefaultMaxRedirects bounds redirect chains followed by adapter clients.
const DefaultMaxRedirects = 10

// RedirectPolicy returns a CheckRedirect that follows up to max
// redirects while re-applying the original request headers (except
// Range, which each hop sets itself). Anti-bot origins drop requests
// whose redirected hops lose the captured headers.
func RedirectPolicy(max int) func(req *http.Request, via []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("stopped after too many redirects")
		}
		if len(via) > 0 {
			for key, vals := range via[0].Header {
				if key == "Range" {
					continue
				}
				req.Header[key] = vals
			}
		}
		return nil
	}
}

func newTransport() *http.Transport {
	return &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: ConnectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: ReadTimeout,
		Proxy:                 http.ProxyFromEnvironment,
	}
}

// NewHTTPClient creates the adapter's default HTTP client with the
// engine's connect/read timeouts and redirect policy.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport:     newTransport(),
		CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
	}
}

// NewHTTPClientWithProxy creates an HTTP client configured to use the
// specified proxy. If proxyURL is empty, returns the default client.
func NewHTTPClientWithProxy(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return NewHTTPClient(), nil
	}

	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, ErrInvalidProxyURL
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !supportedSchemes[parsed.Scheme] {
		return nil, ErrUnsupportedScheme
	}

	transport := newTransport()
	if parsed.Scheme == "socks5" {
		var auth *proxy.Auth
		if parsed.User != nil {
			pass, _ := parsed.User.Password()
			auth = &proxy.Auth{
				User:     parsed.User.Username(),
				Password: pass,
			}
		}
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return nil, err
		}
		transport.Proxy = nil
		transport.DialContext = nil
		transport.Dial = dialer.Dial
	} else {
		transport.Proxy = http.ProxyURL(parsed)
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: RedirectPolicy(DefaultMaxRedirects),
	}, nil
}

// NewHTTPClientWithTimeout creates a client with an overall request
// deadline, used for discovery probes.
func NewHTTPClientWithTimeout(timeout time.Duration) *http.Client {
	c := NewHTTPClient()
	c.Timeout = timeout
	return c
}
