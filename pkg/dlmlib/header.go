package dlmlib

import (
	"net/http"
	"strings"
)

const (
	// Header keys
	USER_AGENT_KEY = "User-Agent"
)

// Headers represents an ordered list of headers. Capture order matters
// for browser-originated downloads, so headers are never folded into a
// map.
type Headers []Header

// Get returns the index of the header with the given key.
// If the header is not found, the second return value is false.
func (h Headers) Get(key string) (index int, have bool) {
	for i, x := range h {
		if !strings.EqualFold(x.Key, key) {
			continue
		}
		index = i
		have = true
		break
	}
	return
}

// Value returns the value of the header with the given key, or "".
func (h Headers) Value(key string) string {
	i, ok := h.Get(key)
	if !ok {
		return ""
	}
	return h[i].Value
}

// InitOrUpdate initializes or updates the header with the given key and value.
// If the header is already present, it is not updated.
func (h *Headers) InitOrUpdate(key, value string) {
	_, ok := h.Get(key)
	if ok {
		return
	}
	*h = append(*h, Header{key, value})
}

// Update updates the header with the given key and value.
// If the header is not present, it is initialized.
func (h *Headers) Update(key, value string) {
	i, ok := h.Get(key)
	if ok {
		(*h)[i] = Header{key, value}
		return
	}
	*h = append(*h, Header{key, value})
}

// Set copies the headers into the given http.Header. Order survives
// storage and replay but not transmission: net/http canonicalizes keys
// into a map, so emitting captured wire order would need a custom
// transport.
func (h Headers) Set(header http.Header) {
	for _, x := range h {
		x.Set(header)
	}
}

// Sanitized returns a copy with the hop-managed Host and Content-Length
// entries removed; everything else keeps its captured order.
func (h Headers) Sanitized() Headers {
	out := make(Headers, 0, len(h))
	for _, x := range h {
		if strings.EqualFold(x.Key, "Host") || strings.EqualFold(x.Key, "Content-Length") {
			continue
		}
		out = append(out, x)
	}
	return out
}

// Clone returns a deep copy of the header list.
func (h Headers) Clone() Headers {
	out := make(Headers, len(h))
	copy(out, h)
	return out
}

// Header represents a key-value pair.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Set sets the header in the given http.Header.
func (h *Header) Set(header http.Header) {
	header.Set(h.Key, h.Value)
}
