// Package message defines the transport-neutral carrier used by the session
// dispatcher and the HTTP host to read and annotate requests and responses.
package message

import "net/http"

// Well-known carrier properties.
const (
	// PropertyRequestURL holds the path the session cookie is scoped to.
	PropertyRequestURL = "REQUEST_URL"
	// PropertyMethod holds the inbound HTTP method.
	PropertyMethod = "HTTP_METHOD"
)

// Carrier is an opaque request or response object exposing headers and
// properties.
type Carrier interface {
	Header(name string) string
	SetHeader(name, value string)
	RemoveHeader(name string)
	Property(name string) any
}

// HTTP is a Carrier backed by an http.Header. It is owned by a single request
// and is not safe for concurrent use.
type HTTP struct {
	header     http.Header
	properties map[string]any
}

var _ Carrier = (*HTTP)(nil)

// NewHTTP returns a carrier holding a copy of h. A nil h yields an empty carrier.
func NewHTTP(h http.Header) *HTTP {
	header := h.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &HTTP{
		header:     header,
		properties: make(map[string]any),
	}
}

// Header returns the first value of the named header, or "" if absent.
func (m *HTTP) Header(name string) string {
	return m.header.Get(name)
}

// SetHeader replaces the named header.
func (m *HTTP) SetHeader(name, value string) {
	m.header.Set(name, value)
}

// RemoveHeader deletes the named header.
func (m *HTTP) RemoveHeader(name string) {
	m.header.Del(name)
}

// Property returns the named property, or nil if absent.
func (m *HTTP) Property(name string) any {
	return m.properties[name]
}

// SetProperty stores a property on the carrier.
func (m *HTTP) SetProperty(name string, value any) {
	m.properties[name] = value
}

// Headers exposes the underlying header map.
func (m *HTTP) Headers() http.Header {
	return m.header
}
