package fingerprint

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// Method is an HTTP method the proxy knows how to replay.
type Method string

const (
	MethodGet     Method = http.MethodGet
	MethodPost    Method = http.MethodPost
	MethodPut     Method = http.MethodPut
	MethodDelete  Method = http.MethodDelete
	MethodOptions Method = http.MethodOptions
)

// ParseMethod validates an HTTP method name.
// Returns *UnsupportedMethodError for anything outside GET, POST, PUT, DELETE and OPTIONS.
func ParseMethod(method string) (Method, error) {
	switch m := Method(method); m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodOptions:
		return m, nil
	default:
		return "", &UnsupportedMethodError{Method: method}
	}
}

// HasBody reports whether requests with this method carry a body to the backend.
func (m Method) HasBody() bool {
	return m == MethodPost || m == MethodPut
}

// Header is a single request header. Multiple values of the same header are
// joined into one value.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Request holds the parts of an inbound request that take part in matching.
type Request struct {
	// Method is the HTTP method as received (e.g. "GET")
	Method string

	// Path is the escaped request path, without query string
	Path string

	// Query is the raw query string, without the leading '?'
	Query string

	// Headers are the request headers, minus Content-Length and Host
	Headers []Header

	// Body is the raw request body as text
	Body string
}

// RequestPath returns the path with the query string appended verbatim.
func (r Request) RequestPath() string {
	if r.Query == "" {
		return r.Path
	}
	return r.Path + "?" + r.Query
}

// Build generates the fingerprint string for a request.
// Format: requestPath=<path>method=<method>headers=<summary>body=<body>
//
// Example:
//
//	requestPath=/verify/this?query=valuemethod=GETheaders=My-Headerbody=
func Build(req Request, policy MatchHeaders) (string, error) {
	method, err := ParseMethod(req.Method)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("requestPath=")
	sb.WriteString(req.RequestPath())
	sb.WriteString("method=")
	sb.WriteString(string(method))
	sb.WriteString("headers=")
	sb.WriteString(HeaderSummary(req.Headers, policy))
	sb.WriteString("body=")
	sb.WriteString(req.Body)
	return sb.String(), nil
}

// HeaderSummary serializes headers according to policy.
// Headers are sorted by name so arrival order never changes the result.
func HeaderSummary(headers []Header, policy MatchHeaders) string {
	if policy == IgnoreHeaders {
		return ""
	}

	kept := make([]Header, 0, len(headers))
	for _, h := range headers {
		if isExcluded(h.Name) {
			continue
		}
		kept = append(kept, h)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Name < kept[j].Name
	})

	var sb strings.Builder
	for _, h := range kept {
		sb.WriteString(h.Name)
		if policy == MatchNameAndValue {
			sb.WriteString("=")
			sb.WriteString(h.Value)
		}
	}
	return sb.String()
}

// HeadersFrom converts an http.Header into a Header slice, dropping
// Content-Length and Host. Repeated values are folded into one, using the
// separator that keeps the folded value valid when forwarded.
func HeadersFrom(h http.Header) []Header {
	headers := make([]Header, 0, len(h))
	for name, values := range h {
		if isExcluded(name) {
			continue
		}
		headers = append(headers, Header{Name: name, Value: strings.Join(values, valueSeparator(name))})
	}
	sort.Slice(headers, func(i, j int) bool {
		return headers[i].Name < headers[j].Name
	})
	return headers
}

// FromHTTPRequest extracts the matching-relevant parts of r.
// The body is read completely and restored so r can still be forwarded.
func FromHTTPRequest(r *http.Request) (Request, error) {
	if r == nil {
		return Request{}, fmt.Errorf("request cannot be nil")
	}

	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return Request{}, fmt.Errorf("read request body: %w", err)
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))
	}

	return Request{
		Method:  r.Method,
		Path:    r.URL.EscapedPath(),
		Query:   r.URL.RawQuery,
		Headers: HeadersFrom(r.Header),
		Body:    string(body),
	}, nil
}

// valueSeparator returns "; " for Cookie (RFC 6265 section 5.4) and ", "
// for every other header.
func valueSeparator(name string) string {
	if strings.EqualFold(name, "Cookie") {
		return "; "
	}
	return ", "
}

func isExcluded(name string) bool {
	return strings.EqualFold(name, "Content-Length") || strings.EqualFold(name, "Host")
}
