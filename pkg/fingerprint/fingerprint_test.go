package fingerprint

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		req    Request
		policy MatchHeaders
		want   string
	}{
		{
			name: "get without query or headers",
			req: Request{
				Method: "GET",
				Path:   "/verify/this",
			},
			policy: MatchNameOnly,
			want:   "requestPath=/verify/thismethod=GETheaders=body=",
		},
		{
			name: "query string appended verbatim",
			req: Request{
				Method: "GET",
				Path:   "/verify/this",
				Query:  "b=2&a=1",
			},
			policy: MatchNameOnly,
			want:   "requestPath=/verify/this?b=2&a=1method=GETheaders=body=",
		},
		{
			name: "trailing slash is not normalized",
			req: Request{
				Method: "GET",
				Path:   "/verify/this/",
			},
			policy: IgnoreHeaders,
			want:   "requestPath=/verify/this/method=GETheaders=body=",
		},
		{
			name: "name only policy",
			req: Request{
				Method: "POST",
				Path:   "/verify/thispost",
				Headers: []Header{
					{Name: "My-Header", Value: "header-value"},
					{Name: "Accept", Value: "*/*"},
				},
				Body: `{"key":"value"}`,
			},
			policy: MatchNameOnly,
			want:   `requestPath=/verify/thispostmethod=POSTheaders=AcceptMy-Headerbody={"key":"value"}`,
		},
		{
			name: "name and value policy",
			req: Request{
				Method: "PUT",
				Path:   "/items/1",
				Headers: []Header{
					{Name: "My-Header", Value: "header-value"},
					{Name: "Accept", Value: "*/*"},
				},
				Body: "payload",
			},
			policy: MatchNameAndValue,
			want:   "requestPath=/items/1method=PUTheaders=Accept=*/*My-Header=header-valuebody=payload",
		},
		{
			name: "ignore headers policy",
			req: Request{
				Method:  "DELETE",
				Path:    "/items/1",
				Headers: []Header{{Name: "My-Header", Value: "header-value"}},
			},
			policy: IgnoreHeaders,
			want:   "requestPath=/items/1method=DELETEheaders=body=",
		},
		{
			name: "content-length and host are always excluded",
			req: Request{
				Method: "OPTIONS",
				Path:   "/",
				Headers: []Header{
					{Name: "Host", Value: "localhost:8585"},
					{Name: "Content-Length", Value: "15"},
					{Name: "X-Trace", Value: "1"},
				},
			},
			policy: MatchNameAndValue,
			want:   "requestPath=/method=OPTIONSheaders=X-Trace=1body=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Build(tt.req, tt.policy)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Build() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuild_UnsupportedMethod(t *testing.T) {
	for _, method := range []string{"PATCH", "HEAD", "TRACE", "get", ""} {
		t.Run(method, func(t *testing.T) {
			_, err := Build(Request{Method: method, Path: "/"}, MatchNameOnly)
			var unsupported *UnsupportedMethodError
			if !errors.As(err, &unsupported) {
				t.Fatalf("Build() error = %v, want *UnsupportedMethodError", err)
			}
			if unsupported.Method != method {
				t.Errorf("Method = %q, want %q", unsupported.Method, method)
			}
		})
	}
}

// TestBuild_HeaderOrderIndependence ensures every permutation of the same
// header set produces the same fingerprint.
func TestBuild_HeaderOrderIndependence(t *testing.T) {
	headers := []Header{
		{Name: "Accept", Value: "application/json"},
		{Name: "My-Header", Value: "header-value"},
		{Name: "X-Request-Source", Value: "tests"},
	}
	permutations := [][]int{
		{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
	}

	for _, policy := range []MatchHeaders{IgnoreHeaders, MatchNameOnly, MatchNameAndValue} {
		t.Run(string(policy), func(t *testing.T) {
			var first string
			for i, perm := range permutations {
				ordered := make([]Header, 0, len(perm))
				for _, idx := range perm {
					ordered = append(ordered, headers[idx])
				}
				got, err := Build(Request{Method: "POST", Path: "/p", Headers: ordered, Body: "b"}, policy)
				if err != nil {
					t.Fatalf("Build() error = %v", err)
				}
				if i == 0 {
					first = got
					continue
				}
				if got != first {
					t.Errorf("permutation %v = %v, want %v", perm, got, first)
				}
			}
		})
	}
}

func TestBuild_PolicySensitivity(t *testing.T) {
	one := Request{Method: "GET", Path: "/verify", Headers: []Header{{Name: "My-Header", Value: "one"}}}
	two := Request{Method: "GET", Path: "/verify", Headers: []Header{{Name: "My-Header", Value: "two"}}}

	tests := []struct {
		policy    MatchHeaders
		wantEqual bool
	}{
		{IgnoreHeaders, true},
		{MatchNameOnly, true},
		{MatchNameAndValue, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			fp1, err := Build(one, tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			fp2, err := Build(two, tt.policy)
			if err != nil {
				t.Fatal(err)
			}
			if (fp1 == fp2) != tt.wantEqual {
				t.Errorf("equal = %v, want %v (%q vs %q)", fp1 == fp2, tt.wantEqual, fp1, fp2)
			}
		})
	}
}

func TestBuild_BodyDiscrimination(t *testing.T) {
	a, _ := Build(Request{Method: "POST", Path: "/verify/this", Body: `{"key":"value"}`}, MatchNameOnly)
	b, _ := Build(Request{Method: "POST", Path: "/verify/this", Body: `{"key":"otherValue"}`}, MatchNameOnly)
	if a == b {
		t.Errorf("different bodies produced the same fingerprint %q", a)
	}
}

func TestFromHTTPRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "http://localhost:8585/verify/this?query=value", strings.NewReader(`{"key":"value"}`))
	r.Header.Set("My-Header", "header-value")
	r.Header.Set("Content-Length", "15")
	r.Header.Add("Accept", "text/plain")
	r.Header.Add("Accept", "application/json")

	req, err := FromHTTPRequest(r)
	if err != nil {
		t.Fatalf("FromHTTPRequest() error = %v", err)
	}

	if req.Method != "POST" {
		t.Errorf("Method = %v, want POST", req.Method)
	}
	if req.RequestPath() != "/verify/this?query=value" {
		t.Errorf("RequestPath() = %v, want /verify/this?query=value", req.RequestPath())
	}
	if req.Body != `{"key":"value"}` {
		t.Errorf("Body = %v, want {\"key\":\"value\"}", req.Body)
	}

	want := []Header{
		{Name: "Accept", Value: "text/plain, application/json"},
		{Name: "My-Header", Value: "header-value"},
	}
	if len(req.Headers) != len(want) {
		t.Fatalf("Headers = %v, want %v", req.Headers, want)
	}
	for i := range want {
		if req.Headers[i] != want[i] {
			t.Errorf("Headers[%d] = %v, want %v", i, req.Headers[i], want[i])
		}
	}

	// Body must still be readable for forwarding
	body, _ := io.ReadAll(r.Body)
	if string(body) != `{"key":"value"}` {
		t.Errorf("request body was not restored, got %q", body)
	}
}

func TestFromHTTPRequest_Nil(t *testing.T) {
	if _, err := FromHTTPRequest(nil); err == nil {
		t.Error("FromHTTPRequest(nil) should return an error")
	}
}

func TestParseMatchHeaders(t *testing.T) {
	tests := []struct {
		input   string
		want    MatchHeaders
		wantErr bool
	}{
		{"", MatchNameOnly, false},
		{"IGNORE_HEADERS", IgnoreHeaders, false},
		{"match_name_only", MatchNameOnly, false},
		{"match-name-and-value", MatchNameAndValue, false},
		{"  MATCH_NAME_AND_VALUE ", MatchNameAndValue, false},
		{"MATCH_EVERYTHING", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMatchHeaders(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMatchHeaders(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMatchHeaders(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMethod_HasBody(t *testing.T) {
	tests := []struct {
		method Method
		want   bool
	}{
		{MethodGet, false},
		{MethodPost, true},
		{MethodPut, true},
		{MethodDelete, false},
		{MethodOptions, false},
	}
	for _, tt := range tests {
		if got := tt.method.HasBody(); got != tt.want {
			t.Errorf("%s.HasBody() = %v, want %v", tt.method, got, tt.want)
		}
	}
}

func TestHeadersFrom_RepeatedValues(t *testing.T) {
	h := http.Header{}
	h.Add("Accept", "text/plain")
	h.Add("Accept", "application/json")
	h.Add("Cookie", "a=1")
	h.Add("Cookie", "b=2")
	h.Add("Content-Length", "10")

	got := HeadersFrom(h)
	want := []Header{
		{Name: "Accept", Value: "text/plain, application/json"},
		{Name: "Cookie", Value: "a=1; b=2"},
	}

	if len(got) != len(want) {
		t.Fatalf("HeadersFrom() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("HeadersFrom()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
