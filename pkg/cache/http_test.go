package cache

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
)

func TestResponseToEntry(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	req := fingerprint.Request{Method: "GET", Path: "/verify/this", Query: "query=value"}

	tests := []struct {
		name            string
		resp            *http.Response
		wantStatus      int
		wantContentType string
		wantErr         bool
	}{
		{
			name: "ok response with content type",
			resp: &http.Response{
				StatusCode: 200,
				Header:     http.Header{"Content-Type": []string{"text/xml"}},
				Body:       io.NopCloser(bytes.NewReader([]byte("<response>Some content</response>"))),
			},
			wantStatus:      200,
			wantContentType: "text/xml",
		},
		{
			name: "not found without content type",
			resp: &http.Response{
				StatusCode: 404,
				Header:     http.Header{},
				Body:       io.NopCloser(bytes.NewReader(nil)),
			},
			wantStatus:      404,
			wantContentType: "",
		},
		{
			name: "server error is still recorded",
			resp: &http.Response{
				StatusCode: 503,
				Header:     http.Header{"Content-Type": []string{"application/json"}},
				Body:       io.NopCloser(bytes.NewReader([]byte(`{"error":"down"}`))),
			},
			wantStatus:      503,
			wantContentType: "application/json",
		},
		{
			name:    "nil response",
			resp:    nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, err := ResponseToEntry(req, tt.resp, now)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResponseToEntry() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			if entry.StatusCode != tt.wantStatus {
				t.Errorf("StatusCode = %v, want %v", entry.StatusCode, tt.wantStatus)
			}
			if entry.ContentType != tt.wantContentType {
				t.Errorf("ContentType = %q, want %q", entry.ContentType, tt.wantContentType)
			}
			if entry.TimeCreatedUtcMillis != now.UnixMilli() {
				t.Errorf("TimeCreatedUtcMillis = %v, want %v", entry.TimeCreatedUtcMillis, now.UnixMilli())
			}
			if entry.Request.RequestPath != "/verify/this?query=value" {
				t.Errorf("RequestPath = %v, want /verify/this?query=value", entry.Request.RequestPath)
			}

			// Verify body was restored
			body, _ := io.ReadAll(tt.resp.Body)
			if string(body) != entry.Content {
				t.Errorf("restored body = %q, want %q", body, entry.Content)
			}
		})
	}
}

func TestCachedEntry_Replay(t *testing.T) {
	entry := &CachedEntry{
		StatusCode:  404,
		Content:     "missing",
		ContentType: "text/plain",
	}

	w := httptest.NewRecorder()
	if err := entry.Replay(w); err != nil {
		t.Fatalf("Replay failed: %v", err)
	}

	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if w.Header().Get("Content-Type") != "text/plain" {
		t.Errorf("Content-Type = %q, want text/plain", w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "missing" {
		t.Errorf("body = %q, want missing", w.Body.String())
	}
}

func TestCachedEntry_ReplayWithoutContentType(t *testing.T) {
	entry := &CachedEntry{StatusCode: 200, Content: "<html>no type recorded</html>"}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := entry.Replay(w); err != nil {
			t.Errorf("Replay failed: %v", err)
		}
	}))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got, ok := resp.Header["Content-Type"]; ok {
		t.Errorf("Content-Type = %q, want no header", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != entry.Content {
		t.Errorf("body = %q, want %q", body, entry.Content)
	}
}
