package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
)

// ResponseToEntry converts a backend response into a CachedEntry recorded for req.
// Every status code is accepted. The response body is restored after reading.
func ResponseToEntry(req fingerprint.Request, resp *http.Response, now time.Time) (*CachedEntry, error) {
	if resp == nil {
		return nil, fmt.Errorf("response cannot be nil")
	}

	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		resp.Body.Close()
	}

	// Restore body for caller
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return &CachedEntry{
		StatusCode:           resp.StatusCode,
		Request:              NewRecordedRequest(req),
		Content:              string(body),
		ContentType:          resp.Header.Get("Content-Type"),
		TimeCreatedUtcMillis: now.UnixMilli(),
	}, nil
}

// Replay writes the entry onto w: Content-Type, status code and body.
// Any extra headers (such as the cache marker) must be set on w beforehand.
func (e *CachedEntry) Replay(w http.ResponseWriter) error {
	if e.ContentType != "" {
		w.Header().Set("Content-Type", e.ContentType)
	} else {
		// A nil value stops net/http from sniffing one
		w.Header()["Content-Type"] = nil
	}
	w.WriteHeader(e.StatusCode)
	if _, err := io.WriteString(w, e.Content); err != nil {
		return fmt.Errorf("write response body: %w", err)
	}
	return nil
}
