package cache

import (
	"math"
	"time"

	"github.com/davidgenn/HttpReplayingProxy/pkg/fingerprint"
)

// TTLForever is the default time-to-live in seconds. It is large enough that
// entries never expire in practice while ttl*1000 still fits in an int64.
const TTLForever int64 = math.MaxInt64 / 2000

// CachedEntry is a recorded backend response together with the request that
// produced it. Entries are immutable once written.
type CachedEntry struct {
	// StatusCode is the HTTP status code returned by the backend
	StatusCode int `json:"statusCode"`

	// Request is the request this response was recorded for
	Request RecordedRequest `json:"requestToProxy"`

	// Content is the response body
	Content string `json:"content"`

	// ContentType is the backend Content-Type header, empty if absent
	ContentType string `json:"contentType"`

	// TimeCreatedUtcMillis is when the entry was recorded (Unix milliseconds, UTC)
	TimeCreatedUtcMillis int64 `json:"timeCreatedUtcMillis"`
}

// RecordedRequest holds the fingerprint-relevant parts of the request that
// defined an entry.
type RecordedRequest struct {
	Headers     []fingerprint.Header `json:"headers"`
	RequestPath string               `json:"requestPath"`
	Method      string               `json:"method"`
	Body        string               `json:"body"`
}

// NewRecordedRequest captures req for persistence.
func NewRecordedRequest(req fingerprint.Request) RecordedRequest {
	headers := make([]fingerprint.Header, len(req.Headers))
	copy(headers, req.Headers)
	return RecordedRequest{
		Headers:     headers,
		RequestPath: req.RequestPath(),
		Method:      req.Method,
		Body:        req.Body,
	}
}

// FingerprintRequest converts the recorded request back into a
// fingerprint.Request. The query string stays part of Path, which yields the
// same fingerprint as the original request.
func (r RecordedRequest) FingerprintRequest() fingerprint.Request {
	return fingerprint.Request{
		Method:  r.Method,
		Path:    r.RequestPath,
		Headers: r.Headers,
		Body:    r.Body,
	}
}

// Fingerprint recomputes the entry's fingerprint under policy.
func (e *CachedEntry) Fingerprint(policy fingerprint.MatchHeaders) (string, error) {
	return fingerprint.Build(e.Request.FingerprintRequest(), policy)
}

// CreatedAt returns the creation timestamp in UTC.
func (e *CachedEntry) CreatedAt() time.Time {
	return time.UnixMilli(e.TimeCreatedUtcMillis).UTC()
}

// IsExpired returns true unless createdAt + ttl is strictly after now.
func (e *CachedEntry) IsExpired(ttlSeconds int64, now time.Time) bool {
	if ttlSeconds < 0 {
		return true
	}
	// ttl*1000 would overflow; such an entry never expires
	if ttlSeconds > (math.MaxInt64-e.TimeCreatedUtcMillis)/1000 {
		return false
	}
	return e.TimeCreatedUtcMillis+ttlSeconds*1000 <= now.UnixMilli()
}
