// Package fingerprint turns an inbound HTTP request into the canonical string
// the replaying proxy uses to decide whether two requests are the same.
//
// A fingerprint is the concatenation, in fixed order, of:
//
//	requestPath=<path>[?<query>]
//	method=<METHOD>
//	headers=<header summary>
//	body=<request body as text>
//
// The header summary depends on the configured MatchHeaders policy:
//
//   - IGNORE_HEADERS: headers do not take part in matching
//   - MATCH_NAME_ONLY: sorted header names only (default)
//   - MATCH_NAME_AND_VALUE: sorted name=value pairs
//
// Content-Length and Host never take part in matching. Header names and
// pairs are concatenated without a separator, so ("ab","c") and ("a","bc")
// produce the same summary. This matches the format of existing cache files.
//
// # Basic Usage
//
//	req, err := fingerprint.FromHTTPRequest(r)
//	if err != nil {
//		return err
//	}
//	fp, err := fingerprint.Build(req, fingerprint.MatchNameOnly)
//	if err != nil {
//		// fingerprint.UnsupportedMethodError for e.g. PATCH
//		return err
//	}
package fingerprint
