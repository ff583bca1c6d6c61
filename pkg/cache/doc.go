// Package cache provides the file-backed response store of the replaying proxy.
//
// Every recorded response lives in its own JSON file inside the cache
// directory. At startup the store scans the directory and builds an in-memory
// index keyed by file path; lookups compare each indexed entry's fingerprint
// with the fingerprint of the incoming request.
//
// Features:
//
//   - One human-readable JSON file per recorded response
//   - Time-to-live expiry computed from the entry creation timestamp
//   - Optional reset of the whole directory before the first load
//   - Explicit compaction of expired files (never automatic)
//   - Prometheus metrics for hits, misses, entries and I/O errors
//
// # Basic Usage
//
//	store, err := cache.Open(cache.Config{
//		Dir:          "testdata/cache",
//		TTLSeconds:   cache.TTLForever,
//		MatchHeaders: fingerprint.MatchNameOnly,
//	})
//	if err != nil {
//		return err // startup is fatal on a broken cache directory
//	}
//
//	if entry, ok := store.Get(fp); ok {
//		// replay entry.StatusCode, entry.Content, entry.ContentType
//	}
//
//	// on a miss, after calling the backend
//	entry, err := cache.ResponseToEntry(req, resp, time.Now())
//	path, err := store.Put(req.RequestPath(), entry)
//
// # File Names
//
// A file is named after the request path it was recorded for, with '/'
// replaced by '-', '?' and '&' replaced by '+', followed by the creation time
// in Unix milliseconds:
//
//	/verify/this?query=value -> -verify-this+query=value-1700000000000.json
//
// Expired entries are ignored by Get but stay on disk, so several generations
// of the same request may accumulate until Reset or Compact is called.
//
// # Metrics
//
//   - replay_proxy_cache_hits_total - Cache hits
//   - replay_proxy_cache_misses_total - Cache misses (absent or expired)
//   - replay_proxy_cache_entries - Entries currently indexed
//   - replay_proxy_cache_errors_total{operation} - Cache file I/O errors
//   - replay_proxy_cache_files_removed_total{reason} - Files deleted by reset or compact
package cache
