package cache

import (
	"strconv"
	"strings"
)

var fileNameEscaper = strings.NewReplacer("/", "-", "?", "+", "&", "+")

// EscapeFileName makes a request path safe to use as a file name.
func EscapeFileName(seed string) string {
	return fileNameEscaper.Replace(seed)
}

// FileName returns the cache file name for seed recorded at millis.
// Format: escape(seed)-<millis>.json
func FileName(seed string, millis int64) string {
	return EscapeFileName(seed) + "-" + strconv.FormatInt(millis, 10) + ".json"
}
