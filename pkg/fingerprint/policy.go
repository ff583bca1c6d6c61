package fingerprint

import (
	"fmt"
	"strings"
)

// MatchHeaders controls how headers take part in request matching.
type MatchHeaders string

const (
	// IgnoreHeaders excludes headers from matching entirely.
	IgnoreHeaders MatchHeaders = "IGNORE_HEADERS"

	// MatchNameOnly requires the same set of header names.
	MatchNameOnly MatchHeaders = "MATCH_NAME_ONLY"

	// MatchNameAndValue requires the same header names and values.
	MatchNameAndValue MatchHeaders = "MATCH_NAME_AND_VALUE"
)

// DefaultMatchHeaders is the policy used when none is configured.
const DefaultMatchHeaders = MatchNameOnly

// ParseMatchHeaders parses a policy name. Matching is case-insensitive and
// accepts '-' in place of '_'. An empty string yields DefaultMatchHeaders.
func ParseMatchHeaders(s string) (MatchHeaders, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch MatchHeaders(normalized) {
	case "":
		return DefaultMatchHeaders, nil
	case IgnoreHeaders, MatchNameOnly, MatchNameAndValue:
		return MatchHeaders(normalized), nil
	default:
		return "", fmt.Errorf("unknown header match policy %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler so policies can be read
// from YAML and flags.
func (m *MatchHeaders) UnmarshalText(text []byte) error {
	parsed, err := ParseMatchHeaders(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// String returns the policy name.
func (m MatchHeaders) String() string {
	return string(m)
}
