package detector

import (
	"net/url"
	"regexp"
	"strings"
)

var paramSeparator = regexp.MustCompile(`[&;]`)

// StripParams removes the named query parameters from rawURL. Parameters are
// split on '&' or ';' and the kept ones are rejoined with '&' in their
// original order. A URL without a query component is returned unchanged.
func StripParams(rawURL string, names []string) string {
	base, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return rawURL
	}
	// Anything after a second '?' is dropped.
	query, _, _ = strings.Cut(query, "?")

	prefixes := make([]string, 0, len(names))
	for _, name := range names {
		prefixes = append(prefixes, url.QueryEscape(name)+"=")
	}

	params := paramSeparator.Split(query, -1)
	kept := params[:0]
	for _, p := range params {
		if hasAnyPrefix(p, prefixes) {
			continue
		}
		kept = append(kept, p)
	}
	return base + "?" + strings.Join(kept, "&")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
