package cdp

import (
	"regexp"
	"strings"
	"sync"
)

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

// MatchPattern reports whether rawURL matches an extension match pattern of
// the form <scheme>://<host>/<path>. A "*" scheme matches http and https, a
// host of "*.example.com" matches example.com and any subdomain, and "*" in
// the path matches any run of characters. An empty pattern matches
// everything.
func MatchPattern(pattern, rawURL string) bool {
	if pattern == "" || pattern == "<all_urls>" {
		return true
	}
	re := compilePattern(pattern)
	return re != nil && re.MatchString(rawURL)
}

func compilePattern(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternCache[pattern]; ok {
		return re
	}

	var re *regexp.Regexp
	scheme, rest, ok := strings.Cut(pattern, "://")
	if ok {
		host, path, _ := strings.Cut(rest, "/")
		var b strings.Builder
		b.WriteString("^")
		switch scheme {
		case "*":
			b.WriteString("https?")
		default:
			b.WriteString(regexp.QuoteMeta(scheme))
		}
		b.WriteString("://")
		switch {
		case host == "*":
			b.WriteString("[^/]*")
		case strings.HasPrefix(host, "*."):
			b.WriteString(`([^/]*\.)?`)
			b.WriteString(regexp.QuoteMeta(host[2:]))
		default:
			b.WriteString(regexp.QuoteMeta(host))
		}
		// Ports are ignored by match patterns.
		b.WriteString("(:[0-9]+)?/")
		for i, part := range strings.Split(path, "*") {
			if i > 0 {
				b.WriteString(".*")
			}
			b.WriteString(regexp.QuoteMeta(part))
		}
		b.WriteString("$")
		re, _ = regexp.Compile(b.String())
	}
	patternCache[pattern] = re
	return re
}
