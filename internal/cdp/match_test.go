package cdp

import "testing"

func TestMatchPattern(t *testing.T) {
	const yt = "*://*.youtube.com/*"
	tests := []struct {
		pattern string
		url     string
		want    bool
	}{
		{yt, "https://www.youtube.com/watch?v=abc", true},
		{yt, "http://m.youtube.com/", true},
		{yt, "https://youtube.com/watch?v=abc", true},
		{yt, "https://music.youtube.com:443/playlist", true},
		{yt, "https://www.youtube.com", false},
		{yt, "https://notyoutube.com/watch", false},
		{yt, "https://www.youtube.com.evil.example/watch", false},
		{yt, "ftp://www.youtube.com/file", false},
		{yt, "chrome://newtab/", false},
		{"https://example.com/a/*", "https://example.com/a/b/c", true},
		{"https://example.com/a/*", "https://example.com/b", false},
		{"*://*/*", "http://localhost:8080/x", true},
		{"", "anything", true},
		{"<all_urls>", "https://example.com/", true},
		{"not a pattern", "https://example.com/", false},
	}
	for _, tt := range tests {
		if got := MatchPattern(tt.pattern, tt.url); got != tt.want {
			t.Errorf("MatchPattern(%q, %q) = %v; want %v", tt.pattern, tt.url, got, tt.want)
		}
	}
}
