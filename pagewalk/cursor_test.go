package pagewalk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractCursor(t *testing.T) {
	cases := []struct {
		name string
		link string
		want string
	}{
		{"empty link", "", ""},
		{"no cursor param", "/api/spaces?limit=25&start=50", ""},
		{"absolute url", "https://wiki.example.com/api/spaces?limit=25&cursor=abc123", "abc123"},
		{"relative path", "/api/spaces?cursor=abc123", "abc123"},
		{"cursor first", "/api/spaces?cursor=abc123&limit=25", "abc123"},
		{"cursor last", "/api/spaces?limit=25&cursor=abc123", "abc123"},
		{"url-encoded token", "/api/spaces?cursor=a%2Bb%3D%3D&limit=25", "a+b=="},
		{"opaque base64ish token", "/api/pages/search?cursor=eyJpZCI6IjQyIn0=", "eyJpZCI6IjQyIn0="},
		{"not a parseable url", "::bad::?cursor=tok", "tok"},
		{"empty cursor value", "/api/spaces?cursor=&limit=25", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractCursor(tc.link))
		})
	}
}

func TestExtractCursorRoundTrip(t *testing.T) {
	// The token is handed back verbatim, never interpreted.
	link := "/api/things?limit=10&cursor=opaque-token-17"
	got := ExtractCursor(link)
	assert.Equal(t, "opaque-token-17", got)
	assert.Equal(t, got, ExtractCursor("/api/things?cursor="+got))
}
