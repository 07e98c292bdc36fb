package pagewalk

import (
	"net/url"
	"regexp"
)

// cursorPattern matches the cursor= query parameter embedded in an upstream
// page link. Links are sometimes relative or not strictly URL-shaped, so the
// pattern match backs up structured parsing.
var cursorPattern = regexp.MustCompile(`[?&]cursor=([^&]+)`)

// ExtractCursor pulls the opaque continuation token out of an upstream page
// link ("next"/"prev" relation). The token is round-tripped to the upstream
// service verbatim and never interpreted locally. Returns "" when the link
// carries no cursor.
func ExtractCursor(link string) string {
	if link == "" {
		return ""
	}
	if u, err := url.Parse(link); err == nil {
		if c := u.Query().Get("cursor"); c != "" {
			return c
		}
	}
	m := cursorPattern.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	if dec, err := url.QueryUnescape(m[1]); err == nil {
		return dec
	}
	return m[1]
}
