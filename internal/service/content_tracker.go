// internal/service/content_tracker.go
package service

import (
	"net/url"
	"regexp"
	"strings"
)

// trackableHref matches only double-quoted absolute http(s) links. mailto:,
// tel: and fragment links never match and pass through untouched.
var trackableHref = regexp.MustCompile(`href="(https?://[^"]+)"`)

// TrackContent adds the open pixel and rewrites links for click tracking.
// It is a literal text transform: everything outside the pixel insertion
// point and the matched href attributes is kept byte for byte.
func TrackContent(html, campaignID, recipientEmail, baseURL string) string {
	encodedEmail := EncodeURIComponent(recipientEmail)

	pixel := `<img src="` + baseURL + `/track/open/` + campaignID + `/` + encodedEmail +
		`" width="1" height="1" style="display:none;" alt="" />`

	tracked := html
	if strings.Contains(tracked, "</body>") {
		tracked = strings.Replace(tracked, "</body>", pixel+"</body>", 1)
	} else {
		tracked += pixel
	}

	clickBase := baseURL + "/track/click/" + campaignID + "/" + encodedEmail + "?url="
	return trackableHref.ReplaceAllStringFunc(tracked, func(match string) string {
		target := match[len(`href="`) : len(match)-1]
		return `href="` + clickBase + EncodeURIComponent(target) + `"`
	})
}

// EncodeURIComponent escapes s like JavaScript's encodeURIComponent: only
// A-Z a-z 0-9 and - _ . ! ~ * ' ( ) are left as is, and space becomes %20.
func EncodeURIComponent(s string) string {
	escaped := url.QueryEscape(s)
	return uriComponentFixups.Replace(escaped)
}

var uriComponentFixups = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)
