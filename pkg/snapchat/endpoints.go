package snapchat

import (
	"net/url"
	"regexp"
	"strings"
)

const (
	// BaseURL is the public web frontend of the service
	BaseURL = "https://www.snapchat.com"

	// DefaultUserAgent is a desktop browser; the profile page is not served to bots
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// nextDataPattern extracts the JSON state embedded in the profile page
var nextDataPattern = regexp.MustCompile(`<script\s*id="__NEXT_DATA__"\s*type="application/json">([^<]+)</script>`)

// GetProfileURL constructs the profile page URL of an account
func GetProfileURL(base, account string) string {
	if base == "" {
		base = BaseURL
	}
	return strings.TrimRight(base, "/") + "/add/" + url.PathEscape(account) + "/"
}

// extensionFor maps the service media type to a file extension, falling back
// to the extension found in the media URL path.
func extensionFor(mediaType int, mediaURL string) string {
	switch mediaType {
	case 0:
		return "jpg"
	case 1:
		return "mp4"
	}
	if u, err := url.Parse(mediaURL); err == nil {
		if i := strings.LastIndex(u.Path, "."); i >= 0 && i < len(u.Path)-1 {
			ext := strings.ToLower(u.Path[i+1:])
			if !strings.Contains(ext, "/") && len(ext) <= 5 {
				return ext
			}
		}
	}
	return "bin"
}
