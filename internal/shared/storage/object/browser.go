package object

import (
	"net/url"
	"strings"
)

// BrowserLink guesses a MinIO console link for an object. The console is
// assumed to listen on 9001 when the API listens on 9000. Returns "" when no
// base URL is available.
func BrowserLink(publicURL, endpoint, bucket, key string) string {
	if key == "" {
		return ""
	}
	base := strings.TrimRight(publicURL, "/")
	if base == "" {
		base = strings.TrimRight(endpoint, "/")
	}
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return ""
	}
	if u.Port() == "9000" {
		u.Host = u.Hostname() + ":9001"
	}
	u.Path = "/browser/" + strings.Trim(bucket, "/") + "/" + strings.TrimLeft(key, "/")
	u.RawQuery = ""
	return u.String()
}
