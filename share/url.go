package share

import (
	"fmt"
	"net/url"
	"strings"
)

// QueryParam carries the token in share links.
const QueryParam = "s"

// MapPath is the canonical page a share link opens.
const MapPath = "/map"

// BuildURL returns the link that restores token on publicBaseURL.
func BuildURL(publicBaseURL, token string) (string, error) {
	base, err := url.Parse(strings.TrimSuffix(publicBaseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("share: invalid public base url %q: %w", publicBaseURL, err)
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + MapPath
	q := url.Values{}
	q.Set(QueryParam, token)
	base.RawQuery = q.Encode()
	return base.String(), nil
}
