package discovery

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidSiteURL is returned for site roots that are not absolute http(s) URLs.
var ErrInvalidSiteURL = errors.New("site url must start with http:// or https:// and include a host")

var localeSegment = regexp.MustCompile(`/[a-z]{2}/`)

// NormalizeSiteRoot validates rawURL and returns it with a lowercase scheme and
// host, no default port, no query or fragment, and no trailing slash.
func NormalizeSiteRoot(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse site url: %w", err)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSiteURL, rawURL)
	}
	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawQuery = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String(), nil
}

// ValidateSiteURL reports whether rawURL can be used as a site root.
func ValidateSiteURL(rawURL string) error {
	_, err := NormalizeSiteRoot(rawURL)
	return err
}

// IsProductURL keeps product pages and drops localized duplicates such as
// /fr/product/... .
func IsProductURL(rawURL string) bool {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		path = u.EscapedPath()
	}
	if localeSegment.MatchString(path) {
		return false
	}
	return strings.Contains(path, "/product/") || strings.Contains(path, "/products/")
}
