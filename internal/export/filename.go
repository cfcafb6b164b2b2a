package export

import (
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var nonAlnumDash = regexp.MustCompile(`(?i)[^a-z0-9]`)

// FileName builds woocommerce-<site>-<timestamp>.csv, where site is the first
// label of the host without a leading www.
func FileName(siteURL string, now time.Time) string {
	host := siteURL
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.TrimPrefix(host, "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		label = "site"
	}
	label = nonAlnumDash.ReplaceAllString(label, "-")
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return "woocommerce-" + label + "-" + stamp + ".csv"
}

// OutputPath joins dir and the generated file name.
func OutputPath(dir, siteURL string, now time.Time) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, FileName(siteURL, now))
}
