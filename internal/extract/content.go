package extract

import (
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

var (
	shortDescriptionSelectors = []string{
		".woocommerce-product-details__short-description",
		".product-short-description",
		`[itemprop="description"]`,
	}
	fullDescriptionSelectors = []string{
		"#tab-description",
		".woocommerce-Tabs-panel--description",
		".woocommerce-product-content",
		".product-description",
	}
	imageSelectors = []string{
		".woocommerce-product-gallery__image img",
		".woocommerce-product-gallery img",
		".wp-post-image",
		".wvg-post-image",
		".product-images img",
		".product-gallery img",
		".flex-control-thumbs img",
		".thumbnails img",
	}
	tagSelectors = `.tagged_as a, .tags a, .product_tags a, [rel="tag"], .product_meta a[href*="/tag/"]`
)

var (
	tabInnerOpen  = regexp.MustCompile(`<div class="wc-tab-inner">`)
	divClose      = regexp.MustCompile(`</div>`)
	spaces        = regexp.MustCompile(`\s+`)
	bareImg       = regexp.MustCompile(`<img\s*/?>`)
	imageExt      = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)$`)
	priceNoise    = regexp.MustCompile(`[^0-9.]`)
	tagLinkRe     = regexp.MustCompile(`<a[^>]*/tag/([^"]+)"[^>]*>([^<]+)</a>`)
	taggedSpanRe  = regexp.MustCompile(`<span[^>]*tagged_as[^>]*>(Tags:|Tagged:)?([^<]+)</span>`)
	metaKeywordRe = regexp.MustCompile(`<meta[^>]*name="keywords"[^>]*content="([^"]+)"`)
)

// descriptionPolicy keeps paragraphs and image sources only.
func descriptionPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("p")
	p.AllowAttrs("src").OnElements("img")
	p.AllowStandardURLs()
	p.AddSpaceWhenStrippingTag(true)
	return p
}

// CleanDescription reduces a description fragment to <p> and <img src> tags,
// collapses whitespace and puts each paragraph on its own line.
func CleanDescription(policy *bluemonday.Policy, fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return ""
	}
	fragment = tabInnerOpen.ReplaceAllString(fragment, "")
	fragment = divClose.ReplaceAllString(fragment, " ")
	fragment = policy.Sanitize(fragment)
	fragment = bareImg.ReplaceAllString(fragment, "")
	fragment = strings.TrimSpace(spaces.ReplaceAllString(fragment, " "))
	fragment = strings.ReplaceAll(fragment, "</p>", "</p>\n")
	fragment = strings.ReplaceAll(fragment, "\n ", "\n")
	return strings.TrimSpace(fragment)
}

func firstDescription(doc *goquery.Document, policy *bluemonday.Policy, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		inner, err := sel.Html()
		if err != nil {
			return ""
		}
		return CleanDescription(policy, inner)
	}
	return ""
}

// CleanPrice keeps digits and dots only.
func CleanPrice(text string) string {
	return priceNoise.ReplaceAllString(text, "")
}

func collectImages(doc *goquery.Document, base *url.URL) []string {
	var out []string
	seen := map[string]bool{}
	doc.Find(strings.Join(imageSelectors, ",")).Each(func(_ int, img *goquery.Selection) {
		candidates := []string{
			img.AttrOr("data-large_image", ""),
			BestFromSrcset(img.AttrOr("srcset", "")),
			img.AttrOr("data-src", ""),
			img.AttrOr("src", ""),
		}
		for _, candidate := range candidates {
			clean := CleanImageURL(candidate, base)
			if clean == "" || seen[clean] || !imageExt.MatchString(clean) {
				continue
			}
			seen[clean] = true
			out = append(out, clean)
		}
	})
	return out
}

// BestFromSrcset returns the widest candidate of a srcset attribute.
func BestFromSrcset(srcset string) string {
	type source struct {
		url   string
		width int
	}
	var sources []source
	for _, entry := range strings.Split(srcset, ",") {
		fields := strings.Fields(entry)
		if len(fields) == 0 {
			continue
		}
		s := source{url: fields[0]}
		if len(fields) > 1 {
			s.width, _ = strconv.Atoi(strings.TrimRight(fields[1], "wx"))
		}
		sources = append(sources, s)
	}
	if len(sources) == 0 {
		return ""
	}
	slices.SortStableFunc(sources, func(a, b source) int { return b.width - a.width })
	return sources[0].url
}

// CleanImageURL upgrades protocol-relative URLs to https, resolves relative
// ones against base and drops the query string.
func CleanImageURL(raw string, base *url.URL) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if base != nil && !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		ref, err := url.Parse(raw)
		if err != nil {
			return ""
		}
		raw = base.ResolveReference(ref).String()
	}
	return raw
}

func collectTags(doc *goquery.Document, rawHTML string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(tag string) {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			return
		}
		seen[tag] = true
		out = append(out, tag)
	}
	doc.Find(tagSelectors).Each(func(_ int, s *goquery.Selection) {
		add(s.Text())
	})
	for _, re := range []*regexp.Regexp{tagLinkRe, taggedSpanRe, metaKeywordRe} {
		for _, m := range re.FindAllStringSubmatch(rawHTML, -1) {
			list := m[1]
			if len(m) > 2 && m[2] != "" {
				list = m[2]
			}
			for _, tag := range strings.Split(list, ",") {
				add(tag)
			}
		}
	}
	return out
}

func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}
