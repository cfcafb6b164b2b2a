// Package extract parses rendered WooCommerce product pages into catalog records.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

// ErrNotProductPage is returned when a page carries none of the product markup.
var ErrNotProductPage = errors.New("page has no product markup")

// WooCommerce extracts products using WooCommerce theme conventions.
type WooCommerce struct {
	policy *bluemonday.Policy
	logger *zap.Logger
}

// New builds a WooCommerce extractor.
func New(logger *zap.Logger) *WooCommerce {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WooCommerce{
		policy: descriptionPolicy(),
		logger: logger,
	}
}

// Extract loads url through session and parses the result. Every failure is
// returned as a *catalog.ExtractionError.
func (w *WooCommerce) Extract(ctx context.Context, session catalog.Session, pageURL string) (*catalog.ProductRecord, error) {
	page, err := session.Fetch(ctx, pageURL)
	if err != nil {
		return nil, &catalog.ExtractionError{URL: pageURL, Err: err}
	}
	product, err := w.Parse(pageURL, page.Body)
	if err != nil {
		return nil, &catalog.ExtractionError{URL: pageURL, Err: err}
	}
	return product, nil
}

// Parse builds a ProductRecord from a rendered document.
func (w *WooCommerce) Parse(pageURL string, body []byte) (*catalog.ProductRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if !isProductPage(doc) {
		return nil, ErrNotProductPage
	}
	base, _ := url.Parse(pageURL)

	price := CleanPrice(doc.Find(".price .amount").First().Text())
	product := &catalog.ProductRecord{
		Kind:             catalog.KindSimple,
		URL:              pageURL,
		Name:             strings.TrimSpace(doc.Find(".product_title").First().Text()),
		RegularPrice:     price,
		Categories:       texts(doc.Find(".posted_in a")),
		Tags:             collectTags(doc, string(body)),
		Images:           collectImages(doc, base),
		ShortDescription: firstDescription(doc, w.policy, shortDescriptionSelectors),
		FullDescription:  firstDescription(doc, w.policy, fullDescriptionSelectors),
	}

	form := doc.Find(".variations_form").First()
	if form.Length() > 0 {
		product.Kind = catalog.KindVariable
		product.Variations, product.VariationSource = w.variations(doc, form, price)
		w.logger.Debug("variations extracted",
			zap.String("url", pageURL),
			zap.String("source", string(product.VariationSource)),
			zap.Int("count", len(product.Variations)),
		)
	}
	return product, nil
}

// variations tries each markup strategy in turn and stops at the first one
// that yields variations.
func (w *WooCommerce) variations(
	doc *goquery.Document,
	form *goquery.Selection,
	basePrice string,
) ([]catalog.VariationRecord, catalog.VariationSource) {
	if native, ok := parseNativeVariations(form); ok {
		if set := variationsFromPayload(native); !set.empty() {
			return fillGrid(set, native, basePrice), catalog.SourceVariationsJSON
		}
	}
	strategies := []struct {
		source catalog.VariationSource
		build  func(*goquery.Document) *attributeSet
	}{
		{catalog.SourceAttributeTable, variationsFromAttributeTable},
		{catalog.SourceVariationTable, variationsFromVariationTable},
		{catalog.SourceSelects, variationsFromSelects},
	}
	for _, s := range strategies {
		if set := s.build(doc); !set.empty() {
			return fillGrid(set, nil, basePrice), s.source
		}
	}
	return nil, catalog.SourceNone
}

func isProductPage(doc *goquery.Document) bool {
	return doc.Find(".product_title, .variations_form, .price .amount").Length() > 0
}
