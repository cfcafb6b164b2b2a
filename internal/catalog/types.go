// Package catalog defines the product model and the contracts shared by the
// discovery, extraction, worker and export subsystems.
package catalog

import (
	"net/http"
	"time"
)

// ProductKind tags a ProductRecord as simple or variable.
type ProductKind string

// Supported product kinds.
const (
	KindSimple   ProductKind = "simple"
	KindVariable ProductKind = "variable"
)

// StockStatus mirrors the WooCommerce stock flag for a single variation.
type StockStatus string

// Stock values reported on variations.
const (
	StockInStock    StockStatus = "instock"
	StockOutOfStock StockStatus = "outofstock"
	StockUnknown    StockStatus = "unknown"
)

// VariationSource records which markup strategy produced a product's variations.
type VariationSource string

// Variation strategies in the order the extractor tries them.
const (
	SourceNone           VariationSource = ""
	SourceVariationsJSON VariationSource = "variations_json"
	SourceAttributeTable VariationSource = "attribute_table"
	SourceVariationTable VariationSource = "variation_table"
	SourceSelects        VariationSource = "attribute_selects"
)

// Attribute is a single name/value pair on a variation.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Attributes is an ordered attribute mapping with unique names.
type Attributes []Attribute

// Get returns the value for name.
func (a Attributes) Get(name string) (string, bool) {
	for _, attr := range a {
		if attr.Name == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Set replaces the value for name or appends it, keeping discovery order.
func (a Attributes) Set(name, value string) Attributes {
	for i := range a {
		if a[i].Name == name {
			a[i].Value = value
			return a
		}
	}
	return append(a, Attribute{Name: name, Value: value})
}

// Names lists attribute names in order.
func (a Attributes) Names() []string {
	names := make([]string, 0, len(a))
	for _, attr := range a {
		names = append(names, attr.Name)
	}
	return names
}

// Values lists attribute values in order.
func (a Attributes) Values() []string {
	values := make([]string, 0, len(a))
	for _, attr := range a {
		values = append(values, attr.Value)
	}
	return values
}

// VariationRecord is one SKU-bearing combination of a variable product.
type VariationRecord struct {
	Attributes Attributes  `json:"attributes"`
	Price      string      `json:"price"`
	SKU        string      `json:"sku"`
	Stock      StockStatus `json:"stock"`
	Image      string      `json:"image,omitempty"`
}

// ProductRecord is the normalized result of extracting one product page.
type ProductRecord struct {
	Kind             ProductKind       `json:"kind"`
	URL              string            `json:"url"`
	Name             string            `json:"name"`
	ShortDescription string            `json:"short_description"`
	FullDescription  string            `json:"full_description"`
	RegularPrice     string            `json:"regular_price"`
	Categories       []string          `json:"categories"`
	Tags             []string          `json:"tags"`
	Images           []string          `json:"images"`
	Variations       []VariationRecord `json:"variations,omitempty"`
	VariationSource  VariationSource   `json:"variation_source,omitempty"`
}

// Warning codes returned by ProductRecord.Warnings.
const (
	WarnVariableWithoutVariations = "variable product has no variations"
	WarnMissingName               = "missing name"
	WarnMissingPrice              = "missing regular price"
	WarnMissingImages             = "no images found"
)

// Warnings reports data-quality problems that do not fail extraction.
func (p *ProductRecord) Warnings() []string {
	if p == nil {
		return nil
	}
	var out []string
	if p.Kind == KindVariable && len(p.Variations) == 0 {
		out = append(out, WarnVariableWithoutVariations)
	}
	if p.Name == "" {
		out = append(out, WarnMissingName)
	}
	if p.RegularPrice == "" && p.Kind == KindSimple {
		out = append(out, WarnMissingPrice)
	}
	if len(p.Images) == 0 {
		out = append(out, WarnMissingImages)
	}
	return out
}

// Page is the rendered document returned by a Session.
type Page struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}
