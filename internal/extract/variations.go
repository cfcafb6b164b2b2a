package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

const (
	attributePrefix = "attribute_"
	placeholderText = "Choose an option"
)

// attributeSet is an ordered attribute -> observed values mapping.
type attributeSet struct {
	names  []string
	values map[string][]string
}

func newAttributeSet() *attributeSet {
	return &attributeSet{values: make(map[string][]string)}
}

func (a *attributeSet) add(name, value string) {
	if name == "" || value == "" {
		return
	}
	existing, ok := a.values[name]
	if !ok {
		a.names = append(a.names, name)
	}
	for _, v := range existing {
		if v == value {
			return
		}
	}
	a.values[name] = append(existing, value)
}

func (a *attributeSet) empty() bool {
	return len(a.names) == 0
}

// combinations expands the Cartesian product. The first attribute varies
// slowest; every combination lists attributes in discovery order.
func (a *attributeSet) combinations() []catalog.Attributes {
	combos := []catalog.Attributes{nil}
	for _, name := range a.names {
		var next []catalog.Attributes
		for _, prefix := range combos {
			for _, value := range a.values[name] {
				combo := make(catalog.Attributes, len(prefix), len(prefix)+1)
				copy(combo, prefix)
				next = append(next, combo.Set(name, value))
			}
		}
		combos = next
	}
	return combos
}

// nativeVariation is one entry of WooCommerce's data-product_variations payload.
type nativeVariation struct {
	Attributes   orderedStrings  `json:"attributes"`
	DisplayPrice json.RawMessage `json:"display_price"`
	SKU          json.RawMessage `json:"sku"`
	IsInStock    bool            `json:"is_in_stock"`
	Image        struct {
		FullSrc string `json:"full_src"`
		Src     string `json:"src"`
	} `json:"image"`
}

// orderedStrings decodes a JSON object of scalars keeping key order.
type orderedStrings struct {
	keys   []string
	values map[string]string
}

func (o *orderedStrings) UnmarshalJSON(data []byte) error {
	o.keys = nil
	o.values = make(map[string]string)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("read attributes: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		// WooCommerce emits [] for products without attributes.
		return nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("read attribute name: %w", err)
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("read attribute %q: %w", key, err)
		}
		if _, seen := o.values[key]; !seen {
			o.keys = append(o.keys, key)
		}
		o.values[key] = scalarString(raw)
	}
	return nil
}

// scalarString renders a JSON scalar the way a browser would stringify it.
// false, null and 0 come back empty.
func scalarString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return ""
		}
		return s
	case 't':
		return "true"
	case 'f', 'n', '{', '[':
		return ""
	default:
		s := string(raw)
		if s == "0" {
			return ""
		}
		return s
	}
}

func parseNativeVariations(form *goquery.Selection) ([]nativeVariation, bool) {
	payload, ok := form.Attr("data-product_variations")
	if !ok {
		return nil, false
	}
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "[]" || payload == "false" {
		return nil, false
	}
	var out []nativeVariation
	if err := json.Unmarshal([]byte(payload), &out); err != nil {
		if err := json.Unmarshal([]byte(html.UnescapeString(payload)), &out); err != nil {
			return nil, false
		}
	}
	return out, len(out) > 0
}

// variationsFromPayload collects attribute value sets from the native payload.
func variationsFromPayload(native []nativeVariation) *attributeSet {
	var names []string
	seen := map[string]bool{}
	for _, v := range native {
		for _, key := range v.Attributes.keys {
			name := strings.Replace(key, attributePrefix, "", 1)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	set := newAttributeSet()
	for _, name := range names {
		for _, v := range native {
			set.add(name, v.Attributes.values[attributePrefix+name])
		}
	}
	return set
}

func variationsFromAttributeTable(doc *goquery.Document) *attributeSet {
	set := newAttributeSet()
	table := doc.Find(".woocommerce-product-attributes.shop_attributes").First()
	table.Find("tr.woocommerce-product-attributes-item").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find(".wd-attr-name-label").First().Text())
		cell := row.Find(".woocommerce-product-attributes-item__value").First()
		if label == "" || cell.Length() == 0 {
			return
		}
		cell.Find(".wd-attr-term p").Each(func(_ int, p *goquery.Selection) {
			set.add(strings.ToLower(label), strings.TrimSpace(p.Text()))
		})
	})
	return set
}

func variationsFromVariationTable(doc *goquery.Document) *attributeSet {
	set := newAttributeSet()
	doc.Find("table.variations").First().Find("tr").Each(func(_ int, row *goquery.Selection) {
		label := strings.TrimSpace(row.Find("th.label label").First().Text())
		sel := row.Find("select").First()
		if label == "" || sel.Length() == 0 {
			return
		}
		for _, option := range selectOptions(sel) {
			set.add(strings.ToLower(label), option)
		}
	})
	return set
}

func variationsFromSelects(doc *goquery.Document) *attributeSet {
	set := newAttributeSet()
	doc.Find(`select[name^="attribute_"]`).Each(func(_ int, sel *goquery.Selection) {
		name := strings.Replace(sel.AttrOr("name", ""), attributePrefix, "", 1)
		for _, option := range selectOptions(sel) {
			set.add(name, option)
		}
	})
	return set
}

func selectOptions(sel *goquery.Selection) []string {
	var out []string
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		value, ok := opt.Attr("value")
		if !ok {
			// Without a value attribute the option's text is its value.
			value = opt.Text()
		}
		if value == "" || value == placeholderText {
			return
		}
		if text := strings.TrimSpace(opt.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// fillGrid turns attribute sets into variations. Combinations missing from the
// native payload keep the base price and an empty SKU.
func fillGrid(set *attributeSet, native []nativeVariation, basePrice string) []catalog.VariationRecord {
	combos := set.combinations()
	out := make([]catalog.VariationRecord, 0, len(combos))
	for _, combo := range combos {
		variation := catalog.VariationRecord{
			Attributes: combo,
			Price:      basePrice,
			Stock:      catalog.StockUnknown,
		}
		if match := findNative(native, combo); match != nil {
			if price := scalarString(match.DisplayPrice); price != "" {
				variation.Price = price
			}
			variation.SKU = scalarString(match.SKU)
			variation.Stock = catalog.StockOutOfStock
			if match.IsInStock {
				variation.Stock = catalog.StockInStock
			}
			variation.Image = firstNonEmpty(match.Image.FullSrc, match.Image.Src)
		}
		out = append(out, variation)
	}
	return out
}

func findNative(native []nativeVariation, combo catalog.Attributes) *nativeVariation {
	for i := range native {
		matched := true
		for _, attr := range combo {
			value, ok := native[i].Attributes.values[attributePrefix+attr.Name]
			if !ok || value != attr.Value {
				matched = false
				break
			}
		}
		if matched {
			return &native[i]
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
