// Package export flattens product records into WooCommerce import rows and
// writes them as CSV.
package export

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

// FirstID is the ID assigned to the first emitted row.
const FirstID = 1000

const skuBaseLen = 15

var (
	nonAlnum   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// AttributeColumn is one numbered attribute group on a row.
type AttributeColumn struct {
	Name    string
	Values  string
	Visible string
	Global  string
}

// Row is one line of the WooCommerce import file.
type Row struct {
	ID           int
	Type         string
	SKU          string
	Name         string
	Published    string
	Featured     string
	Visibility   string
	Description  string
	TaxStatus    string
	InStock      string
	Stock        string
	Categories   string
	Tags         string
	Images       string
	Parent       string
	Position     string
	RegularPrice string
	// Attributes always has Table.MaxAttributes entries; unused slots are empty.
	Attributes []AttributeColumn
}

// Table is the expanded export ready for serialization.
type Table struct {
	Rows          []Row
	MaxAttributes int
	// Warnings lists products whose export lost information.
	Warnings []string
}

// Expand converts products into rows. Products are visited in input order, nil
// entries are skipped without consuming an ID. Expand never mutates its input.
func Expand(products []*catalog.ProductRecord) Table {
	width := MaxAttributes(products)
	table := Table{MaxAttributes: width}
	nextID := FirstID

	for _, product := range products {
		if product == nil {
			continue
		}
		switch product.Kind {
		case catalog.KindVariable:
			if len(product.Variations) == 0 {
				table.Warnings = append(table.Warnings,
					fmt.Sprintf("%s: %s", productLabel(product), catalog.WarnVariableWithoutVariations))
				table.Rows = append(table.Rows, standaloneRow(product, nextID, string(catalog.KindVariable), width))
				nextID++
				continue
			}
			parentID := nextID
			table.Rows = append(table.Rows, parentRow(product, parentID, width))
			nextID++
			for i, variation := range product.Variations {
				table.Rows = append(table.Rows, variationRow(product, variation, nextID, parentID, i+1, width))
				nextID++
			}
			if dropped := droppedAttributes(product, width); dropped > 0 {
				table.Warnings = append(table.Warnings,
					fmt.Sprintf("%s: %d attribute value(s) exceed the column width of %d", productLabel(product), dropped, width))
			}
		default:
			table.Rows = append(table.Rows, standaloneRow(product, nextID, string(catalog.KindSimple), width))
			nextID++
		}
	}
	return table
}

// MaxAttributes returns the attribute column count: the largest attribute count
// among the first variations of variable products. Later variations do not
// widen the table.
func MaxAttributes(products []*catalog.ProductRecord) int {
	width := 0
	for _, product := range products {
		if product == nil || product.Kind != catalog.KindVariable || len(product.Variations) == 0 {
			continue
		}
		width = max(width, len(product.Variations[0].Attributes))
	}
	return width
}

// BaseSKU strips non-alphanumerics from name and truncates the result.
func BaseSKU(name string) string {
	sku := nonAlnum.ReplaceAllString(name, "")
	if len(sku) > skuBaseLen {
		sku = sku[:skuBaseLen]
	}
	return sku
}

func baseRow(product *catalog.ProductRecord, id int, width int) Row {
	return Row{
		ID:          id,
		SKU:         BaseSKU(product.Name),
		Name:        product.Name,
		Published:   "1",
		Featured:    "0",
		Visibility:  "visible",
		Description: product.FullDescription,
		TaxStatus:   "taxable",
		InStock:     "1",
		Stock:       "1000",
		Categories:  strings.Join(product.Categories, ", "),
		Tags:        strings.Join(product.Tags, ", "),
		Images:      strings.Join(product.Images, ","),
		Position:    "0",
		Attributes:  make([]AttributeColumn, width),
	}
}

func standaloneRow(product *catalog.ProductRecord, id int, kind string, width int) Row {
	row := baseRow(product, id, width)
	row.Type = kind
	row.RegularPrice = product.RegularPrice
	return row
}

func parentRow(product *catalog.ProductRecord, id int, width int) Row {
	row := baseRow(product, id, width)
	row.Type = string(catalog.KindVariable)
	for i, name := range product.Variations[0].Attributes.Names() {
		if i >= width {
			break
		}
		if name == "" {
			continue
		}
		global := "0"
		if i == 0 {
			global = "1"
		}
		row.Attributes[i] = AttributeColumn{
			Name:    name,
			Values:  strings.Join(distinctValues(product.Variations, name), ", "),
			Visible: "1",
			Global:  global,
		}
	}
	return row
}

func variationRow(
	product *catalog.ProductRecord,
	variation catalog.VariationRecord,
	id, parentID, position, width int,
) Row {
	values := variation.Attributes.Values()
	row := Row{
		ID:           id,
		Type:         "variation",
		SKU:          BaseSKU(product.Name) + "-" + whitespace.ReplaceAllString(strings.Join(values, "-"), ""),
		Name:         product.Name + " - " + strings.Join(values, " "),
		Published:    "1",
		Featured:     "0",
		Visibility:   "visible",
		TaxStatus:    "taxable",
		InStock:      "1",
		Stock:        "1000",
		Images:       variation.Image,
		Parent:       "id:" + strconv.Itoa(parentID),
		Position:     strconv.Itoa(position),
		RegularPrice: variation.Price,
		Attributes:   make([]AttributeColumn, width),
	}
	for i, attr := range variation.Attributes {
		if i >= width {
			break
		}
		if attr.Name == "" || attr.Value == "" {
			continue
		}
		row.Attributes[i] = AttributeColumn{Name: attr.Name, Values: attr.Value, Visible: "1", Global: "1"}
	}
	return row
}

func distinctValues(variations []catalog.VariationRecord, name string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, v := range variations {
		value, ok := v.Attributes.Get(name)
		if !ok || value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func droppedAttributes(product *catalog.ProductRecord, width int) int {
	dropped := 0
	for _, v := range product.Variations {
		if extra := len(v.Attributes) - width; extra > 0 {
			dropped += extra
		}
	}
	return dropped
}

func productLabel(product *catalog.ProductRecord) string {
	if product.Name != "" {
		return product.Name
	}
	return product.URL
}
