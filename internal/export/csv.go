package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/JakeFAU/catalog-scraper/internal/catalog"
)

var baseHeader = []string{
	"ID",
	"Type",
	"SKU",
	"Name",
	"Published",
	"Is featured?",
	"Visibility in catalog",
	"Description",
	"Tax status",
	"In stock?",
	"Stock",
	"Categories",
	"Tags",
	"Images",
	"Parent",
	"Position",
	"Regular price",
}

// Header returns the column titles for a table with the given attribute width.
func Header(maxAttributes int) []string {
	header := append([]string(nil), baseHeader...)
	for i := 1; i <= maxAttributes; i++ {
		header = append(header,
			fmt.Sprintf("Attribute %d name", i),
			fmt.Sprintf("Attribute %d value(s)", i),
			fmt.Sprintf("Attribute %d visible", i),
			fmt.Sprintf("Attribute %d global", i),
		)
	}
	return header
}

// Record renders a row in header order.
func (r Row) Record() []string {
	record := []string{
		strconv.Itoa(r.ID),
		r.Type,
		r.SKU,
		r.Name,
		r.Published,
		r.Featured,
		r.Visibility,
		r.Description,
		r.TaxStatus,
		r.InStock,
		r.Stock,
		r.Categories,
		r.Tags,
		r.Images,
		r.Parent,
		r.Position,
		r.RegularPrice,
	}
	for _, attr := range r.Attributes {
		record = append(record, attr.Name, attr.Values, attr.Visible, attr.Global)
	}
	return record
}

// CSVWriter serializes tables in the WooCommerce product import format.
type CSVWriter struct{}

// NewCSVWriter returns a writer.
func NewCSVWriter() *CSVWriter {
	return &CSVWriter{}
}

// Write emits the header and every row of table to w.
func (cw *CSVWriter) Write(w io.Writer, table Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header(table.MaxAttributes)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := writer.Write(row.Record()); err != nil {
			return fmt.Errorf("write csv row %d: %w", row.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv rows: %w", err)
	}
	return nil
}

// WriteFile creates path (and its parent directory) and writes table to it.
// Errors are returned as *catalog.WriteError.
func (cw *CSVWriter) WriteFile(path string, table Table) (err error) {
	if err := ensureDir(path); err != nil {
		return &catalog.WriteError{Path: path, Err: err}
	}
	f, err := os.Create(path)
	if err != nil {
		return &catalog.WriteError{Path: path, Err: fmt.Errorf("create csv file: %w", err)}
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &catalog.WriteError{Path: path, Err: fmt.Errorf("close csv file: %w", cerr)}
		}
	}()
	if err := cw.Write(f, table); err != nil {
		return &catalog.WriteError{Path: path, Err: err}
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}
