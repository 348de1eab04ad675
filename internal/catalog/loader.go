// Package catalog reads product catalogs exported as CSV or Excel files.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/osusume/internal/models"
)

// SupportedExtensions lists the catalog file extensions Load understands.
var SupportedExtensions = []string{".csv", ".xlsx"}

// Loader turns catalog files into items.
type Loader struct{}

// NewLoader returns a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads the catalog at path. The first row is the header; each further row is one item.
func (l *Loader) Load(path string) ([]models.Item, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return l.LoadBytes(content, strings.ToLower(filepath.Ext(path)))
}

// LoadBytes parses content according to ext (".csv" or ".xlsx").
func (l *Loader) LoadBytes(content []byte, ext string) ([]models.Item, error) {
	var rows [][]string
	var err error
	switch ext {
	case ".csv":
		rows, err = readCSV(content)
	case ".xlsx":
		rows, err = readXLSX(content)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	return rowsToItems(rows), nil
}

// IsSupported reports whether path has a catalog extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// rowsToItems maps rows to items by header name. Rows without an id get their
// zero-based data row number.
func rowsToItems(rows [][]string) []models.Item {
	if len(rows) == 0 {
		return []models.Item{}
	}
	columns := make(map[string]int)
	for i, name := range rows[0] {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	get := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := columns[name]; ok && i < len(row) {
				if v := strings.TrimSpace(row[i]); v != "" {
					return v
				}
			}
		}
		return ""
	}

	items := make([]models.Item, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		id := get(row, "uniq_id", "id")
		if id == "" {
			id = strconv.Itoa(n)
		}
		it := models.Item{
			ID:          id,
			Title:       get(row, "title", "product_name"),
			Description: get(row, "description"),
			Brand:       get(row, "brand"),
			Price:       parsePrice(get(row, "price")),
			Categories:  splitList(get(row, "categories")),
			Images:      splitList(get(row, "images")),
			Material:    get(row, "material"),
			Color:       get(row, "color"),
		}
		it.Normalize()
		items = append(items, it)
	}
	return items
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, "|") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePrice accepts plain numbers and values like "$1,299.00"; anything else is 0.
func parsePrice(s string) float64 {
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
