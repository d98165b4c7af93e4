package excelx

import (
	"fmt"
	"strings"
)

// Field declares one logical column and the header spellings accepted for it.
// Variants are tried in order against the sheet's first row; first match wins.
type Field struct {
	Name     string
	Variants []string
	Required bool
}

// HeaderMap is the declarative header specification for one upload format.
type HeaderMap []Field

// Columns maps logical field names to zero-based column indexes.
type Columns map[string]int

// MissingHeadersError aggregates every required field with no matching header.
// The whole upload is aborted before any row is processed.
type MissingHeadersError struct {
	Fields []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("excelx: missing required columns: %s", strings.Join(e.Fields, ", "))
}

// Resolve matches the header row against the map. Optional fields that do not
// match are simply absent from the result.
func (m HeaderMap) Resolve(header []string) (Columns, error) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = NormalizeText(h)
	}

	cols := make(Columns, len(m))
	var missing []string
	for _, field := range m {
		idx := -1
	variants:
		for _, v := range field.Variants {
			want := NormalizeText(v)
			for i, h := range normalized {
				if strings.EqualFold(h, want) {
					idx = i
					break variants
				}
			}
		}
		if idx >= 0 {
			cols[field.Name] = idx
			continue
		}
		if field.Required {
			missing = append(missing, field.Name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingHeadersError{Fields: missing}
	}
	return cols, nil
}

// Cell returns the trimmed value of the named field in a data row, or ""
// when the column is absent or the row is short.
func (c Columns) Cell(row []string, field string) string {
	idx, ok := c[field]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
