package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"autodoc/api/internal/store"
)

const catalogSheet = "Documents"

var catalogHeaders = []string{"Id", "FormName", "SchemaName", "Key", "Value"}

// CatalogXLSX writes one row per extracted key/value pair. Documents
// without pairs still get a single row so every stored id appears.
func CatalogXLSX(docs []store.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if _, err := f.NewSheet(catalogSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	index, err := f.GetSheetIndex(catalogSheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("drop default sheet: %w", err)
	}

	for i, h := range catalogHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(catalogSheet, cell, h)
	}

	row := 2
	write := func(values ...any) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(catalogSheet, cell, v)
		}
		row++
	}

	for _, doc := range docs {
		schema := doc.Data.SchemaName()
		pairs := doc.Data.ExtractedPairs()
		if len(pairs) == 0 {
			write(doc.ID, doc.FormName, schema, "", "")
			continue
		}
		for _, pair := range pairs {
			write(doc.ID, doc.FormName, schema, pair.Key, pair.Value)
		}
	}

	_ = f.SetColWidth(catalogSheet, "A", "A", 8)
	_ = f.SetColWidth(catalogSheet, "B", "C", 28)
	_ = f.SetColWidth(catalogSheet, "D", "D", 24)
	_ = f.SetColWidth(catalogSheet, "E", "E", 48)
	_ = f.SetPanes(catalogSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
