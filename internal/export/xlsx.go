// Package export writes estratto conto documents as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/xuri/excelize/v2"

	"totalx/internal/core"
)

// ContentType is the MIME type of the produced workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// FileName is the download name of key's export, e.g.
// "estratto_conto_export_mario.xlsx".
func FileName(key core.StoreKey) string {
	if key.IsAdmin() {
		return "estratto_conto_export_admin.xlsx"
	}
	return "estratto_conto_export_" + url.PathEscape(key.Owner().Handle()) + ".xlsx"
}

// XLSX renders doc on a single sheet named after its title: header, one row
// per movement, a blank row and the totals. Amounts are numeric cells.
func XLSX(doc core.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := doc.Title
	if sheet == "" {
		sheet = "Estratto Conto"
	}
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return nil, fmt.Errorf("open stream writer: %w", err)
	}

	row := 1
	write := func(values []any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return sw.SetRow(cell, values)
	}

	header := make([]any, len(doc.Header))
	for i, h := range doc.Header {
		header[i] = h
	}
	if err := write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, r := range doc.Rows {
		values := []any{r.Kind, r.Amount.Float64(), r.Principal.String(), r.Timestamp.Format(core.TimestampLayout)}
		if err := write(values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
	}
	row++ // blank separator
	for _, t := range doc.Trailer {
		if err := write([]any{t.Label, t.Amount.Float64()}); err != nil {
			return nil, fmt.Errorf("write totals: %w", err)
		}
	}
	if err := sw.Flush(); err != nil {
		return nil, fmt.Errorf("flush sheet: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}
