package excel

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

// ReadSheets parses every sheet of an XLSX workbook. Sheets without any
// data are skipped; a workbook without data yields no tables and no error.
func ReadSheets(content []byte) ([]loader.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var tables []loader.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			logger.Warn("[Excel] Skipping unreadable sheet", "sheet", sheet, "err", err)
			continue
		}
		t := loader.NewTable(sheet, rows)
		if len(t.Header) == 0 {
			continue
		}
		tables = append(tables, t)
	}
	return tables, nil
}
