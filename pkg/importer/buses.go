// Package importer parses spreadsheet uploads into domain rows.
package importer

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrMissingBusNumberColumn is returned when no header names the bus number.
var ErrMissingBusNumberColumn = errors.New("bus number column not found")

var (
	busNumberHeaders = []string{"bus_number", "busnumber", "numero", "número", "numero_bus", "bus"}
	plateHeaders     = []string{"plate", "patente", "placa"}
)

// BusRow is one data line of a bus sheet. Line is the 1-based sheet row.
type BusRow struct {
	Line      int
	BusNumber string
	Plate     string
}

// ParseBusSheet reads the first sheet of an .xlsx workbook. The first row is
// the header; fully blank rows are skipped.
func ParseBusSheet(r io.Reader) ([]BusRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingBusNumberColumn
	}

	numberCol, plateCol := -1, -1
	for i, cell := range rows[0] {
		name := normalizeHeader(cell)
		switch {
		case numberCol < 0 && contains(busNumberHeaders, name):
			numberCol = i
		case plateCol < 0 && contains(plateHeaders, name):
			plateCol = i
		}
	}
	if numberCol < 0 {
		return nil, ErrMissingBusNumberColumn
	}

	out := make([]BusRow, 0, len(rows)-1)
	for idx, row := range rows[1:] {
		rec := BusRow{Line: idx + 2, BusNumber: cellAt(row, numberCol), Plate: cellAt(row, plateCol)}
		if rec.BusNumber == "" && rec.Plate == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func normalizeHeader(raw string) string {
	h := strings.ToLower(strings.TrimSpace(raw))
	h = strings.ReplaceAll(h, " ", "_")
	return strings.ReplaceAll(h, "-", "_")
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
