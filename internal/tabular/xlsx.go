package tabular

import (
	"github.com/tealeg/xlsx/v2"
)

// DecodeXLSX parses raw XLSX bytes and returns the rows of the first
// sheet. Trailing empty sheets are ignored.
func DecodeXLSX(data []byte) ([][]string, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, &InputError{Reason: "malformed XLSX: " + err.Error()}
	}
	if len(f.Sheets) == 0 {
		return nil, &InputError{Reason: "XLSX has no sheets"}
	}

	sheet := f.Sheets[0]
	var rows [][]string
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}

	if len(rows) == 0 {
		return nil, &InputError{Reason: "no rows"}
	}
	return rows, nil
}
