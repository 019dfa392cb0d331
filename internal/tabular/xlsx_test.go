package tabular

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tealeg/xlsx/v2"
)

func buildXLSX(t *testing.T, rows [][]string) []byte {
	t.Helper()

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Providers")
	if err != nil {
		t.Fatalf("add sheet: %v", err)
	}
	for _, row := range rows {
		r := sheet.AddRow()
		for _, val := range row {
			r.AddCell().Value = val
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}
	return buf.Bytes()
}

func TestDecodeXLSX(t *testing.T) {
	data := buildXLSX(t, [][]string{
		{"provider name", "npi"},
		{"Dr. Sarah Smith", "1234567890"},
	})

	rows, err := DecodeXLSX(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[1][0] != "Dr. Sarah Smith" {
		t.Errorf("unexpected cell: %q", rows[1][0])
	}
}

func TestDecodeXLSX_Malformed(t *testing.T) {
	_, err := DecodeXLSX([]byte("this is not a zip archive"))
	var ie *InputError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InputError, got %v", err)
	}
}
