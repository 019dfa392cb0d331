// Package tabular decodes uploaded CSV and XLSX payloads into rows.
package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// InputError reports a problem with a client-supplied payload. Handlers
// map it to a 400 response.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return "tabular: " + e.Reason
}

// DecodeCSV parses raw CSV bytes into rows. Empty and non-UTF-8
// payloads are rejected with an InputError. Rows may have varying
// field counts.
func DecodeCSV(data []byte) ([][]string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &InputError{Reason: "empty file"}
	}
	if !utf8.Valid(data) {
		return nil, &InputError{Reason: "file is not valid UTF-8"}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &InputError{Reason: "malformed CSV: " + err.Error()}
		}
		for i, field := range record {
			record[i] = strings.TrimSpace(field)
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, &InputError{Reason: "no rows"}
	}
	return rows, nil
}

// EncodeCSV renders rows back into CSV text.
func EncodeCSV(rows [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", eris.Wrap(err, "tabular: encode csv")
	}
	return buf.String(), nil
}
