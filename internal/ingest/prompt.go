// Package ingest cleans messy provider spreadsheets into structured
// records using an LLM, then repairs and validates the model output.
package ingest

import (
	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/tabular"
)

// BuildCleaningPrompt renders the data cleaning instructions around a
// CSV sample. The first row is treated as the header; at most maxRows
// data rows are included.
func BuildCleaningPrompt(rows [][]string, maxRows int) (string, error) {
	sample := rows
	if len(rows) > maxRows+1 {
		sample = rows[:maxRows+1]
	}

	csvText, err := tabular.EncodeCSV(sample)
	if err != nil {
		return "", eris.Wrap(err, "ingest: render csv sample")
	}

	return `You are a healthcare data cleaning AI. Your task is to clean, normalize, and structure messy provider data.

INPUT DATA (CSV):
` + csvText + `
INSTRUCTIONS:
1. Parse the CSV and extract provider information
2. Map data to these standard fields: provider_id, name, specialty, phone, email, address, npi_number, license_number
3. Clean and normalize:
   - Names: Title Case (e.g., "john doe" -> "John Doe")
   - Emails: lowercase
   - Phones: digits only with optional + prefix (e.g., "(555) 123-4567" -> "+15551234567")
   - Addresses: single normalized string
   - Specialties: Fix typos (e.g., "cardiolgy" -> "cardiology")
4. Extract data from free text (e.g., "John MD - NPI 7782 - CA license 1234")
5. Infer missing headers or handle combined fields
6. For each field, provide a confidence score (0.0-1.0)
7. Document all changes in ai_notes array
8. If provider_id is missing, leave it null (will auto-generate)
9. Use null for missing values, not empty strings

OUTPUT FORMAT:
Return a valid JSON object with this exact structure:
{
  "providers": [
    {
      "provider_id": "string or null",
      "name": "string or null",
      "specialty": "string or null",
      "phone": "string or null",
      "email": "string or null",
      "address": "string or null",
      "npi_number": "string or null",
      "license_number": "string or null",
      "confidence": {
        "provider_id": 0.95,
        "name": 0.98,
        "specialty": 0.85,
        "phone": 0.90,
        "email": 0.92,
        "address": 0.88,
        "npi_number": 0.99,
        "license_number": 0.87
      },
      "ai_notes": [
        "Corrected spelling of specialty from 'cardiolgy' to 'cardiology'",
        "Extracted NPI from combined text field"
      ],
      "source_row": 0
    }
  ]
}

CRITICAL: Return ONLY valid JSON. No markdown, no explanations, no code blocks - just the raw JSON object.
`, nil
}
