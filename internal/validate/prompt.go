// Package validate cross-checks cleaned provider records against the
// NPI registry and reconciles them through an LLM.
package validate

const validationInstructions = `You are a Provider Validation Agent.

Your tasks:
- Compare INPUT_PROVIDER_DATA against EXTERNAL_REFERENCE_DATA.
- Identify discrepancies.
- Suggest corrected fields in updated_fields.
- Assign confidence_scores for every field.
- Add validation_notes explaining changes.
- Decide requires_manual_review = true/false.

CRITICAL RULES:
1. If INPUT_PROVIDER_DATA has NO 'npi_number', you MUST:
   - add "Missing NPI Number" to discrepancies
   - set requires_manual_review = true
   - set confidence_scores.npi_number = 0.0

2. If EXTERNAL_REFERENCE_DATA is empty or contains "error", but an NPI was provided:
   - add "Invalid NPI - No match found in registry" to discrepancies
   - set requires_manual_review = true

3. If data matches the external reference, confidence should be high (0.9-1.0).

Output JSON only:
{
  "updated_fields": {...},
  "discrepancies": [...],
  "confidence_scores": {...},
  "validation_notes": [...],
  "requires_manual_review": true/false
}

NO markdown.
NO explanations.
Return ONLY JSON.`

// BuildValidationPrompt pairs one provider record with its reference
// data under the reconciliation instructions. Both arguments are
// already-serialized JSON.
func BuildValidationPrompt(providerJSON, referenceJSON string) string {
	return validationInstructions + `

INPUT_PROVIDER_DATA:
` + providerJSON + `

EXTERNAL_REFERENCE_DATA:
` + referenceJSON + `
`
}
