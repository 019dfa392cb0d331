// Package model defines the record shapes exchanged between pipeline stages.
package model

// StandardFields is the fixed ordered set of semantic attributes every
// cleaned provider record must carry. Missing values are null, never "".
var StandardFields = []string{
	"provider_id",
	"name",
	"specialty",
	"phone",
	"email",
	"address",
	"npi_number",
	"license_number",
}

// CleanedProvider is a single provider record after the cleaning stage.
// All eight standard fields are present (nil for unknown); ProviderID is
// never nil once post-processing has run.
type CleanedProvider struct {
	ProviderID    *string            `json:"provider_id"`
	Name          *string            `json:"name"`
	Specialty     *string            `json:"specialty"`
	Phone         *string            `json:"phone"`
	Email         *string            `json:"email"`
	Address       *string            `json:"address"`
	NPINumber     *string            `json:"npi_number"`
	LicenseNumber *string            `json:"license_number"`
	Confidence    map[string]float64 `json:"confidence"`
	AINotes       []string           `json:"ai_notes"`
	SourceRow     int                `json:"source_row"`
}

// ReferenceRecord is the external registry's view of a provider. It is
// fetched fresh per validation call and never cached.
type ReferenceRecord struct {
	FullName      string `json:"full_name"`
	Specialty     string `json:"specialty,omitempty"`
	Address       string `json:"address,omitempty"`
	Phone         string `json:"phone,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
	NPINumber     string `json:"npi_number"`
	Source        string `json:"source"`
}

// ValidationResult is the reconciliation verdict for one cleaned record.
type ValidationResult struct {
	UpdatedFields        map[string]any     `json:"updated_fields"`
	Discrepancies        []string           `json:"discrepancies"`
	ConfidenceScores     map[string]float64 `json:"confidence_scores"`
	ValidationNotes      []string           `json:"validation_notes"`
	RequiresManualReview bool               `json:"requires_manual_review"`
}

// PipelineReport aggregates the output of one full pipeline pass.
type PipelineReport struct {
	Status             string             `json:"status"`
	CleanedCount       int                `json:"cleaned_count"`
	ValidatedCount     int                `json:"validated_count"`
	CleanedProviders   []CleanedProvider  `json:"cleaned_providers"`
	ValidatedProviders []ValidationResult `json:"validated_providers"`
}
