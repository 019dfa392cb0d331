package validate

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/valid8/valid8/internal/jsonx"
	"github.com/valid8/valid8/internal/model"
	"github.com/valid8/valid8/internal/resilience"
	"github.com/valid8/valid8/pkg/npi"
)

const (
	missingNPIDiscrepancy = "Missing NPI Number"
	noMatchDiscrepancy    = "Invalid NPI - No match found in registry"

	defaultConcurrency = 8
)

// Invoker runs one retried LLM call.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Validator reconciles provider records against the NPI registry.
type Validator struct {
	invoker     Invoker
	registry    npi.Client
	breaker     *resilience.CircuitBreaker
	concurrency int
}

// NewValidator builds a Validator. Registry lookups run through a
// circuit breaker so a down registry degrades to manual review rather
// than stalling the batch.
func NewValidator(invoker Invoker, registry npi.Client, concurrency int) *Validator {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Validator{
		invoker:     invoker,
		registry:    registry,
		concurrency: concurrency,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			OnStateChange: func(from, to resilience.CircuitState) {
				zap.L().Warn("npi registry circuit state change",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// ValidateOne runs the full reconciliation for a single record.
func (v *Validator) ValidateOne(ctx context.Context, provider map[string]any) (*model.ValidationResult, error) {
	npiNumber := stringField(provider, "npi_number")
	referenceJSON := v.fetchReference(ctx, npiNumber)

	providerJSON, err := json.Marshal(provider)
	if err != nil {
		return nil, eris.Wrap(err, "validate: marshal provider")
	}

	prompt := BuildValidationPrompt(string(providerJSON), referenceJSON)

	text, err := v.invoker.Invoke(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "validate: reconciliation call")
	}

	obj, err := jsonx.Extract(text)
	if err != nil {
		return nil, err
	}

	result, err := decodeResult(obj)
	if err != nil {
		return nil, err
	}

	enforceRules(result, npiNumber, referenceJSON)
	return result, nil
}

// ValidateAll fans records out across workers and reassembles results
// in input order. A record whose validation fails yields a manual
// review verdict in its slot instead of failing the batch.
func (v *Validator) ValidateAll(ctx context.Context, providers []map[string]any) []model.ValidationResult {
	results := make([]model.ValidationResult, len(providers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	for i, provider := range providers {
		g.Go(func() error {
			result, err := v.ValidateOne(gctx, provider)
			if err != nil {
				zap.L().Warn("record validation failed",
					zap.Int("index", i),
					zap.Error(err))
				results[i] = fallbackResult(err, stringField(provider, "npi_number"))
				return nil
			}
			results[i] = *result
			return nil
		})
	}

	g.Wait()
	return results
}

// fetchReference looks the NPI up and renders the reference block for
// the prompt: "{}" when no NPI is given or no match exists, an error
// object when the lookup failed, the record JSON otherwise.
func (v *Validator) fetchReference(ctx context.Context, npiNumber string) string {
	if npiNumber == "" {
		return "{}"
	}

	ref, err := resilience.ExecuteVal(ctx, v.breaker, func(ctx context.Context) (*model.ReferenceRecord, error) {
		return v.registry.Lookup(ctx, npiNumber)
	})
	if err != nil {
		zap.L().Warn("npi lookup failed",
			zap.String("npi", npiNumber),
			zap.Error(err))
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		return string(data)
	}
	if ref == nil {
		return "{}"
	}

	data, err := json.Marshal(ref)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// enforceRules applies the reconciliation invariants regardless of
// what the model actually returned.
func enforceRules(result *model.ValidationResult, npiNumber, referenceJSON string) {
	if npiNumber == "" {
		appendMissing(&result.Discrepancies, missingNPIDiscrepancy)
		result.RequiresManualReview = true
		result.ConfidenceScores["npi_number"] = 0.0
		return
	}

	if referenceJSON == "{}" || hasErrorKey(referenceJSON) {
		appendMissing(&result.Discrepancies, noMatchDiscrepancy)
		result.RequiresManualReview = true
	}
}

func hasErrorKey(referenceJSON string) bool {
	var obj map[string]any
	if err := json.Unmarshal([]byte(referenceJSON), &obj); err != nil {
		return false
	}
	_, ok := obj["error"]
	return ok
}

func appendMissing(list *[]string, entry string) {
	for _, existing := range *list {
		if existing == entry {
			return
		}
	}
	*list = append(*list, entry)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func decodeResult(obj map[string]any) (*model.ValidationResult, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, eris.Wrap(err, "validate: marshal verdict")
	}

	var result model.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, eris.Wrap(err, "validate: decode verdict")
	}

	if result.UpdatedFields == nil {
		result.UpdatedFields = map[string]any{}
	}
	if result.Discrepancies == nil {
		result.Discrepancies = []string{}
	}
	if result.ConfidenceScores == nil {
		result.ConfidenceScores = map[string]float64{}
	}
	if result.ValidationNotes == nil {
		result.ValidationNotes = []string{}
	}
	return &result, nil
}

// fallbackResult stands in for a record whose validation failed. The
// missing-NPI invariants still apply to it even though no verdict came
// back from the model.
func fallbackResult(err error, npiNumber string) model.ValidationResult {
	result := model.ValidationResult{
		UpdatedFields:        map[string]any{},
		Discrepancies:        []string{"Validation failed: " + err.Error()},
		ConfidenceScores:     map[string]float64{},
		ValidationNotes:      []string{"Record could not be validated and needs manual review"},
		RequiresManualReview: true,
	}
	if npiNumber == "" {
		enforceRules(&result, npiNumber, "{}")
	}
	return result
}
