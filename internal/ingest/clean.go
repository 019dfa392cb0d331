package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/jsonx"
	"github.com/valid8/valid8/internal/model"
)

// Invoker runs one retried LLM call.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

// SchemaError reports a structurally valid JSON response that carries
// no usable provider list.
type SchemaError struct {
	Keys []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ingest: response missing providers list (keys: %v)", e.Keys)
}

// Result is the outcome of one cleaning pass. RowCount is the number
// of data rows seen, excluding the header.
type Result struct {
	Providers []model.CleanedProvider
	Dropped   int
	RowCount  int
}

// Cleaner turns raw spreadsheet rows into validated provider records.
type Cleaner struct {
	invoker Invoker
	maxRows int
}

// NewCleaner builds a Cleaner sampling at most maxRows data rows per call.
func NewCleaner(invoker Invoker, maxRows int) *Cleaner {
	if maxRows <= 0 {
		maxRows = 50
	}
	return &Cleaner{invoker: invoker, maxRows: maxRows}
}

// Clean sends the rows through the LLM and post-processes the output.
// A malformed model response is terminal; individually invalid records
// are dropped and counted.
func (c *Cleaner) Clean(ctx context.Context, rows [][]string) (*Result, error) {
	prompt, err := BuildCleaningPrompt(rows, c.maxRows)
	if err != nil {
		return nil, err
	}

	text, err := c.invoker.Invoke(ctx, prompt)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: cleaning call")
	}

	list, err := providerList(text)
	if err != nil {
		return nil, err
	}

	result := &Result{RowCount: len(rows) - 1}
	if result.RowCount < 0 {
		result.RowCount = 0
	}
	for i, item := range list {
		raw, ok := item.(map[string]any)
		if !ok {
			zap.L().Warn("dropping non-object provider entry", zap.Int("index", i))
			result.Dropped++
			continue
		}

		repair(raw)

		provider, err := decodeProvider(raw)
		if err != nil {
			zap.L().Warn("dropping invalid provider record",
				zap.Int("index", i),
				zap.Error(err))
			result.Dropped++
			continue
		}
		result.Providers = append(result.Providers, *provider)
	}

	return result, nil
}

// providerList locates the provider array in the model output. A bare
// JSON array is accepted as-is; an object is searched for a "providers"
// key, then for any key holding a list.
func providerList(text string) ([]any, error) {
	var bare []any
	if err := json.Unmarshal([]byte(text), &bare); err == nil {
		return bare, nil
	}

	obj, err := jsonx.Extract(text)
	if err != nil {
		return nil, err
	}

	if list, ok := obj["providers"].([]any); ok {
		return list, nil
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if list, ok := obj[k].([]any); ok {
			zap.L().Warn("providers key missing, using fallback list", zap.String("key", k))
			return list, nil
		}
	}

	return nil, &SchemaError{Keys: keys}
}

// tempID generates a placeholder provider id.
func tempID() string {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return "TEMP-" + hex.EncodeToString(b[:])
}

// repair normalizes one raw provider object in place: placeholder id,
// default confidence, null backfill for missing or empty fields, and
// defaults for ai_notes and source_row.
func repair(raw map[string]any) {
	// Anything but a non-empty string (null, empty, a stray number)
	// gets a placeholder id.
	if v, ok := raw["provider_id"].(string); !ok || v == "" {
		raw["provider_id"] = tempID()
	}

	if _, ok := raw["confidence"]; !ok {
		defaults := make(map[string]any, len(model.StandardFields))
		for _, field := range model.StandardFields {
			defaults[field] = 0.5
		}
		raw["confidence"] = defaults
	}

	for _, field := range model.StandardFields {
		val, ok := raw[field]
		if !ok || val == "" {
			raw[field] = nil
		}
	}

	if _, ok := raw["ai_notes"]; !ok {
		raw["ai_notes"] = []any{}
	}
	if _, ok := raw["source_row"]; !ok {
		raw["source_row"] = 0
	}
}

// decodeProvider converts a repaired object into a CleanedProvider,
// enforcing the record constraints.
func decodeProvider(raw map[string]any) (*model.CleanedProvider, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: marshal provider")
	}

	var p model.CleanedProvider
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "ingest: decode provider")
	}

	for _, field := range model.StandardFields {
		score, ok := p.Confidence[field]
		if !ok {
			return nil, eris.Errorf("confidence missing for %s", field)
		}
		if score < 0 || score > 1 {
			return nil, eris.Errorf("confidence for %s out of range: %v", field, score)
		}
	}
	if p.SourceRow < 0 {
		return nil, eris.Errorf("negative source_row: %d", p.SourceRow)
	}
	if p.AINotes == nil {
		p.AINotes = []string{}
	}

	return &p, nil
}
