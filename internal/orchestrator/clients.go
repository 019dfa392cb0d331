// Package orchestrator accepts batch uploads, drives them through the
// ingestion and validation services, and tracks job state.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/valid8/valid8/internal/ingest"
	"github.com/valid8/valid8/internal/model"
	"github.com/valid8/valid8/internal/resilience"
	"github.com/valid8/valid8/internal/validate"
)

// UpstreamError reports a non-2xx response from a downstream service.
type UpstreamError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Service, e.StatusCode, e.Message)
}

func retryConfig(service, operation string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = func(err error) bool {
		var ue *UpstreamError
		if eris.As(err, &ue) {
			return resilience.IsTransientHTTPStatus(ue.StatusCode)
		}
		return resilience.IsTransient(err)
	}
	cfg.OnRetry = resilience.RetryLogger(service, operation)
	return cfg
}

// IngestionClient calls the ingestion service.
type IngestionClient struct {
	baseURL string
	hc      *http.Client
}

// NewIngestionClient builds a client for the ingestion service.
func NewIngestionClient(baseURL string) *IngestionClient {
	return &IngestionClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Minute},
	}
}

// IngestCSV uploads the file bytes and returns the cleaned providers.
func (c *IngestionClient) IngestCSV(ctx context.Context, filename string, data []byte) (*ingest.IngestionResponse, error) {
	return resilience.DoVal(ctx, retryConfig("ingestion", "ingest_csv"), func(ctx context.Context) (*ingest.IngestionResponse, error) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			return nil, eris.Wrap(err, "orchestrator: build upload form")
		}
		if _, err := fw.Write(data); err != nil {
			return nil, eris.Wrap(err, "orchestrator: write upload form")
		}
		if err := mw.Close(); err != nil {
			return nil, eris.Wrap(err, "orchestrator: close upload form")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/csv", &buf)
		if err != nil {
			return nil, eris.Wrap(err, "orchestrator: build ingest request")
		}
		req.Header.Set("Content-Type", mw.FormDataContentType())

		var out ingest.IngestionResponse
		if err := doJSON(c.hc, req, "ingestion", &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// ValidationClient calls the validation service.
type ValidationClient struct {
	baseURL string
	hc      *http.Client
}

// NewValidationClient builds a client for the validation service.
func NewValidationClient(baseURL string) *ValidationClient {
	return &ValidationClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Minute},
	}
}

// Validate submits cleaned providers and returns the verdicts.
func (c *ValidationClient) Validate(ctx context.Context, providers []model.CleanedProvider) (*validate.ValidationResponse, error) {
	return resilience.DoVal(ctx, retryConfig("validation", "validate"), func(ctx context.Context) (*validate.ValidationResponse, error) {
		body, err := json.Marshal(providers)
		if err != nil {
			return nil, eris.Wrap(err, "orchestrator: marshal providers")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
		if err != nil {
			return nil, eris.Wrap(err, "orchestrator: build validate request")
		}
		req.Header.Set("Content-Type", "application/json")

		var out validate.ValidationResponse
		if err := doJSON(c.hc, req, "validation", &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
}

// doJSON executes the request and decodes a JSON body into out. Non-2xx
// responses become UpstreamErrors carrying the response detail.
func doJSON(hc *http.Client, req *http.Request, service string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return eris.Wrapf(err, "orchestrator: call %s", service)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return eris.Wrapf(err, "orchestrator: read %s response", service)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &UpstreamError{
			Service:    service,
			StatusCode: resp.StatusCode,
			Message:    upstreamDetail(body),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrapf(err, "orchestrator: decode %s response", service)
	}
	return nil
}

func upstreamDetail(body []byte) string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
