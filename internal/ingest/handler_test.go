package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestHandler(response string, err error) *Handler {
	cleaner := NewCleaner(&stubInvoker{response: response, err: err}, 50)
	return NewHandler(cleaner, "anthropic", true)
}

func TestIngestCSV_Success(t *testing.T) {
	h := newTestHandler(`{"providers": [{"name": "Dr. Smith", "source_row": 0}]}`, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "providers.csv", "name,phone\nDr. Smith,555-0000\n"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp IngestionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Errorf("unexpected status: %q", resp.Status)
	}
	if resp.TotalProviders != 1 || len(resp.Providers) != 1 {
		t.Errorf("unexpected provider counts: %d / %d", resp.TotalProviders, len(resp.Providers))
	}
	if len(resp.ProcessingNotes) != 3 {
		t.Errorf("expected 3 processing notes, got %v", resp.ProcessingNotes)
	}
	if !strings.Contains(resp.ProcessingNotes[0], "Processed 1 rows") {
		t.Errorf("unexpected first note: %q", resp.ProcessingNotes[0])
	}
}

func TestIngestCSV_RejectsUnsupportedExtension(t *testing.T) {
	h := newTestHandler(`{"providers": []}`, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "providers.txt", "name\nDr. Smith\n"))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "only CSV and XLSX") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestIngestCSV_RejectsEmptyFile(t *testing.T) {
	h := newTestHandler(`{"providers": []}`, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "providers.csv", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestCSV_RejectsMissingFileField(t *testing.T) {
	h := newTestHandler(`{"providers": []}`, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("other", "value")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/csv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIngestCSV_MalformedModelOutput(t *testing.T) {
	h := newTestHandler("sorry, no can do", nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "providers.csv", "name\nDr. Smith\n"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ingestion error") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestIngestCSV_InvokerFailure(t *testing.T) {
	h := newTestHandler("", context.DeadlineExceeded)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "providers.csv", "name\nDr. Smith\n"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	h := newTestHandler(`{"providers": []}`, nil)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["service"] != "valid8-ingestion" {
		t.Errorf("unexpected health payload: %v", body)
	}
	if body["llm_provider"] != "anthropic" || body["llm_configured"] != true {
		t.Errorf("unexpected llm fields: %v", body)
	}
}
