package ingest

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/valid8/valid8/internal/httpapi"
	"github.com/valid8/valid8/internal/jsonx"
	"github.com/valid8/valid8/internal/model"
	"github.com/valid8/valid8/internal/tabular"
)

const serviceVersion = "1.0.0"

// maxUploadBytes caps in-memory multipart parsing.
const maxUploadBytes = 32 << 20

// IngestionResponse is the body returned by the ingest endpoint.
type IngestionResponse struct {
	Status          string                  `json:"status"`
	TotalProviders  int                     `json:"total_providers"`
	Providers       []model.CleanedProvider `json:"providers"`
	ProcessingNotes []string                `json:"processing_notes"`
}

// Handler exposes the ingestion service over HTTP.
type Handler struct {
	cleaner      *Cleaner
	providerName string
	configured   bool
}

// NewHandler builds the ingestion HTTP surface. providerName and
// configured feed the health payload.
func NewHandler(cleaner *Cleaner, providerName string, configured bool) *Handler {
	return &Handler{cleaner: cleaner, providerName: providerName, configured: configured}
}

// Routes mounts the service endpoints.
func (h *Handler) Routes() chi.Router {
	r := httpapi.NewRouter()
	r.Get("/health", h.health)
	r.Post("/ingest/csv", h.ingestCSV)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httpapi.JSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"service":        "valid8-ingestion",
		"version":        serviceVersion,
		"llm_provider":   h.providerName,
		"llm_configured": h.configured,
	})
}

func (h *Handler) ingestCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		httpapi.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	var rows [][]string
	name := strings.ToLower(header.Filename)
	switch {
	case strings.HasSuffix(name, ".csv"):
		rows, err = tabular.DecodeCSV(data)
	case strings.HasSuffix(name, ".xlsx"):
		rows, err = tabular.DecodeXLSX(data)
	default:
		httpapi.Error(w, http.StatusBadRequest, "only CSV and XLSX files are supported")
		return
	}
	if err != nil {
		var ie *tabular.InputError
		if errors.As(err, &ie) {
			httpapi.Error(w, http.StatusBadRequest, ie.Reason)
			return
		}
		httpapi.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.cleaner.Clean(r.Context(), rows)
	if err != nil {
		var malformed *jsonx.MalformedOutputError
		var schema *SchemaError
		switch {
		case errors.As(err, &malformed):
			zap.L().Error("cleaning returned malformed JSON", zap.Error(err))
		case errors.As(err, &schema):
			zap.L().Error("cleaning returned unusable shape", zap.Error(err))
		default:
			zap.L().Error("cleaning failed", zap.Error(err))
		}
		httpapi.Error(w, http.StatusInternalServerError, "ingestion error: "+err.Error())
		return
	}

	providers := result.Providers
	if providers == nil {
		providers = []model.CleanedProvider{}
	}

	notes := []string{
		"Processed " + strconv.Itoa(result.RowCount) + " rows from CSV",
		"Extracted " + strconv.Itoa(len(providers)) + " valid provider records",
	}
	if result.Dropped > 0 {
		zap.L().Warn("dropped invalid provider records", zap.Int("dropped", result.Dropped))
		notes = append(notes, "Dropped "+strconv.Itoa(result.Dropped)+" invalid records")
	}
	notes = append(notes, "Used LLM provider: "+h.providerName)

	httpapi.JSON(w, http.StatusOK, IngestionResponse{
		Status:          "success",
		TotalProviders:  len(providers),
		Providers:       providers,
		ProcessingNotes: notes,
	})
}
