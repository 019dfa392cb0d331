package validate

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/valid8/valid8/internal/httpapi"
	"github.com/valid8/valid8/internal/model"
)

// ValidationResponse is the body returned by the validate endpoint.
type ValidationResponse struct {
	Status    string                   `json:"status"`
	Validated []model.ValidationResult `json:"validated"`
}

// Handler exposes the validation service over HTTP.
type Handler struct {
	validator    *Validator
	providerName string
}

// NewHandler builds the validation HTTP surface.
func NewHandler(validator *Validator, providerName string) *Handler {
	return &Handler{validator: validator, providerName: providerName}
}

// Routes mounts the service endpoints.
func (h *Handler) Routes() chi.Router {
	r := httpapi.NewRouter()
	r.Get("/health", h.health)
	r.Post("/validate", h.validate)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httpapi.JSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"service":      "valid8-validation",
		"llm_provider": h.providerName,
	})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var providers []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&providers); err != nil {
		httpapi.Error(w, http.StatusBadRequest, "request body must be a JSON list of provider records")
		return
	}

	validated := h.validator.ValidateAll(r.Context(), providers)
	if validated == nil {
		validated = []model.ValidationResult{}
	}

	httpapi.JSON(w, http.StatusOK, ValidationResponse{
		Status:    "success",
		Validated: validated,
	})
}
