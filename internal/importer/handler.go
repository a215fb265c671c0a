package importer

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
)

// Handler wires the bulk-import endpoint.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers import routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/import", h.importSnapshot)
}

func (h *Handler) importSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap Snapshot
	if err := httpx.DecodeJSON(r, &snap); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	results, err := h.service.Import(r.Context(), snap)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusOK
	for _, res := range results {
		if !res.OK {
			status = http.StatusMultiStatus
			break
		}
	}
	httpx.JSON(w, status, map[string]any{"results": results})
}
