package eta

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
)

// Handler wires HTTP endpoints for shipment-tracking records.
type Handler struct {
	logger   *slog.Logger
	resolver *Resolver
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, resolver *Resolver) *Handler {
	return &Handler{
		logger:   logger,
		resolver: resolver,
		validate: validator.New(),
	}
}

// MountRoutes registers ETA routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/eta", h.list)
	r.Post("/eta", h.upsert)
	r.Get("/eta/proforma/{no}", h.byProforma)
	r.Delete("/eta/{id}", h.deleteByID)
}

type upsertRequest struct {
	CustomerName string `json:"customer_name" validate:"required"`
	ProformaNo   string `json:"proforma_no" validate:"required"`
	ShipDate     string `json:"ship_date" validate:"omitempty,datetime=2006-01-02"`
	ETADate      string `json:"eta_date" validate:"omitempty,datetime=2006-01-02"`
	Note         string `json:"note"`
}

func (h *Handler) upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	rec, err := h.resolver.Upsert(r.Context(), UpsertParams{
		CustomerName: req.CustomerName,
		ProformaNo:   req.ProformaNo,
		ShipDate:     req.ShipDate,
		ETADate:      req.ETADate,
		Note:         req.Note,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("eta upserted", "customer", rec.CustomerName, "proforma_no", rec.ProformaNo)
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.resolver.List(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) byProforma(w http.ResponseWriter, r *http.Request) {
	out, err := h.resolver.ByProforma(r.Context(), chi.URLParam(r, "no"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deleteByID(w http.ResponseWriter, r *http.Request) {
	if err := h.resolver.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
