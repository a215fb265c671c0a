package recon

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
)

// Handler wires HTTP endpoints for payment reconciliation.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers reconciliation routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Put("/invoices/{id}/payment", h.applyPayment)
	r.Get("/invoices/dues", h.dues)
}

type paymentRequest struct {
	Delta    float64 `json:"delta"`
	MarkPaid bool    `json:"mark_paid"`
}

// paymentResponse flattens the reconciled invoice for the caller.
type paymentResponse struct {
	ID       string  `json:"id"`
	Paid     float64 `json:"paid"`
	Balance  float64 `json:"balance"`
	PaidFlag bool    `json:"paid_flag"`
}

func (h *Handler) applyPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	inv, err := h.service.ApplyPayment(r.Context(), chi.URLParam(r, "id"), req.Delta, req.MarkPaid)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, paymentResponse{
		ID:       inv.ID,
		Paid:     inv.Paid,
		Balance:  inv.Balance(),
		PaidFlag: inv.PaidFlag,
	})
}

func (h *Handler) dues(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(DateLayout, raw)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: as_of %q", shared.ErrValidation, raw))
			return
		}
		asOf = parsed
	}
	sum, err := h.service.CachedDues(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sum)
}
