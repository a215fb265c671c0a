package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
)

// Handler wires HTTP endpoints for the sales-document lifecycle.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, engine *Engine) *Handler {
	return &Handler{
		logger:   logger,
		engine:   engine,
		validate: validator.New(),
	}
}

// MountRoutes registers lifecycle routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/proformas/pending", h.listPending)
	r.Get("/proformas/awaiting-shipment", h.listAwaitingShipment)
	r.Get("/proformas/shipped", h.listShipped)
	r.Get("/proformas/{id}", h.getProforma)
	r.Delete("/proformas/{id}", h.deleteProforma)

	r.Post("/quotes/{id}/accept", h.acceptQuote)
	r.Post("/proformas/{id}/convert-to-order", h.convertToOrder)
	r.Post("/proformas/{id}/ship", h.ship)
	r.Post("/proformas/{id}/return-to-shipping", h.returnToShipping)
	r.Post("/proformas/{id}/cancel", h.cancel)
	r.Post("/proformas/{id}/invoice", h.markInvoiced)
	r.Put("/proformas/{id}/due-date", h.updateDueDate)
	r.Put("/proformas/{id}/delivery-date", h.updateDeliveryDate)

	r.Post("/shipments/recall", h.recallShipment)
	r.Post("/shipments/delivered", h.markDelivered)
	r.Get("/eta/tracking", h.tracking)
	r.Get("/deliveries/recent", h.recentDeliveries)
}

func (h *Handler) decode(r *http.Request, target any) error {
	if err := httpx.DecodeJSON(r, target); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := h.validate.Struct(target); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	return nil
}

type acceptQuoteRequest struct {
	ProformaNo string `json:"proforma_no" validate:"required"`
}

func (h *Handler) acceptQuote(w http.ResponseWriter, r *http.Request) {
	var req acceptQuoteRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.AcceptQuote(r.Context(), chi.URLParam(r, "id"), req.ProformaNo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

type convertRequest struct {
	OrderForm string `json:"order_form" validate:"required"`
}

func (h *Handler) convertToOrder(w http.ResponseWriter, r *http.Request) {
	var req convertRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.ConvertToOrder(r.Context(), chi.URLParam(r, "id"), req.OrderForm)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type shipRequest struct {
	ShipDate string `json:"ship_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.Ship(r.Context(), chi.URLParam(r, "id"), req.ShipDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type shipmentKeyRequest struct {
	CustomerName string `json:"customer_name" validate:"required"`
	ProformaNo   string `json:"proforma_no" validate:"required"`
	Date         string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) recallShipment(w http.ResponseWriter, r *http.Request) {
	var req shipmentKeyRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.RecallShipment(r.Context(), req.CustomerName, req.ProformaNo)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) markDelivered(w http.ResponseWriter, r *http.Request) {
	var req shipmentKeyRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.MarkDelivered(r.Context(), req.CustomerName, req.ProformaNo, req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type returnToShippingRequest struct {
	ETADate string `json:"eta_date" validate:"omitempty,datetime=2006-01-02"`
	Note    string `json:"note"`
}

func (h *Handler) returnToShipping(w http.ResponseWriter, r *http.Request) {
	var req returnToShippingRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.ReturnToShipping(r.Context(), chi.URLParam(r, "id"), req.ETADate, req.Note)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type dateRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
}

func (h *Handler) updateDueDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.UpdateDueDate(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateDeliveryDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.UpdateDeliveryDate(r.Context(), chi.URLParam(r, "id"), req.Date)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

type invoiceRequest struct {
	InvoiceNo   string `json:"invoice_no" validate:"required"`
	InvoiceDate string `json:"invoice_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) markInvoiced(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := h.decode(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.engine.MarkInvoiced(r.Context(), chi.URLParam(r, "id"), req.InvoiceNo, req.InvoiceDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) getProforma(w http.ResponseWriter, r *http.Request) {
	p, err := h.engine.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteProforma(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.DeleteProforma(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.Pending)
}

func (h *Handler) listAwaitingShipment(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.AwaitingShipment)
}

func (h *Handler) listShipped(w http.ResponseWriter, r *http.Request) {
	h.respondList(w, r, h.engine.Shipped)
}

func (h *Handler) recentDeliveries(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.RecentDeliveries(r.Context(), 5)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) tracking(w http.ResponseWriter, r *http.Request) {
	out, err := h.engine.Tracking(r.Context(), time.Now())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) respondList(w http.ResponseWriter, r *http.Request, fetch func(ctx context.Context) ([]Proforma, error)) {
	out, err := fetch(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
