package masterdata

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/shared"
	"github.com/anatolia-crm/anatolia-crm/internal/store"
	"github.com/anatolia-crm/anatolia-crm/internal/workflow"
)

// Handler wires master-data and generic table routes. Proforma deletes are
// delegated to the workflow engine so the invoice-reference guard holds on
// every surface.
type Handler struct {
	logger  *slog.Logger
	service *Service
	engine  *workflow.Engine
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, engine *workflow.Engine) *Handler {
	return &Handler{logger: logger, service: service, engine: engine}
}

// MountRoutes registers master-data routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers", h.listNamed(store.TableCustomers))
	r.Post("/customers", h.createNamed(store.TableCustomers, FieldCustomerName))
	r.Put("/customers/{id}", h.updateNamed(store.TableCustomers, FieldCustomerName))
	r.Delete("/customers/{id}", h.deleteRow(store.TableCustomers))

	r.Get("/representatives", h.listNamed(store.TableRepresentatives))
	r.Post("/representatives", h.createNamed(store.TableRepresentatives, FieldRepresentativeName))
	r.Put("/representatives/{id}", h.updateNamed(store.TableRepresentatives, FieldRepresentativeName))
	r.Delete("/representatives/{id}", h.deleteRow(store.TableRepresentatives))

	r.Route("/tables/{table}", func(r chi.Router) {
		r.Use(h.requireKnownTable)
		r.Get("/", h.listTable)
		r.Post("/", h.createTableRow)
		r.Get("/{id}", h.getTableRow)
		r.Put("/{id}", h.updateTableRow)
		r.Delete("/{id}", h.deleteTableRow)
	})
}

func (h *Handler) requireKnownTable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := chi.URLParam(r, "table")
		if !store.KnownTable(table) {
			httpx.RespondError(w, fmt.Errorf("%w: %s", store.ErrUnknownTable, table))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) listNamed(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := h.service.List(r.Context(), table)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, rows)
	}
}

func (h *Handler) createNamed(table, nameField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var row store.Row
		if err := httpx.DecodeJSON(r, &row); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
			return
		}
		out, err := h.service.CreateNamed(r.Context(), table, nameField, row)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, out)
	}
}

func (h *Handler) updateNamed(table, nameField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch store.Row
		if err := httpx.DecodeJSON(r, &patch); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
			return
		}
		out, err := h.service.UpdateNamed(r.Context(), table, nameField, chi.URLParam(r, "id"), patch)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) deleteRow(table string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.service.Delete(r.Context(), table, chi.URLParam(r, "id")); err != nil {
			httpx.RespondError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *Handler) listTable(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.List(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) getTableRow(w http.ResponseWriter, r *http.Request) {
	row, err := h.service.Get(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func (h *Handler) createTableRow(w http.ResponseWriter, r *http.Request) {
	var row store.Row
	if err := httpx.DecodeJSON(r, &row); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	out, err := h.service.Create(r.Context(), chi.URLParam(r, "table"), row)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) updateTableRow(w http.ResponseWriter, r *http.Request) {
	var patch store.Row
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", shared.ErrValidation, err))
		return
	}
	out, err := h.service.Update(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "id"), patch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) deleteTableRow(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	id := chi.URLParam(r, "id")
	var err error
	if table == store.TableProformas {
		err = h.engine.DeleteProforma(r.Context(), id)
	} else {
		err = h.service.Delete(r.Context(), table, id)
	}
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
