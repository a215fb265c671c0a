package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anatolia-crm/anatolia-crm/internal/eta"
	"github.com/anatolia-crm/anatolia-crm/internal/importer"
	"github.com/anatolia-crm/anatolia-crm/internal/masterdata"
	"github.com/anatolia-crm/anatolia-crm/internal/platform/httpx"
	"github.com/anatolia-crm/anatolia-crm/internal/recon"
	"github.com/anatolia-crm/anatolia-crm/internal/workflow"
	"github.com/anatolia-crm/anatolia-crm/jobs"
)

// RouterDeps bundles the handlers the router mounts.
type RouterDeps struct {
	Logger     *slog.Logger
	Config     *Config
	Workflow   *workflow.Handler
	Recon      *recon.Handler
	ETA        *eta.Handler
	Importer   *importer.Handler
	Masterdata *masterdata.Handler
	// Jobs is optional; nil when the API runs without a queue.
	Jobs *jobs.Handler
}

// NewRouter assembles the HTTP surface.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: deps.Logger, Config: deps.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	deps.Workflow.MountRoutes(r)
	deps.Recon.MountRoutes(r)
	deps.ETA.MountRoutes(r)
	deps.Importer.MountRoutes(r)
	deps.Masterdata.MountRoutes(r)
	if deps.Jobs != nil {
		deps.Jobs.MountRoutes(r)
	}

	return r
}
