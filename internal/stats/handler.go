package stats

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/almacen-erp/almacen/internal/platform/httpx"
	"github.com/almacen-erp/almacen/internal/shared"
)

// Handler exposes the report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/inventory", h.inventoryJSON)
	r.Get("/inventory.csv", h.inventoryCSV)
}

func (h *Handler) inventoryJSON(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	report, err := h.service.InventoryReport(r.Context(), principal)
	if err != nil {
		h.logger.Error("inventory report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) inventoryCSV(w http.ResponseWriter, r *http.Request) {
	principal, _ := shared.PrincipalFromContext(r.Context())
	report, err := h.service.InventoryReport(r.Context(), principal)
	if err != nil {
		h.logger.Error("inventory report failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="inventory-%s.csv"`, report.GeneratedAt.Format("20060102-150405")))
	if err := WriteCSV(w, report); err != nil {
		h.logger.Error("stream inventory csv", slog.Any("error", err))
	}
}
