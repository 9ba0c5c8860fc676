package balance

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kassa-fin/kassa/internal/platform/httpx"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the balance endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/periods/{periodID}/balance", h.sheet)
	r.Get("/periods/{periodID}/balance/owners/{ownerID}", h.ownerBalance)
}

func (h *Handler) sheet(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	sheet, err := h.service.Sheet(r.Context(), periodID)
	if err != nil {
		h.logger.Warn("balance sheet", slog.Int64("period_id", periodID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sheet)
}

func (h *Handler) ownerBalance(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	ownerID, ok := idParam(w, r, "ownerID")
	if !ok {
		return
	}
	row, err := h.service.OwnerBalance(r.Context(), periodID, ownerID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, row)
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
