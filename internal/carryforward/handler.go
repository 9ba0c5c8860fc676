package carryforward

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kassa-fin/kassa/internal/money"
	"github.com/kassa-fin/kassa/internal/platform/httpx"
)

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the carry-forward endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/carry-forward", h.run)
	r.Get("/periods/{periodID}/carry-forward-runs", h.runs)
	r.Get("/periods/{periodID}/opening-rows", h.openingRows)
}

type runRequest struct {
	FromPeriodID int64 `json:"from_period_id" validate:"required,gt=0"`
	ToPeriodID   int64 `json:"to_period_id" validate:"required,gt=0"`
}

type runResponse struct {
	ID              string `json:"id"`
	FromPeriodID    int64  `json:"from_period_id"`
	ToPeriodID      int64  `json:"to_period_id"`
	OwnersProcessed int    `json:"owners_processed"`
	TotalCredits    string `json:"total_credits"`
	TotalDebts      string `json:"total_debts"`
	CreatedAt       string `json:"created_at"`
}

func toRunResponse(run Run) runResponse {
	return runResponse{
		ID:              run.ID.String(),
		FromPeriodID:    run.FromPeriodID,
		ToPeriodID:      run.ToPeriodID,
		OwnersProcessed: run.OwnersProcessed,
		TotalCredits:    run.TotalCredits.StringFixed(money.Scale),
		TotalDebts:      run.TotalDebts.StringFixed(money.Scale),
		CreatedAt:       run.CreatedAt.Format(time.RFC3339),
	}
}

type itemResponse struct {
	OwnerID int64  `json:"owner_id"`
	Amount  string `json:"amount"`
	RowType string `json:"row_type"`
}

type summaryResponse struct {
	Run   runResponse    `json:"run"`
	Items []itemResponse `json:"items"`
}

func (h *Handler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actorID, _ := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	summary, err := h.service.Run(r.Context(), req.FromPeriodID, req.ToPeriodID, actorID)
	if err != nil {
		h.logger.Warn("carry-forward run",
			slog.Int64("from_period_id", req.FromPeriodID),
			slog.Int64("to_period_id", req.ToPeriodID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := summaryResponse{Run: toRunResponse(summary.Run), Items: make([]itemResponse, 0, len(summary.Items))}
	for _, item := range summary.Items {
		resp.Items = append(resp.Items, itemResponse{
			OwnerID: item.OwnerID,
			Amount:  item.Amount.StringFixed(money.Scale),
			RowType: string(item.RowType),
		})
	}
	h.logger.Info("carry-forward completed",
		slog.String("run_id", summary.Run.ID.String()),
		slog.Int("owners", summary.Run.OwnersProcessed))
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) runs(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.periodParam(w, r)
	if !ok {
		return
	}
	runs, err := h.service.Runs(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]runResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunResponse(run))
	}
	httpx.JSON(w, http.StatusOK, out)
}

type openingRowResponse struct {
	RowType string `json:"row_type"`
	RowID   int64  `json:"row_id"`
	OwnerID int64  `json:"owner_id"`
	Amount  string `json:"amount"`
	Comment string `json:"comment"`
	RunID   string `json:"run_id"`
}

func (h *Handler) openingRows(w http.ResponseWriter, r *http.Request) {
	periodID, ok := h.periodParam(w, r)
	if !ok {
		return
	}
	opening, err := h.service.OpeningRows(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]openingRowResponse, 0, len(opening.Contributions)+len(opening.Charges))
	for _, c := range opening.Contributions {
		out = append(out, openingRowResponse{
			RowType: string(RowTypeContribution),
			RowID:   c.ID,
			OwnerID: c.OwnerID,
			Amount:  c.Amount.StringFixed(money.Scale),
			Comment: c.Comment,
			RunID:   c.CarryForwardRunID.String(),
		})
	}
	for _, c := range opening.Charges {
		out = append(out, openingRowResponse{
			RowType: string(RowTypeServiceCharge),
			RowID:   c.ID,
			OwnerID: c.OwnerID,
			Amount:  c.Amount.StringFixed(money.Scale),
			Comment: c.Description,
			RunID:   c.CarryForwardRunID.String(),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) periodParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "periodID"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid periodID")
		return 0, false
	}
	return id, true
}
