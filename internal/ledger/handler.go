package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/kassa-fin/kassa/internal/allocation"
	"github.com/kassa-fin/kassa/internal/money"
	"github.com/kassa-fin/kassa/internal/platform/httpx"
	"github.com/kassa-fin/kassa/internal/shared"
)

const dateLayout = "2006-01-02"

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers the ledger endpoints. Row collections are scoped to
// a period, single rows are addressed directly.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/contributions", func(r chi.Router) {
		r.Post("/", h.createContribution)
		r.Get("/{id}", h.getContribution)
		r.Put("/{id}", h.updateContribution)
		r.Delete("/{id}", h.deleteContribution)
	})
	r.Route("/expenses", func(r chi.Router) {
		r.Post("/", h.createExpense)
		r.Get("/{id}", h.getExpense)
		r.Put("/{id}", h.updateExpense)
		r.Delete("/{id}", h.deleteExpense)
		r.Get("/{id}/shares", h.getExpenseShares)
	})
	r.Route("/charges", func(r chi.Router) {
		r.Post("/", h.createCharge)
		r.Get("/{id}", h.getCharge)
		r.Put("/{id}", h.updateCharge)
		r.Delete("/{id}", h.deleteCharge)
	})
	r.Route("/budget-items", func(r chi.Router) {
		r.Post("/", h.createBudgetItem)
	})
	r.Route("/readings", func(r chi.Router) {
		r.Post("/", h.createReading)
	})
	r.Get("/periods/{periodID}/contributions", h.listContributions)
	r.Get("/periods/{periodID}/expenses", h.listExpenses)
	r.Get("/periods/{periodID}/charges", h.listCharges)
	r.Get("/periods/{periodID}/budget-items", h.listBudgetItems)
	r.Get("/periods/{periodID}/readings", h.listReadings)
}

// --- Responses ---

type contributionResponse struct {
	ID                int64   `json:"id"`
	PeriodID          int64   `json:"period_id"`
	OwnerID           int64   `json:"owner_id"`
	Amount            string  `json:"amount"`
	Date              string  `json:"date"`
	Comment           string  `json:"comment,omitempty"`
	CarryForwardRunID *string `json:"carry_forward_run_id,omitempty"`
}

func toContributionResponse(c Contribution) contributionResponse {
	resp := contributionResponse{
		ID:       c.ID,
		PeriodID: c.PeriodID,
		OwnerID:  c.OwnerID,
		Amount:   c.Amount.StringFixed(money.Scale),
		Date:     c.Date.Format(dateLayout),
		Comment:  c.Comment,
	}
	if c.CarryForwardRunID != nil {
		id := c.CarryForwardRunID.String()
		resp.CarryForwardRunID = &id
	}
	return resp
}

type expenseResponse struct {
	ID            int64  `json:"id"`
	PeriodID      int64  `json:"period_id"`
	PaidByOwnerID int64  `json:"paid_by_owner_id"`
	BudgetItemID  *int64 `json:"budget_item_id,omitempty"`
	Amount        string `json:"amount"`
	PaymentType   string `json:"payment_type"`
	Date          string `json:"date"`
	Vendor        string `json:"vendor,omitempty"`
	Description   string `json:"description,omitempty"`
}

func toExpenseResponse(e Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		PeriodID:      e.PeriodID,
		PaidByOwnerID: e.PaidByOwnerID,
		BudgetItemID:  e.BudgetItemID,
		Amount:        e.Amount.StringFixed(money.Scale),
		PaymentType:   e.PaymentType,
		Date:          e.Date.Format(dateLayout),
		Vendor:        e.Vendor,
		Description:   e.Description,
	}
}

type expenseShareResponse struct {
	OwnerID int64  `json:"owner_id"`
	Amount  string `json:"amount"`
}

type chargeResponse struct {
	ID                int64   `json:"id"`
	PeriodID          int64   `json:"period_id"`
	OwnerID           int64   `json:"owner_id"`
	Amount            string  `json:"amount"`
	Description       string  `json:"description,omitempty"`
	CarryForwardRunID *string `json:"carry_forward_run_id,omitempty"`
}

func toChargeResponse(c ServiceCharge) chargeResponse {
	resp := chargeResponse{
		ID:          c.ID,
		PeriodID:    c.PeriodID,
		OwnerID:     c.OwnerID,
		Amount:      c.Amount.StringFixed(money.Scale),
		Description: c.Description,
	}
	if c.CarryForwardRunID != nil {
		id := c.CarryForwardRunID.String()
		resp.CarryForwardRunID = &id
	}
	return resp
}

type budgetItemResponse struct {
	ID             int64   `json:"id"`
	PeriodID       int64   `json:"period_id"`
	PaymentType    string  `json:"payment_type"`
	BudgetedAmount string  `json:"budgeted_amount"`
	Strategy       string  `json:"strategy"`
	MeterType      *string `json:"meter_type,omitempty"`
}

type budgetItemUtilizationResponse struct {
	budgetItemResponse
	ActualAmount string `json:"actual_amount"`
}

func toBudgetItemResponse(b BudgetItem) budgetItemResponse {
	return budgetItemResponse{
		ID:             b.ID,
		PeriodID:       b.PeriodID,
		PaymentType:    b.PaymentType,
		BudgetedAmount: b.BudgetedAmount.StringFixed(money.Scale),
		Strategy:       string(b.Strategy),
		MeterType:      b.MeterType,
	}
}

type readingResponse struct {
	ID           int64  `json:"id"`
	PeriodID     int64  `json:"period_id"`
	OwnerID      int64  `json:"owner_id"`
	MeterType    string `json:"meter_type"`
	StartReading string `json:"start_reading"`
	EndReading   string `json:"end_reading"`
	Consumption  string `json:"consumption"`
}

func toReadingResponse(r UtilityReading) readingResponse {
	return readingResponse{
		ID:           r.ID,
		PeriodID:     r.PeriodID,
		OwnerID:      r.OwnerID,
		MeterType:    r.MeterType,
		StartReading: r.StartReading.String(),
		EndReading:   r.EndReading.String(),
		Consumption:  r.Consumption().String(),
	}
}

// --- Contributions ---

type createContributionRequest struct {
	PeriodID int64  `json:"period_id" validate:"required,gt=0"`
	OwnerID  int64  `json:"owner_id" validate:"required,gt=0"`
	Amount   string `json:"amount" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Comment  string `json:"comment" validate:"max=500"`
}

func (h *Handler) createContribution(w http.ResponseWriter, r *http.Request) {
	var req createContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, date, ok := h.amountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	created, err := h.service.CreateContribution(r.Context(), CreateContributionInput{
		PeriodID: req.PeriodID,
		OwnerID:  req.OwnerID,
		Amount:   amount,
		Date:     date,
		Comment:  req.Comment,
	})
	if err != nil {
		h.logger.Warn("create contribution", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toContributionResponse(created))
}

type updateContributionRequest struct {
	Amount  string `json:"amount" validate:"required"`
	Date    string `json:"date" validate:"required"`
	Comment string `json:"comment" validate:"max=500"`
}

func (h *Handler) updateContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req updateContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, date, ok := h.amountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	updated, err := h.service.UpdateContribution(r.Context(), id, UpdateContributionInput{
		Amount:  amount,
		Date:    date,
		Comment: req.Comment,
	})
	if err != nil {
		h.logger.Warn("update contribution", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContributionResponse(updated))
}

func (h *Handler) deleteContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteContribution(r.Context(), id); err != nil {
		h.logger.Warn("delete contribution", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getContribution(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.service.GetContribution(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toContributionResponse(c))
}

type contributionListResponse struct {
	Items      []contributionResponse `json:"items"`
	Pagination shared.Pagination      `json:"pagination"`
}

func (h *Handler) listContributions(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	items, pagination, err := h.service.ListContributions(r.Context(), periodID, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := contributionListResponse{Items: make([]contributionResponse, 0, len(items)), Pagination: pagination}
	for _, c := range items {
		out.Items = append(out.Items, toContributionResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// --- Expenses ---

type createExpenseRequest struct {
	PeriodID      int64  `json:"period_id" validate:"required,gt=0"`
	PaidByOwnerID int64  `json:"paid_by_owner_id" validate:"required,gt=0"`
	BudgetItemID  *int64 `json:"budget_item_id" validate:"omitempty,gt=0"`
	Amount        string `json:"amount" validate:"required"`
	PaymentType   string `json:"payment_type" validate:"required,max=120"`
	Date          string `json:"date" validate:"required"`
	Vendor        string `json:"vendor" validate:"max=200"`
	Description   string `json:"description" validate:"max=500"`
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, date, ok := h.amountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	created, err := h.service.CreateExpense(r.Context(), CreateExpenseInput{
		PeriodID:      req.PeriodID,
		PaidByOwnerID: req.PaidByOwnerID,
		BudgetItemID:  req.BudgetItemID,
		Amount:        amount,
		PaymentType:   req.PaymentType,
		Date:          date,
		Vendor:        req.Vendor,
		Description:   req.Description,
	})
	if err != nil {
		h.logger.Warn("create expense", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toExpenseResponse(created))
}

type updateExpenseRequest struct {
	BudgetItemID *int64 `json:"budget_item_id" validate:"omitempty,gt=0"`
	Amount       string `json:"amount" validate:"required"`
	PaymentType  string `json:"payment_type" validate:"required,max=120"`
	Date         string `json:"date" validate:"required"`
	Vendor       string `json:"vendor" validate:"max=200"`
	Description  string `json:"description" validate:"max=500"`
}

func (h *Handler) updateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req updateExpenseRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, date, ok := h.amountAndDate(w, req.Amount, req.Date)
	if !ok {
		return
	}
	updated, err := h.service.UpdateExpense(r.Context(), id, UpdateExpenseInput{
		BudgetItemID: req.BudgetItemID,
		Amount:       amount,
		PaymentType:  req.PaymentType,
		Date:         date,
		Vendor:       req.Vendor,
		Description:  req.Description,
	})
	if err != nil {
		h.logger.Warn("update expense", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(updated))
}

func (h *Handler) deleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteExpense(r.Context(), id); err != nil {
		h.logger.Warn("delete expense", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	e, err := h.service.GetExpense(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toExpenseResponse(e))
}

func (h *Handler) getExpenseShares(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	shares, err := h.service.GetExpenseShares(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]expenseShareResponse, 0, len(shares))
	for _, s := range shares {
		out = append(out, expenseShareResponse{OwnerID: s.OwnerID, Amount: s.Amount.StringFixed(money.Scale)})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	items, err := h.service.ListExpenses(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]expenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toExpenseResponse(e))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// --- Service charges ---

type createChargeRequest struct {
	PeriodID    int64  `json:"period_id" validate:"required,gt=0"`
	OwnerID     int64  `json:"owner_id" validate:"required,gt=0"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) createCharge(w http.ResponseWriter, r *http.Request) {
	var req createChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateCharge(r.Context(), CreateChargeInput{
		PeriodID:    req.PeriodID,
		OwnerID:     req.OwnerID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Warn("create charge", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toChargeResponse(created))
}

type updateChargeRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description" validate:"max=500"`
}

func (h *Handler) updateCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	var req updateChargeRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := money.ParsePositive(req.Amount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	updated, err := h.service.UpdateCharge(r.Context(), id, UpdateChargeInput{
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		h.logger.Warn("update charge", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toChargeResponse(updated))
}

func (h *Handler) deleteCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCharge(r.Context(), id); err != nil {
		h.logger.Warn("delete charge", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getCharge(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "id")
	if !ok {
		return
	}
	c, err := h.service.GetCharge(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toChargeResponse(c))
}

func (h *Handler) listCharges(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	items, err := h.service.ListCharges(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]chargeResponse, 0, len(items))
	for _, c := range items {
		out = append(out, toChargeResponse(c))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// --- Budget items ---

type createBudgetItemRequest struct {
	PeriodID       int64   `json:"period_id" validate:"required,gt=0"`
	PaymentType    string  `json:"payment_type" validate:"required,max=120"`
	BudgetedAmount string  `json:"budgeted_amount" validate:"required"`
	Strategy       string  `json:"strategy" validate:"required"`
	MeterType      *string `json:"meter_type" validate:"omitempty,max=60"`
}

func (h *Handler) createBudgetItem(w http.ResponseWriter, r *http.Request) {
	var req createBudgetItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, err := money.ParsePositive(req.BudgetedAmount)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	created, err := h.service.CreateBudgetItem(r.Context(), CreateBudgetItemInput{
		PeriodID:       req.PeriodID,
		PaymentType:    req.PaymentType,
		BudgetedAmount: amount,
		Strategy:       allocation.Strategy(req.Strategy),
		MeterType:      req.MeterType,
	})
	if err != nil {
		h.logger.Warn("create budget item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toBudgetItemResponse(created))
}

func (h *Handler) listBudgetItems(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	items, err := h.service.ListBudgetItems(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]budgetItemUtilizationResponse, 0, len(items))
	for _, b := range items {
		out = append(out, budgetItemUtilizationResponse{
			budgetItemResponse: toBudgetItemResponse(b.BudgetItem),
			ActualAmount:       b.ActualAmount.StringFixed(money.Scale),
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

// --- Utility readings ---

type createReadingRequest struct {
	PeriodID     int64  `json:"period_id" validate:"required,gt=0"`
	OwnerID      int64  `json:"owner_id" validate:"required,gt=0"`
	MeterType    string `json:"meter_type" validate:"required,max=60"`
	StartReading string `json:"start_reading" validate:"required"`
	EndReading   string `json:"end_reading" validate:"required"`
}

func (h *Handler) createReading(w http.ResponseWriter, r *http.Request) {
	var req createReadingRequest
	if !h.decode(w, r, &req) {
		return
	}
	start, err := decimal.NewFromString(req.StartReading)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid start_reading %q", req.StartReading))
		return
	}
	end, err := decimal.NewFromString(req.EndReading)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid end_reading %q", req.EndReading))
		return
	}
	created, err := h.service.CreateReading(r.Context(), CreateReadingInput{
		PeriodID:     req.PeriodID,
		OwnerID:      req.OwnerID,
		MeterType:    req.MeterType,
		StartReading: start,
		EndReading:   end,
	})
	if err != nil {
		h.logger.Warn("create reading", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReadingResponse(created))
}

func (h *Handler) listReadings(w http.ResponseWriter, r *http.Request) {
	periodID, ok := idParam(w, r, "periodID")
	if !ok {
		return
	}
	items, err := h.service.ListReadings(r.Context(), periodID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]readingResponse, 0, len(items))
	for _, rd := range items {
		out = append(out, toReadingResponse(rd))
	}
	httpx.JSON(w, http.StatusOK, out)
}

// --- Helpers ---

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) amountAndDate(w http.ResponseWriter, amountStr, dateStr string) (decimal.Decimal, time.Time, bool) {
	amount, err := money.ParsePositive(amountStr)
	if err != nil {
		httpx.RespondError(w, err)
		return decimal.Zero, time.Time{}, false
	}
	date, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		httpx.RespondError(w, shared.Validationf("invalid date %q", dateStr))
		return decimal.Zero, time.Time{}, false
	}
	return amount, date, true
}

func idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid "+name)
		return 0, false
	}
	return id, true
}
