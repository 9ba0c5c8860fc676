package owners

import (
	"log/slog"
	"net/http"
	"strconv"

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

// MountRoutes registers the owner directory endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/owners", func(r chi.Router) {
		r.Post("/", h.create)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
	})
}

type ownerRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Unit        string `json:"unit" validate:"max=60"`
	ShareWeight string `json:"share_weight" validate:"required"`
	IsActive    *bool  `json:"is_active"`
}

type ownerResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Unit        string `json:"unit,omitempty"`
	ShareWeight string `json:"share_weight"`
	IsActive    bool   `json:"is_active"`
}

func toOwnerResponse(o Owner) ownerResponse {
	return ownerResponse{
		ID:          o.ID,
		Name:        o.Name,
		Unit:        o.Unit,
		ShareWeight: o.ShareWeight.String(),
		IsActive:    o.IsActive,
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	weight, err := money.ParsePositive(req.ShareWeight)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	owner, err := h.service.Create(r.Context(), CreateInput{
		Name:        req.Name,
		Unit:        req.Unit,
		ShareWeight: weight,
		IsActive:    active,
	})
	if err != nil {
		h.logger.Warn("create owner", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toOwnerResponse(owner))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	weight, err := money.ParsePositive(req.ShareWeight)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	owner, err := h.service.Update(r.Context(), id, UpdateInput{
		Name:        req.Name,
		Unit:        req.Unit,
		ShareWeight: weight,
		IsActive:    active,
	})
	if err != nil {
		h.logger.Warn("update owner", slog.Int64("id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOwnerResponse(owner))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	owner, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toOwnerResponse(owner))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list owners", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]ownerResponse, 0, len(items))
	for _, o := range items {
		out = append(out, toOwnerResponse(o))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (ownerRequest, bool) {
	var req ownerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return ownerRequest{}, false
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return ownerRequest{}, false
	}
	return req, true
}

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return 0, false
	}
	return id, true
}
