package vendors

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradewind-oms/tradewind-oms/internal/platform/httpx"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// Handler exposes the vendor directory API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// Routes mounts the vendor endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	return r
}

type vendorRequest struct {
	Name      string `json:"vendorName" validate:"required"`
	Email     string `json:"email" validate:"omitempty,email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	GSTNumber string `json:"gstNumber"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{
		Search:  q.Get("search"),
		City:    q.Get("city"),
		SortBy:  q.Get("sortBy"),
		SortDir: q.Get("sortDir"),
		Page:    page,
		Limit:   limit,
	}
	vendors, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	pagination := shared.NewPagination(filters.Page, filters.Limit, total)
	httpx.JSON(w, http.StatusOK, httpx.Paginated{
		StatusCode: http.StatusOK,
		Message:    "Vendors",
		Data:       vendors,
		Page:       pagination.Page,
		Limit:      pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	vendor, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Vendor", vendor)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	vendor, err := h.service.Create(r.Context(), Vendor{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		GSTNumber: req.GSTNumber,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.Created(w, "Vendor created", vendor)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req vendorRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	err := h.service.Update(r.Context(), id, Vendor{
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Address:   req.Address,
		City:      req.City,
		GSTNumber: req.GSTNumber,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Vendor updated", nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Vendor deleted", nil)
}

func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
