package challans

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradewind-oms/tradewind-oms/internal/platform/httpx"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// Handler exposes the delivery challan API.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// Routes mounts the challan endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.issue)
	r.Post("/bulk-download", h.bulkDownload)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/shipment", h.shipment)
		r.Post("/dispatch", h.dispatch)
		r.Post("/deliver", h.deliver)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	filters := ListFilters{
		Status: Status(q.Get("status")),
		Search: q.Get("search"),
		Page:   page,
		Limit:  limit,
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			filters.To = t
		}
	}
	challans, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		respondError(w, err)
		return
	}
	pagination := shared.NewPagination(filters.Page, filters.Limit, total)
	httpx.JSON(w, http.StatusOK, httpx.Paginated{
		StatusCode: http.StatusOK,
		Message:    "Delivery challans",
		Data:       challans,
		Page:       pagination.Page,
		Limit:      pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	challan, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Delivery challan", challan)
}

func (h *Handler) shipment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	shipment, err := h.service.Shipment(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Shipment", shipment)
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID       int64    `json:"orderId" validate:"required"`
		SerialNumbers []string `json:"serialNumbers"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	challan, err := h.service.Issue(r.Context(), req.OrderID, req.SerialNumbers)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.Created(w, "Challan issued", challan)
}

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	shipment, err := h.service.Dispatch(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Challan dispatched", shipment)
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.MarkDelivered(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Challan delivered", nil)
}

func (h *Handler) bulkDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChallanIDs []int64 `json:"challanIds" validate:"required,min=1"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	taskID, err := h.service.BulkDownload(r.Context(), req.ChallanIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, httpx.Envelope{
		StatusCode: http.StatusAccepted,
		Message:    "Archive build queued",
		Data:       map[string]string{"taskId": taskID},
	})
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
