package purchaseorders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradewind-oms/tradewind-oms/internal/observability"
	"github.com/tradewind-oms/tradewind-oms/internal/platform/httpx"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// Handler exposes the purchase order API.
type Handler struct {
	service     *Service
	validate    *validator.Validate
	logger      *slog.Logger
	metrics     *observability.Metrics
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs the handler. idempotency may be nil, in which case
// Idempotency-Key headers are ignored.
func NewHandler(service *Service, validate *validator.Validate, logger *slog.Logger, metrics *observability.Metrics, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{service: service, validate: validate, logger: logger, metrics: metrics, idempotency: idempotency}
}

// Routes mounts the purchase order endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/bulk-create", h.bulkCreate)
	r.Patch("/bulk-update", h.bulkUpdateSerials)
	r.Get("/combinable/list", h.listCombinable)
	r.Post("/combine/preview", h.previewCombine)
	r.Post("/merge", h.merge)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Post("/submit", h.submit)
		r.Post("/approve", h.approve)
		r.Post("/deliver", h.deliver)
		r.Post("/cancel", h.cancel)
	})
	return r
}

type lineItemRequest struct {
	ProductID         int64   `json:"productId" validate:"required"`
	ProductName       string  `json:"productName"`
	BankProductNumber string  `json:"bankProductNumber"`
	Quantity          int64   `json:"quantity" validate:"required,gt=0"`
	UnitPrice         float64 `json:"unitPrice" validate:"gte=0"`
}

type createRequest struct {
	VendorID    int64             `json:"vendorId" validate:"required"`
	BankOrderID int64             `json:"bankOrderId"`
	BIPOrderID  int64             `json:"bipOrderId"`
	Notes       string            `json:"notes"`
	Products    []lineItemRequest `json:"products" validate:"required,min=1,dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		VendorID:    req.VendorID,
		BankOrderID: req.BankOrderID,
		BIPOrderID:  req.BIPOrderID,
		Notes:       req.Notes,
	}
	for _, line := range req.Products {
		input.Lines = append(input.Lines, LineInput(line))
	}
	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Purchase order created", po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_id", "Invalid Request", "id must be numeric")
		return
	}
	po, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Purchase order", po)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	pagination := shared.NewPagination(page, limit, 0)

	filters := ListFilters{
		Status:   Status(q.Get("status")),
		Search:   q.Get("search"),
		SortBy:   q.Get("sortBy"),
		SortDir:  q.Get("sortDir"),
		VendorID: parseInt64(q.Get("vendorId")),
		From:     parseDate(q.Get("from")),
		To:       parseDate(q.Get("to")),
	}
	if filters.Status != "" && !filters.Status.IsValid() {
		httpx.Problem(w, http.StatusBadRequest, "invalid_status", "Invalid Request", "unknown status "+q.Get("status"))
		return
	}

	pos, total, err := h.service.List(r.Context(), pagination.PerPage, pagination.Offset(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	pagination = shared.NewPagination(pagination.Page, pagination.PerPage, total)
	httpx.JSON(w, http.StatusOK, httpx.Paginated{
		StatusCode: http.StatusOK,
		Message:    "Purchase orders",
		Data:       pos,
		Page:       pagination.Page,
		Limit:      pagination.PerPage,
		Total:      pagination.Total,
		TotalPages: pagination.TotalPages,
	})
}

func (h *Handler) listCombinable(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	vendorID := parseInt64(q.Get("vendorId"))
	from := parseDate(q.Get("startDate"))
	if from.IsZero() {
		from = parseDate(q.Get("from"))
	}
	to := parseDate(q.Get("endDate"))
	if to.IsZero() {
		to = parseDate(q.Get("to"))
	}
	pos, err := h.service.ListCombinable(r.Context(), vendorID, from, to)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Combinable purchase orders", pos)
}

type updateRequest struct {
	Notes    *string           `json:"notes"`
	Products []lineItemRequest `json:"products" validate:"omitempty,dive"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_id", "Invalid Request", "id must be numeric")
		return
	}
	var req updateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	input := UpdateInput{Notes: req.Notes}
	for _, line := range req.Products {
		input.Lines = append(input.Lines, LineInput(line))
	}
	po, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Purchase order updated", po)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Submit, "Purchase order submitted")
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve, "Purchase order approved")
}

func (h *Handler) deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkDelivered, "Purchase order delivered")
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, int64) error, message string) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_id", "Invalid Request", "id must be numeric")
		return
	}
	if err := op(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, message, nil)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_id", "Invalid Request", "id must be numeric")
		return
	}
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		var body struct {
			Reason string `json:"reason"`
		}
		_ = httpx.DecodeJSON(r, &body)
		reason = body.Reason
	}
	if err := h.service.Cancel(r.Context(), id, reason); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Purchase order cancelled", nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_id", "Invalid Request", "id must be numeric")
		return
	}
	if err := h.service.SoftDelete(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Purchase order deleted", nil)
}

type selectionRequest struct {
	POIDs []int64 `json:"poIds" validate:"required,min=2"`
}

func (h *Handler) previewCombine(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, KindTooFewSelected, "Validation Failed", err.Error())
		return
	}
	preview, err := h.service.PreviewCombine(r.Context(), req.POIDs)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Combined preview", preview)
}

func (h *Handler) merge(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, KindTooFewSelected, "Validation Failed", err.Error())
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), idemKey, "po_merge"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "duplicate_request", "Duplicate Request", "this merge was already submitted")
				return
			}
			h.respondError(w, err)
			return
		}
	}

	po, err := h.service.Merge(r.Context(), req.POIDs)
	if err != nil {
		if idemKey != "" && h.idempotency != nil {
			// Failed merges release the key so the client can retry.
			_ = h.idempotency.Delete(r.Context(), idemKey)
		}
		var partial *CommitPartialError
		if errors.As(err, &partial) {
			h.metrics.ObserveMergeCommit("partial")
			httpx.Problem(w, http.StatusInternalServerError, "merge_partial_failure", "Merge Aborted", "the merge was rolled back mid-commit; no orders were modified")
			return
		}
		h.metrics.ObserveMergeCommit("rejected")
		h.respondError(w, err)
		return
	}
	h.metrics.ObserveMergeCommit("committed")
	httpx.Created(w, "Purchase orders merged", po)
}

type bulkCreateRequest struct {
	VendorID     int64   `json:"vendorId" validate:"required"`
	UnitPrice    float64 `json:"unitPrice" validate:"gte=0"`
	BankOrderIDs []int64 `json:"bankOrderIds"`
	BIPOrderIDs  []int64 `json:"bipOrderIds"`
}

func (h *Handler) bulkCreate(w http.ResponseWriter, r *http.Request) {
	var req bulkCreateRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	pos, err := h.service.BulkCreateFromOrders(r.Context(), BulkCreateInput{
		VendorID:     req.VendorID,
		UnitPrice:    req.UnitPrice,
		BankOrderIDs: req.BankOrderIDs,
		BIPOrderIDs:  req.BIPOrderIDs,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.Created(w, "Purchase orders created", pos)
}

type serialUpdateRequest struct {
	POID  int64 `json:"poId" validate:"required"`
	Items []struct {
		ProductID    int64  `json:"productId" validate:"required"`
		SerialNumber string `json:"serialNumber" validate:"required"`
	} `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) bulkUpdateSerials(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Updates []serialUpdateRequest `json:"updates" validate:"required,min=1,dive"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	updates := make([]SerialUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		update := SerialUpdate{POID: u.POID}
		for _, item := range u.Items {
			update.Items = append(update.Items, SerialItem{ProductID: item.ProductID, SerialNumber: item.SerialNumber})
		}
		updates = append(updates, update)
	}
	if err := h.service.BulkUpdateSerials(r.Context(), updates); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.OK(w, "Serial numbers updated", nil)
}

// respondError maps the merge error taxonomy onto problem responses before
// falling back to the generic mapper.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var sel *SelectionError
	if errors.As(err, &sel) {
		status := http.StatusUnprocessableEntity
		switch sel.Kind {
		case KindTooFewSelected:
			status = http.StatusBadRequest
		case KindNotFound:
			status = http.StatusNotFound
		case KindStalePreview:
			status = http.StatusConflict
		}
		httpx.Problem(w, status, sel.Kind, "Invalid Merge Selection", sel.Error())
		return
	}
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
	case errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "invalid_transition", "Invalid Transition", err.Error())
	default:
		h.logger.Error("purchase order request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func parseID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func parseInt64(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}
