package redemption

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

// Handler exposes the redemption order API. The same handler backs both
// channel route trees with the channel preset.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(service *Service, validate *validator.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// Mount registers /bank-orders and /bip-orders on the parent router.
func (h *Handler) Mount(r chi.Router) {
	r.Mount("/bank-orders", h.channelRoutes(ChannelBank))
	r.Mount("/bip-orders", h.channelRoutes(ChannelBIP))
}

func (h *Handler) channelRoutes(channel Channel) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list(channel))
	r.Post("/", h.create(channel))
	r.Post("/bulk-import", h.bulkImport(channel))
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
		r.Patch("/status", h.setStatus)
		r.Get("/history", h.history)
		r.Get("/comments", h.comments)
		r.Post("/comments", h.addComment)
	})
	return r
}

type orderRequest struct {
	OrderNumber  string `json:"orderNumber" validate:"required"`
	CustomerName string `json:"customerName" validate:"required"`
	CNIC         string `json:"cnic"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	City         string `json:"city"`
	Pincode      string `json:"pincode"`

	Mobile2        string `json:"mobile2"`
	Brand          string `json:"brand"`
	RefNo          string `json:"refNo"`
	RedeemedPoints int64  `json:"redeemedPoints" validate:"gte=0"`

	Eforms             string  `json:"eforms"`
	AuthorizedReceiver string  `json:"authorizedReceiver"`
	ReceiverCNIC       string  `json:"receiverCnic"`
	Amount             float64 `json:"amount" validate:"gte=0"`
	Color              string  `json:"color"`

	ProductID   int64  `json:"productId" validate:"required"`
	ProductName string `json:"productName" validate:"required"`
	GiftCode    string `json:"giftCode"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	OrderDate   string `json:"orderDate"`
}

func (req orderRequest) toOrder(channel Channel) Order {
	order := Order{
		Channel:            channel,
		OrderNumber:        req.OrderNumber,
		CustomerName:       req.CustomerName,
		CNIC:               req.CNIC,
		Phone:              req.Phone,
		Address:            req.Address,
		City:               req.City,
		Pincode:            req.Pincode,
		Mobile2:            req.Mobile2,
		Brand:              req.Brand,
		RefNo:              req.RefNo,
		RedeemedPoints:     req.RedeemedPoints,
		Eforms:             req.Eforms,
		AuthorizedReceiver: req.AuthorizedReceiver,
		ReceiverCNIC:       req.ReceiverCNIC,
		Amount:             req.Amount,
		Color:              req.Color,
		ProductID:          req.ProductID,
		ProductName:        req.ProductName,
		GiftCode:           req.GiftCode,
		Quantity:           req.Quantity,
	}
	if t, err := time.Parse("2006-01-02", req.OrderDate); err == nil {
		order.OrderDate = t
	}
	return order
}

func (h *Handler) list(channel Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		page, _ := strconv.Atoi(q.Get("page"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		filters := ListFilters{
			Channel: channel,
			Status:  Status(q.Get("status")),
			Search:  q.Get("search"),
			SortBy:  q.Get("sortBy"),
			SortDir: q.Get("sortDir"),
			Page:    page,
			Limit:   limit,
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
		orders, total, err := h.service.List(r.Context(), filters)
		if err != nil {
			respondError(w, err)
			return
		}
		pagination := shared.NewPagination(filters.Page, filters.Limit, total)
		httpx.JSON(w, http.StatusOK, httpx.Paginated{
			StatusCode: http.StatusOK,
			Message:    "Redemption orders",
			Data:       orders,
			Page:       pagination.Page,
			Limit:      pagination.PerPage,
			Total:      pagination.Total,
			TotalPages: pagination.TotalPages,
		})
	}
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Redemption order", order)
}

func (h *Handler) create(channel Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
			return
		}
		order, err := h.service.Create(r.Context(), req.toOrder(channel))
		if err != nil {
			respondError(w, err)
			return
		}
		httpx.Created(w, "Redemption order created", order)
	}
}

func (h *Handler) bulkImport(channel Channel) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Orders []orderRequest `json:"orders" validate:"required,min=1,dive"`
		}
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
			return
		}
		if err := h.validate.Struct(req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
			return
		}
		orders := make([]Order, 0, len(req.Orders))
		for _, row := range req.Orders {
			orders = append(orders, row.toOrder(channel))
		}
		inserted, err := h.service.BulkImport(r.Context(), channel, orders)
		if err != nil {
			respondError(w, err)
			return
		}
		httpx.Created(w, "Redemption orders imported", map[string]any{
			"inserted": len(inserted),
			"skipped":  len(orders) - len(inserted),
			"orders":   inserted,
		})
	}
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req struct {
		CustomerName string `json:"customerName" validate:"required"`
		Phone        string `json:"phone"`
		Address      string `json:"address"`
		City         string `json:"city"`
		Pincode      string `json:"pincode"`
		Quantity     int64  `json:"quantity" validate:"required,gt=0"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	err := h.service.Update(r.Context(), id, Order{
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		City:         req.City,
		Pincode:      req.Pincode,
		Quantity:     req.Quantity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Redemption order updated", nil)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err := h.service.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Redemption order deleted", nil)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req struct {
		Status string `json:"status" validate:"required"`
		Note   string `json:"note"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetStatus(r.Context(), id, Status(req.Status), req.Note); err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Status updated", nil)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	history, err := h.service.History(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Status history", history)
}

func (h *Handler) comments(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	comments, err := h.service.Comments(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.OK(w, "Comments", comments)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	var req struct {
		Body string `json:"body" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	comment, err := h.service.AddComment(r.Context(), id, req.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	httpx.Created(w, "Comment added", comment)
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
