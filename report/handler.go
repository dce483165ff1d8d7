package report

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tradewind-oms/tradewind-oms/internal/platform/httpx"
	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
)

// PurchaseOrderSource resolves the PO an invoice is built from.
type PurchaseOrderSource interface {
	Get(ctx context.Context, id int64) (purchaseorders.PurchaseOrder, error)
}

// VendorSource resolves vendor details for invoice headers.
type VendorSource interface {
	GetVendor(ctx context.Context, id int64) (purchaseorders.VendorInfo, error)
}

// OrderSource resolves the fulfilled redemption orders a ranged invoice
// covers.
type OrderSource interface {
	ListForInvoice(ctx context.Context, channel redemption.Channel, from, to time.Time) ([]redemption.Order, error)
}

// Handler exposes invoice generation.
type Handler struct {
	client   *Client
	pos      PurchaseOrderSource
	vendors  VendorSource
	orders   OrderSource
	validate *validator.Validate
}

// NewHandler constructs the handler.
func NewHandler(client *Client, pos PurchaseOrderSource, vendors VendorSource, orders OrderSource, validate *validator.Validate) *Handler {
	return &Handler{client: client, pos: pos, vendors: vendors, orders: orders, validate: validate}
}

// Routes mounts the invoice endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/generate", h.generate)
	r.Post("/purchase-order", h.generateForPO)
	return r
}

// generate renders the consolidated invoice for one channel over a date
// window.
func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderType string `json:"orderType" validate:"required,oneof=bank bip"`
		StartDate string `json:"startDate" validate:"required"`
		EndDate   string `json:"endDate" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}
	from, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", "startDate must be YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", "endDate must be YYYY-MM-DD")
		return
	}

	channel := redemption.Channel(req.OrderType)
	orders, err := h.orders.ListForInvoice(r.Context(), channel, from, to)
	if err != nil {
		if errors.Is(err, redemption.ErrValidation) {
			httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	if len(orders) == 0 {
		httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", "no fulfilled orders in the requested window")
		return
	}

	html, err := BuildOrderInvoiceHTML(channel, from, to, orders)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondPDF(w, r, html, "invoice-"+req.OrderType+"-"+req.StartDate+".pdf")
}

// generateForPO renders the invoice for a single purchase order.
func (h *Handler) generateForPO(w http.ResponseWriter, r *http.Request) {
	var req struct {
		POID int64 `json:"poId" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid_body", "Invalid Request", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_failed", "Validation Failed", err.Error())
		return
	}

	po, err := h.pos.Get(r.Context(), req.POID)
	if err != nil {
		if errors.Is(err, purchaseorders.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	vendor, err := h.vendors.GetVendor(r.Context(), po.VendorID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	html, err := BuildInvoiceHTML(po, vendor)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respondPDF(w, r, html, "invoice-"+po.Number+".pdf")
}

func (h *Handler) respondPDF(w http.ResponseWriter, r *http.Request, html, filename string) {
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if err != nil {
		httpx.Problem(w, http.StatusBadGateway, "render_failed", "Render Failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
