package redemption

import (
	"context"
	"fmt"
	"time"

	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// Service exposes redemption order operations.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns a filtered page of orders plus the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Order, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	if filters.Channel != "" && !filters.Channel.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown channel %q", ErrValidation, filters.Channel)
	}
	return s.repo.List(ctx, filters)
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// Create registers a single order.
func (s *Service) Create(ctx context.Context, order Order) (Order, error) {
	if err := validateOrder(order); err != nil {
		return Order{}, err
	}
	order.Status = StatusPending
	if order.OrderDate.IsZero() {
		order.OrderDate = time.Now()
	}
	return s.repo.Create(ctx, order)
}

// BulkImport inserts pre-parsed feed rows for one channel. Rows whose
// (channel, orderNumber) already exist are skipped, so re-importing the same
// feed is safe.
func (s *Service) BulkImport(ctx context.Context, channel Channel, orders []Order) ([]Order, error) {
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}
	if len(orders) == 0 {
		return nil, fmt.Errorf("%w: empty import", ErrValidation)
	}
	for i := range orders {
		orders[i].Channel = channel
		orders[i].Status = StatusPending
		if orders[i].OrderDate.IsZero() {
			orders[i].OrderDate = time.Now()
		}
		if err := validateOrder(orders[i]); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return s.repo.CreateBatch(ctx, orders)
}

// Update edits customer-facing fields of a pending order.
func (s *Service) Update(ctx context.Context, id int64, order Order) error {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if existing.Status != StatusPending {
		return fmt.Errorf("%w: only pending orders are editable", ErrValidation)
	}
	if order.CustomerName == "" || order.Quantity <= 0 {
		return ErrValidation
	}
	return s.repo.Update(ctx, id, order)
}

// Delete soft deletes an order that has not entered fulfilment. Once a
// purchase order covers it the record is part of the procurement trail and
// must stay.
func (s *Service) Delete(ctx context.Context, id int64) error {
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != StatusPending && order.Status != StatusCancelled {
		return fmt.Errorf("%w: %s orders cannot be deleted", ErrValidation, order.Status)
	}
	return s.repo.SoftDelete(ctx, id)
}

// ListForInvoice returns one channel's fulfilled orders inside the date
// window for consolidated invoice generation.
func (s *Service) ListForInvoice(ctx context.Context, channel Channel, from, to time.Time) ([]Order, error) {
	if !channel.IsValid() {
		return nil, fmt.Errorf("%w: unknown channel %q", ErrValidation, channel)
	}
	if from.IsZero() || to.IsZero() || to.Before(from) {
		return nil, fmt.Errorf("%w: invalid date window", ErrValidation)
	}
	return s.repo.ListInvoiceable(ctx, channel, from, to)
}

// SetStatus records a status change with history.
func (s *Service) SetStatus(ctx context.Context, id int64, to Status, note string) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	order, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if order.Status == to {
		return nil
	}
	return s.repo.SetStatus(ctx, id, StatusChange{
		OrderID: id,
		From:    order.Status,
		To:      to,
		Note:    note,
		ActorID: shared.ActorFromContext(ctx),
	}, "")
}

// History returns the order's status change trail.
func (s *Service) History(ctx context.Context, orderID int64) ([]StatusChange, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, orderID)
}

// AddComment appends an operator note.
func (s *Service) AddComment(ctx context.Context, orderID int64, body string) (Comment, error) {
	if body == "" {
		return Comment{}, fmt.Errorf("%w: empty comment", ErrValidation)
	}
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return Comment{}, err
	}
	return s.repo.AddComment(ctx, Comment{
		OrderID: orderID,
		ActorID: shared.ActorFromContext(ctx),
		Body:    body,
	})
}

// Comments returns the order's comment thread.
func (s *Service) Comments(ctx context.Context, orderID int64) ([]Comment, error) {
	if _, err := s.repo.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.repo.Comments(ctx, orderID)
}

func validateOrder(order Order) error {
	if order.OrderNumber == "" {
		return fmt.Errorf("%w: order number required", ErrValidation)
	}
	if order.CustomerName == "" {
		return fmt.Errorf("%w: customer name required", ErrValidation)
	}
	if order.ProductID == 0 || order.ProductName == "" {
		return fmt.Errorf("%w: product required", ErrValidation)
	}
	if order.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive", ErrValidation)
	}
	return nil
}

// POAdapter bridges redemption orders into the purchase order module's intake
// port.
type POAdapter struct {
	service *Service
}

// NewPOAdapter constructs the adapter.
func NewPOAdapter(service *Service) *POAdapter {
	return &POAdapter{service: service}
}

// GetOrderLine resolves the order projection used by bulk PO creation. The
// order must be pending and belong to the requested channel.
func (a *POAdapter) GetOrderLine(ctx context.Context, channel purchaseorders.Channel, orderID int64) (purchaseorders.RedemptionLine, error) {
	order, err := a.service.Get(ctx, orderID)
	if err != nil {
		return purchaseorders.RedemptionLine{}, err
	}
	if string(order.Channel) != string(channel) {
		return purchaseorders.RedemptionLine{}, fmt.Errorf("%w: order %d is on channel %s", ErrValidation, orderID, order.Channel)
	}
	if order.Status != StatusPending {
		return purchaseorders.RedemptionLine{}, fmt.Errorf("%w: order %d already %s", ErrValidation, orderID, order.Status)
	}
	return purchaseorders.RedemptionLine{
		OrderID:     order.ID,
		Channel:     channel,
		ProductID:   order.ProductID,
		ProductName: order.ProductName,
		GiftCode:    order.GiftCode,
		Quantity:    order.Quantity,
	}, nil
}

// MarkPurchased flags the order as covered by a purchase order.
func (a *POAdapter) MarkPurchased(ctx context.Context, channel purchaseorders.Channel, orderID int64, poNumber string) error {
	order, err := a.service.Get(ctx, orderID)
	if err != nil {
		return err
	}
	return a.service.repo.SetStatus(ctx, orderID, StatusChange{
		OrderID: orderID,
		From:    order.Status,
		To:      StatusPurchased,
		Note:    "covered by " + poNumber,
		ActorID: shared.ActorFromContext(ctx),
	}, poNumber)
}
