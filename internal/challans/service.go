package challans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tradewind-oms/tradewind-oms/internal/events"
	"github.com/tradewind-oms/tradewind-oms/internal/shared"
)

// OrderInfo is the redemption order projection needed to issue a challan.
type OrderInfo struct {
	ID           int64
	OrderNumber  string
	CustomerName string
	Phone        string
	Address      string
	City         string
	Pincode      string
	ProductID    int64
	ProductName  string
	Quantity     int64
	Status       string
}

// OrderPort exposes the redemption order integration.
type OrderPort interface {
	GetOrder(ctx context.Context, id int64) (OrderInfo, error)
	MarkDispatched(ctx context.Context, id int64, trackingNumber string) error
	MarkDelivered(ctx context.Context, id int64) error
}

// JobEnqueuer hands PDF work to the background worker.
type JobEnqueuer interface {
	EnqueueChallanPDF(ctx context.Context, challanID int64) (string, error)
	EnqueueChallanArchive(ctx context.Context, challanIDs []int64) (string, error)
}

// OrderDispatchedEvent is published when a shipment is booked.
type OrderDispatchedEvent struct {
	OrderID        int64  `json:"order_id"`
	ChallanID      int64  `json:"challan_id"`
	ChallanNumber  string `json:"challan_number"`
	Courier        string `json:"courier"`
	TrackingNumber string `json:"tracking_number"`
	ActorID        int64  `json:"actor_id"`
}

// Service orchestrates challan issue, dispatch and delivery.
type Service struct {
	repo      Repository
	orders    OrderPort
	courier   CourierGateway
	jobs      JobEnqueuer
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs the service.
func NewService(repo Repository, orders OrderPort, courier CourierGateway, jobs JobEnqueuer, publisher events.Publisher, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		repo:      repo,
		orders:    orders,
		courier:   courier,
		jobs:      jobs,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns a filtered page of challans plus the total count.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Challan, int, error) {
	if filters.Limit <= 0 {
		filters.Limit = 20
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}
	return s.repo.List(ctx, filters)
}

// Get fetches one challan.
func (s *Service) Get(ctx context.Context, id int64) (Challan, error) {
	return s.repo.Get(ctx, id)
}

// Shipment returns the courier booking for a challan.
func (s *Service) Shipment(ctx context.Context, challanID int64) (Shipment, error) {
	if _, err := s.repo.Get(ctx, challanID); err != nil {
		return Shipment{}, err
	}
	return s.repo.ShipmentForChallan(ctx, challanID)
}

// Issue creates a challan for a purchased redemption order, copying the
// recipient details from the order. Serial numbers come from the caller since
// they are assigned at packing time.
func (s *Service) Issue(ctx context.Context, orderID int64, serialNumbers []string) (Challan, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return Challan{}, err
	}
	if order.Status != "purchased" {
		return Challan{}, fmt.Errorf("%w: order %d is %s, expected purchased", ErrValidation, orderID, order.Status)
	}
	item := ChallanItem{
		ProductID:   order.ProductID,
		ProductName: order.ProductName,
		Quantity:    order.Quantity,
	}
	if len(serialNumbers) > 0 {
		item.SerialNumber = serialNumbers[0]
	}
	challan := Challan{
		Number:        generateNumber("CH"),
		OrderID:       order.ID,
		RecipientName: order.CustomerName,
		Address:       order.Address,
		City:          order.City,
		Pincode:       order.Pincode,
		Phone:         order.Phone,
		Items:         []ChallanItem{item},
		Status:        StatusIssued,
	}
	created, err := s.repo.Create(ctx, challan)
	if err != nil {
		return Challan{}, err
	}
	if s.jobs != nil {
		if _, err := s.jobs.EnqueueChallanPDF(ctx, created.ID); err != nil && s.logger != nil {
			s.logger.Warn("enqueue challan pdf", slog.Any("error", err), slog.Int64("challan_id", created.ID))
		}
	}
	return created, nil
}

// Dispatch books the shipment with the courier, records it and flags both the
// challan and the underlying order as dispatched.
func (s *Service) Dispatch(ctx context.Context, challanID int64) (Shipment, error) {
	challan, err := s.repo.Get(ctx, challanID)
	if err != nil {
		return Shipment{}, err
	}
	if challan.Status != StatusIssued {
		return Shipment{}, fmt.Errorf("%w: challan %d is %s", ErrValidation, challanID, challan.Status)
	}

	booking, err := s.courier.Book(ctx, challan)
	if err != nil {
		return Shipment{}, fmt.Errorf("book courier: %w", err)
	}
	shipment, err := s.repo.CreateShipment(ctx, Shipment{
		ChallanID:      challan.ID,
		Courier:        booking.Courier,
		TrackingNumber: booking.TrackingNumber,
		BookedAt:       s.now(),
	})
	if err != nil {
		return Shipment{}, err
	}
	if err := s.repo.SetStatus(ctx, challan.ID, StatusDispatched); err != nil {
		return Shipment{}, err
	}
	if err := s.orders.MarkDispatched(ctx, challan.OrderID, booking.TrackingNumber); err != nil && s.logger != nil {
		s.logger.Warn("mark order dispatched", slog.Any("error", err), slog.Int64("order_id", challan.OrderID))
	}

	if err := s.publisher.Publish(ctx, events.Event{
		Type: events.TypeOrderDispatched,
		Key:  challan.Number,
		Payload: OrderDispatchedEvent{
			OrderID:        challan.OrderID,
			ChallanID:      challan.ID,
			ChallanNumber:  challan.Number,
			Courier:        booking.Courier,
			TrackingNumber: booking.TrackingNumber,
			ActorID:        shared.ActorFromContext(ctx),
		},
	}); err != nil && s.logger != nil {
		s.logger.Warn("publish event", slog.Any("error", err))
	}
	return shipment, nil
}

// MarkDelivered closes out a dispatched challan.
func (s *Service) MarkDelivered(ctx context.Context, challanID int64) error {
	challan, err := s.repo.Get(ctx, challanID)
	if err != nil {
		return err
	}
	if challan.Status != StatusDispatched {
		return fmt.Errorf("%w: challan %d is %s", ErrValidation, challanID, challan.Status)
	}
	if err := s.repo.SetStatus(ctx, challanID, StatusDelivered); err != nil {
		return err
	}
	if err := s.orders.MarkDelivered(ctx, challan.OrderID); err != nil && s.logger != nil {
		s.logger.Warn("mark order delivered", slog.Any("error", err), slog.Int64("order_id", challan.OrderID))
	}
	return nil
}

// BulkDownload enqueues an archive build for the selected challans and
// returns the task ID the client polls.
func (s *Service) BulkDownload(ctx context.Context, ids []int64) (string, error) {
	if len(ids) == 0 {
		return "", fmt.Errorf("%w: no challans selected", ErrValidation)
	}
	challans, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return "", err
	}
	if len(challans) != len(ids) {
		return "", fmt.Errorf("%w: one or more challans missing", ErrNotFound)
	}
	return s.jobs.EnqueueChallanArchive(ctx, ids)
}

func generateNumber(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
