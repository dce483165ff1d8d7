package challans

import (
	"context"
	"errors"

	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
)

// RedemptionOrderSource adapts the redemption module to the OrderPort.
type RedemptionOrderSource struct {
	service *redemption.Service
}

// NewRedemptionOrderSource constructs the adapter.
func NewRedemptionOrderSource(service *redemption.Service) *RedemptionOrderSource {
	return &RedemptionOrderSource{service: service}
}

// GetOrder resolves the recipient projection for a challan.
func (s *RedemptionOrderSource) GetOrder(ctx context.Context, id int64) (OrderInfo, error) {
	order, err := s.service.Get(ctx, id)
	if err != nil {
		if errors.Is(err, redemption.ErrNotFound) {
			err = ErrNotFound
		}
		return OrderInfo{}, err
	}
	return OrderInfo{
		ID:           order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		Phone:        order.Phone,
		Address:      order.Address,
		City:         order.City,
		Pincode:      order.Pincode,
		ProductID:    order.ProductID,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Status:       string(order.Status),
	}, nil
}

// MarkDispatched flags the order as handed to the courier.
func (s *RedemptionOrderSource) MarkDispatched(ctx context.Context, id int64, trackingNumber string) error {
	return s.service.SetStatus(ctx, id, redemption.StatusDispatched, "tracking "+trackingNumber)
}

// MarkDelivered closes out the order.
func (s *RedemptionOrderSource) MarkDelivered(ctx context.Context, id int64) error {
	return s.service.SetStatus(ctx, id, redemption.StatusDelivered, "")
}
