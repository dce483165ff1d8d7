// Package challans handles outbound dispatch: delivery challans for shipped
// redemption orders and the courier shipments that carry them.
package challans

import (
	"context"
	"errors"
	"time"
)

// Challan statuses.
type Status string

const (
	StatusIssued     Status = "issued"
	StatusDispatched Status = "dispatched"
	StatusDelivered  Status = "delivered"
)

// ChallanItem is one product row on a challan.
type ChallanItem struct {
	ProductID    int64  `json:"productId"`
	ProductName  string `json:"productName"`
	Quantity     int64  `json:"quantity"`
	SerialNumber string `json:"serialNumber,omitempty"`
}

// Challan is a delivery challan issued against a redemption order.
type Challan struct {
	ID            int64         `json:"id"`
	Number        string        `json:"challanNumber"`
	OrderID       int64         `json:"orderId"`
	RecipientName string        `json:"recipientName"`
	Address       string        `json:"address"`
	City          string        `json:"city,omitempty"`
	Pincode       string        `json:"pincode,omitempty"`
	Phone         string        `json:"phone,omitempty"`
	Items         []ChallanItem `json:"items"`
	Status        Status        `json:"status"`
	PDFPath       string        `json:"pdfPath,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Shipment is a courier booking for a challan.
type Shipment struct {
	ID             int64     `json:"id"`
	ChallanID      int64     `json:"challanId"`
	Courier        string    `json:"courier"`
	TrackingNumber string    `json:"trackingNumber"`
	BookedAt       time.Time `json:"bookedAt"`
	DeliveredAt    time.Time `json:"deliveredAt,omitempty"`
}

// Booking is the courier gateway's response for a new shipment.
type Booking struct {
	Courier        string
	TrackingNumber string
}

// CourierGateway books shipments with the courier partner. Implementations
// talk to the courier's HTTP API; tests use a stub.
type CourierGateway interface {
	Book(ctx context.Context, challan Challan) (Booking, error)
}

// ListFilters narrows challan listings.
type ListFilters struct {
	Status Status
	Search string
	From   time.Time
	To     time.Time
	Page   int
	Limit  int
}

var (
	// ErrNotFound indicates the challan does not exist.
	ErrNotFound = errors.New("challans: not found")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("challans: invalid input")
)
