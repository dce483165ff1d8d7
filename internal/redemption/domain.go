// Package redemption manages gift redemption orders arriving from the two
// intake channels: the partner bank feed and the BIP portal. Orders become
// purchase orders through the bulk-create flow and are tracked through to
// delivery.
package redemption

import (
	"errors"
	"time"
)

// Channel identifies the intake source of an order.
type Channel string

const (
	ChannelBank Channel = "bank"
	ChannelBIP  Channel = "bip"
)

// IsValid checks the channel is known.
func (c Channel) IsValid() bool {
	return c == ChannelBank || c == ChannelBIP
}

// Order lifecycle statuses.
type Status string

const (
	StatusPending    Status = "pending"
	StatusPurchased  Status = "purchased"
	StatusDispatched Status = "dispatched"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks the status is a known lifecycle tag.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPurchased, StatusDispatched, StatusDelivered, StatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a redemption order from either channel. GiftCode carries the
// bank's product reference and flows onto purchase order lines. Phone holds
// the primary mobile for both channels; the remaining contact and reward
// fields are channel-specific and stay empty on the other channel.
type Order struct {
	ID           int64   `json:"id"`
	Channel      Channel `json:"channel"`
	OrderNumber  string  `json:"orderNumber"`
	CustomerName string  `json:"customerName"`
	CNIC         string  `json:"cnic,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Address      string  `json:"address,omitempty"`
	City         string  `json:"city,omitempty"`
	Pincode      string  `json:"pincode,omitempty"`

	// Bank feed only.
	Mobile2        string `json:"mobile2,omitempty"`
	Brand          string `json:"brand,omitempty"`
	RefNo          string `json:"refNo,omitempty"`
	RedeemedPoints int64  `json:"redeemedPoints,omitempty"`

	// BIP portal only.
	Eforms             string  `json:"eforms,omitempty"`
	AuthorizedReceiver string  `json:"authorizedReceiver,omitempty"`
	ReceiverCNIC       string  `json:"receiverCnic,omitempty"`
	Amount             float64 `json:"amount,omitempty"`
	Color              string  `json:"color,omitempty"`

	ProductID   int64     `json:"productId"`
	ProductName string    `json:"productName"`
	GiftCode    string    `json:"giftCode,omitempty"`
	Quantity    int64     `json:"quantity"`
	Status      Status    `json:"status"`
	PONumber    string    `json:"poNumber,omitempty"`
	OrderDate   time.Time `json:"orderDate"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StatusChange is one entry of an order's status history.
type StatusChange struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Note      string    `json:"note,omitempty"`
	ActorID   int64     `json:"actorId,omitempty"`
	ChangedAt time.Time `json:"changedAt"`
}

// Comment is an operator note on an order.
type Comment struct {
	ID        int64     `json:"id"`
	OrderID   int64     `json:"orderId"`
	ActorID   int64     `json:"actorId,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListFilters narrows order listings. SortBy/SortDir pass through a column
// whitelist; unknown values fall back to order date, newest first.
type ListFilters struct {
	Channel Channel
	Status  Status
	Search  string
	From    time.Time
	To      time.Time
	SortBy  string
	SortDir string
	Page    int
	Limit   int
}

var (
	// ErrNotFound indicates the order does not exist.
	ErrNotFound = errors.New("redemption: not found")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("redemption: invalid input")
)
