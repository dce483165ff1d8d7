package challans

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPCourier books shipments against the courier partner's REST API.
type HTTPCourier struct {
	baseURL string
	name    string
	client  *http.Client
}

// NewHTTPCourier constructs the gateway.
func NewHTTPCourier(baseURL, name string) *HTTPCourier {
	return &HTTPCourier{
		baseURL: baseURL,
		name:    name,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type bookingRequest struct {
	Reference     string `json:"reference"`
	RecipientName string `json:"recipient_name"`
	Address       string `json:"address"`
	City          string `json:"city,omitempty"`
	Pincode       string `json:"pincode,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Pieces        int    `json:"pieces"`
}

type bookingResponse struct {
	TrackingNumber string `json:"tracking_number"`
}

// Book registers the consignment and returns the tracking number.
func (c *HTTPCourier) Book(ctx context.Context, challan Challan) (Booking, error) {
	payload, err := json.Marshal(bookingRequest{
		Reference:     challan.Number,
		RecipientName: challan.RecipientName,
		Address:       challan.Address,
		City:          challan.City,
		Pincode:       challan.Pincode,
		Phone:         challan.Phone,
		Pieces:        len(challan.Items),
	})
	if err != nil {
		return Booking{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/consignments", bytes.NewReader(payload))
	if err != nil {
		return Booking{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Booking{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return Booking{}, fmt.Errorf("courier returned status %d", resp.StatusCode)
	}
	var body bookingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Booking{}, err
	}
	if body.TrackingNumber == "" {
		return Booking{}, fmt.Errorf("courier returned empty tracking number")
	}
	return Booking{Courier: c.name, TrackingNumber: body.TrackingNumber}, nil
}

// ManualCourier is used when no courier API is configured; operators enter
// tracking numbers by hand later. The booking carries a placeholder.
type ManualCourier struct{}

// Book returns a manual booking stamped with the challan number.
func (ManualCourier) Book(ctx context.Context, challan Challan) (Booking, error) {
	return Booking{Courier: "manual", TrackingNumber: "MANUAL-" + challan.Number}, nil
}
