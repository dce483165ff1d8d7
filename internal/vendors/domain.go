// Package vendors manages the supplier directory purchase orders are placed
// against.
package vendors

import (
	"errors"
	"time"
)

// Vendor is a supplier record.
type Vendor struct {
	ID        int64     `json:"id"`
	Name      string    `json:"vendorName"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	City      string    `json:"city,omitempty"`
	GSTNumber string    `json:"gstNumber,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ListFilters narrows vendor listings.
type ListFilters struct {
	Search  string
	City    string
	SortBy  string
	SortDir string
	Page    int
	Limit   int
}

var (
	// ErrNotFound indicates the vendor does not exist.
	ErrNotFound = errors.New("vendors: not found")
	// ErrValidation indicates invalid caller input.
	ErrValidation = errors.New("vendors: invalid input")
)
